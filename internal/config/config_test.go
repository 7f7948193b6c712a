package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, time.Hour, cfg.JWTExpiration)
	assert.Equal(t, 10*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 5, cfg.OTP.RequestLimit)
	assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 50, cfg.Chat.MaxTurns)
	assert.Empty(t, cfg.SMTP.Host)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "8081")
	t.Setenv("OTP_TTL", "5m")
	t.Setenv("CHAT_MAX_SESSIONS", "3")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 3, cfg.Chat.MaxSessions)
	assert.Equal(t, "localhost:9000", cfg.Storage.Endpoint)
}

func TestLoad_LegacyMailVariables(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SMTP_HOST", "")
	t.Setenv("EMAIL_USER", "sender@example.com")
	t.Setenv("EMAIL_PASS", "app-password")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "smtp.gmail.com", cfg.SMTP.Host)
	assert.Equal(t, "sender@example.com", cfg.SMTP.Username)
	assert.Equal(t, "app-password", cfg.SMTP.Password)
	assert.Equal(t, "sender@example.com", cfg.SMTP.From)
}

func TestValidate_ChatLimits(t *testing.T) {
	cfg := &Config{
		JWTSecret: "secret",
		OTP:       OTP{TTL: time.Minute},
		Chat:      Chat{MaxSessions: 0, MaxTurns: 10},
	}
	assert.Error(t, cfg.Validate())

	cfg.Chat.MaxSessions = 1
	assert.NoError(t, cfg.Validate())
}
