package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	for i := 0; i < 5; i++ {
		userID := uuid.New()
		tok, expiresAt, err := m.Issue(userID)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

		got, err := m.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	}
}

func TestManager_Expired(t *testing.T) {
	now := time.Now()
	m := NewManager("test-secret", time.Hour).WithClock(func() time.Time { return now })

	tok, _, err := m.Issue(uuid.New())
	require.NoError(t, err)

	now = now.Add(time.Hour + time.Second)
	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestManager_Verify_Errors(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	other := NewManager("other-secret", time.Hour)

	foreign, _, err := other.Issue(uuid.New())
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: uuid.NewString()}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	badID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "not-a-uuid",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty token", token: "", wantErr: ErrTokenMissing},
		{name: "malformed token", token: "notavalidjwt", wantErr: ErrTokenInvalid},
		{name: "wrong secret", token: foreign, wantErr: ErrTokenInvalid},
		{name: "missing expiry", token: noExpiry, wantErr: ErrTokenInvalid},
		{name: "bad user id", token: badID, wantErr: ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
