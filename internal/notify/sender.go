// Package notify delivers OTP codes to users out of band.
package notify

import (
	"bytes"
	"context"
	"html/template"
	"time"

	"github.com/dom/healthguide/internal/logger"
)

// Sender delivers a one-time code to an email address.
type Sender interface {
	SendOTP(ctx context.Context, to, code string, ttl time.Duration) error
}

const otpSubject = "HealthGuide - Your OTP Verification Code"

var otpTemplate = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f9f9f9;">
  <div style="background-color: white; padding: 30px; border-radius: 10px;">
    <h2 style="color: #4F46E5; text-align: center;">HealthGuide Verification</h2>
    <p style="font-size: 16px; color: #333;">Hello! Your verification code for HealthGuide is:</p>
    <div style="background-color: #4F46E5; color: white; padding: 20px; text-align: center; border-radius: 8px;">
      <h1 style="margin: 0; font-size: 32px; letter-spacing: 8px;">{{.Code}}</h1>
    </div>
    <p style="font-size: 14px; color: #666; text-align: center;">This code expires in {{.Minutes}} minutes. Don't share it with anyone.</p>
  </div>
</div>`))

func renderOTP(code string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, struct {
		Code    string
		Minutes int
	}{Code: code, Minutes: int(ttl.Minutes())})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LogSender writes codes to the log instead of sending mail. Used when no
// SMTP relay is configured.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendOTP(_ context.Context, to, code string, ttl time.Duration) error {
	s.log.Warn("notify.LogSender: smtp not configured, otp written to log",
		"to", to, "code", code, "ttl", ttl)
	return nil
}
