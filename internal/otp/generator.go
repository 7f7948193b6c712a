// Package otp issues one-time email codes and throttles how often they can be
// requested or guessed.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dom/healthguide/internal/domain"
)

const (
	CodeLength = 6
	DefaultTTL = 10 * time.Minute
)

// Generator produces challenges that expire a fixed window after issuance.
type Generator struct {
	ttl time.Duration
	now func() time.Time
}

func NewGenerator(ttl time.Duration) *Generator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Generator{ttl: ttl, now: time.Now}
}

// WithClock replaces the time source.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

func (g *Generator) TTL() time.Duration {
	return g.ttl
}

func (g *Generator) New() (domain.OTPChallenge, error) {
	code, err := NewCode(CodeLength)
	if err != nil {
		return domain.OTPChallenge{}, err
	}
	return domain.OTPChallenge{
		Code:      code,
		ExpiresAt: g.now().Add(g.ttl),
	}, nil
}

// NewCode returns a string of n decimal digits drawn from crypto/rand.
// Leading zeros are allowed.
func NewCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid otp length %d", n)
	}

	var b strings.Builder
	b.Grow(n)

	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
