package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                 uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email              string     `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash       string     `json:"-" gorm:"not null"`
	OTPCode            *string    `json:"-"`
	OTPExpiresAt       *time.Time `json:"-"`
	Name               string     `json:"name"`
	Age                *int       `json:"age"`
	Gender             string     `json:"gender"`
	Contact            string     `json:"contact"`
	ProfileCompletedAt *time.Time `json:"profileCompletedAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// OTPChallenge is a pending one-time code issued to a user.
type OTPChallenge struct {
	Code      string
	ExpiresAt time.Time
}

// Expired reports whether the challenge can no longer be redeemed at now.
func (c OTPChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Challenge returns the pending challenge, or nil when none is pending.
func (u *User) Challenge() *OTPChallenge {
	if u.OTPCode == nil || u.OTPExpiresAt == nil {
		return nil
	}
	return &OTPChallenge{Code: *u.OTPCode, ExpiresAt: *u.OTPExpiresAt}
}

// SetChallenge replaces any pending challenge.
func (u *User) SetChallenge(c OTPChallenge) {
	code := c.Code
	expiresAt := c.ExpiresAt
	u.OTPCode = &code
	u.OTPExpiresAt = &expiresAt
}

func (u *User) ClearChallenge() {
	u.OTPCode = nil
	u.OTPExpiresAt = nil
}

// Profile holds the fields collected when signup is completed.
type Profile struct {
	Name    string
	Age     *int
	Gender  string
	Contact string
}

func (u *User) HasProfile() bool {
	return u.ProfileCompletedAt != nil
}

func (u *User) ApplyProfile(p Profile, at time.Time) {
	u.Name = p.Name
	u.Age = p.Age
	u.Gender = p.Gender
	u.Contact = p.Contact
	u.ProfileCompletedAt = &at
}
