package domain

import "errors"

// Auth errors
var (
	ErrNotFound           = errors.New("user not found")
	ErrAlreadyExists      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid OTP")
	ErrExpired            = errors.New("OTP expired")
	ErrNoChallengePending = errors.New("no OTP pending")
	ErrNotVerified        = errors.New("OTP not verified")
	ErrNotificationFailed = errors.New("failed to send email")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("too many requests")
)

// Request and upstream errors
var (
	ErrValidation      = errors.New("validation failed")
	ErrUpstreamFailure = errors.New("upstream service failed")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrSessionNotFound = errors.New("session not found")
)
