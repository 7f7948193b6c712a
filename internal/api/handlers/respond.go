package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dom/healthguide/internal/domain"
	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/validator"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service errors onto HTTP statuses. Anything it
// does not recognise is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, op string, err error) {
	var verr *validator.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Fields: verr.Errors})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, validationMessage(err))

	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidCode),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrNoChallengePending),
		errors.Is(err, domain.ErrNotVerified):
		writeError(w, http.StatusBadRequest, authMessage(err))

	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")

	case errors.Is(err, domain.ErrNotificationFailed):
		log.Error(op+": notification failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to send email. Please check your email address and try again.",
			Details: err.Error(),
		})
	case errors.Is(err, domain.ErrInvalidAPIKey):
		log.Error(op+": invalid model API key", "err", err)
		writeError(w, http.StatusUnauthorized, "Invalid Gemini API key. Please check your configuration.")
	case errors.Is(err, domain.ErrUpstreamFailure):
		log.Error(op+": upstream failure", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "AI service failed",
			Details: err.Error(),
		})

	default:
		log.Error(op+": unexpected error", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// authMessage keeps the wording clients already match on.
func authMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoChallengePending):
		return capitalize(domain.ErrInvalidCode.Error())
	case errors.Is(err, domain.ErrNotVerified):
		return "OTP not verified or user not found"
	default:
		for _, target := range []error{
			domain.ErrNotFound,
			domain.ErrAlreadyExists,
			domain.ErrInvalidCredentials,
			domain.ErrInvalidCode,
			domain.ErrExpired,
		} {
			if errors.Is(err, target) {
				return capitalize(target.Error())
			}
		}
		return err.Error()
	}
}

// validationMessage strips the sentinel prefix from "validation failed: <msg>".
func validationMessage(err error) string {
	msg := err.Error()
	prefix := domain.ErrValidation.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return capitalize(msg[len(prefix):])
	}
	return capitalize(msg)
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// decodeAndValidate reads a JSON body into dst and checks its tags.
func decodeAndValidate(r *http.Request, v *validator.Validator, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidBody
	}
	return v.Validate(dst)
}

var errInvalidBody = fmt.Errorf("%w: invalid request body", domain.ErrValidation)

func isUpstream(err error) bool {
	return errors.Is(err, domain.ErrUpstreamFailure)
}
