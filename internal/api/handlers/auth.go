package handlers

import (
	"net/http"

	"github.com/dom/healthguide/internal/api/middleware"
	"github.com/dom/healthguide/internal/domain"
	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/service"
	"github.com/dom/healthguide/internal/validator"
)

type AuthHandler struct {
	authService *service.AuthService
	validate    *validator.Validator
	log         *logger.Logger
}

func NewAuthHandler(authService *service.AuthService, validate *validator.Validator, log *logger.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, validate: validate, log: log}
}

type SendOTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Signup   bool   `json:"signup"`
}

type VerifyOTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
	OTP      string `json:"otp" validate:"required"`
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"max=100"`
	Age      *int   `json:"age" validate:"omitempty,min=0,max=150"`
	Gender   string `json:"gender" validate:"max=32"`
	Contact  string `json:"contact" validate:"max=64"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	OTP      string `json:"otp" validate:"required"`
}

type UserResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Age     *int   `json:"age"`
	Gender  string `json:"gender"`
	Contact string `json:"contact"`
}

type SignupResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    UserResponse `json:"user"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:      u.ID.String(),
		Name:    u.Name,
		Email:   u.Email,
		Age:     u.Age,
		Gender:  u.Gender,
		Contact: u.Contact,
	}
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeServiceError(w, h.log, "handlers.SendOTP", err)
		return
	}

	err := h.authService.RequestChallenge(r.Context(), service.RequestChallengeInput{
		Email:    req.Email,
		Password: req.Password,
		Signup:   req.Signup,
	})
	if err != nil {
		writeServiceError(w, h.log, "handlers.SendOTP", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "OTP sent to your email",
		"success": true,
	})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeServiceError(w, h.log, "handlers.VerifyOTP", err)
		return
	}

	if err := h.authService.VerifyChallenge(r.Context(), req.Email, req.OTP); err != nil {
		writeServiceError(w, h.log, "handlers.VerifyOTP", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeServiceError(w, h.log, "handlers.Signup", err)
		return
	}

	result, err := h.authService.CompleteSignup(r.Context(), service.CompleteSignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Age:      req.Age,
		Gender:   req.Gender,
		Contact:  req.Contact,
	})
	if err != nil {
		writeServiceError(w, h.log, "handlers.Signup", err)
		return
	}

	writeJSON(w, http.StatusOK, SignupResponse{
		Success: true,
		Token:   result.Token,
		User:    toUserResponse(result.User),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeServiceError(w, h.log, "handlers.Login", err)
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		OTP:      req.OTP,
	})
	if err != nil {
		writeServiceError(w, h.log, "handlers.Login", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": result.Token})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, "handlers.Profile", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Protected(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "This is a protected route!",
		"user":    map[string]string{"id": userID.String()},
	})
}
