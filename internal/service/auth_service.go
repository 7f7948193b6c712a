package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dom/healthguide/internal/domain"
	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/metrics"
	"github.com/dom/healthguide/internal/notify"
	"github.com/dom/healthguide/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ChallengeGenerator issues fresh OTP challenges.
type ChallengeGenerator interface {
	New() (domain.OTPChallenge, error)
	TTL() time.Duration
}

// OTPThrottle limits challenge requests and wrong code submissions per email.
type OTPThrottle interface {
	AllowRequest(ctx context.Context, email string) error
	CheckVerify(ctx context.Context, email string) error
	RecordVerifyFailure(ctx context.Context, email string) error
	ResetVerify(ctx context.Context, email string) error
}

type TokenManager interface {
	Issue(userID uuid.UUID) (string, time.Time, error)
	Verify(token string) (uuid.UUID, error)
}

// AuthService runs the OTP-gated signup and login flows.
//
// Login verifies the pending challenge itself; it never depends on a prior
// VerifyChallenge call. VerifyChallenge is the signup checkpoint that must
// clear the challenge before CompleteSignup is accepted.
type AuthService struct {
	userRepo   repository.UserRepository
	challenges ChallengeGenerator
	sender     notify.Sender
	throttle   OTPThrottle
	tokens     TokenManager
	log        *logger.Logger
	locks      *keyedMutex
	now        func() time.Time
	bcryptCost int
}

func NewAuthService(
	userRepo repository.UserRepository,
	challenges ChallengeGenerator,
	sender notify.Sender,
	throttle OTPThrottle,
	tokens TokenManager,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		challenges: challenges,
		sender:     sender,
		throttle:   throttle,
		tokens:     tokens,
		log:        log,
		locks:      newKeyedMutex(),
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// WithClock replaces the time source used for expiry checks.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// WithBcryptCost lowers the hashing cost, for tests.
func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	s.bcryptCost = cost
	return s
}

type RequestChallengeInput struct {
	Email    string
	Password string
	Signup   bool
}

type CompleteSignupInput struct {
	Email    string
	Password string
	Name     string
	Age      *int
	Gender   string
	Contact  string
}

type LoginInput struct {
	Email    string
	Password string
	OTP      string
}

type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RequestChallenge creates the account (signup) or checks the password
// (login), stores a fresh challenge and mails it. When mailing fails the
// challenge stays stored and the caller may request again.
func (s *AuthService) RequestChallenge(ctx context.Context, input RequestChallengeInput) error {
	email := NormalizeEmail(input.Email)
	flow := "login"
	if input.Signup {
		flow = "signup"
	}

	if err := s.allowRequest(ctx, email); err != nil {
		metrics.RecordOTPRequest(flow, "throttled")
		return err
	}

	unlock := s.locks.Lock(email)
	defer unlock()

	challenge, err := s.challenges.New()
	if err != nil {
		return fmt.Errorf("generate challenge: %w", err)
	}

	if input.Signup {
		err = s.createWithChallenge(ctx, email, input.Password, challenge)
	} else {
		err = s.reissueChallenge(ctx, email, input.Password, challenge)
	}
	if err != nil {
		metrics.RecordOTPRequest(flow, statusOf(err))
		return err
	}

	if err := s.sender.SendOTP(ctx, email, challenge.Code, s.challenges.TTL()); err != nil {
		s.log.Error("auth.RequestChallenge: notification failed", "email", email, "flow", flow, "err", err)
		metrics.RecordOTPRequest(flow, "notification_failed")
		return fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}

	s.log.Info("auth.RequestChallenge: otp sent", "email", email, "flow", flow)
	metrics.RecordOTPRequest(flow, "sent")
	return nil
}

func (s *AuthService) createWithChallenge(ctx context.Context, email, password string, challenge domain.OTPChallenge) error {
	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return domain.ErrAlreadyExists
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	user.SetChallenge(challenge)

	if err := s.userRepo.Create(ctx, user); err != nil {
		return err
	}
	s.log.Info("auth.RequestChallenge: user created", "email", email, "user_id", user.ID)
	return nil
}

func (s *AuthService) reissueChallenge(ctx context.Context, email, password string, challenge domain.OTPChallenge) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !passwordMatches(user, password) {
		return domain.ErrInvalidCredentials
	}

	user.SetChallenge(challenge)
	user.UpdatedAt = s.now()
	return s.userRepo.Update(ctx, user)
}

// VerifyChallenge redeems the pending challenge without issuing a token.
// A second call with the same code fails with domain.ErrNoChallengePending.
func (s *AuthService) VerifyChallenge(ctx context.Context, email, code string) error {
	email = NormalizeEmail(email)
	if err := s.checkVerify(ctx, email); err != nil {
		metrics.RecordVerification("verify", "throttled")
		return err
	}

	unlock := s.locks.Lock(email)
	defer unlock()

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		metrics.RecordVerification("verify", statusOf(err))
		return err
	}

	if err := s.redeem(ctx, user, code); err != nil {
		metrics.RecordVerification("verify", statusOf(err))
		return err
	}

	metrics.RecordVerification("verify", "ok")
	return nil
}

// CompleteSignup stores the profile of a verified account and issues a token.
func (s *AuthService) CompleteSignup(ctx context.Context, input CompleteSignupInput) (*AuthResult, error) {
	email := NormalizeEmail(input.Email)

	unlock := s.locks.Lock(email)
	defer unlock()

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !passwordMatches(user, input.Password) {
		return nil, domain.ErrInvalidCredentials
	}
	if user.Challenge() != nil {
		return nil, domain.ErrNotVerified
	}
	if user.HasProfile() {
		return nil, domain.ErrAlreadyExists
	}

	now := s.now()
	user.ApplyProfile(domain.Profile{
		Name:    strings.TrimSpace(input.Name),
		Age:     input.Age,
		Gender:  input.Gender,
		Contact: input.Contact,
	}, now)
	user.UpdatedAt = now

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("auth.CompleteSignup: profile saved", "user_id", user.ID)

	return s.issue(user, "signup")
}

// Login checks the password and redeems the pending challenge, then issues a token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := NormalizeEmail(input.Email)
	if err := s.checkVerify(ctx, email); err != nil {
		metrics.RecordVerification("login", "throttled")
		return nil, err
	}

	unlock := s.locks.Lock(email)
	defer unlock()

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		metrics.RecordVerification("login", statusOf(err))
		return nil, err
	}
	if !passwordMatches(user, input.Password) {
		metrics.RecordVerification("login", statusOf(domain.ErrInvalidCredentials))
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.redeem(ctx, user, input.OTP); err != nil {
		metrics.RecordVerification("login", statusOf(err))
		return nil, err
	}

	metrics.RecordVerification("login", "ok")
	return s.issue(user, "login")
}

// redeem applies the challenge rules in order: pending, code, expiry.
// On success the challenge is cleared and persisted.
func (s *AuthService) redeem(ctx context.Context, user *domain.User, code string) error {
	challenge := user.Challenge()
	if challenge == nil {
		return domain.ErrNoChallengePending
	}

	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) != 1 {
		s.recordVerifyFailure(ctx, user.Email)
		return domain.ErrInvalidCode
	}
	if challenge.Expired(s.now()) {
		return domain.ErrExpired
	}

	user.ClearChallenge()
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	s.resetVerify(ctx, user.Email)
	return nil
}

func (s *AuthService) issue(user *domain.User, operation string) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	metrics.RecordTokenIssued(operation)
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ValidateToken returns the user id carried by a bearer token.
func (s *AuthService) ValidateToken(token string) (uuid.UUID, error) {
	return s.tokens.Verify(token)
}

// Throttle errors other than domain.ErrRateLimited are logged and ignored so
// that a Redis outage does not block sign-in.
func (s *AuthService) allowRequest(ctx context.Context, email string) error {
	if s.throttle == nil {
		return nil
	}
	err := s.throttle.AllowRequest(ctx, email)
	return s.throttleResult("allowRequest", email, err)
}

func (s *AuthService) checkVerify(ctx context.Context, email string) error {
	if s.throttle == nil {
		return nil
	}
	err := s.throttle.CheckVerify(ctx, email)
	return s.throttleResult("checkVerify", email, err)
}

func (s *AuthService) recordVerifyFailure(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.RecordVerifyFailure(ctx, email); err != nil {
		s.log.Warn("auth.recordVerifyFailure: throttle unavailable", "email", email, "err", err)
	}
}

func (s *AuthService) resetVerify(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.ResetVerify(ctx, email); err != nil {
		s.log.Warn("auth.resetVerify: throttle unavailable", "email", email, "err", err)
	}
}

func (s *AuthService) throttleResult(op, email string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrRateLimited) {
		return err
	}
	s.log.Warn("auth."+op+": throttle unavailable", "email", email, "err", err)
	return nil
}

func passwordMatches(user *domain.User, password string) bool {
	if user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrNoChallengePending):
		return "no_challenge"
	case errors.Is(err, domain.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	default:
		return "error"
	}
}
