package service

import (
	"github.com/dom/healthguide/internal/chat"
	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/notify"
	"github.com/dom/healthguide/internal/repository"
)

// Deps carries the collaborators shared by the services. Throttle and
// Photos are optional.
type Deps struct {
	Repos      *repository.Repositories
	Challenges ChallengeGenerator
	Sender     notify.Sender
	Throttle   OTPThrottle
	Tokens     TokenManager
	Registry   *chat.Registry
	Model      LanguageModel
	Photos     PhotoStore
	Log        *logger.Logger
}

type Services struct {
	Auth   *AuthService
	Chat   *ChatService
	Report *ReportService
	Health *HealthService
}

func NewServices(d Deps) *Services {
	return &Services{
		Auth:   NewAuthService(d.Repos.User, d.Challenges, d.Sender, d.Throttle, d.Tokens, d.Log),
		Chat:   NewChatService(d.Registry, d.Model, d.Log),
		Report: NewReportService(d.Model, d.Photos, d.Log),
		Health: NewHealthService(d.Model, d.Log),
	}
}
