package service

import (
	"errors"

	"github.com/forgeline/porter/internal/config"
	"github.com/forgeline/porter/internal/db"
	"github.com/forgeline/porter/internal/platform"
	"github.com/forgeline/porter/internal/queue"
	"github.com/forgeline/porter/internal/repository"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrGuildNotConfigured = errors.New("guild not configured")
	ErrNoApplication      = errors.New("member has no application")
	ErrMalformedToken     = errors.New("malformed activation token")
)

// ============================================
// Services Container
// ============================================

type Services struct {
	Onboarding   OnboardingService
	Provisioner  ProvisionService
	Interactions InteractionService
	Applications ApplicationService
	Honeypot     HoneypotService
	Widgets      *WidgetService
}

// ServiceDeps contains all dependencies needed to create services
type ServiceDeps struct {
	Config   *config.Config
	Repos    *repository.Repositories
	Platform platform.Client
	Queue    *queue.Queue
	Cache    *db.RedisDB // optional
}

func NewServices(deps *ServiceDeps) *Services {
	widgets := NewWidgetService(deps.Platform, deps.Repos, deps.Cache)

	provisioner := NewProvisionService(deps.Config, deps.Repos, deps.Platform, widgets)
	applications := NewApplicationService(deps.Repos, widgets)

	return &Services{
		Widgets:      widgets,
		Provisioner:  provisioner,
		Onboarding:   NewOnboardingService(deps.Config, deps.Repos, deps.Platform, deps.Queue, provisioner, widgets),
		Interactions: NewInteractionService(deps.Config, deps.Repos, deps.Platform, widgets, applications),
		Applications: applications,
		Honeypot:     NewHoneypotService(deps.Config, deps.Platform),
	}
}
