package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/forgeline/porter/internal/repository"
)

// ApplicationService tracks questionnaire progress on the application row
// behind a member's status widget.
type ApplicationService interface {
	// BeginQuestionnaire marks that the member engaged with the interview
	// surface; auto-kick is disarmed so a slow writer is not swept away.
	BeginQuestionnaire(ctx context.Context, memberEntityID string) error

	// CompleteQuestionnaire stamps the submission, which unlocks the
	// Promote control on the widget.
	CompleteQuestionnaire(ctx context.Context, memberEntityID string) error
}

type applicationService struct {
	repos   *repository.Repositories
	widgets *WidgetService
}

func NewApplicationService(repos *repository.Repositories, widgets *WidgetService) ApplicationService {
	return &applicationService{repos: repos, widgets: widgets}
}

func (s *applicationService) BeginQuestionnaire(ctx context.Context, memberEntityID string) error {
	member, err := s.loadApplicant(ctx, memberEntityID)
	if err != nil {
		return err
	}

	member.Application.AutoKickEnabled = false
	if err := s.repos.Applications.Save(ctx, member.Application); err != nil {
		return fmt.Errorf("failed to disarm auto-kick: %w", err)
	}

	log.Printf("[Application] %s started the questionnaire", member)
	s.refreshWidget(ctx, member)
	return nil
}

func (s *applicationService) CompleteQuestionnaire(ctx context.Context, memberEntityID string) error {
	member, err := s.loadApplicant(ctx, memberEntityID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	member.Application.QuestionnaireSubmittedAt = &now
	if err := s.repos.Applications.Save(ctx, member.Application); err != nil {
		return fmt.Errorf("failed to stamp submission: %w", err)
	}

	log.Printf("[Application] ✅ %s submitted the questionnaire", member)
	s.refreshWidget(ctx, member)
	return nil
}

func (s *applicationService) loadApplicant(ctx context.Context, memberEntityID string) (*repository.GuildMember, error) {
	member, err := s.repos.Members.FindByID(ctx, memberEntityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", memberEntityID, err)
	}
	if member == nil {
		return nil, fmt.Errorf("member %s: %w", memberEntityID, ErrNotFound)
	}
	if member.Application == nil {
		return nil, fmt.Errorf("member %s: %w", memberEntityID, ErrNoApplication)
	}
	return member, nil
}

func (s *applicationService) refreshWidget(ctx context.Context, member *repository.GuildMember) {
	if err := s.widgets.UpdateStatusWidget(ctx, member, true); err != nil {
		log.Printf("[Application] Widget refresh for %s failed: %v", member, err)
	}
}
