package service

import (
	"context"
	"log"

	"github.com/forgeline/porter/internal/platform"
)

// Services implements platform.EventHandler so the gateway can be wired
// straight to the service layer. Handler errors are logged here; gateway
// events have no caller to propagate them to.

func (s *Services) HandleMemberJoined(ctx context.Context, e *platform.MemberJoinedEvent) {
	if err := s.Onboarding.HandleMemberJoined(ctx, e); err != nil {
		log.Printf("[Events] ❌ member-joined failed: %v", err)
	}
}

func (s *Services) HandleMemberUpdated(ctx context.Context, e *platform.MemberUpdatedEvent) {
	if err := s.Onboarding.HandleMemberUpdated(ctx, e); err != nil {
		log.Printf("[Events] ❌ member-updated failed: %v", err)
	}
}

func (s *Services) HandleMemberRemoved(ctx context.Context, e *platform.MemberRemovedEvent) {
	if err := s.Onboarding.HandleMemberRemoved(ctx, e); err != nil {
		log.Printf("[Events] ❌ member-removed failed: %v", err)
	}
}

func (s *Services) HandleInteractionCreated(ctx context.Context, e *platform.InteractionEvent) {
	if err := s.Interactions.HandleInteraction(ctx, e); err != nil {
		log.Printf("[Events] ❌ interaction failed: %v", err)
	}
}

func (s *Services) HandleMessageCreated(ctx context.Context, e *platform.MessageCreatedEvent) {
	if err := s.Honeypot.HandleMessageCreated(ctx, e); err != nil {
		log.Printf("[Events] ❌ message-created failed: %v", err)
	}
}
