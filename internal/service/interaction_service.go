package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/forgeline/porter/internal/config"
	"github.com/forgeline/porter/internal/platform"
	"github.com/forgeline/porter/internal/repository"
)

// InteractionService routes activation tokens coming back from widget
// controls to the moderation action they encode.
type InteractionService interface {
	HandleInteraction(ctx context.Context, e *platform.InteractionEvent) error
}

type interactionService struct {
	config       *config.Config
	repos        *repository.Repositories
	platform     platform.Client
	widgets      *WidgetService
	applications ApplicationService
}

func NewInteractionService(cfg *config.Config, repos *repository.Repositories, client platform.Client, widgets *WidgetService, applications ApplicationService) InteractionService {
	return &interactionService{config: cfg, repos: repos, platform: client, widgets: widgets, applications: applications}
}

// HandleInteraction acknowledges the activation immediately, then resolves
// the token and performs the action, reporting the outcome by editing the
// acknowledged response. Failures answer the moderator instead of leaving
// the control spinning.
func (s *interactionService) HandleInteraction(ctx context.Context, e *platform.InteractionEvent) error {
	// Acknowledge first so the platform-side deadline cannot expire while
	// the action runs.
	if err := s.platform.DeferInteraction(ctx, &e.Interaction); err != nil {
		return fmt.Errorf("failed to acknowledge interaction: %w", err)
	}

	category, entityID, action, err := ParseControlToken(e.CustomID)
	if err != nil {
		log.Printf("[Interaction] Malformed token %q from %s: %v", e.CustomID, e.User.Username, err)
		return s.respond(ctx, e, "This control is broken, please contact an administrator.")
	}

	switch category {
	case CategoryStrangers:
		return s.moderation(ctx, e, entityID, action)
	case CategoryQuestionnaire:
		return s.questionnaire(ctx, e, entityID, action)
	default:
		log.Printf("[Interaction] Unknown category %q in token %q", category, e.CustomID)
		return s.respond(ctx, e, "Unknown collection!")
	}
}

// moderation routes the control rows of a status widget.
func (s *interactionService) moderation(ctx context.Context, e *platform.InteractionEvent, entityID, action string) error {
	member, err := s.resolveMember(ctx, entityID)
	if err != nil {
		return err
	}
	if member == nil {
		log.Printf("[Interaction] Token %q resolves to no record", e.CustomID)
		return s.respond(ctx, e, "Member entry not found in database!")
	}

	log.Printf("[Interaction] %s activated %s on %s", e.User.Username, action, member)

	switch action {
	case ActionKick:
		return s.kick(ctx, e, member)
	case ActionBan:
		return s.ban(ctx, e, member)
	case ActionPromote:
		return s.promote(ctx, e, member)
	case ActionDisableAutoKick:
		return s.disableAutoKick(ctx, e, member)
	default:
		log.Printf("[Interaction] Unknown action %q in token %q", action, e.CustomID)
		return s.respond(ctx, e, "Unknown action!")
	}
}

// resolveMember looks the record up by application identity first, then by
// member identity. Tokens minted from the member row predate the
// application or outlive its deletion.
func (s *interactionService) resolveMember(ctx context.Context, entityID string) (*repository.GuildMember, error) {
	member, err := s.repos.Members.FindByApplicationID(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve application %s: %w", entityID, err)
	}
	if member != nil {
		return member, nil
	}
	member, err = s.repos.Members.FindByID(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve member %s: %w", entityID, err)
	}
	return member, nil
}

func (s *interactionService) kick(ctx context.Context, e *platform.InteractionEvent, member *repository.GuildMember) error {
	live, err := s.platform.Member(ctx, member.GuildID, member.MemberID)
	if err != nil || live == nil {
		return s.respond(ctx, e, "Member not found in Guild!")
	}

	now := time.Now().UTC()
	member.KickedAt = &now
	if err := s.repos.Members.Save(ctx, member); err != nil {
		return fmt.Errorf("failed to stamp kick: %w", err)
	}

	if err := s.platform.KickMember(ctx, member.GuildID, member.MemberID, "Removed by moderator during onboarding"); err != nil {
		log.Printf("[Interaction] Kick of %s failed: %v", member, err)
		return s.respondWithWidget(ctx, e, member, "Kick failed, see logs.")
	}
	return s.respondWithWidget(ctx, e, member, fmt.Sprintf("Kicked %s.", member))
}

func (s *interactionService) ban(ctx context.Context, e *platform.InteractionEvent, member *repository.GuildMember) error {
	now := time.Now().UTC()
	member.BannedAt = &now
	if err := s.repos.Members.Save(ctx, member); err != nil {
		return fmt.Errorf("failed to stamp ban: %w", err)
	}

	if err := s.platform.BanMember(ctx, member.GuildID, member.MemberID, "Banned by moderator during onboarding"); err != nil {
		log.Printf("[Interaction] Ban of %s failed: %v", member, err)
		return s.respondWithWidget(ctx, e, member, "Ban failed, see logs.")
	}
	return s.respondWithWidget(ctx, e, member, fmt.Sprintf("Banned %s.", member))
}

func (s *interactionService) promote(ctx context.Context, e *platform.InteractionEvent, member *repository.GuildMember) error {
	guildConfig := s.config.Guild(member.GuildID)
	if guildConfig == nil {
		return s.respond(ctx, e, "Guild is not configured!")
	}

	live, err := s.platform.Member(ctx, member.GuildID, member.MemberID)
	if err != nil || live == nil {
		return s.respond(ctx, e, "Member not found in Guild!")
	}

	now := time.Now().UTC()
	member.PromotedAt = &now
	if err := s.repos.Members.Save(ctx, member); err != nil {
		return fmt.Errorf("failed to stamp promotion: %w", err)
	}

	if err := s.platform.GrantRole(ctx, member.GuildID, member.MemberID, guildConfig.MemberRoleID); err != nil {
		log.Printf("[Interaction] Granting member role to %s failed: %v", member, err)
		return s.respondWithWidget(ctx, e, member, "Promotion failed, see logs.")
	}
	// Triggers the role-removed teardown through the resulting update event.
	if err := s.platform.RevokeRole(ctx, member.GuildID, member.MemberID, guildConfig.StrangerRoleID); err != nil {
		log.Printf("[Interaction] Revoking stranger role from %s failed: %v", member, err)
	}

	if err := s.respondWithWidget(ctx, e, member, fmt.Sprintf("Promoted %s to full member.", member)); err != nil {
		return err
	}

	s.postPublicWelcome(ctx, guildConfig, live)
	return nil
}

// postPublicWelcome greets a freshly promoted member in the configured
// public channel. Best effort.
func (s *interactionService) postPublicWelcome(ctx context.Context, guildConfig *config.GuildConfig, live *platform.Member) {
	if guildConfig.MemberWelcomeChannelID == "" || guildConfig.MemberWelcomeTemplate == "" {
		return
	}
	content := fmt.Sprintf(guildConfig.MemberWelcomeTemplate, live.Mention())
	if _, err := s.platform.SendMessage(ctx, guildConfig.MemberWelcomeChannelID, &platform.MessageParams{Content: content}); err != nil {
		log.Printf("[Interaction] Posting public welcome failed: %v", err)
	}
}

func (s *interactionService) disableAutoKick(ctx context.Context, e *platform.InteractionEvent, member *repository.GuildMember) error {
	if member.Application == nil {
		return s.respond(ctx, e, "Member has no running application!")
	}

	member.Application.AutoKickEnabled = false
	if err := s.repos.Applications.Save(ctx, member.Application); err != nil {
		return fmt.Errorf("failed to disable auto-kick: %w", err)
	}
	if err := s.repos.Members.Save(ctx, member); err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return s.respondWithWidget(ctx, e, member, fmt.Sprintf("Auto-kick disabled for %s.", member))
}

// questionnaire routes the interview controls minted onto welcome messages
// and questionnaire prompts. The answer exchange itself happens in the
// interview channel; the bot only opens and closes the questionnaire.
func (s *interactionService) questionnaire(ctx context.Context, e *platform.InteractionEvent, memberEntityID, action string) error {
	guildConfig := s.config.Guild(e.GuildID)
	if guildConfig == nil {
		return s.respond(ctx, e, "Guild is not configured!")
	}

	verb, key := SplitQuestionnaireAction(action)
	qn := guildConfig.Questionnaires[key]
	if qn == nil {
		log.Printf("[Interaction] Unknown questionnaire %q in token %q", key, e.CustomID)
		return s.respond(ctx, e, "Unknown questionnaire!")
	}

	switch verb {
	case ActionBegin:
		if err := s.applications.BeginQuestionnaire(ctx, memberEntityID); err != nil {
			log.Printf("[Interaction] Starting questionnaire %s for %s failed: %v", key, memberEntityID, err)
			return s.respond(ctx, e, "Member entry not found in database!")
		}
		if _, err := s.platform.SendMessage(ctx, e.ChannelID, questionnairePrompt(qn, memberEntityID, key)); err != nil {
			log.Printf("[Interaction] Posting questionnaire %s failed: %v", key, err)
		}
		return s.respond(ctx, e, fmt.Sprintf("Questionnaire %q started, answer in this channel.", qn.Name))

	case ActionSubmit:
		if err := s.applications.CompleteQuestionnaire(ctx, memberEntityID); err != nil {
			log.Printf("[Interaction] Submitting questionnaire %s for %s failed: %v", key, memberEntityID, err)
			return s.respond(ctx, e, "Member entry not found in database!")
		}
		s.announceSubmission(ctx, qn, e)
		return s.respond(ctx, e, "Questionnaire submitted, a moderator will review it shortly.")

	default:
		log.Printf("[Interaction] Unknown questionnaire action %q in token %q", verb, e.CustomID)
		return s.respond(ctx, e, "Unknown action!")
	}
}

// questionnairePrompt renders the questions plus the submit control for
// one questionnaire.
func questionnairePrompt(qn *config.Questionnaire, memberEntityID, key string) *platform.MessageParams {
	var b strings.Builder
	if qn.Description != "" {
		b.WriteString(qn.Description)
		b.WriteString("\n\n")
	}
	for i, question := range qn.Questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, question)
	}
	if qn.TimeoutMinutes > 0 {
		fmt.Fprintf(&b, "\nPlease answer within %d minutes.", qn.TimeoutMinutes)
	}

	return &platform.MessageParams{
		Embed: &platform.Embed{
			Title:       qn.Name,
			Description: b.String(),
			Footer:      widgetFooter,
		},
		Buttons: [][]platform.Button{{{
			Style:    platform.ButtonSuccess,
			CustomID: ControlToken(CategoryQuestionnaire, memberEntityID, QuestionnaireAction(ActionSubmit, key)),
			Label:    "Submit",
		}}},
	}
}

// announceSubmission notifies the configured review channel. Best effort.
func (s *interactionService) announceSubmission(ctx context.Context, qn *config.Questionnaire, e *platform.InteractionEvent) {
	if qn.SubmissionChannelID == "" {
		return
	}
	content := fmt.Sprintf("%s submitted the %q questionnaire in <#%s>.", e.User.Mention(), qn.Name, e.ChannelID)
	if _, err := s.platform.SendMessage(ctx, qn.SubmissionChannelID, &platform.MessageParams{Content: content}); err != nil {
		log.Printf("[Interaction] Submission notice failed: %v", err)
	}
}

// respondWithWidget re-renders the status widget and then answers the
// moderator, so the panel reflects the action before the confirmation
// arrives.
func (s *interactionService) respondWithWidget(ctx context.Context, e *platform.InteractionEvent, member *repository.GuildMember, notice string) error {
	if member.Application != nil {
		if err := s.widgets.UpdateStatusWidget(ctx, member, true); err != nil {
			log.Printf("[Interaction] Widget refresh for %s failed: %v", member, err)
		}
	}
	return s.respond(ctx, e, notice)
}

func (s *interactionService) respond(ctx context.Context, e *platform.InteractionEvent, notice string) error {
	err := s.platform.EditInteractionResponse(ctx, &e.Interaction, &platform.MessageParams{Content: notice})
	if err != nil {
		return fmt.Errorf("failed to answer interaction: %w", err)
	}
	return nil
}
