package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/forgeline/porter/internal/config"
	"github.com/forgeline/porter/internal/platform"
	"github.com/forgeline/porter/internal/repository"
)

// ProvisionRequest asks for the per-member onboarding resources of one
// stranger. ID is a correlation ID for log tracing.
type ProvisionRequest struct {
	ID             string
	GuildID        string
	MemberEntityID string
}

// ProvisionService creates the private interview channel and the status
// widget for a freshly flagged stranger, exactly once per member.
type ProvisionService interface {
	Provision(ctx context.Context, req *ProvisionRequest) error
}

type provisionService struct {
	config   *config.Config
	repos    *repository.Repositories
	platform platform.Client
	widgets  *WidgetService
}

func NewProvisionService(cfg *config.Config, repos *repository.Repositories, client platform.Client, widgets *WidgetService) ProvisionService {
	return &provisionService{config: cfg, repos: repos, platform: client, widgets: widgets}
}

// Provision runs the workflow of §"new stranger appeared". Steps are
// independently fault-tolerant: a later failure never rolls back an
// earlier success, the reconciliation sweeps close remaining gaps.
func (s *provisionService) Provision(ctx context.Context, req *ProvisionRequest) error {
	guildConfig := s.config.Guild(req.GuildID)
	if guildConfig == nil {
		return ErrGuildNotConfigured
	}

	member, err := s.repos.Members.FindByID(ctx, req.MemberEntityID)
	if err != nil {
		return fmt.Errorf("failed to load member %s: %w", req.MemberEntityID, err)
	}
	if member == nil {
		return fmt.Errorf("member %s: %w", req.MemberEntityID, ErrNotFound)
	}

	// Single-flight guard: a duplicate queued message, a duplicate role
	// event or an overlapping sweep must not provision twice. The
	// check-and-set happens before any platform call.
	if member.Channel != nil || member.OnboardingInProgress {
		log.Printf("[Provision] %s already has an active newbie channel, aborting (%s)", member, req.ID)
		return nil
	}

	member.OnboardingInProgress = true
	if err := s.repos.Members.Save(ctx, member); err != nil {
		return fmt.Errorf("failed to arm onboarding guard: %w", err)
	}

	defer func() {
		member.OnboardingInProgress = false
		if err := s.repos.Members.Save(context.Background(), member); err != nil {
			log.Printf("[Provision] Failed to clear onboarding guard for %s: %v", member, err)
		}
	}()

	props, err := s.repos.GuildProps.FindOrCreate(ctx, req.GuildID)
	if err != nil {
		return fmt.Errorf("failed to load guild properties: %w", err)
	}

	liveMember, err := s.platform.Member(ctx, req.GuildID, member.MemberID)
	if err != nil {
		return fmt.Errorf("failed to resolve live member %s: %w", member.MemberID, err)
	}

	channelName := fmt.Sprintf(guildConfig.ApplicationChannelNameFormat, props.ApplicationChannels)

	overwrites := s.buildOverwrites(ctx, guildConfig, liveMember)
	log.Printf("[Provision] Created %d overwrites for %s (%s)", len(overwrites), channelName, req.ID)

	channel, err := s.platform.CreateChannel(ctx, req.GuildID, platform.CreateChannelParams{
		Name:       channelName,
		ParentID:   guildConfig.ApplicationCategoryID,
		Overwrites: overwrites,
	})
	if err != nil {
		return fmt.Errorf("channel creation failed: %w", err)
	}

	log.Printf("[Provision] Created channel %s (%s)", channel.Name, channel.ID)

	// Channel created successfully, increment and save counter
	if err := s.repos.GuildProps.IncrementChannelCounter(ctx, props); err != nil {
		log.Printf("[Provision] Failed to increment channel counter for %s: %v", req.GuildID, err)
	}

	newbieChannel := &repository.NewbieChannel{
		GuildID:     req.GuildID,
		ChannelID:   channel.ID,
		ChannelName: channel.Name,
		Mention:     channel.Mention(),
	}
	if err := s.repos.Channels.Create(ctx, newbieChannel); err != nil {
		return fmt.Errorf("failed to persist newbie channel: %w", err)
	}

	member.Channel = newbieChannel
	member.ChannelID = &newbieChannel.ID
	if err := s.repos.Members.Save(ctx, member); err != nil {
		return fmt.Errorf("failed to link newbie channel: %w", err)
	}

	// Get the member's attention; the channel is usable without this. The
	// welcome carries the start controls of the configured questionnaires.
	welcome := &platform.MessageParams{
		Content: fmt.Sprintf(guildConfig.NewbieWelcomeTemplate, liveMember.Mention()),
	}
	if row := questionnaireControls(guildConfig, member); len(row) > 0 {
		welcome.Buttons = [][]platform.Button{row}
	}
	if _, err := s.platform.SendMessage(ctx, channel.ID, welcome); err != nil {
		log.Printf("[Provision] Sending welcome message failed: %v", err)
	}

	// Moderators can still inspect the channel directly if this fails.
	if err := s.widgets.CreateStatusWidget(ctx, guildConfig.StrangerStatusChannelID, member); err != nil {
		log.Printf("[Provision] Creating status widget failed: %v", err)
	}

	return nil
}

// questionnaireControls offers one start control per configured
// questionnaire, keyed so the interaction router can find the definition
// again. Keys are sorted for a stable rendering order.
func questionnaireControls(guildConfig *config.GuildConfig, member *repository.GuildMember) []platform.Button {
	keys := make([]string, 0, len(guildConfig.Questionnaires))
	for key := range guildConfig.Questionnaires {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var row []platform.Button
	for _, key := range keys {
		label := guildConfig.Questionnaires[key].Name
		if label == "" {
			label = key
		}
		row = append(row, platform.Button{
			Style:    platform.ButtonPrimary,
			CustomID: ControlToken(CategoryQuestionnaire, member.ID, QuestionnaireAction(ActionBegin, key)),
			Label:    label,
		})
	}
	return row
}

// buildOverwrites denies the everyone role, grants the configured moderator
// roles that still resolve and grants the target member themselves.
func (s *provisionService) buildOverwrites(ctx context.Context, guildConfig *config.GuildConfig, member *platform.Member) []platform.Overwrite {
	overwrites := []platform.Overwrite{
		{
			Target:   platform.OverwriteRole,
			TargetID: platform.EveryoneRoleID(guildConfig.GuildID),
			Deny:     []platform.Permission{platform.PermViewChannel},
		},
	}

	for _, roleID := range guildConfig.ApplicationModeratorRoleIDs {
		role, err := s.platform.Role(ctx, guildConfig.GuildID, roleID)
		if err != nil || role == nil {
			if err != nil && !errors.Is(err, platform.ErrNotFound) {
				log.Printf("[Provision] Failed to resolve role %s: %v", roleID, err)
			} else {
				log.Printf("[Provision] Role %s no longer exists, skipping", roleID)
			}
			continue
		}

		overwrites = append(overwrites, platform.Overwrite{
			Target:   platform.OverwriteRole,
			TargetID: role.ID,
			Allow: []platform.Permission{
				platform.PermViewChannel,
				platform.PermReadMessageHistory,
				platform.PermManageMessages,
				platform.PermSendMessages,
				platform.PermEmbedLinks,
				platform.PermAddReactions,
			},
		})
	}

	overwrites = append(overwrites, platform.Overwrite{
		Target:   platform.OverwriteMember,
		TargetID: member.ID,
		Allow: []platform.Permission{
			platform.PermViewChannel,
			platform.PermReadMessageHistory,
			platform.PermSendMessages,
			platform.PermAttachFiles,
			platform.PermEmbedLinks,
			platform.PermAddReactions,
		},
	})

	return overwrites
}
