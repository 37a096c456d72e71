package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/forgeline/porter/internal/config"
	"github.com/forgeline/porter/internal/platform"
	"github.com/forgeline/porter/internal/queue"
	"github.com/forgeline/porter/internal/repository"
)

// Cleared by the roster sweep when a crash left the single-flight guard
// armed with no channel to show for it.
const staleOnboardingAfter = 15 * time.Minute

// OnboardingService is the member-lifecycle state machine. It consumes the
// join/update/remove events, triggers provisioning for fresh strangers and
// tears their resources down again on departure or role revocation.
type OnboardingService interface {
	HandleMemberJoined(ctx context.Context, e *platform.MemberJoinedEvent) error
	HandleMemberUpdated(ctx context.Context, e *platform.MemberUpdatedEvent) error
	HandleMemberRemoved(ctx context.Context, e *platform.MemberRemovedEvent) error

	// SyncGuilds reconciles the roster of every configured guild against
	// the database. Runs at startup and on demand.
	SyncGuilds(ctx context.Context) error
}

type onboardingService struct {
	config      *config.Config
	repos       *repository.Repositories
	platform    platform.Client
	queue       *queue.Queue
	provisioner ProvisionService
	widgets     *WidgetService
}

func NewOnboardingService(cfg *config.Config, repos *repository.Repositories, client platform.Client, q *queue.Queue, provisioner ProvisionService, widgets *WidgetService) OnboardingService {
	return &onboardingService{
		config:      cfg,
		repos:       repos,
		platform:    client,
		queue:       q,
		provisioner: provisioner,
		widgets:     widgets,
	}
}

func (s *onboardingService) HandleMemberJoined(ctx context.Context, e *platform.MemberJoinedEvent) error {
	if e.Member.Bot {
		return nil
	}
	guildConfig := s.config.Guild(e.GuildID)
	if guildConfig == nil {
		return nil
	}

	member, err := s.upsertMember(ctx, e.GuildID, e.Member)
	if err != nil {
		return err
	}

	log.Printf("[Onboarding] 👋 %s joined guild %s", member, e.GuildID)

	// A rejoin after a previous stint; or the role was restored by a
	// platform-side integration before this event arrived.
	if e.Member.HasRole(guildConfig.StrangerRoleID) {
		s.submitProvisioning(member)
	}
	return nil
}

// upsertMember creates or refreshes the database row for a present member
// and resets all departure state from any previous stint.
func (s *onboardingService) upsertMember(ctx context.Context, guildID string, live *platform.Member) (*repository.GuildMember, error) {
	id := repository.MemberEntityID(guildID, live.ID)
	member, err := s.repos.Members.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", id, err)
	}
	if member == nil {
		member = &repository.GuildMember{
			ID:       id,
			GuildID:  guildID,
			MemberID: live.ID,
		}
	}

	member.Member = live.Username
	member.Mention = live.Mention()
	member.JoinedAt = time.Now().UTC()
	member.Reset()

	if err := s.repos.Members.Save(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to save member %s: %w", id, err)
	}
	return member, nil
}

// HandleMemberUpdated routes role deltas. The rules are ordered: promotion
// beats revocation when both roles change in the same event, and the
// provisioning path only fires for members whose sole role is the stranger
// role, so hand-configured members are never processed automatically.
func (s *onboardingService) HandleMemberUpdated(ctx context.Context, e *platform.MemberUpdatedEvent) error {
	if e.Member.Bot {
		return nil
	}
	guildConfig := s.config.Guild(e.GuildID)
	if guildConfig == nil {
		return nil
	}

	member, err := s.repos.Members.FindByID(ctx, repository.MemberEntityID(e.GuildID, e.Member.ID))
	if err != nil {
		return fmt.Errorf("failed to load member: %w", err)
	}
	if member == nil {
		// Update for a member the roster sweep has not seen yet
		member, err = s.upsertMember(ctx, e.GuildID, e.Member)
		if err != nil {
			return err
		}
	}

	memberRoleAdded := !contains(e.RolesBefore, guildConfig.MemberRoleID) && contains(e.RolesAfter, guildConfig.MemberRoleID)
	strangerRoleRemoved := contains(e.RolesBefore, guildConfig.StrangerRoleID) && !contains(e.RolesAfter, guildConfig.StrangerRoleID)

	switch {
	case memberRoleAdded:
		now := time.Now().UTC()
		member.FullMemberAt = &now
		if err := s.repos.Members.Save(ctx, member); err != nil {
			return fmt.Errorf("failed to stamp full member: %w", err)
		}
		log.Printf("[Onboarding] ✅ %s became a full member", member)
		return nil

	case strangerRoleRemoved:
		return s.processStrangerRoleRemoved(ctx, member)

	case member.Application != nil && member.Channel != nil:
		return nil

	case !contains(e.RolesAfter, guildConfig.StrangerRoleID):
		return nil

	case len(e.RolesAfter) > 1:
		log.Printf("[Onboarding] ⚠️ %s holds the stranger role alongside other roles, skipping automation", member)
		return nil

	default:
		s.submitProvisioning(member)
		return nil
	}
}

func (s *onboardingService) HandleMemberRemoved(ctx context.Context, e *platform.MemberRemovedEvent) error {
	if e.Member.Bot {
		return nil
	}
	guildConfig := s.config.Guild(e.GuildID)
	if guildConfig == nil {
		return nil
	}

	member, err := s.repos.Members.FindByID(ctx, repository.MemberEntityID(e.GuildID, e.Member.ID))
	if err != nil {
		return fmt.Errorf("failed to load member: %w", err)
	}
	if member == nil {
		return nil
	}

	now := time.Now().UTC()
	member.LeftAt = &now
	if err := s.repos.Members.Save(ctx, member); err != nil {
		return fmt.Errorf("failed to stamp departure: %w", err)
	}

	log.Printf("[Onboarding] %s left guild %s", member, e.GuildID)

	if member.Channel == nil {
		return nil
	}

	s.queue.Enqueue(fmt.Sprintf("teardown %s", member.ID), func(ctx context.Context) error {
		if err := s.teardownChannel(ctx, member); err != nil {
			return err
		}
		// A kicked/banned/auto-kicked applicant keeps their widget so the
		// moderators can still review the record; self-departures lose it.
		if member.RemovedByModeration() {
			return s.widgets.UpdateStatusWidget(ctx, member, true)
		}
		return s.widgets.DeleteStatusWidget(ctx, member)
	})
	return nil
}

// processStrangerRoleRemoved tears down the onboarding resources once a
// moderator revokes the stranger role by hand or via promotion.
func (s *onboardingService) processStrangerRoleRemoved(ctx context.Context, member *repository.GuildMember) error {
	now := time.Now().UTC()
	member.StrangerRoleRemovedAt = &now
	member.OnboardingInProgress = false
	if err := s.repos.Members.Save(ctx, member); err != nil {
		return fmt.Errorf("failed to stamp role removal: %w", err)
	}

	log.Printf("[Onboarding] Stranger role removed from %s, tearing down", member)

	if err := s.teardownChannel(ctx, member); err != nil {
		log.Printf("[Onboarding] Channel teardown for %s failed: %v", member, err)
	}
	if err := s.widgets.DeleteStatusWidget(ctx, member); err != nil {
		log.Printf("[Onboarding] Widget teardown for %s failed: %v", member, err)
	}
	return nil
}

// teardownChannel deletes the interview channel on the platform and in the
// database, child row first, parent reference second.
func (s *onboardingService) teardownChannel(ctx context.Context, member *repository.GuildMember) error {
	if member.Channel == nil {
		return nil
	}

	if err := s.platform.DeleteChannel(ctx, member.Channel.ChannelID, "Onboarding finished"); err != nil {
		log.Printf("[Onboarding] Failed to delete channel %s: %v", member.Channel.ChannelID, err)
	}

	if err := s.repos.Channels.Delete(ctx, member.Channel.ID); err != nil {
		return fmt.Errorf("failed to delete channel row: %w", err)
	}

	member.Channel = nil
	member.ChannelID = nil
	if err := s.repos.Members.Save(ctx, member); err != nil {
		return fmt.Errorf("failed to clear channel reference: %w", err)
	}
	return nil
}

func (s *onboardingService) submitProvisioning(member *repository.GuildMember) {
	req := &ProvisionRequest{
		ID:             uuid.NewString(),
		GuildID:        member.GuildID,
		MemberEntityID: member.ID,
	}
	s.queue.Enqueue(fmt.Sprintf("provision %s", member.ID), func(ctx context.Context) error {
		return s.provisioner.Provision(ctx, req)
	})
}

// SyncGuilds walks every configured guild: inserts rows for members the
// event stream missed, refreshes drifted display names, prunes channel
// references pointing at channels that no longer exist, and disarms
// onboarding guards a crash left stuck. Members no longer on the roster
// are left alone; absence is inferred lazily elsewhere.
func (s *onboardingService) SyncGuilds(ctx context.Context) error {
	for guildID := range s.config.Guilds {
		if err := s.syncGuild(ctx, guildID); err != nil {
			log.Printf("[Onboarding] ❌ Sync of guild %s failed: %v", guildID, err)
		}
	}
	return nil
}

func (s *onboardingService) syncGuild(ctx context.Context, guildID string) error {
	roster, err := s.platform.Members(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to fetch roster: %w", err)
	}

	known, err := s.repos.Members.FindByGuild(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to load members: %w", err)
	}
	byID := make(map[string]*repository.GuildMember, len(known))
	for _, m := range known {
		byID[m.MemberID] = m
	}

	created, refreshed := 0, 0
	for _, live := range roster {
		if live.Bot {
			continue
		}
		member, ok := byID[live.ID]
		if !ok {
			if _, err := s.upsertMember(ctx, guildID, live); err != nil {
				log.Printf("[Onboarding] Failed to create row for %s: %v", live.Username, err)
				continue
			}
			created++
			continue
		}
		if member.Member != live.Username || member.Mention != live.Mention() {
			member.Member = live.Username
			member.Mention = live.Mention()
			if err := s.repos.Members.Save(ctx, member); err != nil {
				log.Printf("[Onboarding] Failed to refresh %s: %v", member.ID, err)
				continue
			}
			refreshed++
		}
	}

	pruned, disarmed := 0, 0
	for _, member := range known {
		if member.Channel != nil {
			exists, err := s.platform.ChannelExists(ctx, member.Channel.ChannelID)
			if err != nil {
				log.Printf("[Onboarding] Channel check for %s failed: %v", member.Channel.ChannelID, err)
			} else if !exists {
				if err := s.pruneOrphanChannel(ctx, member); err != nil {
					log.Printf("[Onboarding] Failed to prune orphan channel of %s: %v", member.ID, err)
				} else {
					pruned++
				}
			}
		}

		if member.OnboardingInProgress && member.Channel == nil &&
			time.Since(member.JoinedAt) > staleOnboardingAfter {
			member.OnboardingInProgress = false
			if err := s.repos.Members.Save(ctx, member); err != nil {
				log.Printf("[Onboarding] Failed to disarm stale guard of %s: %v", member.ID, err)
			} else {
				disarmed++
			}
		}
	}

	log.Printf("[Onboarding] ✅ Synced guild %s: %d members, %d created, %d refreshed, %d orphans pruned, %d guards disarmed",
		guildID, len(roster), created, refreshed, pruned, disarmed)
	return nil
}

// pruneOrphanChannel drops a channel reference whose platform channel is
// gone. The database is brought in line with the platform, not vice versa.
func (s *onboardingService) pruneOrphanChannel(ctx context.Context, member *repository.GuildMember) error {
	if err := s.repos.Channels.Delete(ctx, member.Channel.ID); err != nil {
		return err
	}
	member.Channel = nil
	member.ChannelID = nil
	return s.repos.Members.Save(ctx, member)
}

func contains(roles []string, roleID string) bool {
	for _, r := range roles {
		if r == roleID {
			return true
		}
	}
	return false
}
