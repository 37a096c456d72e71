package service

import (
	"context"
	"log"

	"github.com/forgeline/porter/internal/config"
	"github.com/forgeline/porter/internal/platform"
)

// HoneypotService bans anyone who posts into a guild's honeypot channel.
// The channel is invisible to regular members, so whoever writes there is
// a self-bot or a compromised account.
type HoneypotService interface {
	HandleMessageCreated(ctx context.Context, e *platform.MessageCreatedEvent) error
}

type honeypotService struct {
	config   *config.Config
	platform platform.Client
}

func NewHoneypotService(cfg *config.Config, client platform.Client) HoneypotService {
	return &honeypotService{config: cfg, platform: client}
}

func (s *honeypotService) HandleMessageCreated(ctx context.Context, e *platform.MessageCreatedEvent) error {
	if e.Author == nil || e.Author.Bot || e.Author.Owner {
		return nil
	}
	guildConfig := s.config.Guild(e.GuildID)
	if guildConfig == nil || guildConfig.HoneypotChannelID == "" {
		return nil
	}
	if e.ChannelID != guildConfig.HoneypotChannelID {
		return nil
	}

	for _, roleID := range guildConfig.HoneypotExcludedRoleIDs {
		if e.Author.HasRole(roleID) {
			return nil
		}
	}

	log.Printf("[Honeypot] 🪤 %s posted into the honeypot of guild %s, banning", e.Author.Username, e.GuildID)
	if err := s.platform.BanMember(ctx, e.GuildID, e.Author.ID, "Posted into the honeypot channel"); err != nil {
		log.Printf("[Honeypot] Ban of %s failed: %v", e.Author.Username, err)
	}
	return nil
}
