package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forgeline/porter/internal/config"
	"github.com/forgeline/porter/internal/repository"
)

// SyncTrigger starts a roster sweep outside its schedule.
type SyncTrigger interface {
	RunRosterSweep()
}

// AdminHandler exposes the operator endpoints of the bot.
type AdminHandler struct {
	config *config.Config
	repos  *repository.Repositories
	sync   SyncTrigger
}

func NewAdminHandler(cfg *config.Config, repos *repository.Repositories, sync SyncTrigger) *AdminHandler {
	return &AdminHandler{config: cfg, repos: repos, sync: sync}
}

// TriggerSync kicks off a manual roster sweep. The sweep runs detached;
// the handler only confirms that it was started.
func (h *AdminHandler) TriggerSync(c *gin.Context) {
	log.Println("[Admin] Manual roster sweep requested")
	h.sync.RunRosterSweep()
	c.JSON(http.StatusAccepted, gin.H{"status": "sync started"})
}

// memberResponse is the wire shape of one member record.
type memberResponse struct {
	ID                   string     `json:"id"`
	GuildID              string     `json:"guildId"`
	MemberID             string     `json:"memberId"`
	Member               string     `json:"member"`
	OnboardingInProgress bool       `json:"onboardingInProgress"`
	IsNew                bool       `json:"isNew"`
	IsInGuild            bool       `json:"isInGuild"`
	IsFullMember         bool       `json:"isFullMember"`
	IsBanned             bool       `json:"isBanned"`
	ChannelID            *string    `json:"channelId,omitempty"`
	ApplicationID        *string    `json:"applicationId,omitempty"`
	JoinedAt             time.Time  `json:"joinedAt"`
	LeftAt               *time.Time `json:"leftAt,omitempty"`
	PromotedAt           *time.Time `json:"promotedAt,omitempty"`
	KickedAt             *time.Time `json:"kickedAt,omitempty"`
	AutoKickedAt         *time.Time `json:"autoKickedAt,omitempty"`
	BannedAt             *time.Time `json:"bannedAt,omitempty"`
}

func toMemberResponse(m *repository.GuildMember) memberResponse {
	return memberResponse{
		ID:                   m.ID,
		GuildID:              m.GuildID,
		MemberID:             m.MemberID,
		Member:               m.Member,
		OnboardingInProgress: m.OnboardingInProgress,
		IsNew:                m.IsNew(),
		IsInGuild:            m.IsInGuild(),
		IsFullMember:         m.IsFullMember(),
		IsBanned:             m.IsBanned(),
		ChannelID:            m.ChannelID,
		ApplicationID:        m.ApplicationID,
		JoinedAt:             m.JoinedAt,
		LeftAt:               m.LeftAt,
		PromotedAt:           m.PromotedAt,
		KickedAt:             m.KickedAt,
		AutoKickedAt:         m.AutoKickedAt,
		BannedAt:             m.BannedAt,
	}
}

// ListMembers returns the member records of one configured guild.
func (h *AdminHandler) ListMembers(c *gin.Context) {
	guildID := c.Param("guildID")
	if h.config.Guild(guildID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "guild not configured"})
		return
	}

	members, err := h.repos.Members.FindByGuild(c.Request.Context(), guildID)
	if err != nil {
		log.Printf("❌ [Admin] Failed to list members of %s: %v", guildID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}

	responses := make([]memberResponse, 0, len(members))
	for _, m := range members {
		responses = append(responses, toMemberResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"members": responses, "count": len(responses)})
}
