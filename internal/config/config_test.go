package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guildsYAML = `
guilds:
  "100200300":
    strangerRoleId: "role-stranger"
    memberRoleId: "role-member"
    applicationCategoryId: "cat-1"
    applicationChannelNameFormat: "newbie-%d"
    applicationModeratorRoleIds:
      - "role-mod"
    newbieWelcomeTemplate: "Welcome %s!"
    strangerStatusChannelId: "status-chan"
    memberWelcomeTemplate: "Say hi to %s!"
    memberWelcomeChannelId: "welcome-chan"
    idleKickTimeout: "72h"
    honeypotChannelId: "honeypot-chan"
    honeypotExcludedRoleIds:
      - "role-mod"
    questionnaires:
      intro:
        name: "Introduction"
        questions:
          - "Who are you?"
          - "How did you find us?"
        submissionChannelId: "submissions"
        timeoutMinutes: 30
`

func TestParseGuilds(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.ParseGuilds([]byte(guildsYAML)))

	guild := cfg.Guild("100200300")
	require.NotNil(t, guild)
	assert.Equal(t, "100200300", guild.GuildID)
	assert.Equal(t, "role-stranger", guild.StrangerRoleID)
	assert.Equal(t, "newbie-%d", guild.ApplicationChannelNameFormat)
	assert.Equal(t, 72*time.Hour, guild.IdleKickTimeout.Std())
	assert.Equal(t, []string{"role-mod"}, guild.ApplicationModeratorRoleIDs)

	intro := guild.Questionnaires["intro"]
	require.NotNil(t, intro)
	assert.Len(t, intro.Questions, 2)

	assert.Nil(t, cfg.Guild("unknown"))
}

func TestValidateRequiredFields(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ParseGuilds([]byte("guilds: {}")))

	missingRole := `
guilds:
  "g1":
    memberRoleId: "role-member"
    strangerStatusChannelId: "status-chan"
`
	err := cfg.ParseGuilds([]byte(missingRole))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strangerRoleId")
}

func TestValidateDefaultsChannelNameFormat(t *testing.T) {
	minimal := `
guilds:
  "g1":
    strangerRoleId: "role-stranger"
    memberRoleId: "role-member"
    strangerStatusChannelId: "status-chan"
`
	cfg := &Config{}
	require.NoError(t, cfg.ParseGuilds([]byte(minimal)))
	assert.Equal(t, "applicant-%d", cfg.Guild("g1").ApplicationChannelNameFormat)
}

func TestDurationRejectsGarbage(t *testing.T) {
	bad := `
guilds:
  "g1":
    strangerRoleId: "r"
    memberRoleId: "r2"
    strangerStatusChannelId: "c"
    idleKickTimeout: "three days"
`
	cfg := &Config{}
	assert.Error(t, cfg.ParseGuilds([]byte(bad)))
}
