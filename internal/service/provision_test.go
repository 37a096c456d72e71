package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/porter/internal/config"
	"github.com/forgeline/porter/internal/platform"
)

func testConfig() *config.Config {
	return &config.Config{
		Guilds: map[string]*config.GuildConfig{
			"g1": {
				GuildID:                      "g1",
				StrangerRoleID:               "role-stranger",
				MemberRoleID:                 "role-member",
				ApplicationCategoryID:        "cat-1",
				ApplicationChannelNameFormat: "applicant-%d",
				ApplicationModeratorRoleIDs:  []string{"role-mod", "role-gone"},
				NewbieWelcomeTemplate:        "Welcome %s!",
				StrangerStatusChannelID:      "status-chan",
				MemberWelcomeTemplate:        "Say hi to %s!",
				MemberWelcomeChannelID:       "welcome-chan",
				HoneypotChannelID:            "honeypot-chan",
				HoneypotExcludedRoleIDs:      []string{"role-mod"},
				Questionnaires: map[string]*config.Questionnaire{
					"intro": {
						Name:                "Introduction",
						Description:         "Tell us about yourself.",
						Questions:           []string{"Who are you?", "How did you find us?"},
						SubmissionChannelID: "submissions",
						TimeoutMinutes:      30,
					},
				},
			},
		},
	}
}

func provisionFixture(t *testing.T) (*memStore, *fakePlatform, ProvisionService) {
	t.Helper()
	store := newMemStore()
	repos := store.repos()
	fake := newFakePlatform()
	fake.addMember("g1", &platform.Member{ID: "u1", Username: "alice", Roles: []string{"role-stranger"}})
	fake.addRole("g1", &platform.Role{ID: "role-mod", Name: "Moderators"})

	cfg := testConfig()
	widgets := NewWidgetService(fake, repos, nil)
	return store, fake, NewProvisionService(cfg, repos, fake, widgets)
}

func TestProvisionCreatesChannelAndWidget(t *testing.T) {
	store, fake, svc := provisionFixture(t)
	ctx := context.Background()

	m := freshMember()
	require.NoError(t, store.repos().Members.Save(ctx, m))

	require.NoError(t, svc.Provision(ctx, &ProvisionRequest{GuildID: "g1", MemberEntityID: "g1-u1"}))

	// Channel named from the pre-increment counter value
	require.Len(t, fake.createdChannels, 1)
	assert.Equal(t, "applicant-1", fake.createdChannels[0].Name)
	assert.Equal(t, "cat-1", fake.createdChannels[0].ParentID)

	props, err := store.repos().GuildProps.FindOrCreate(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), props.ApplicationChannels)

	require.NotNil(t, m.Channel)
	require.NotNil(t, m.Application)
	assert.False(t, m.OnboardingInProgress)

	// Welcome into the new channel, widget into the status channel
	require.Len(t, fake.sent, 2)
	assert.Equal(t, m.Channel.ChannelID, fake.sent[0].channelID)
	assert.Equal(t, "Welcome <@u1>!", fake.sent[0].params.Content)
	assert.Equal(t, "status-chan", fake.sent[1].channelID)

	// The welcome carries the questionnaire start control
	require.Len(t, fake.sent[0].params.Buttons, 1)
	start := fake.sent[0].params.Buttons[0][0]
	assert.Equal(t, "Introduction", start.Label)
	assert.Equal(t, "questionnaire|g1-u1|begin:intro", start.CustomID)
}

func TestProvisionOverwrites(t *testing.T) {
	store, fake, svc := provisionFixture(t)
	ctx := context.Background()

	m := freshMember()
	require.NoError(t, store.repos().Members.Save(ctx, m))
	require.NoError(t, svc.Provision(ctx, &ProvisionRequest{GuildID: "g1", MemberEntityID: "g1-u1"}))

	overwrites := fake.createdChannels[0].Overwrites
	// everyone deny + one resolvable moderator role + the member;
	// the vanished moderator role is skipped
	require.Len(t, overwrites, 3)

	assert.Equal(t, platform.OverwriteRole, overwrites[0].Target)
	assert.Equal(t, "g1", overwrites[0].TargetID)
	assert.Equal(t, []platform.Permission{platform.PermViewChannel}, overwrites[0].Deny)

	assert.Equal(t, "role-mod", overwrites[1].TargetID)
	assert.Contains(t, overwrites[1].Allow, platform.PermManageMessages)

	assert.Equal(t, platform.OverwriteMember, overwrites[2].Target)
	assert.Equal(t, "u1", overwrites[2].TargetID)
	assert.Contains(t, overwrites[2].Allow, platform.PermAttachFiles)
	assert.NotContains(t, overwrites[2].Allow, platform.PermManageMessages)
}

func TestProvisionIsSingleFlight(t *testing.T) {
	store, fake, svc := provisionFixture(t)
	ctx := context.Background()

	m := freshMember()
	require.NoError(t, store.repos().Members.Save(ctx, m))

	req := &ProvisionRequest{GuildID: "g1", MemberEntityID: "g1-u1"}
	require.NoError(t, svc.Provision(ctx, req))
	require.NoError(t, svc.Provision(ctx, req))

	assert.Len(t, fake.createdChannels, 1)
	assert.Len(t, fake.sent, 2)
}

func TestProvisionRespectsArmedGuard(t *testing.T) {
	store, fake, svc := provisionFixture(t)
	ctx := context.Background()

	m := freshMember()
	m.OnboardingInProgress = true
	require.NoError(t, store.repos().Members.Save(ctx, m))

	require.NoError(t, svc.Provision(ctx, &ProvisionRequest{GuildID: "g1", MemberEntityID: "g1-u1"}))
	assert.Empty(t, fake.createdChannels)
}

func TestProvisionClearsGuardOnFailure(t *testing.T) {
	store, fake, svc := provisionFixture(t)
	ctx := context.Background()

	m := freshMember()
	require.NoError(t, store.repos().Members.Save(ctx, m))

	fake.createChannelErr = errors.New("boom")
	err := svc.Provision(ctx, &ProvisionRequest{GuildID: "g1", MemberEntityID: "g1-u1"})
	require.Error(t, err)

	assert.False(t, m.OnboardingInProgress)
	assert.Nil(t, m.Channel)

	// The counter only moves on success
	props, err := store.repos().GuildProps.FindOrCreate(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), props.ApplicationChannels)
}

func TestProvisionUnconfiguredGuild(t *testing.T) {
	_, _, svc := provisionFixture(t)
	err := svc.Provision(context.Background(), &ProvisionRequest{GuildID: "g9", MemberEntityID: "g9-u1"})
	assert.ErrorIs(t, err, ErrGuildNotConfigured)
}
