package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forgeline/porter/internal/platform"
	"github.com/forgeline/porter/internal/repository"
)

// ============================================
// In-memory repositories
// ============================================

type memStore struct {
	mu      sync.Mutex
	members map[string]*repository.GuildMember
	apps    map[string]*repository.Application
	chans   map[string]*repository.NewbieChannel
	props   map[string]*repository.GuildProperties
}

func newMemStore() *memStore {
	return &memStore{
		members: make(map[string]*repository.GuildMember),
		apps:    make(map[string]*repository.Application),
		chans:   make(map[string]*repository.NewbieChannel),
		props:   make(map[string]*repository.GuildProperties),
	}
}

func (s *memStore) repos() *repository.Repositories {
	return &repository.Repositories{
		Members:      (*memMemberRepo)(s),
		Applications: (*memAppRepo)(s),
		Channels:     (*memChannelRepo)(s),
		GuildProps:   (*memPropsRepo)(s),
	}
}

type memMemberRepo memStore

func (r *memMemberRepo) FindByID(_ context.Context, id string) (*repository.GuildMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[id], nil
}

func (r *memMemberRepo) FindByApplicationID(_ context.Context, applicationID string) (*repository.GuildMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.ApplicationID != nil && *m.ApplicationID == applicationID {
			return m, nil
		}
	}
	return nil, nil
}

func (r *memMemberRepo) FindByGuild(_ context.Context, guildID string) ([]*repository.GuildMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.GuildMember
	for _, m := range r.members {
		if m.GuildID == guildID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMemberRepo) FindStale(_ context.Context, guildID string, cutoff time.Time) ([]*repository.GuildMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.GuildMember
	for _, m := range r.members {
		if m.GuildID != guildID || m.Application == nil {
			continue
		}
		app := m.Application
		if !app.CreatedAt.Before(cutoff) || !app.AutoKickEnabled || app.QuestionnaireSubmittedAt != nil {
			continue
		}
		if m.PromotedAt != nil || m.StrangerRoleRemovedAt != nil || m.FullMemberAt != nil || m.AutoKickedAt != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *memMemberRepo) Save(_ context.Context, member *repository.GuildMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if member.ID == "" {
		member.ID = repository.MemberEntityID(member.GuildID, member.MemberID)
	}
	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}
	r.members[member.ID] = member
	return nil
}

type memAppRepo memStore

func (r *memAppRepo) Create(_ context.Context, app *repository.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if app.ID == "" {
		app.ID = repository.ApplicationEntityID(app.GuildID, app.ChannelID, app.MessageID)
	}
	app.CreatedAt = time.Now().UTC()
	r.apps[app.ID] = app
	return nil
}

func (r *memAppRepo) Save(_ context.Context, app *repository.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[app.ID] = app
	return nil
}

func (r *memAppRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.apps, id)
	return nil
}

type memChannelRepo memStore

func (r *memChannelRepo) Create(_ context.Context, channel *repository.NewbieChannel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if channel.ID == "" {
		channel.ID = repository.ChannelEntityID(channel.GuildID, channel.ChannelID)
	}
	channel.CreatedAt = time.Now().UTC()
	r.chans[channel.ID] = channel
	return nil
}

func (r *memChannelRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chans, id)
	return nil
}

type memPropsRepo memStore

func (r *memPropsRepo) FindOrCreate(_ context.Context, guildID string) (*repository.GuildProperties, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.props[guildID]; ok {
		return p, nil
	}
	p := &repository.GuildProperties{ID: guildID, GuildID: guildID, ApplicationChannels: 1}
	r.props[guildID] = p
	return p, nil
}

func (r *memPropsRepo) IncrementChannelCounter(_ context.Context, props *repository.GuildProperties) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	props.ApplicationChannels++
	return nil
}

// ============================================
// Recording fake platform client
// ============================================

type sentMessage struct {
	channelID string
	params    *platform.MessageParams
}

type editedMessage struct {
	channelID string
	messageID string
	params    *platform.MessageParams
}

type fakePlatform struct {
	mu sync.Mutex

	members  map[string]*platform.Member // guildID-memberID
	rosters  map[string][]*platform.Member
	roles    map[string]*platform.Role // guildID-roleID
	channels map[string]bool           // channelID

	createChannelErr error
	sendMessageErr   error
	editMessageErr   error

	createdChannels []platform.CreateChannelParams
	deletedChannels []string
	sent            []sentMessage
	edited          []editedMessage
	granted         []string // guildID-memberID-roleID
	revoked         []string
	kicked          []string // guildID-memberID
	banned          []string
	deferred        int
	responses       []string

	nextChannelID int
	nextMessageID int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		members:  make(map[string]*platform.Member),
		rosters:  make(map[string][]*platform.Member),
		roles:    make(map[string]*platform.Role),
		channels: make(map[string]bool),
	}
}

func (f *fakePlatform) addMember(guildID string, m *platform.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[guildID+"-"+m.ID] = m
	f.rosters[guildID] = append(f.rosters[guildID], m)
}

func (f *fakePlatform) addRole(guildID string, r *platform.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[guildID+"-"+r.ID] = r
}

func (f *fakePlatform) Member(_ context.Context, guildID, memberID string) (*platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[guildID+"-"+memberID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return m, nil
}

func (f *fakePlatform) Members(_ context.Context, guildID string) ([]*platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rosters[guildID], nil
}

func (f *fakePlatform) Role(_ context.Context, guildID, roleID string) (*platform.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[guildID+"-"+roleID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return r, nil
}

func (f *fakePlatform) CreateChannel(_ context.Context, guildID string, params platform.CreateChannelParams) (*platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createChannelErr != nil {
		return nil, f.createChannelErr
	}
	f.createdChannels = append(f.createdChannels, params)
	f.nextChannelID++
	id := fmt.Sprintf("chan-%d", f.nextChannelID)
	f.channels[id] = true
	return &platform.Channel{ID: id, GuildID: guildID, Name: params.Name, ParentID: params.ParentID}, nil
}

func (f *fakePlatform) DeleteChannel(_ context.Context, channelID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedChannels = append(f.deletedChannels, channelID)
	delete(f.channels, channelID)
	return nil
}

func (f *fakePlatform) ChannelExists(_ context.Context, channelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[channelID], nil
}

func (f *fakePlatform) SendMessage(_ context.Context, channelID string, params *platform.MessageParams) (*platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendMessageErr != nil {
		return nil, f.sendMessageErr
	}
	f.sent = append(f.sent, sentMessage{channelID: channelID, params: params})
	f.nextMessageID++
	return &platform.Message{ID: fmt.Sprintf("msg-%d", f.nextMessageID), ChannelID: channelID}, nil
}

func (f *fakePlatform) EditMessage(_ context.Context, channelID, messageID string, params *platform.MessageParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editMessageErr != nil {
		return f.editMessageErr
	}
	f.edited = append(f.edited, editedMessage{channelID: channelID, messageID: messageID, params: params})
	return nil
}

func (f *fakePlatform) GrantRole(_ context.Context, guildID, memberID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted = append(f.granted, guildID+"-"+memberID+"-"+roleID)
	return nil
}

func (f *fakePlatform) RevokeRole(_ context.Context, guildID, memberID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, guildID+"-"+memberID+"-"+roleID)
	return nil
}

func (f *fakePlatform) KickMember(_ context.Context, guildID, memberID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = append(f.kicked, guildID+"-"+memberID)
	return nil
}

func (f *fakePlatform) BanMember(_ context.Context, guildID, memberID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banned = append(f.banned, guildID+"-"+memberID)
	return nil
}

func (f *fakePlatform) DeferInteraction(_ context.Context, _ *platform.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deferred++
	return nil
}

func (f *fakePlatform) EditInteractionResponse(_ context.Context, _ *platform.Interaction, params *platform.MessageParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, params.Content)
	return nil
}

// lastResponse returns the most recent interaction response content.
func (f *fakePlatform) lastResponse() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return ""
	}
	return f.responses[len(f.responses)-1]
}
