// Package rest is the HTTP implementation of the platform client.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/forgeline/porter/internal/platform"
)

const requestTimeout = 15 * time.Second

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a platform client against the given API base URL,
// authenticating every call with the bot token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// do issues one request and decodes the response into out (when non-nil).
// 404 responses surface as platform.ErrNotFound so callers can treat
// vanished entities uniformly.
func (c *Client) do(ctx context.Context, method, path, reason string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reason != "" {
		req.Header.Set("X-Audit-Log-Reason", reason)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, platform.ErrNotFound)
	case resp.StatusCode >= 400:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) Member(ctx context.Context, guildID, memberID string) (*platform.Member, error) {
	var member platform.Member
	path := fmt.Sprintf("/guilds/%s/members/%s", guildID, memberID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

func (c *Client) Members(ctx context.Context, guildID string) ([]*platform.Member, error) {
	var members []*platform.Member
	path := fmt.Sprintf("/guilds/%s/members", guildID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) Role(ctx context.Context, guildID, roleID string) (*platform.Role, error) {
	var role platform.Role
	path := fmt.Sprintf("/guilds/%s/roles/%s", guildID, roleID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (c *Client) CreateChannel(ctx context.Context, guildID string, params platform.CreateChannelParams) (*platform.Channel, error) {
	var channel platform.Channel
	path := fmt.Sprintf("/guilds/%s/channels", guildID)
	if err := c.do(ctx, http.MethodPost, path, "", params, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

func (c *Client) DeleteChannel(ctx context.Context, channelID, reason string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+channelID, reason, nil, nil)
}

func (c *Client) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	var channel platform.Channel
	err := c.do(ctx, http.MethodGet, "/channels/"+channelID, "", nil, &channel)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Client) SendMessage(ctx context.Context, channelID string, params *platform.MessageParams) (*platform.Message, error) {
	var msg platform.Message
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	if err := c.do(ctx, http.MethodPost, path, "", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, params *platform.MessageParams) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	return c.do(ctx, http.MethodPatch, path, "", params, nil)
}

func (c *Client) GrantRole(ctx context.Context, guildID, memberID, roleID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, memberID, roleID)
	return c.do(ctx, http.MethodPut, path, "", nil, nil)
}

func (c *Client) RevokeRole(ctx context.Context, guildID, memberID, roleID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, memberID, roleID)
	return c.do(ctx, http.MethodDelete, path, "", nil, nil)
}

func (c *Client) KickMember(ctx context.Context, guildID, memberID, reason string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s", guildID, memberID)
	return c.do(ctx, http.MethodDelete, path, reason, nil, nil)
}

func (c *Client) BanMember(ctx context.Context, guildID, memberID, reason string) error {
	path := fmt.Sprintf("/guilds/%s/bans/%s", guildID, memberID)
	return c.do(ctx, http.MethodPut, path, reason, nil, nil)
}

func (c *Client) DeferInteraction(ctx context.Context, interaction *platform.Interaction) error {
	path := fmt.Sprintf("/interactions/%s/%s/defer", interaction.ID, interaction.Token)
	return c.do(ctx, http.MethodPost, path, "", nil, nil)
}

func (c *Client) EditInteractionResponse(ctx context.Context, interaction *platform.Interaction, params *platform.MessageParams) error {
	path := fmt.Sprintf("/interactions/%s/%s/response", interaction.ID, interaction.Token)
	return c.do(ctx, http.MethodPatch, path, "", params, nil)
}
