package chatapi

import (
	"context"
	"fmt"

	"github.com/gamenight/scheduler/internal/cache"
)

// Guild fetches guild metadata, cache-first (spec §6 "GET /guilds/{id}").
func (c *HTTPClient) Guild(ctx context.Context, guildID string) (*Guild, error) {
	var g Guild
	if err := c.cache.GetGuildMeta(ctx, guildID, &g); err == nil {
		return &g, nil
	} else if err != cache.ErrMiss {
		return nil, err
	}

	if err := c.do(ctx, "GET", "/guilds/"+guildID, c.botToken, nil, &g); err != nil {
		return nil, err
	}
	_ = c.cache.SetGuildMeta(ctx, guildID, g)
	return &g, nil
}

func (c *HTTPClient) Channels(ctx context.Context, guildID string) ([]Channel, error) {
	key := guildID
	var channels []Channel
	if err := c.cache.GetChannelMeta(ctx, key, &channels); err == nil {
		return channels, nil
	} else if err != cache.ErrMiss {
		return nil, err
	}

	if err := c.do(ctx, "GET", "/guilds/"+guildID+"/channels", c.botToken, nil, &channels); err != nil {
		return nil, err
	}
	_ = c.cache.SetChannelMeta(ctx, key, channels)
	return channels, nil
}

// Roles is not cached independently of Members — role lists change
// rarely but are always consumed alongside a member's RoleIDs, so a
// role-name lookup miss just costs one more request rather than a
// dedicated cache key.
func (c *HTTPClient) Roles(ctx context.Context, guildID string) ([]Role, error) {
	var roles []Role
	if err := c.do(ctx, "GET", "/guilds/"+guildID+"/roles", c.botToken, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// Members fetches the full guild member list, used for mention
// validation (spec §4.6(c)) and authorization role checks. Not cached
// whole — it can be large and goes stale the moment anyone's roles
// change — individual lookups go through Member instead.
func (c *HTTPClient) Members(ctx context.Context, guildID string) ([]Member, error) {
	var members []Member
	if err := c.do(ctx, "GET", "/guilds/"+guildID+"/members", c.botToken, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *HTTPClient) Member(ctx context.Context, guildID, userID string) (*Member, error) {
	var m Member
	if err := c.cache.GetMember(ctx, guildID, userID, &m); err == nil {
		return &m, nil
	} else if err != cache.ErrMiss {
		return nil, err
	}

	if err := c.do(ctx, "GET", "/guilds/"+guildID+"/members/"+userID, c.botToken, nil, &m); err != nil {
		return nil, err
	}
	_ = c.cache.SetMember(ctx, guildID, userID, m)
	return &m, nil
}

type sendMessageResponse struct {
	ID string `json:"id"`
}

// SendMessage posts a new message and returns its platform-assigned id
// for storage on the game row (spec §4.5 "chat message id stored on the
// game row").
func (c *HTTPClient) SendMessage(ctx context.Context, channelID string, embed Embed) (string, error) {
	var resp sendMessageResponse
	if err := c.do(ctx, "POST", "/channels/"+channelID+"/messages", c.botToken, map[string]interface{}{"embeds": []Embed{embed}}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// EditMessage edits an existing message in place. Callers are expected
// to have already passed internal/cache's TryAcquireEditLock — this
// method does not itself rate-limit.
func (c *HTTPClient) EditMessage(ctx context.Context, channelID, messageID string, embed Embed) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	return c.do(ctx, "PATCH", path, c.botToken, map[string]interface{}{"embeds": []Embed{embed}}, nil)
}

// ExchangeOAuthCode implements the authorization-code exchange behind
// GET /auth/callback (spec §6).
func (c *HTTPClient) ExchangeOAuthCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*OAuthToken, error) {
	body := map[string]interface{}{
		"grant_type":    "authorization_code",
		"client_id":     clientID,
		"client_secret": clientSecret,
		"code":          code,
		"redirect_uri":  redirectURI,
	}
	var tok OAuthToken
	if err := c.do(ctx, "POST", "/oauth2/token", c.botToken, body, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func (c *HTTPClient) CurrentUser(ctx context.Context, token Token) (*User, error) {
	var u User
	if err := c.do(ctx, "GET", "/users/@me", token, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
