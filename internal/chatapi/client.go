// Package chatapi is the cached chat-platform REST client (component
// C2, spec §4.5/§4.6(a)): a unified client over bot-token and
// OAuth-token usage, fronted by internal/cache for guild/channel/member
// metadata. Grounded on
// _examples/veteran-software-discord-api-wrapper/utilities/rest.go's
// gojek/heimdall-backed rate limiter, trimmed down to this system's
// actual call surface and wrapped behind an interface the way
// internal/bothandler/handler.go wraps go-telegram/bot as a thin
// platform client.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"

	"github.com/gamenight/scheduler/internal/cache"
)

// Client is the chat-platform surface this system needs. Route
// handlers and the gateway depend on this interface, never on the
// concrete HTTP type, so tests can substitute a fake.
type Client interface {
	Guild(ctx context.Context, guildID string) (*Guild, error)
	Channels(ctx context.Context, guildID string) ([]Channel, error)
	Roles(ctx context.Context, guildID string) ([]Role, error)
	Members(ctx context.Context, guildID string) ([]Member, error)
	Member(ctx context.Context, guildID, userID string) (*Member, error)
	SendMessage(ctx context.Context, channelID string, embed Embed) (string, error)
	EditMessage(ctx context.Context, channelID, messageID string, embed Embed) error
	ExchangeOAuthCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*OAuthToken, error)
	CurrentUser(ctx context.Context, token Token) (*User, error)
}

// Token carries a prefix-distinguishable encoding of which auth header
// the caller needs (spec §4.5 "auth header is chosen by token format").
// This is this system's own encoding, not a platform wire format: bot
// tokens are stamped with botPrefix at configuration load, OAuth access
// tokens with oauthPrefix at exchange time.
type Token string

const (
	botPrefix   = "bot:"
	oauthPrefix = "oauth:"
)

func BotToken(raw string) Token   { return Token(botPrefix + raw) }
func OAuthToken(raw string) Token { return Token(oauthPrefix + raw) }

func (t Token) authHeader() string {
	s := string(t)
	switch {
	case strings.HasPrefix(s, botPrefix):
		return "Bot " + strings.TrimPrefix(s, botPrefix)
	case strings.HasPrefix(s, oauthPrefix):
		return "Bearer " + strings.TrimPrefix(s, oauthPrefix)
	default:
		return "Bearer " + s
	}
}

// HTTPClient is the heimdall-backed Client implementation.
type HTTPClient struct {
	http     *httpclient.Client
	baseURL  string
	botToken Token
	cache    *cache.Service
}

// New builds a Client with the teacher's exponential-backoff retrier
// (2 retries, 200ms-5s backoff) — the same shape as
// veteran-software-discord-api-wrapper's Rest client, tuned down from
// its 2-retry default only in timeout, since this is a same-datacenter
// chat-platform-adjacent call rather than a public Discord edge call.
func New(baseURL string, botToken Token, cacheSvc *cache.Service) *HTTPClient {
	backoff := heimdall.NewExponentialBackoff(200*time.Millisecond, 5*time.Second, 2.0, 2*time.Millisecond)
	retrier := heimdall.NewRetrier(backoff)
	hc := httpclient.NewClient(
		httpclient.WithRetrier(retrier),
		httpclient.WithRetryCount(2),
		httpclient.WithHTTPTimeout(10*time.Second),
	)
	return &HTTPClient{http: hc, baseURL: strings.TrimRight(baseURL, "/"), botToken: botToken, cache: cacheSvc}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, token Token, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", token.authHeader())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chat platform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat platform returned %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
