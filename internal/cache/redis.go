// Package cache is the advisory cache layer (component C2): short-TTL
// lookaside caching for chat-platform fetches (guild/channel/user/member
// metadata) and session tokens. Every entry here is disposable — a miss
// always falls back to a live fetch, so cache loss is a latency event,
// never a correctness one (spec §4.2/§6).
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"

	"github.com/gamenight/scheduler/internal/telemetry"
)

// Config holds Redis connection configuration.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// TTLs for the distinct advisory caches this service maintains. All are
// short relative to the data's natural staleness window — none of these
// double as a source of truth.
const (
	GuildMetaTTL   = 10 * time.Minute
	ChannelMetaTTL = 10 * time.Minute
	MemberTTL      = 5 * time.Minute
	SessionTTL     = 24 * time.Hour
)

// Service wraps a redis client with the lookaside patterns C2 needs.
// Grounded on the teacher's RedisService, trimmed from a
// general-purpose dating-app cache (match/feature-flag/warming helpers)
// down to the chat-metadata + session concerns this system actually has.
type Service struct {
	client *redis.Client
	ctx    context.Context
}

// NewService opens an OpenTelemetry-instrumented Redis connection, the
// way every other long-lived component in this codebase connects to its
// dependencies.
func NewService(config *Config) (*Service, error) {
	ctx := telemetry.WithCorrelationID(context.Background(), telemetry.NewCorrelationID())
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "redis_connection", "host": config.Host, "port": config.Port,
	})
	logger.Info("establishing redis connection")

	client := redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:   config.Password,
		DB:         config.DB,
		PoolSize:   config.PoolSize,
		MaxRetries: 3,
	})
	client.AddHook(redisotel.NewTracingHook())

	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Error("failed to connect to redis")
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis connected")
	return &Service{client: client, ctx: ctx}, nil
}

func ConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnvOrDefault("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	poolSize, _ := strconv.Atoi(getEnvOrDefault("REDIS_POOL_SIZE", "10"))
	return &Config{
		Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
		Port:     port,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		PoolSize: poolSize,
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ErrMiss is returned by every Get* method on a cache miss. Callers
// treat it as "go fetch the real thing", never as a failure to log at
// error level.
var ErrMiss = fmt.Errorf("cache miss")

func (s *Service) set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *Service) get(ctx context.Context, key string, dest interface{}) error {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("get cache key %s: %w", key, err)
	}
	return json.Unmarshal([]byte(val), dest)
}

// GuildMeta, ChannelMeta, Member mirror the same cache-key-with-TTL
// shape the teacher's auth middleware cache used for rate limiting
// (internal/middleware/cache.go), repurposed here for chat-platform
// metadata instead of request counters.

func (s *Service) SetGuildMeta(ctx context.Context, guildID string, meta interface{}) error {
	return s.set(ctx, fmt.Sprintf("guild_meta:%s", guildID), meta, GuildMetaTTL)
}

func (s *Service) GetGuildMeta(ctx context.Context, guildID string, dest interface{}) error {
	return s.get(ctx, fmt.Sprintf("guild_meta:%s", guildID), dest)
}

func (s *Service) SetChannelMeta(ctx context.Context, channelID string, meta interface{}) error {
	return s.set(ctx, fmt.Sprintf("channel_meta:%s", channelID), meta, ChannelMetaTTL)
}

func (s *Service) GetChannelMeta(ctx context.Context, channelID string, dest interface{}) error {
	return s.get(ctx, fmt.Sprintf("channel_meta:%s", channelID), dest)
}

func (s *Service) SetMember(ctx context.Context, guildID, userID string, member interface{}) error {
	return s.set(ctx, fmt.Sprintf("member:%s:%s", guildID, userID), member, MemberTTL)
}

func (s *Service) GetMember(ctx context.Context, guildID, userID string, dest interface{}) error {
	return s.get(ctx, fmt.Sprintf("member:%s:%s", guildID, userID), dest)
}

func (s *Service) InvalidateMember(ctx context.Context, guildID, userID string) error {
	return s.client.Del(ctx, fmt.Sprintf("member:%s:%s", guildID, userID)).Err()
}

// Session token caching (OAuth-backed API sessions, see internal/api).

func (s *Service) SetSessionToken(ctx context.Context, sessionID string, token interface{}) error {
	return s.set(ctx, fmt.Sprintf("session:%s", sessionID), token, SessionTTL)
}

func (s *Service) GetSessionToken(ctx context.Context, sessionID string, dest interface{}) error {
	return s.get(ctx, fmt.Sprintf("session:%s", sessionID), dest)
}

func (s *Service) DeleteSessionToken(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, fmt.Sprintf("session:%s", sessionID)).Err()
}

// OAuthStateTTL bounds how long an outstanding GET /auth/login state
// value is honored by GET /auth/callback.
const OAuthStateTTL = 10 * time.Minute

// SetOAuthState/GetOAuthState store the CSRF state issued by
// GET /auth/login against the redirect_uri it was issued for, checked
// on GET /auth/callback (spec §6).
func (s *Service) SetOAuthState(ctx context.Context, state, redirectURI string) error {
	return s.set(ctx, fmt.Sprintf("oauth_state:%s", state), redirectURI, OAuthStateTTL)
}

func (s *Service) GetOAuthState(ctx context.Context, state string) (string, error) {
	var redirectURI string
	err := s.get(ctx, fmt.Sprintf("oauth_state:%s", state), &redirectURI)
	return redirectURI, err
}

// EditCoalesceTTL is the message-edit rate-limit window (spec §4.5):
// a tunable, not a contract (spec §9 Open Questions), picked from
// empirical chat-platform edit-rate tuning.
const EditCoalesceTTL = 1500 * time.Millisecond

// TryAcquireEditLock reports whether the caller may perform the next
// chat-message edit for messageID now, or whether one happened too
// recently and this call should instead coalesce into the pending edit.
// Grounded on internal/middleware/cache.go's cache-key-existence pattern
// (used there for per-route rate limiting), reused here for
// per-message edit coalescing rather than HTTP response caching.
func (s *Service) TryAcquireEditLock(ctx context.Context, messageID string) (bool, error) {
	key := fmt.Sprintf("edit_lock:%s", messageID)
	ok, err := s.client.SetNX(ctx, key, "1", EditCoalesceTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire edit lock: %w", err)
	}
	return ok, nil
}

func (s *Service) HealthCheck(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

func (s *Service) Close() error {
	return s.client.Close()
}
