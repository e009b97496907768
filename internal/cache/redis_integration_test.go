package cache

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type redisContainer struct {
	container testcontainers.Container
	host      string
	port      string
}

func startRedisContainer(ctx context.Context) (*redisContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}
	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}
	mappedPort, err := container.MappedPort(ctx, "6379")
	if err != nil {
		return nil, err
	}
	return &redisContainer{container: container, host: host, port: mappedPort.Port()}, nil
}

func (rc *redisContainer) stop(ctx context.Context) error {
	return rc.container.Terminate(ctx)
}

// TestCacheServiceIntegration exercises the lookaside cache against a
// real Redis instance, covering the guild/channel/member metadata and
// session-token paths C2 actually uses.
func TestCacheServiceIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc, err := startRedisContainer(ctx)
	require.NoError(t, err)
	defer rc.stop(ctx)

	port, _ := strconv.Atoi(rc.port)
	svc, err := NewService(&Config{Host: rc.host, Port: port, PoolSize: 10})
	require.NoError(t, err)
	defer svc.Close()

	t.Run("guild meta round trip", func(t *testing.T) {
		type guildMeta struct {
			Name string `json:"name"`
		}
		require.NoError(t, svc.SetGuildMeta(ctx, "guild-1", guildMeta{Name: "Test Guild"}))

		var out guildMeta
		require.NoError(t, svc.GetGuildMeta(ctx, "guild-1", &out))
		assert.Equal(t, "Test Guild", out.Name)
	})

	t.Run("member cache miss returns ErrMiss", func(t *testing.T) {
		var out map[string]interface{}
		err := svc.GetMember(ctx, "guild-1", "nonexistent-user", &out)
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("member invalidation", func(t *testing.T) {
		require.NoError(t, svc.SetMember(ctx, "guild-1", "user-1", map[string]string{"nick": "Alice"}))
		require.NoError(t, svc.InvalidateMember(ctx, "guild-1", "user-1"))

		var out map[string]string
		err := svc.GetMember(ctx, "guild-1", "user-1", &out)
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("session token round trip and delete", func(t *testing.T) {
		require.NoError(t, svc.SetSessionToken(ctx, "session-1", "token-value"))

		var token string
		require.NoError(t, svc.GetSessionToken(ctx, "session-1", &token))
		assert.Equal(t, "token-value", token)

		require.NoError(t, svc.DeleteSessionToken(ctx, "session-1"))
		err := svc.GetSessionToken(ctx, "session-1", &token)
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("health check", func(t *testing.T) {
		assert.True(t, svc.HealthCheck(ctx))
	})
}

// TestCacheServiceConcurrency guards against pool-exhaustion deadlocks
// under concurrent gateway traffic fetching member metadata.
func TestCacheServiceConcurrency(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc, err := startRedisContainer(ctx)
	require.NoError(t, err)
	defer rc.stop(ctx)

	port, _ := strconv.Atoi(rc.port)
	svc, err := NewService(&Config{Host: rc.host, Port: port, PoolSize: 20})
	require.NoError(t, err)
	defer svc.Close()

	const goroutines = 20
	const opsPerGoroutine = 25
	errCh := make(chan error, goroutines*opsPerGoroutine)
	done := make(chan struct{}, goroutines)

	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < opsPerGoroutine; i++ {
				userID := fmt.Sprintf("user-%d-%d", id, i)
				if err := svc.SetMember(ctx, "guild-1", userID, map[string]string{"nick": userID}); err != nil {
					errCh <- err
					continue
				}
				var out map[string]string
				if err := svc.GetMember(ctx, "guild-1", userID, &out); err != nil {
					errCh <- err
				}
			}
		}(g)
	}

	for g := 0; g < goroutines; g++ {
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			t.Fatal("timed out waiting for concurrent cache operations")
		}
	}
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent cache operation failed: %v", err)
	}
}
