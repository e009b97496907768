package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("REDIS_POOL_SIZE", "")

	config := ConfigFromEnv()

	assert.Equal(t, "localhost", config.Host)
	assert.Equal(t, 6379, config.Port)
	assert.Equal(t, 0, config.DB)
	assert.Equal(t, 10, config.PoolSize)
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_POOL_SIZE", "25")

	config := ConfigFromEnv()

	assert.Equal(t, "cache.internal", config.Host)
	assert.Equal(t, 6380, config.Port)
	assert.Equal(t, 2, config.DB)
	assert.Equal(t, 25, config.PoolSize)
}

func TestTTLsAreAdvisoryAndShortLived(t *testing.T) {
	// These caches must never outlive the natural staleness window of the
	// data they hold — sessions are the deliberate exception, since a
	// session token is only invalidated by explicit logout or rotation.
	assert.Less(t, GuildMetaTTL, SessionTTL)
	assert.Less(t, ChannelMetaTTL, SessionTTL)
	assert.Less(t, MemberTTL, SessionTTL)
}
