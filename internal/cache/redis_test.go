package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/voyagehq/bookingcore/config"
)

// A crashed process must not block retries of its idempotency key for the
// whole result window: the in-flight reservation expires on its own, much
// sooner than stored results do.
func TestNewRedisCache_ReservationOutlivedByResults(t *testing.T) {
	c := NewRedisCache(config.RedisConfig{Addr: "localhost:6379"}, 2*time.Minute, 24*time.Hour, time.Minute)

	assert.Equal(t, 2*time.Minute, c.reserveTTL)
	assert.Equal(t, 24*time.Hour, c.resultTTL)
	assert.Less(t, c.reserveTTL, c.resultTTL)
}
