package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBurst(t *testing.T) {
	l, err := New(Config{Enabled: true, RequestsPerSecond: 1, Burst: 3})
	require.NoError(t, err)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "keys are independent")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "bucket refills")
}

func TestLimiterDisabled(t *testing.T) {
	l, err := New(Config{Enabled: false})
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("k"))
	}

	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow("k"))
}

func TestLimiterCleanup(t *testing.T) {
	l, err := New(Config{Enabled: true, RequestsPerSecond: 5, Burst: 5, IdleTTL: time.Minute})
	require.NoError(t, err)
	now := time.Unix(1700000000, 0)
	l.lastCleanup = now
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Len())

	now = now.Add(2 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Len())
}

func TestConfigValidate(t *testing.T) {
	_, err := New(Config{Enabled: true, RequestsPerSecond: 0, Burst: 1})
	assert.Error(t, err)
	_, err = New(Config{Enabled: true, RequestsPerSecond: 1, Burst: 0})
	assert.Error(t, err)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", ClientIP(r))

	r.RemoteAddr = "192.0.2.8"
	assert.Equal(t, "192.0.2.8", ClientIP(r))
}
