package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/linksigner/internal/clock"
	"github.com/dharsanguruparan/linksigner/internal/signing"
)

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("LINKSIGNER_SECRET", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LINKSIGNER_SECRET")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LINKSIGNER_SECRET", "test123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []byte("test123"), cfg.SigningSecret)
	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, signing.DefaultHmacParam, cfg.HmacParam)
	assert.Equal(t, signing.DefaultParamsParam, cfg.ParamsParam)
	assert.Equal(t, signing.DefaultExpiresParam, cfg.ExpiresParam)
	assert.Equal(t, signing.DefaultExpirationInterval, cfg.DefaultLinkTTL)
	assert.False(t, cfg.RequireExpiration)
	assert.True(t, cfg.RateLimit().Enabled)
	assert.False(t, cfg.UseS3())
	assert.False(t, cfg.UseRedis())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LINKSIGNER_SECRET", "test123")
	t.Setenv("LINKSIGNER_HMAC_PARAM", "sig")
	t.Setenv("LINKSIGNER_DEFAULT_TTL", "2d")
	t.Setenv("LINKSIGNER_REQUIRE_EXPIRATION", "true")
	t.Setenv("LINKSIGNER_ALLOWED_TYPES", "text/plain, application/pdf ,")
	t.Setenv("LINKSIGNER_VERIFY_RPS", "0")
	t.Setenv("LINKSIGNER_REDIS_ADDR", "localhost:6379")
	t.Setenv("LINKSIGNER_DATABASE_URL", "postgres://localhost/links")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sig", cfg.HmacParam)
	assert.Equal(t, 48*time.Hour, cfg.DefaultLinkTTL)
	assert.True(t, cfg.RequireExpiration)
	assert.Equal(t, []string{"text/plain", "application/pdf"}, cfg.AllowedTypes)
	assert.False(t, cfg.RateLimit().Enabled)
	assert.True(t, cfg.UseRedis())
}

func TestLoadReportsEveryBadValue(t *testing.T) {
	t.Setenv("LINKSIGNER_SECRET", "test123")
	t.Setenv("LINKSIGNER_DEFAULT_TTL", "soon")
	t.Setenv("LINKSIGNER_WORKERS", "many")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LINKSIGNER_DEFAULT_TTL")
	assert.Contains(t, err.Error(), "LINKSIGNER_WORKERS")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SigningSecret:  []byte("s"),
			HmacParam:      "hmac",
			ParamsParam:    "params",
			ExpiresParam:   "expires",
			DefaultLinkTTL: time.Hour,
			MaxFileSize:    1,
			AuditWorkers:   1,
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"no secret":        func(c *Config) { c.SigningSecret = nil },
		"empty name":       func(c *Config) { c.ExpiresParam = "" },
		"duplicate names":  func(c *Config) { c.ParamsParam = "hmac" },
		"zero ttl":         func(c *Config) { c.DefaultLinkTTL = 0 },
		"zero file size":   func(c *Config) { c.MaxFileSize = 0 },
		"no workers":       func(c *Config) { c.AuditWorkers = 0 },
		"redis db":         func(c *Config) { c.RedisDB = 16 },
		"redis without db": func(c *Config) { c.RedisAddr = "localhost:6379" },
		"s3 without keys":  func(c *Config) { c.S3Endpoint = "localhost:9000" },
		"throttle burst":   func(c *Config) { c.VerifyRPS = 1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSignerOptions(t *testing.T) {
	cfg := &Config{
		SigningSecret:     []byte("test123"),
		HmacParam:         "sig",
		ParamsParam:       "keys",
		ExpiresParam:      "exp",
		DefaultLinkTTL:    time.Hour,
		RequireExpiration: true,
	}
	now := time.Unix(1700000000, 0)
	s, err := signing.New(cfg.SigningSecret, cfg.SignerOptions(clock.NewFrozen(now))...)
	require.NoError(t, err)

	assert.Equal(t, "sig", s.HmacParam())
	assert.Equal(t, "keys", s.ParamsParam())
	assert.Equal(t, "exp", s.ExpiresParam())
	assert.Equal(t, time.Hour, s.DefaultExpiration())

	var unsigned signing.Params
	unsigned.SetString("sig", s.ComputeMAC(unsigned, "/x"))
	assert.ErrorIs(t, s.Verify(unsigned, "/x"), signing.ErrMissingExpiration)
}

func TestRedactedHidesCredentials(t *testing.T) {
	cfg := &Config{
		SigningSecret: []byte("super-secret-value"),
		DatabaseURL:   "postgres://u:pw@db/links",
		RedisPassword: "redis-pw",
		S3AccessKey:   "AKIA",
		S3SecretKey:   "s3-secret",
	}
	out := fmt.Sprint(cfg.Redacted())
	for _, secret := range []string{"super-secret-value", "u:pw", "redis-pw", "AKIA", "s3-secret"} {
		assert.NotContains(t, out, secret)
	}
	assert.Equal(t, "*** (18 bytes)", cfg.Redacted()["signing_secret"])
}
