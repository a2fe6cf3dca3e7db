// Package config reads linksigner settings from LINKSIGNER_* environment
// variables and exposes them as typed values. Call Load after godotenv has
// had a chance to populate the environment from a .env file.
//
// Signers and verifiers across a deployment must agree on the secret and on
// the three reserved parameter names, otherwise every link fails.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dharsanguruparan/linksigner/internal/clock"
	"github.com/dharsanguruparan/linksigner/internal/ratelimit"
	"github.com/dharsanguruparan/linksigner/internal/signing"
)

// Config is the runtime configuration shared by the binaries.
type Config struct {
	Address  string
	BaseURL  string
	LogLevel string

	SigningSecret     []byte
	HmacParam         string
	ParamsParam       string
	ExpiresParam      string
	DefaultLinkTTL    time.Duration
	RequireExpiration bool

	DataDir      string
	MaxFileSize  int64
	AllowedTypes []string
	AuditWorkers int

	VerifyRPS   float64
	VerifyBurst int

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool
}

const (
	envPrefix = "LINKSIGNER_"

	defaultAddress      = ":8080"
	defaultLogLevel     = "info"
	defaultMaxFileSize  = 25 << 20 // 25 MiB
	defaultAllowedTypes = "application/pdf,image/png,image/jpeg,text/plain; charset=utf-8"
	defaultAuditWorkers = 2
	defaultVerifyRPS    = 5
	defaultVerifyBurst  = 20
	defaultS3Bucket     = "linksigner"
)

// Load reads the environment, applies defaults and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Address:  readEnv("ADDRESS", defaultAddress),
		BaseURL:  readEnv("BASE_URL", ""),
		LogLevel: readEnv("LOG_LEVEL", defaultLogLevel),

		SigningSecret: parseSecret("SECRET"),
		HmacParam:     readEnv("HMAC_PARAM", signing.DefaultHmacParam),
		ParamsParam:   readEnv("PARAMS_PARAM", signing.DefaultParamsParam),
		ExpiresParam:  readEnv("EXPIRES_PARAM", signing.DefaultExpiresParam),

		DataDir:      readEnv("DATA_DIR", ""),
		MaxFileSize:  defaultMaxFileSize,
		AllowedTypes: parseList("ALLOWED_TYPES", defaultAllowedTypes),

		DatabaseURL:   readEnv("DATABASE_URL", ""),
		RedisAddr:     readEnv("REDIS_ADDR", ""),
		RedisPassword: readEnv("REDIS_PASSWORD", ""),

		S3Endpoint:  readEnv("S3_ENDPOINT", ""),
		S3AccessKey: readEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: readEnv("S3_SECRET_KEY", ""),
		S3Bucket:    readEnv("S3_BUCKET", defaultS3Bucket),
		S3Region:    readEnv("S3_REGION", ""),
	}

	var errs []error
	var err error
	if cfg.DefaultLinkTTL, err = parseDuration("DEFAULT_TTL", signing.DefaultExpirationInterval); err != nil {
		errs = append(errs, err)
	}
	if cfg.RequireExpiration, err = parseBool("REQUIRE_EXPIRATION", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.S3UseSSL, err = parseBool("S3_USE_SSL", true); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxFileSize, err = parseInt64("MAX_FILE_BYTES", defaultMaxFileSize); err != nil {
		errs = append(errs, err)
	}
	if cfg.AuditWorkers, err = parseInt("WORKERS", defaultAuditWorkers); err != nil {
		errs = append(errs, err)
	}
	if cfg.RedisDB, err = parseInt("REDIS_DB", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.VerifyBurst, err = parseInt("VERIFY_BURST", defaultVerifyBurst); err != nil {
		errs = append(errs, err)
	}
	if cfg.VerifyRPS, err = parseFloat("VERIFY_RPS", defaultVerifyRPS); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on settings that would produce unusable links.
func (c *Config) Validate() error {
	if len(c.SigningSecret) == 0 {
		return fmt.Errorf("%sSECRET is required", envPrefix)
	}
	if c.HmacParam == "" || c.ParamsParam == "" || c.ExpiresParam == "" {
		return errors.New("hmac, params and expires parameter names are required")
	}
	if c.HmacParam == c.ParamsParam || c.HmacParam == c.ExpiresParam || c.ParamsParam == c.ExpiresParam {
		return errors.New("hmac, params and expires parameter names must differ")
	}
	if c.DefaultLinkTTL <= 0 {
		return fmt.Errorf("%sDEFAULT_TTL must be positive", envPrefix)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("%sMAX_FILE_BYTES must be positive", envPrefix)
	}
	if c.AuditWorkers <= 0 {
		return fmt.Errorf("%sWORKERS must be positive", envPrefix)
	}
	if c.RedisDB < 0 || c.RedisDB > 15 {
		return fmt.Errorf("%sREDIS_DB must be between 0 and 15", envPrefix)
	}
	if c.UseRedis() && c.DatabaseURL == "" {
		return fmt.Errorf("%sDATABASE_URL is required when %sREDIS_ADDR is set", envPrefix, envPrefix)
	}
	if c.S3Endpoint != "" && (c.S3AccessKey == "" || c.S3SecretKey == "") {
		return errors.New("S3 access and secret keys are required when an S3 endpoint is set")
	}
	if err := c.RateLimit().Validate(); err != nil {
		return fmt.Errorf("verification throttle: %w", err)
	}
	return nil
}

// SignerOptions translates the link settings into signing options.
func (c *Config) SignerOptions(clk clock.Clock) []signing.Option {
	opts := []signing.Option{
		signing.WithHmacParam(c.HmacParam),
		signing.WithParamsParam(c.ParamsParam),
		signing.WithExpiresParam(c.ExpiresParam),
		signing.WithDefaultExpiration(c.DefaultLinkTTL),
	}
	if clk != nil {
		opts = append(opts, signing.WithClock(clk))
	}
	if c.RequireExpiration {
		opts = append(opts, signing.WithRequiredExpiration())
	}
	return opts
}

// NewSigner builds the signer described by c on the system clock.
func (c *Config) NewSigner() (*signing.Signer, error) {
	return signing.New(c.SigningSecret, c.SignerOptions(clock.System{})...)
}

// RateLimit returns the verification throttle settings. A zero rate
// disables throttling.
func (c *Config) RateLimit() ratelimit.Config {
	return ratelimit.Config{
		Enabled:           c.VerifyRPS > 0,
		RequestsPerSecond: c.VerifyRPS,
		Burst:             c.VerifyBurst,
	}
}

// UseS3 reports whether blobs go to S3 instead of the local disk.
func (c *Config) UseS3() bool { return c.S3Endpoint != "" }

// UseRedis reports whether audit events go through the asynq queue.
func (c *Config) UseRedis() bool { return c.RedisAddr != "" }

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		return v
	}
	return def
}

func parseList(key, def string) []string {
	val := readEnv(key, def)
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt64(key string, def int64) (int64, error) {
	v := readEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return n, nil
}

func parseInt(key string, def int) (int, error) {
	n, err := parseInt64(key, int64(def))
	return int(n), err
}

func parseFloat(key string, def float64) (float64, error) {
	v := readEnv(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return f, nil
}

func parseBool(key string, def bool) (bool, error) {
	v := readEnv(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return b, nil
}

// parseDuration accepts Go durations ("168h") and a day suffix ("7d").
func parseDuration(key string, def time.Duration) (time.Duration, error) {
	v := readEnv(key, "")
	if v == "" {
		return def, nil
	}
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("%s%s: invalid day count %q", envPrefix, key, v)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return d, nil
}

func parseSecret(key string) []byte {
	if v := readEnv(key, ""); v != "" {
		return []byte(v)
	}
	return nil
}
