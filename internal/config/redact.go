package config

import "fmt"

// Redacted returns a view of c that is safe to log. Credentials are
// replaced by a marker.
func (c *Config) Redacted() map[string]any {
	out := map[string]any{
		"address":            c.Address,
		"base_url":           c.BaseURL,
		"log_level":          c.LogLevel,
		"hmac_param":         c.HmacParam,
		"params_param":       c.ParamsParam,
		"expires_param":      c.ExpiresParam,
		"default_link_ttl":   c.DefaultLinkTTL.String(),
		"require_expiration": c.RequireExpiration,
		"data_dir":           c.DataDir,
		"max_file_size":      c.MaxFileSize,
		"allowed_types":      c.AllowedTypes,
		"audit_workers":      c.AuditWorkers,
		"verify_rps":         c.VerifyRPS,
		"verify_burst":       c.VerifyBurst,
		"redis_addr":         c.RedisAddr,
		"redis_db":           c.RedisDB,
		"s3_endpoint":        c.S3Endpoint,
		"s3_bucket":          c.S3Bucket,
		"s3_region":          c.S3Region,
		"s3_use_ssl":         c.S3UseSSL,
	}
	if len(c.SigningSecret) > 0 {
		out["signing_secret"] = fmt.Sprintf("*** (%d bytes)", len(c.SigningSecret))
	}
	if c.DatabaseURL != "" {
		out["database_url"] = "***"
	}
	if c.RedisPassword != "" {
		out["redis_password"] = "***"
	}
	if c.S3AccessKey != "" {
		out["s3_access_key"] = "***"
	}
	if c.S3SecretKey != "" {
		out["s3_secret_key"] = "***"
	}
	return out
}
