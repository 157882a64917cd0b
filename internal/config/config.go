// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sasarjan/authsync/internal/crypto"
	"github.com/sasarjan/authsync/internal/signer"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// AppID identifies this app on the cross-app sync channel; must be unique per app.
	AppID string `mapstructure:"APP_ID"`
	// TrustedApps is a comma-separated allow-list of appIds whose sync messages are accepted.
	TrustedApps string `mapstructure:"TRUSTED_APPS"`
	// SyncChannel is the broadcast channel name shared by all cooperating apps.
	SyncChannel string `mapstructure:"SYNC_CHANNEL"`

	// HMACSecret signs cross-app messages; min 32 chars, shared by all apps.
	HMACSecret string `mapstructure:"HMAC_SECRET"`
	// HMACAlgorithm is the HMAC hash (sha256, sha384, sha512); default sha256.
	HMACAlgorithm string `mapstructure:"HMAC_ALGORITHM"`
	// HMACMessageTTL is how long a signed message stays acceptable (e.g. "5m").
	HMACMessageTTL string `mapstructure:"HMAC_MESSAGE_TTL"`
	// EncryptionKey is the hex-encoded 32-byte key for sync payload encryption, shared by all apps.
	EncryptionKey string `mapstructure:"ENCRYPTION_KEY"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "sasarjan-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "sasarjan-apps").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// SessionRefreshThreshold is the fraction of token lifetime after which the session
	// manager refreshes proactively (0 < x < 1); default 0.8.
	SessionRefreshThreshold float64 `mapstructure:"SESSION_REFRESH_THRESHOLD"`
	// SessionActivityTimeout invalidates the session after this much idleness (e.g. "30m").
	SessionActivityTimeout string `mapstructure:"SESSION_ACTIVITY_TIMEOUT"`
	// SessionMonitorInterval is the session monitoring tick period (e.g. "15s").
	SessionMonitorInterval string `mapstructure:"SESSION_MONITOR_INTERVAL"`

	// CSRFCookieName overrides the CSRF cookie name; empty means the default.
	CSRFCookieName string `mapstructure:"CSRF_COOKIE_NAME"`
	// CSRFHeaderName overrides the CSRF header name; empty means the default.
	CSRFHeaderName string `mapstructure:"CSRF_HEADER_NAME"`

	// RedisAddr is the Redis host:port for the session store and sync bus.
	// Empty means in-memory store and bus (single-process deployments).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the Redis password; empty when auth is disabled.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// AuditKafkaBrokers is a comma-separated list of Kafka broker addresses
	// (e.g. "localhost:9092"). Empty disables the audit trail.
	AuditKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the Kafka topic for audit events.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317).
	// Empty disables tracing and metrics export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ID", "")
	v.SetDefault("TRUSTED_APPS", "")
	v.SetDefault("SYNC_CHANNEL", "sasarjan-auth-sync")
	v.SetDefault("HMAC_SECRET", "")
	v.SetDefault("HMAC_ALGORITHM", "sha256")
	v.SetDefault("HMAC_MESSAGE_TTL", "5m")
	v.SetDefault("ENCRYPTION_KEY", "")
	v.SetDefault("JWT_ISSUER", "sasarjan-auth")
	v.SetDefault("JWT_AUDIENCE", "sasarjan-apps")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SESSION_REFRESH_THRESHOLD", 0.8)
	v.SetDefault("SESSION_ACTIVITY_TIMEOUT", "30m")
	v.SetDefault("SESSION_MONITOR_INTERVAL", "15s")
	v.SetDefault("CSRF_COOKIE_NAME", "")
	v.SetDefault("CSRF_HEADER_NAME", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "sasarjan-auth-audit")
	v.SetDefault("KAFKA_GROUP_ID", "sasarjan-auth-audit-worker")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.AppID == "" {
		return nil, errors.New("config: APP_ID must be set")
	}
	if len(cfg.HMACSecret) < signer.MinSecretLen {
		return nil, fmt.Errorf("config: HMAC_SECRET must be at least %d characters", signer.MinSecretLen)
	}
	if _, err := cfg.EncryptionKeyBytes(); err != nil {
		return nil, err
	}

	if cfg.SessionRefreshThreshold <= 0 || cfg.SessionRefreshThreshold >= 1 {
		return nil, errors.New("config: SESSION_REFRESH_THRESHOLD must be between 0 and 1 exclusive")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// EncryptionKeyBytes decodes the hex-encoded sync encryption key and checks its size.
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, errors.New("config: ENCRYPTION_KEY must be hex-encoded")
	}
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("config: ENCRYPTION_KEY must decode to %d bytes", crypto.KeySize)
	}
	return key, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// MessageTTL parses HMACMessageTTL as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) MessageTTL() time.Duration {
	d, err := time.ParseDuration(c.HMACMessageTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// ActivityTimeout parses SessionActivityTimeout. Returns 30m if unset or invalid.
func (c *Config) ActivityTimeout() time.Duration {
	d, err := time.ParseDuration(c.SessionActivityTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// MonitorInterval parses SessionMonitorInterval. Returns 15s if unset or invalid.
func (c *Config) MonitorInterval() time.Duration {
	d, err := time.ParseDuration(c.SessionMonitorInterval)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// TrustedAppsList returns the trusted appIds from the comma-separated config.
func (c *Config) TrustedAppsList() []string {
	return splitCommaList(c.TrustedApps)
}

// AuditKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the audit trail is enabled (non-empty list) and to create the emitter.
func (c *Config) AuditKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitCommaList(c.AuditKafkaBrokers)
}

func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
