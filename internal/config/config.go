// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/callify-backend/internal/storage/local"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Application ApplicationConfig `mapstructure:"application"`
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Quota       QuotaConfig       `mapstructure:"quota"`
	Bland       BlandConfig       `mapstructure:"bland"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Script      ScriptConfig      `mapstructure:"script"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	SMTP        SMTPConfig        `mapstructure:"smtp"`
	Store       StoreConfig       `mapstructure:"store"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Firestore   FirestoreConfig   `mapstructure:"firestore"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Storage     StorageConfig     `mapstructure:"storage"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Retention   RetentionConfig   `mapstructure:"retention"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ApplicationConfig names the running service for telemetry.
type ApplicationConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	// TrustProxyHeaders keys quota on X-Forwarded-For; leave off unless a
	// proxy in front appends the client address.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
	ProxyHops         int  `mapstructure:"proxy_hops"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// QuotaConfig controls the per-client daily call limit.
type QuotaConfig struct {
	DailyLimit int `mapstructure:"daily_limit"`
	// Backend overrides store.backend for quota records ("redis" or empty).
	Backend string `mapstructure:"backend"`
}

// BlandConfig configures the voice call provider.
type BlandConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// OpenAIConfig configures the website analysis model.
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ScriptConfig shapes generated call scripts.
type ScriptConfig struct {
	Persona       string `mapstructure:"persona"`
	Company       string `mapstructure:"company"`
	PreviewLength int    `mapstructure:"preview_length"`
}

// FetchConfig controls website fetches made for analysis.
type FetchConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxChars       int     `mapstructure:"max_chars"`
	DomainRPS      float64 `mapstructure:"domain_rps"`
	DomainBurst    int     `mapstructure:"domain_burst"`
}

// SMTPConfig configures the contact-form mail transport.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Secure   bool   `mapstructure:"secure"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// Configured reports whether enough settings exist to send mail.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.Port > 0 && c.Username != "" && c.Password != ""
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

// DatabaseConfig controls access to Postgres.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// FirestoreConfig identifies the Firestore database.
type FirestoreConfig struct {
	ProjectID  string `mapstructure:"project_id"`
	DatabaseID string `mapstructure:"database_id"`
}

// RedisConfig configures the optional Redis quota store.
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// StorageConfig sets the blob backend used for website snapshots.
type StorageConfig struct {
	Backend string       `mapstructure:"backend"`
	Bucket  string       `mapstructure:"bucket"`
	Prefix  string       `mapstructure:"prefix"`
	Local   local.Config `mapstructure:"local"`
}

// PubSubConfig holds metadata for call event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// RetentionConfig controls cleanup of old quota and analysis records.
type RetentionConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	QuotaDays       int  `mapstructure:"quota_days"`
	AnalysisDays    int  `mapstructure:"analysis_days"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// legacyEnv maps config keys to the environment names used by earlier deployments.
var legacyEnv = map[string][]string{
	"bland.api_key":  {"BLAND_APIKEY", "BLAND_API_KEY"},
	"openai.api_key": {"OPENAI_APIKEY", "OPENAI_API_KEY"},
	"smtp.host":      {"NODEMAILER_HOST"},
	"smtp.port":      {"NODEMAILER_PORT"},
	"smtp.secure":    {"NODEMAILER_SECURE"},
	"smtp.username":  {"NODEMAILER_USER"},
	"smtp.password":  {"NODEMAILER_PASS"},
}

// Load builds a Config from .env, disk and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("CALLIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		args := append([]string{key, "CALLIFY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("application.service_name", "callify-backend")
	v.SetDefault("application.version", "dev")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.trust_proxy_headers", false)
	v.SetDefault("server.proxy_hops", 1)
	v.SetDefault("quota.daily_limit", 3)
	v.SetDefault("bland.base_url", "https://api.bland.ai/v1")
	v.SetDefault("bland.timeout_seconds", 30)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.timeout_seconds", 60)
	v.SetDefault("script.persona", "AI Assistant")
	v.SetDefault("script.company", "Callify")
	v.SetDefault("script.preview_length", 100)
	v.SetDefault("fetch.enabled", true)
	v.SetDefault("fetch.user_agent", "callify-analyzer/1.0")
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.max_chars", 5000)
	v.SetDefault("fetch.domain_rps", 1.0)
	v.SetDefault("fetch.domain_burst", 2)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("redis.key_prefix", "rateLimits")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("retention.enabled", false)
	v.SetDefault("retention.interval_minutes", 24*60)
	v.SetDefault("retention.quota_days", 7)
	v.SetDefault("retention.analysis_days", 30)
	v.SetDefault("logging.development", true)

	// Zero defaults register the keys so AutomaticEnv values reach Unmarshal.
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("quota.backend", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.to", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 0)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", 0)
	v.SetDefault("firestore.project_id", "")
	v.SetDefault("firestore.database_id", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.local.base_dir", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.TrustProxyHeaders && c.Server.ProxyHops < 1 {
		return fmt.Errorf("server.proxy_hops must be >= 1 when proxy headers are trusted")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Quota.DailyLimit < 0 {
		return fmt.Errorf("quota.daily_limit must be >= 0")
	}
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres store")
		}
	case "firestore":
		if c.Firestore.ProjectID == "" {
			return fmt.Errorf("firestore.project_id is required for the firestore store")
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", c.Store.Backend)
	}
	switch c.Quota.Backend {
	case "":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis quota backend")
		}
	default:
		return fmt.Errorf("quota.backend %q is not supported", c.Quota.Backend)
	}
	switch c.Storage.Backend {
	case "memory":
	case "local":
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir is required for local storage")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for gcs storage")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if c.Retention.Enabled && c.Retention.IntervalMinutes <= 0 {
		return fmt.Errorf("retention.interval_minutes must be > 0 when retention is enabled")
	}
	return nil
}

// BlandTimeout returns the provider HTTP timeout.
func (c Config) BlandTimeout() time.Duration {
	return time.Duration(c.Bland.TimeoutSeconds) * time.Second
}

// OpenAITimeout returns the analysis model HTTP timeout.
func (c Config) OpenAITimeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSeconds) * time.Second
}

// FetchTimeout returns the website fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// RetentionInterval returns the delay between cleanup passes.
func (c Config) RetentionInterval() time.Duration {
	return time.Duration(c.Retention.IntervalMinutes) * time.Minute
}

// QuotaKeyTTL is how long Redis keeps a quota key: the quota retention window
// plus the day the key is live.
func (c Config) QuotaKeyTTL() time.Duration {
	return time.Duration(c.Retention.QuotaDays+1) * 24 * time.Hour
}
