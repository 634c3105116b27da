package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
quota:
  daily_limit: 5
bland:
  api_key: bland-key
  base_url: http://bland.local/v1
  timeout_seconds: 12
openai:
  model: gpt-4o-mini
script:
  persona: Janie
store:
  backend: postgres
database:
  dsn: postgres://localhost/callify
  max_conns: 8
storage:
  backend: local
  local:
    base_dir: /tmp/snapshots
retention:
  enabled: true
  interval_minutes: 30
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "secret", cfg.Auth.APIKey)
	require.Equal(t, 5, cfg.Quota.DailyLimit)
	require.Equal(t, "bland-key", cfg.Bland.APIKey)
	require.Equal(t, "http://bland.local/v1", cfg.Bland.BaseURL)
	require.Equal(t, 12*time.Second, cfg.BlandTimeout())
	require.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	require.Equal(t, "Janie", cfg.Script.Persona)
	require.Equal(t, "Callify", cfg.Script.Company)
	require.Equal(t, "postgres", cfg.Store.Backend)
	require.Equal(t, int32(8), cfg.Database.MaxConns)
	require.Equal(t, "/tmp/snapshots", cfg.Storage.Local.BaseDir)
	require.Equal(t, 30*time.Minute, cfg.RetentionInterval())
	require.False(t, cfg.Logging.Development)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 3, cfg.Quota.DailyLimit)
	require.Equal(t, "https://api.bland.ai/v1", cfg.Bland.BaseURL)
	require.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	require.Equal(t, 100, cfg.Script.PreviewLength)
	require.Equal(t, 5000, cfg.Fetch.MaxChars)
	require.Equal(t, 10*time.Second, cfg.FetchTimeout())
	require.Equal(t, "memory", cfg.Store.Backend)
	require.Equal(t, 7, cfg.Retention.QuotaDays)
	require.Equal(t, 30, cfg.Retention.AnalysisDays)
	require.False(t, cfg.Server.TrustProxyHeaders)
	require.Equal(t, 1, cfg.Server.ProxyHops)
	require.Equal(t, 8*24*time.Hour, cfg.QuotaKeyTTL())
}

func TestLoadReadsLegacyEnvironmentNames(t *testing.T) {
	t.Setenv("BLAND_APIKEY", "legacy-bland")
	t.Setenv("OPENAI_APIKEY", "legacy-openai")
	t.Setenv("NODEMAILER_HOST", "smtp.example.com")
	t.Setenv("NODEMAILER_PORT", "465")
	t.Setenv("NODEMAILER_SECURE", "true")
	t.Setenv("NODEMAILER_USER", "ops@example.com")
	t.Setenv("NODEMAILER_PASS", "hunter2")
	t.Setenv("CALLIFY_PUBSUB_TOPIC_NAME", "calls")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "legacy-bland", cfg.Bland.APIKey)
	require.Equal(t, "legacy-openai", cfg.OpenAI.APIKey)
	require.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	require.Equal(t, 465, cfg.SMTP.Port)
	require.True(t, cfg.SMTP.Secure)
	require.True(t, cfg.SMTP.Configured())
	require.Equal(t, "calls", cfg.PubSub.TopicName)
}

func TestLoadPrefixedKeyWinsOverLegacy(t *testing.T) {
	t.Setenv("CALLIFY_BLAND_API_KEY", "prefixed")
	t.Setenv("BLAND_APIKEY", "legacy")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "prefixed", cfg.Bland.APIKey)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Store:   StoreConfig{Backend: "memory"},
		Storage: StorageConfig{Backend: "memory"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "auth without key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
		{
			name: "negative quota",
			cfg: func() Config {
				c := base
				c.Quota.DailyLimit = -1
				return c
			}(),
			want: "quota.daily_limit",
		},
		{
			name: "postgres without dsn",
			cfg: func() Config {
				c := base
				c.Store.Backend = "postgres"
				return c
			}(),
			want: "database.dsn",
		},
		{
			name: "firestore without project",
			cfg: func() Config {
				c := base
				c.Store.Backend = "firestore"
				return c
			}(),
			want: "firestore.project_id",
		},
		{
			name: "unknown store",
			cfg: func() Config {
				c := base
				c.Store.Backend = "mongo"
				return c
			}(),
			want: "store.backend",
		},
		{
			name: "redis quota without url",
			cfg: func() Config {
				c := base
				c.Quota.Backend = "redis"
				return c
			}(),
			want: "redis.url",
		},
		{
			name: "gcs without bucket",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "gcs"
				return c
			}(),
			want: "storage.bucket",
		},
		{
			name: "trusted proxy without hops",
			cfg: func() Config {
				c := base
				c.Server.TrustProxyHeaders = true
				return c
			}(),
			want: "server.proxy_hops",
		},
		{
			name: "retention without interval",
			cfg: func() Config {
				c := base
				c.Retention.Enabled = true
				return c
			}(),
			want: "retention.interval_minutes",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tt.want), "got %v", err)
		})
	}

	require.NoError(t, base.Validate())
}
