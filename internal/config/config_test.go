package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))
	return configFile
}

func TestLoadConfig(t *testing.T) {
	t.Run("load valid config file", func(t *testing.T) {
		configFile := writeConfig(t, `
tracker:
  base_url: "https://redmine.example.com"
  api_key: "key123"
  timeout: "10s"
dashboard:
  root_project: "platform"
  issue_loading: "eager"
  page_size: 25
  issue_page_size: 50
  max_concurrency: 2
  include_closed: true
  locale: "en"
  session_ttl: "5m"
server:
  addr: ":9090"
  allowed_origins: ["https://board.example.com"]
`)

		config, err := LoadConfig(configFile)
		require.NoError(t, err)

		assert.Equal(t, "https://redmine.example.com", config.Tracker.BaseURL)
		assert.Equal(t, "key123", config.Tracker.APIKey)
		assert.Equal(t, AuthSchemeHeader, config.Tracker.AuthScheme)
		assert.Equal(t, 10*time.Second, config.Tracker.Timeout)
		assert.Equal(t, "platform", config.Dashboard.RootProject)
		assert.Equal(t, LoadingEager, config.Dashboard.IssueLoading)
		assert.Equal(t, 25, config.Dashboard.PageSize)
		assert.Equal(t, 50, config.Dashboard.IssuePageSize)
		assert.Equal(t, 2, config.Dashboard.MaxConcurrency)
		assert.True(t, config.Dashboard.IncludeClosed)
		assert.Equal(t, "en", config.Dashboard.Locale)
		assert.Equal(t, 5*time.Minute, config.Dashboard.SessionTTL)
		assert.Equal(t, ":9090", config.Server.Addr)
		assert.Equal(t, []string{"https://board.example.com"}, config.Server.AllowedOrigins)
	})

	t.Run("applies defaults", func(t *testing.T) {
		configFile := writeConfig(t, `
tracker:
  base_url: "https://redmine.example.com"
  api_key: "key123"
`)

		config, err := LoadConfig(configFile)
		require.NoError(t, err)

		assert.Equal(t, 30*time.Second, config.Tracker.Timeout)
		assert.Equal(t, "2024_qa_sebj", config.Dashboard.RootProject)
		assert.Equal(t, LoadingLazy, config.Dashboard.IssueLoading)
		assert.Equal(t, 20, config.Dashboard.PageSize)
		assert.Equal(t, MaxIssuePageSize, config.Dashboard.IssuePageSize)
		assert.Equal(t, 4, config.Dashboard.MaxConcurrency)
		assert.Equal(t, "ko", config.Dashboard.Locale)
		assert.Equal(t, 30*time.Minute, config.Dashboard.SessionTTL)
		assert.Equal(t, 1000, config.Dashboard.MaxSessions)
		assert.Equal(t, time.Minute, config.Dashboard.CacheTTL)
		assert.Equal(t, ":8080", config.Server.Addr)
	})

	t.Run("environment supplies tracker settings", func(t *testing.T) {
		t.Setenv("REDMINE_URL", "https://env.example.com/redmine")
		t.Setenv("REDMINE_API_KEY", "env-key")
		t.Setenv("ROADMAP_DASHBOARD_PAGE_SIZE", "40")
		configFile := writeConfig(t, "dashboard:\n  locale: ja\n")

		config, err := LoadConfig(configFile)
		require.NoError(t, err)

		assert.Equal(t, "https://env.example.com/redmine", config.Tracker.BaseURL)
		assert.Equal(t, "env-key", config.Tracker.APIKey)
		assert.Equal(t, 40, config.Dashboard.PageSize)
		assert.Equal(t, "ja", config.Dashboard.Locale)
	})

	t.Run("prefixed variable wins over legacy name", func(t *testing.T) {
		t.Setenv("ROADMAP_TRACKER_API_KEY", "prefixed")
		t.Setenv("REDMINE_API_KEY", "legacy")
		configFile := writeConfig(t, "tracker:\n  base_url: https://redmine.example.com\n")

		config, err := LoadConfig(configFile)
		require.NoError(t, err)
		assert.Equal(t, "prefixed", config.Tracker.APIKey)
	})

	t.Run("missing api key is fatal", func(t *testing.T) {
		t.Setenv("REDMINE_API_KEY", "")
		t.Setenv("ROADMAP_TRACKER_API_KEY", "")
		configFile := writeConfig(t, "tracker:\n  base_url: https://redmine.example.com\n")

		_, err := LoadConfig(configFile)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tracker.api_key is required")
	})

	t.Run("explicit path must exist", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("reads api key from keyring when enabled", func(t *testing.T) {
		original := keyringLookup
		t.Cleanup(func() { keyringLookup = original })
		keyringLookup = func(key string) (string, error) {
			assert.Equal(t, "tracker_api_key", key)
			return "from-keyring", nil
		}
		configFile := writeConfig(t, `
tracker:
  base_url: "https://redmine.example.com"
  use_keyring: true
`)

		config, err := LoadConfig(configFile)
		require.NoError(t, err)
		assert.Equal(t, "from-keyring", config.Tracker.APIKey)
	})

	t.Run("keyring failure is reported", func(t *testing.T) {
		original := keyringLookup
		t.Cleanup(func() { keyringLookup = original })
		keyringLookup = func(string) (string, error) {
			return "", errors.New("locked")
		}
		configFile := writeConfig(t, `
tracker:
  base_url: "https://redmine.example.com"
  use_keyring: true
`)

		_, err := LoadConfig(configFile)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "keyring")
	})
}

func validConfig() *Config {
	return &Config{
		Tracker: TrackerConfig{
			BaseURL:    "https://redmine.example.com",
			APIKey:     "key123",
			AuthScheme: AuthSchemeHeader,
		},
		Dashboard: DashboardConfig{
			RootProject:    "root",
			IssueLoading:   LoadingLazy,
			PageSize:       20,
			IssuePageSize:  100,
			MaxConcurrency: 4,
			SessionTTL:     time.Minute,
		},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:        "negative max sessions",
			mutate:      func(c *Config) { c.Dashboard.MaxSessions = -1 },
			expectError: true,
			errorMsg:    "dashboard.max_sessions must not be negative",
		},
		{
			name:        "negative cache ttl",
			mutate:      func(c *Config) { c.Dashboard.CacheTTL = -time.Second },
			expectError: true,
			errorMsg:    "dashboard.cache_ttl must not be negative",
		},
		{
			name:        "missing base URL",
			mutate:      func(c *Config) { c.Tracker.BaseURL = "" },
			expectError: true,
			errorMsg:    "tracker.base_url is required",
		},
		{
			name:        "relative base URL",
			mutate:      func(c *Config) { c.Tracker.BaseURL = "redmine.local/api" },
			expectError: true,
			errorMsg:    "tracker.base_url must be an absolute http(s) URL",
		},
		{
			name:        "missing api key",
			mutate:      func(c *Config) { c.Tracker.APIKey = "" },
			expectError: true,
			errorMsg:    "tracker.api_key is required",
		},
		{
			name:        "unknown auth scheme",
			mutate:      func(c *Config) { c.Tracker.AuthScheme = "basic" },
			expectError: true,
			errorMsg:    "tracker.auth_scheme",
		},
		{
			name:        "unknown loading strategy",
			mutate:      func(c *Config) { c.Dashboard.IssueLoading = "sometimes" },
			expectError: true,
			errorMsg:    "dashboard.issue_loading",
		},
		{
			name:        "issue page size above tracker ceiling",
			mutate:      func(c *Config) { c.Dashboard.IssuePageSize = 500 },
			expectError: true,
			errorMsg:    "dashboard.issue_page_size must be between 1 and 100",
		},
		{
			name:        "zero page size",
			mutate:      func(c *Config) { c.Dashboard.PageSize = 0 },
			expectError: true,
			errorMsg:    "dashboard.page_size must be greater than 0",
		},
		{
			name:        "zero concurrency",
			mutate:      func(c *Config) { c.Dashboard.MaxConcurrency = 0 },
			expectError: true,
			errorMsg:    "dashboard.max_concurrency must be greater than 0",
		},
		{
			name:        "missing root project",
			mutate:      func(c *Config) { c.Dashboard.RootProject = "" },
			expectError: true,
			errorMsg:    "dashboard.root_project is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)

			err := validateConfig(config)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "nested", "config.yaml")
	config := validConfig()
	config.Tracker.Timeout = 15 * time.Second
	config.Dashboard.Locale = "en"
	config.Server.Addr = ":7070"
	config.Server.AllowedOrigins = []string{"*"}

	require.NoError(t, SaveConfig(config, configFile))

	loaded, err := LoadConfig(configFile)
	require.NoError(t, err)
	assert.Equal(t, config.Tracker.BaseURL, loaded.Tracker.BaseURL)
	assert.Equal(t, 15*time.Second, loaded.Tracker.Timeout)
	assert.Equal(t, "root", loaded.Dashboard.RootProject)
	assert.Equal(t, "en", loaded.Dashboard.Locale)
	assert.Equal(t, time.Minute, loaded.Dashboard.SessionTTL)
	assert.Equal(t, ":7070", loaded.Server.Addr)
}
