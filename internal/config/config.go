package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jlucaspains/roadmapboard/internal/credential"
)

const (
	DefaultConfigPath = "./configs/config.yaml"
	EnvPrefix         = "ROADMAP"

	AuthSchemeHeader = "header"
	AuthSchemeBearer = "bearer"

	LoadingLazy  = "lazy"
	LoadingEager = "eager"

	// MaxIssuePageSize is the largest page the tracker will return.
	MaxIssuePageSize = 100
)

// keyringLookup is swapped in tests.
var keyringLookup = credential.Get

// Config represents the application configuration
type Config struct {
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Server    ServerConfig    `mapstructure:"server"`
}

// TrackerConfig contains the upstream Redmine connection settings
type TrackerConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	AuthScheme string        `mapstructure:"auth_scheme"`
	Timeout    time.Duration `mapstructure:"timeout"`
	UseKeyring bool          `mapstructure:"use_keyring"`
}

// DashboardConfig controls aggregation and the board view
type DashboardConfig struct {
	RootProject    string        `mapstructure:"root_project"`
	IssueLoading   string        `mapstructure:"issue_loading"`
	PageSize       int           `mapstructure:"page_size"`
	IssuePageSize  int           `mapstructure:"issue_page_size"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	IncludeClosed  bool          `mapstructure:"include_closed"`
	Locale         string        `mapstructure:"locale"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	MaxSessions    int           `mapstructure:"max_sessions"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// ServerConfig contains the HTTP listener settings
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches ./config.yaml and ./configs/config.yaml and
// tolerates neither existing; an explicit path must exist.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// REDMINE_URL and REDMINE_API_KEY are what existing deployments export.
	if err := v.BindEnv("tracker.base_url", EnvPrefix+"_TRACKER_BASE_URL", "REDMINE_URL"); err != nil {
		return nil, fmt.Errorf("error binding environment: %w", err)
	}
	if err := v.BindEnv("tracker.api_key", EnvPrefix+"_TRACKER_API_KEY", "REDMINE_API_KEY"); err != nil {
		return nil, fmt.Errorf("error binding environment: %w", err)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || (!errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist)) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		slog.Debug("No config file found, using defaults and environment")
	} else {
		slog.Debug("Loaded configuration", "file", v.ConfigFileUsed())
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Tracker.APIKey == "" && config.Tracker.UseKeyring {
		key, err := keyringLookup(credential.APIKeyName)
		if err != nil {
			return nil, fmt.Errorf("failed to read tracker API key from keyring: %w", err)
		}
		config.Tracker.APIKey = key
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tracker.auth_scheme", AuthSchemeHeader)
	v.SetDefault("tracker.timeout", 30*time.Second)
	v.SetDefault("tracker.use_keyring", false)
	v.SetDefault("dashboard.root_project", "2024_qa_sebj")
	v.SetDefault("dashboard.issue_loading", LoadingLazy)
	v.SetDefault("dashboard.page_size", 20)
	v.SetDefault("dashboard.issue_page_size", MaxIssuePageSize)
	v.SetDefault("dashboard.max_concurrency", 4)
	v.SetDefault("dashboard.include_closed", false)
	v.SetDefault("dashboard.locale", "ko")
	v.SetDefault("dashboard.session_ttl", 30*time.Minute)
	v.SetDefault("dashboard.max_sessions", 1000)
	v.SetDefault("dashboard.cache_ttl", time.Minute)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
}

func validateConfig(config *Config) error {
	if config.Tracker.BaseURL == "" {
		return fmt.Errorf("tracker.base_url is required")
	}

	u, err := url.Parse(config.Tracker.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("tracker.base_url must be an absolute http(s) URL")
	}

	if config.Tracker.APIKey == "" {
		return fmt.Errorf("tracker.api_key is required")
	}

	if config.Tracker.AuthScheme != AuthSchemeHeader && config.Tracker.AuthScheme != AuthSchemeBearer {
		return fmt.Errorf("tracker.auth_scheme must be %q or %q", AuthSchemeHeader, AuthSchemeBearer)
	}

	if config.Dashboard.RootProject == "" {
		return fmt.Errorf("dashboard.root_project is required")
	}

	if config.Dashboard.IssueLoading != LoadingLazy && config.Dashboard.IssueLoading != LoadingEager {
		return fmt.Errorf("dashboard.issue_loading must be %q or %q", LoadingLazy, LoadingEager)
	}

	if config.Dashboard.PageSize <= 0 {
		return fmt.Errorf("dashboard.page_size must be greater than 0")
	}

	if config.Dashboard.IssuePageSize <= 0 || config.Dashboard.IssuePageSize > MaxIssuePageSize {
		return fmt.Errorf("dashboard.issue_page_size must be between 1 and %d", MaxIssuePageSize)
	}

	if config.Dashboard.MaxConcurrency <= 0 {
		return fmt.Errorf("dashboard.max_concurrency must be greater than 0")
	}

	if config.Dashboard.SessionTTL <= 0 {
		return fmt.Errorf("dashboard.session_ttl must be greater than 0")
	}

	if config.Dashboard.MaxSessions < 0 {
		return fmt.Errorf("dashboard.max_sessions must not be negative")
	}

	if config.Dashboard.CacheTTL < 0 {
		return fmt.Errorf("dashboard.cache_ttl must not be negative")
	}

	return nil
}

// SaveConfig writes the configuration as YAML, creating the directory if needed
func SaveConfig(config *Config, configPath string) error {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("tracker.base_url", config.Tracker.BaseURL)
	v.Set("tracker.api_key", config.Tracker.APIKey)
	v.Set("tracker.auth_scheme", config.Tracker.AuthScheme)
	v.Set("tracker.timeout", config.Tracker.Timeout.String())
	v.Set("tracker.use_keyring", config.Tracker.UseKeyring)
	v.Set("dashboard.root_project", config.Dashboard.RootProject)
	v.Set("dashboard.issue_loading", config.Dashboard.IssueLoading)
	v.Set("dashboard.page_size", config.Dashboard.PageSize)
	v.Set("dashboard.issue_page_size", config.Dashboard.IssuePageSize)
	v.Set("dashboard.max_concurrency", config.Dashboard.MaxConcurrency)
	v.Set("dashboard.include_closed", config.Dashboard.IncludeClosed)
	v.Set("dashboard.locale", config.Dashboard.Locale)
	v.Set("dashboard.session_ttl", config.Dashboard.SessionTTL.String())
	v.Set("dashboard.max_sessions", config.Dashboard.MaxSessions)
	v.Set("dashboard.cache_ttl", config.Dashboard.CacheTTL.String())
	v.Set("server.addr", config.Server.Addr)
	v.Set("server.allowed_origins", config.Server.AllowedOrigins)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
