package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/artpar/paasdeploy/internal/core/domain"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	ControlPlane ControlPlaneConfig `mapstructure:"control_plane"`
	Target       TargetConfig       `mapstructure:"target"`
	Tsuru        TsuruConfig        `mapstructure:"tsuru"`
	Credentials  CredentialsConfig  `mapstructure:"credentials"`
	Git          GitConfig          `mapstructure:"git"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Log          LogConfig          `mapstructure:"log"`
}

// ControlPlaneConfig holds the control-plane API client configuration.
type ControlPlaneConfig struct {
	// URL is the API base URL. When empty the target's URI is used.
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TargetConfig names the deployment target registered with the CLI before
// each run.
type TargetConfig struct {
	Label    string `mapstructure:"label"`
	Protocol string `mapstructure:"protocol"`
	Host     string `mapstructure:"host"`

	// Ensure registers and selects the target before deploy and bulk.
	Ensure bool `mapstructure:"ensure"`
}

// DeploymentTarget converts the configuration into a domain target.
func (c TargetConfig) DeploymentTarget() domain.DeploymentTarget {
	return domain.DeploymentTarget{Label: c.Label, Protocol: c.Protocol, Host: c.Host}
}

// Configured reports whether a target is set at all.
func (c TargetConfig) Configured() bool {
	return c.Label != "" || c.Host != ""
}

// Override applies the fields t sets on top of the configured target.
func (c TargetConfig) Override(t domain.DeploymentTarget) TargetConfig {
	if t.Label != "" {
		c.Label = t.Label
	}
	if t.Protocol != "" {
		c.Protocol = t.Protocol
	}
	if t.Host != "" {
		c.Host = t.Host
	}
	return c
}

// TsuruConfig locates the control-plane CLI and its home directory.
type TsuruConfig struct {
	Command string `mapstructure:"command"`

	// Home holds the CLI's .ssh/config used by git pushes.
	Home string `mapstructure:"home"`

	// CommandTimeout bounds each external command.
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// SSHConfigPath returns <home>/.ssh/config, or "" when no home is set.
func (c TsuruConfig) SSHConfigPath() string {
	if c.Home == "" {
		return ""
	}
	return filepath.Join(c.Home, ".ssh", "config")
}

// CredentialsConfig supplies defaults for the deploy command's user flags.
// Set the password through PAASDEPLOY_CREDENTIALS_PASSWORD rather than a file.
type CredentialsConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	Key      string `mapstructure:"key"`
	Team     string `mapstructure:"team"`
}

// GitConfig holds git delivery configuration.
type GitConfig struct {
	Branch string `mapstructure:"branch"`
}

// DatabaseConfig holds run history configuration. An empty DSN disables history.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIURL returns the control-plane URL, falling back to the target's URI.
func (c *Config) APIURL() string {
	if c.ControlPlane.URL != "" {
		return c.ControlPlane.URL
	}
	if c.Target.Configured() {
		return c.Target.DeploymentTarget().URI()
	}
	return ""
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("control_plane.url", "")
	v.SetDefault("control_plane.timeout", "30s")
	v.SetDefault("target.label", "")
	v.SetDefault("target.protocol", domain.DefaultTargetProtocol)
	v.SetDefault("target.host", "")
	v.SetDefault("target.ensure", true)
	v.SetDefault("tsuru.command", "tsuru")
	v.SetDefault("tsuru.home", "")
	v.SetDefault("tsuru.command_timeout", "10m")
	v.SetDefault("credentials.email", "")
	v.SetDefault("credentials.password", "")
	v.SetDefault("credentials.key", "")
	v.SetDefault("credentials.team", "")
	v.SetDefault("git.branch", "master")
	v.SetDefault("database.dsn", "./data/paasdeploy.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// An explicit but missing file falls back to defaults.
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("PAASDEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format writing to w.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
