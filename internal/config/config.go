package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cascadebridge/internal/models"

	"gopkg.in/yaml.v3"
)

// Config holds all cascadebridge configuration.
type Config struct {
	Name string `yaml:"name"`

	// Chat platform
	Discord DiscordConfig `yaml:"discord"`

	// Language server the cascades run on
	Backend BackendConfig `yaml:"backend"`

	// Poll loop and message budget
	Bridge BridgeConfig `yaml:"bridge"`

	// Settings every conversation starts from
	Defaults DefaultsConfig `yaml:"defaults"`

	// Credentials handed to the agent in auto-approve mode
	GitHub GitHubConfig `yaml:"github"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DiscordConfig configures the Discord adapter.
type DiscordConfig struct {
	BotToken      string `yaml:"bot_token"`
	AllowedUserID string `yaml:"allowed_user_id"` // empty = anyone (warned at startup)

	// Auto-archive duration for task threads, in minutes
	ThreadAutoArchive int `yaml:"thread_auto_archive_minutes"`
}

// BackendConfig configures discovery of and calls to the language server.
type BackendConfig struct {
	Host string `yaml:"host"`

	// Port and Token skip process discovery when both are set
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`

	// Process discovery
	ProcessName string `yaml:"process_name"` // substring of the executable name
	TokenFlag   string `yaml:"token_flag"`   // command-line flag carrying the token

	AuthHeader  string `yaml:"auth_header"`
	CallTimeout string `yaml:"call_timeout"`
}

// DefaultsConfig seeds per-conversation settings.
type DefaultsConfig struct {
	Model       string `yaml:"model"` // display name from the model catalog
	Mode        string `yaml:"mode"`  // planning, fast
	AutoApprove bool   `yaml:"auto_approve"`
}

// GitHubConfig is only used to build the auto-approve instruction.
type GitHubConfig struct {
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "cascadebridge",

		Discord: DiscordConfig{
			ThreadAutoArchive: 60,
		},

		Backend: BackendConfig{
			Host:        "127.0.0.1",
			ProcessName: "language_server",
			TokenFlag:   "--csrf_token",
			AuthHeader:  "x-cursor-csrf-token",
			CallTimeout: "30s",
		},

		Bridge: BridgeConfig{
			PollInterval: "800ms",
			EditInterval: "1500ms",
			ChunkSize:    1900,
			TurnTimeout:  "30m",
			SessionLabel: "discord-bridge-session",
		},

		Defaults: DefaultsConfig{
			Model: models.Default().Display,
			Mode:  "planning",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultPath returns ~/.cascadebridge/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".cascadebridge", "config.yaml")
	}
	return filepath.Join(home, ".cascadebridge", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults when the file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Holds tokens
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		c.Discord.BotToken = v
	}
	if v := os.Getenv("DISCORD_ALLOWED_USER_ID"); v != "" {
		c.Discord.AllowedUserID = v
	}
	if v := os.Getenv("CASCADE_BACKEND_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Backend.Port = port
		}
	}
	if v := os.Getenv("CASCADE_BACKEND_TOKEN"); v != "" {
		c.Backend.Token = v
	}
	if v := os.Getenv("GITHUB_USERNAME"); v != "" {
		c.GitHub.Username = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
}

// HasStaticBackend reports whether the backend endpoint is configured
// explicitly, so no process discovery is needed.
func (c *Config) HasStaticBackend() bool {
	return c.Backend.Port > 0 && c.Backend.Token != ""
}

// GetCallTimeout returns the per-RPC timeout as a duration.
func (c *Config) GetCallTimeout() time.Duration {
	return parseDuration(c.Backend.CallTimeout, 30*time.Second)
}

// DefaultModel resolves Defaults.Model against the catalog.
func (c *Config) DefaultModel() models.Model {
	if m, ok := models.ByDisplay(c.Defaults.Model); ok {
		return m
	}
	return models.Default()
}

// DefaultMode resolves Defaults.Mode.
func (c *Config) DefaultMode() models.Mode {
	if m, ok := models.ParseMode(c.Defaults.Mode); ok {
		return m
	}
	return models.ModePlanning
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Backend.Port < 0 || c.Backend.Port > 65535 {
		return fmt.Errorf("backend.port out of range: %d", c.Backend.Port)
	}
	if strings.TrimSpace(c.Backend.AuthHeader) == "" {
		return fmt.Errorf("backend.auth_header must not be empty")
	}
	if c.Backend.Port == 0 && strings.TrimSpace(c.Backend.ProcessName) == "" {
		return fmt.Errorf("backend.process_name is required when backend.port is not set")
	}
	if _, err := time.ParseDuration(c.Backend.CallTimeout); c.Backend.CallTimeout != "" && err != nil {
		return fmt.Errorf("invalid backend.call_timeout %q: %w", c.Backend.CallTimeout, err)
	}
	if c.Defaults.Model != "" {
		if _, ok := models.ByDisplay(c.Defaults.Model); !ok {
			return fmt.Errorf("unknown defaults.model %q", c.Defaults.Model)
		}
	}
	if c.Defaults.Mode != "" {
		if _, ok := models.ParseMode(c.Defaults.Mode); !ok {
			return fmt.Errorf("invalid defaults.mode %q (valid: planning, fast)", c.Defaults.Mode)
		}
	}
	if err := c.ValidateBridgeLimits(); err != nil {
		return err
	}
	if _, err := c.Logging.Options(); err != nil {
		return err
	}
	return nil
}

// ValidateForDiscord checks what `serve` needs on top of Validate.
func (c *Config) ValidateForDiscord() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Discord.BotToken) == "" {
		return fmt.Errorf("discord bot token not configured (set discord.bot_token or DISCORD_BOT_TOKEN)")
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
