package config

import (
	"fmt"
	"time"
)

// MessageLimit is the platform's per-message character ceiling.
const MessageLimit = 2000

// BridgeConfig bounds the reconcile loop.
type BridgeConfig struct {
	PollInterval string `yaml:"poll_interval"` // between step snapshots
	EditInterval string `yaml:"edit_interval"` // min gap between non-final flushes
	ChunkSize    int    `yaml:"chunk_size"`    // characters per outgoing message
	TurnTimeout  string `yaml:"turn_timeout"`  // 0 disables the deadline
	SessionLabel string `yaml:"session_label"` // metadata.sessionId sent to the backend
}

// ValidateBridgeLimits checks that loop limits are within acceptable ranges.
func (c *Config) ValidateBridgeLimits() error {
	if c.Bridge.ChunkSize < 100 || c.Bridge.ChunkSize > MessageLimit-10 {
		return fmt.Errorf("bridge.chunk_size must be between 100 and %d", MessageLimit-10)
	}
	for name, v := range map[string]string{
		"bridge.poll_interval": c.Bridge.PollInterval,
		"bridge.edit_interval": c.Bridge.EditInterval,
		"bridge.turn_timeout":  c.Bridge.TurnTimeout,
	} {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.GetPollInterval() < 50*time.Millisecond {
		return fmt.Errorf("bridge.poll_interval must be >= 50ms")
	}
	return nil
}

// GetPollInterval returns the poll interval as a duration.
func (c *Config) GetPollInterval() time.Duration {
	return parseDuration(c.Bridge.PollInterval, 800*time.Millisecond)
}

// GetEditInterval returns the edit rate limit window as a duration.
func (c *Config) GetEditInterval() time.Duration {
	return parseDuration(c.Bridge.EditInterval, 1500*time.Millisecond)
}

// GetTurnTimeout returns the turn deadline; zero means none.
func (c *Config) GetTurnTimeout() time.Duration {
	return parseDuration(c.Bridge.TurnTimeout, 0)
}

// GetSessionLabel returns the fixed logical session label.
func (c *Config) GetSessionLabel() string {
	if c.Bridge.SessionLabel == "" {
		return "discord-bridge-session"
	}
	return c.Bridge.SessionLabel
}
