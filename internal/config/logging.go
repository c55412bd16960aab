package config

import (
	"fmt"

	"cascadebridge/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // json, console
	File       string          `yaml:"file"`       // empty = stderr
	DebugMode  bool            `yaml:"debug_mode"` // forces debug level
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// Options converts the section into logging.Options.
func (c *LoggingConfig) Options() (logging.Options, error) {
	if _, err := logging.ParseLevel(c.Level); err != nil {
		return logging.Options{}, fmt.Errorf("invalid logging.level: %w", err)
	}
	switch c.Format {
	case "", "json", "console", "text":
	default:
		return logging.Options{}, fmt.Errorf("invalid logging.format %q (valid: json, console)", c.Format)
	}
	return logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		DebugMode:  c.DebugMode,
		Categories: c.Categories,
	}, nil
}
