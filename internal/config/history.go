package config

import (
	"fmt"
	"time"
)

// HistoryConfig controls the episode/event history database and its cleanup
type HistoryConfig struct {
	// Path is the SQLite file; empty disables history entirely
	Path string `yaml:"path"`

	// RetentionDays is how long episodes and events are kept
	// Default: 30, Range: 1-365
	RetentionDays int `yaml:"retention_days" validate:"omitempty,min=1,max=365"`

	// CleanupInterval is how often old rows are pruned
	// Default: 24h
	CleanupInterval Duration `yaml:"cleanup_interval"`

	// CleanupEnabled controls whether pruning runs at all
	// Default: true
	CleanupEnabled bool `yaml:"cleanup_enabled"`
}

// DefaultHistoryConfig returns the default history configuration
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Path:            "~/.claude-watchdog/history.db",
		RetentionDays:   30,
		CleanupInterval: Duration(24 * time.Hour),
		CleanupEnabled:  true,
	}
}

// Enabled reports whether history should be recorded
func (c HistoryConfig) Enabled() bool {
	return c.Path != ""
}

// Retention returns the retention window as a duration
func (c HistoryConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Validate checks if the configuration has valid values
func (c HistoryConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		return fmt.Errorf("history.retention_days must be between 1 and 365 (got %d)", c.RetentionDays)
	}
	if c.CleanupEnabled {
		if c.CleanupInterval.Std() < time.Hour {
			return fmt.Errorf("history.cleanup_interval must be at least 1h (got %s)", c.CleanupInterval)
		}
		if c.CleanupInterval.Std() > 7*24*time.Hour {
			return fmt.Errorf("history.cleanup_interval too large (got %s, max 168h)", c.CleanupInterval)
		}
	}
	return nil
}

// String returns a human-readable representation of the config
func (c HistoryConfig) String() string {
	return fmt.Sprintf("HistoryConfig{Path: %q, RetentionDays: %d, CleanupInterval: %s, Enabled: %t}",
		c.Path, c.RetentionDays, c.CleanupInterval, c.CleanupEnabled)
}

// applyHistoryEnv overlays history-specific environment variables
func applyHistoryEnv(c *HistoryConfig) error {
	if err := parseEnvInt("WATCHDOG_HISTORY_RETENTION_DAYS", &c.RetentionDays); err != nil {
		return err
	}
	if err := parseEnvBool("WATCHDOG_HISTORY_CLEANUP_ENABLED", &c.CleanupEnabled); err != nil {
		return err
	}
	return parseEnvDuration("WATCHDOG_HISTORY_CLEANUP_INTERVAL", &c.CleanupInterval)
}
