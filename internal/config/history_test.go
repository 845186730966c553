package config

import (
	"strings"
	"testing"
	"time"
)

func TestHistoryConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*HistoryConfig)
		wantErr string
	}{
		{name: "defaults are valid", modify: func(c *HistoryConfig) {}},
		{name: "disabled skips checks", modify: func(c *HistoryConfig) { c.Path = ""; c.RetentionDays = 0 }},
		{name: "retention too small", modify: func(c *HistoryConfig) { c.RetentionDays = 0 }, wantErr: "retention_days"},
		{name: "retention too large", modify: func(c *HistoryConfig) { c.RetentionDays = 400 }, wantErr: "retention_days"},
		{name: "interval too small", modify: func(c *HistoryConfig) { c.CleanupInterval = Duration(time.Minute) }, wantErr: "at least 1h"},
		{name: "interval too large", modify: func(c *HistoryConfig) { c.CleanupInterval = Duration(200 * time.Hour) }, wantErr: "too large"},
		{name: "interval ignored when cleanup disabled", modify: func(c *HistoryConfig) {
			c.CleanupEnabled = false
			c.CleanupInterval = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultHistoryConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestHistoryConfigRetention(t *testing.T) {
	cfg := DefaultHistoryConfig()
	if got := cfg.Retention(); got != 30*24*time.Hour {
		t.Errorf("Retention() = %v, want 720h", got)
	}
}

func TestApplyHistoryEnv(t *testing.T) {
	t.Setenv("WATCHDOG_HISTORY_RETENTION_DAYS", "7")
	t.Setenv("WATCHDOG_HISTORY_CLEANUP_ENABLED", "false")

	cfg := DefaultHistoryConfig()
	if err := applyHistoryEnv(&cfg); err != nil {
		t.Fatalf("applyHistoryEnv: %v", err)
	}
	if cfg.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d, want 7", cfg.RetentionDays)
	}
	if cfg.CleanupEnabled {
		t.Error("CleanupEnabled should be false")
	}

	t.Setenv("WATCHDOG_HISTORY_CLEANUP_ENABLED", "maybe")
	if err := applyHistoryEnv(&cfg); err == nil {
		t.Error("expected error for invalid bool")
	}
}
