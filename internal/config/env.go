package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables that override values from the config file
const (
	EnvTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID    = "TELEGRAM_CHAT_ID"
	EnvCheckInterval     = "WATCHDOG_CHECK_INTERVAL"
	EnvMaxSimpleRestarts = "WATCHDOG_MAX_SIMPLE_RESTARTS"
	EnvLogLevel          = "WATCHDOG_LOG_LEVEL"
	EnvHistoryPath       = "WATCHDOG_HISTORY_DB"
	EnvAgentType         = "WATCHDOG_AGENT"
)

// ApplyEnv overlays environment variables onto cfg.
// Environment values take priority over the file, matching how credentials
// are usually injected by service managers.
func ApplyEnv(cfg *Config) error {
	parseEnvString(EnvTelegramBotToken, &cfg.Telegram.BotToken)
	parseEnvString(EnvTelegramChatID, &cfg.Telegram.ChatID)
	parseEnvString(EnvLogLevel, &cfg.Logging.Level)
	parseEnvString(EnvHistoryPath, &cfg.History.Path)
	parseEnvString(EnvAgentType, &cfg.Agent.Type)

	if err := parseEnvInt(EnvMaxSimpleRestarts, &cfg.MaxSimpleRestarts); err != nil {
		return err
	}
	if err := parseEnvDuration(EnvCheckInterval, &cfg.CheckInterval); err != nil {
		return err
	}
	return applyHistoryEnv(&cfg.History)
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration parses a Duration from an environment variable
func parseEnvDuration(key string, dest *Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := parseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = Duration(parsed)
	return nil
}

// parseEnvString copies a non-empty environment variable into dest
func parseEnvString(key string, dest *string) {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
}
