// Package config loads and validates watchdog configuration.
//
// The file is YAML; JSON files written for earlier versions parse unchanged
// since JSON is a YAML subset. Environment variables override file values
// (see ApplyEnv). The resulting Config is read-only after Load returns and is
// shared freely between service loops.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/f1re/watchdog/internal/types"
)

// ErrNoServices is returned when the configuration names no services to monitor
var ErrNoServices = errors.New("no services configured")

// Agent kinds accepted in agent.type
const (
	AgentClaudeCode = "claude-code"
	AgentAnalyst    = "analyst"
	AgentNone       = "none"
)

// Config is the complete watchdog configuration
type Config struct {
	CheckInterval     Duration `yaml:"check_interval" validate:"gt=0"`
	MaxSimpleRestarts int      `yaml:"max_simple_restarts" validate:"min=0,max=100"`

	// SettleDelay is the pause after a restart before re-probing
	SettleDelay        Duration `yaml:"settle_delay"`
	ProbeTimeout       Duration `yaml:"probe_timeout" validate:"gt=0"`
	RestartTimeout     Duration `yaml:"restart_timeout" validate:"gt=0"`
	DiagnosticsTimeout Duration `yaml:"diagnostics_timeout" validate:"gt=0"`
	AgentTimeout       Duration `yaml:"agent_timeout" validate:"gt=0"`
	NotifyTimeout      Duration `yaml:"notify_timeout" validate:"gt=0"`
	ShutdownGrace      Duration `yaml:"shutdown_grace" validate:"gt=0"`

	// FailedCooldown, when non-zero, lets a service stuck in Failed start a
	// fresh episode (and so a fresh escalation) after this long. Zero never re-escalates.
	FailedCooldown Duration `yaml:"failed_cooldown"`

	LogTailLines int `yaml:"log_tail_lines" validate:"min=1,max=10000"`
	LogTailBytes int `yaml:"log_tail_bytes" validate:"min=1024"`

	// DefaultSupervisor is used for services that set a plain label
	DefaultSupervisor string `yaml:"default_supervisor" validate:"omitempty,oneof=systemd launchd"`

	Agent       AgentConfig    `yaml:"agent"`
	Telegram    TelegramConfig `yaml:"telegram"`
	Logging     LoggingConfig  `yaml:"logging"`
	History     HistoryConfig  `yaml:"history"`
	MetricsAddr string         `yaml:"metrics_addr"`
	// ControlSocket is the unix socket "watchdog status" talks to; empty disables it
	ControlSocket string                   `yaml:"control_socket"`
	Services      map[string]ServiceConfig `yaml:"services" validate:"dive"`
}

// AgentConfig selects and configures the escalation agent
type AgentConfig struct {
	Type       string   `yaml:"type" validate:"omitempty,oneof=claude-code analyst none"`
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
	WorkingDir string   `yaml:"working_dir"`
	Model      string   `yaml:"model"`
	// MaxOutputBytes bounds how much agent output is retained
	MaxOutputBytes int `yaml:"max_output_bytes" validate:"omitempty,min=1024"`
}

// TelegramConfig holds Telegram bot credentials
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	APIURL   string `yaml:"api_url" validate:"omitempty,url"`
}

// Enabled reports whether both credentials are present
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// LoggingConfig configures the process logger
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
	// File additionally writes logs to this path when set
	File string `yaml:"file"`
}

// ServiceConfig is one entry under services
type ServiceConfig struct {
	Backend    string `yaml:"backend" validate:"omitempty,oneof=supervisor custom"`
	Supervisor string `yaml:"supervisor" validate:"omitempty,oneof=systemd launchd"`
	Label      string `yaml:"label"`
	// LaunchdLabel and SystemdUnit set the label and supervisor in one key
	LaunchdLabel       string `yaml:"launchd_label"`
	SystemdUnit        string `yaml:"systemd_unit"`
	Port               int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	LogFile            string `yaml:"log_file"`
	HealthCheckCommand string `yaml:"health_check_command"`
	RestartCommand     string `yaml:"restart_command"`
}

// DefaultConfig returns a configuration with every default applied and no services
func DefaultConfig() *Config {
	return &Config{
		CheckInterval:      Duration(30 * time.Second),
		MaxSimpleRestarts:  3,
		SettleDelay:        Duration(5 * time.Second),
		ProbeTimeout:       Duration(10 * time.Second),
		RestartTimeout:     Duration(30 * time.Second),
		DiagnosticsTimeout: Duration(10 * time.Second),
		AgentTimeout:       Duration(10 * time.Minute),
		NotifyTimeout:      Duration(10 * time.Second),
		ShutdownGrace:      Duration(30 * time.Second),
		LogTailLines:       30,
		LogTailBytes:       64 * 1024,
		DefaultSupervisor:  string(defaultSupervisor()),
		Agent: AgentConfig{
			Type:           AgentClaudeCode,
			Command:        "claude",
			Args:           []string{"-p", "--allowedTools", "Bash,Read,Edit,Glob"},
			MaxOutputBytes: 256 * 1024,
		},
		Telegram:      TelegramConfig{APIURL: "https://api.telegram.org"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
		History:       DefaultHistoryConfig(),
		ControlSocket: "~/.claude-watchdog/watchdog.sock",
		Services:      map[string]ServiceConfig{},
	}
}

func defaultSupervisor() types.SupervisorKind {
	if runtime.GOOS == "darwin" {
		return types.SupervisorLaunchd
	}
	return types.SupervisorSystemd
}

// DefaultPath returns ~/.claude-watchdog/config.yaml, or config.json in the
// same directory when only the legacy file exists
func DefaultPath() string {
	dir := ExpandHome("~/.claude-watchdog")
	yamlPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(yamlPath); err != nil {
		jsonPath := filepath.Join(dir, "config.json")
		if _, err := os.Stat(jsonPath); err == nil {
			return jsonPath
		}
	}
	return yamlPath
}

// Load reads path, applies environment overrides and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes raw YAML (or JSON) on top of the defaults, applies
// environment overrides and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize fills values that depend on other fields
func (c *Config) normalize() {
	if c.ProbeTimeout > c.CheckInterval {
		c.ProbeTimeout = c.CheckInterval
	}
	if c.DefaultSupervisor == "" {
		c.DefaultSupervisor = string(defaultSupervisor())
	}
	if c.Agent.Type == "" {
		c.Agent.Type = AgentClaudeCode
	}
	c.History.Path = ExpandHome(c.History.Path)
	c.Logging.File = ExpandHome(c.Logging.File)
	c.Agent.WorkingDir = ExpandHome(c.Agent.WorkingDir)
	c.ControlSocket = ExpandHome(c.ControlSocket)
}

// Validate checks struct constraints and cross-field rules
func (c *Config) Validate() error {
	if len(c.Services) == 0 {
		return ErrNoServices
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.SettleDelay.Std() >= c.CheckInterval.Std() {
		return fmt.Errorf("settle_delay (%s) must be shorter than check_interval (%s)", c.SettleDelay, c.CheckInterval)
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	if c.Agent.Type == AgentClaudeCode && strings.TrimSpace(c.Agent.Command) == "" {
		return fmt.Errorf("agent.command is required for agent type %s", AgentClaudeCode)
	}
	if _, err := c.ServiceSpecs(); err != nil {
		return err
	}
	return nil
}

// ServiceSpecs converts the services map to specs sorted by name
func (c *Config) ServiceSpecs() ([]types.ServiceSpec, error) {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]types.ServiceSpec, 0, len(names))
	for _, name := range names {
		spec, err := c.Services[name].resolve(name, types.SupervisorKind(c.DefaultSupervisor))
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// resolve turns a service entry into a ServiceSpec, inferring backend and
// supervisor from whichever label key is present
func (s ServiceConfig) resolve(name string, fallback types.SupervisorKind) (types.ServiceSpec, error) {
	spec := types.ServiceSpec{
		Name:               name,
		Port:               s.Port,
		LogFile:            ExpandHome(s.LogFile),
		HealthCheckCommand: s.HealthCheckCommand,
		RestartCommand:     s.RestartCommand,
		Supervisor:         types.SupervisorKind(s.Supervisor),
	}

	switch {
	case s.Label != "":
		spec.Label = s.Label
	case s.LaunchdLabel != "" && s.SystemdUnit != "":
		// Both present: the config is shared across machines, use the local one
		if fallback == types.SupervisorLaunchd {
			spec.Label, spec.Supervisor = s.LaunchdLabel, types.SupervisorLaunchd
		} else {
			spec.Label, spec.Supervisor = s.SystemdUnit, types.SupervisorSystemd
		}
	case s.LaunchdLabel != "":
		spec.Label, spec.Supervisor = s.LaunchdLabel, types.SupervisorLaunchd
	case s.SystemdUnit != "":
		spec.Label, spec.Supervisor = s.SystemdUnit, types.SupervisorSystemd
	}
	if spec.Supervisor == "" {
		spec.Supervisor = fallback
	}

	switch {
	case s.Backend != "":
		spec.Backend = types.BackendKind(s.Backend)
	case spec.Label != "":
		spec.Backend = types.BackendSupervisor
	default:
		spec.Backend = types.BackendCustom
	}
	if spec.Backend == types.BackendCustom {
		spec.Supervisor = ""
	}

	if err := spec.Validate(); err != nil {
		return types.ServiceSpec{}, err
	}
	return spec, nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Marshal renders cfg as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteDefault writes an example configuration to path, refusing to overwrite
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

const exampleConfig = `# Watchdog configuration
check_interval: 30s
max_simple_restarts: 3
settle_delay: 5s
agent_timeout: 10m
# failed_cooldown: 1h   # re-escalate services stuck in failed after this long

agent:
  type: claude-code     # claude-code | analyst | none
  command: claude

# metrics_addr: 127.0.0.1:9464
control_socket: ~/.claude-watchdog/watchdog.sock

telegram:
  bot_token: ""         # or TELEGRAM_BOT_TOKEN
  chat_id: ""           # or TELEGRAM_CHAT_ID

services:
  my-api:
    systemd_unit: my-api.service
    port: 8080
    log_file: /var/log/my-api.log
  my-worker:
    health_check_command: "curl -fsS http://localhost:9000/health"
    restart_command: "docker restart my-worker"
`
