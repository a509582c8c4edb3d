package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adhocore/gronx"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/akrambak/aegis-planner/internal/dispatch"
	"github.com/akrambak/aegis-planner/internal/policy"
	"github.com/akrambak/aegis-planner/internal/risk"
)

// Config root configuration
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Submit   SubmitConfig   `mapstructure:"submit"`
	Log      LogConfig      `mapstructure:"log"`
}

// StorageConfig locates the durable state directory.
type StorageConfig struct {
	Dir string `mapstructure:"dir"`
}

// RiskConfig holds the classifier prefix matrix.
type RiskConfig struct {
	Matrix risk.Matrix `mapstructure:"matrix"`
}

// PolicyConfig holds the ordered rule set and gate precedence.
type PolicyConfig struct {
	Rules []policy.Rule `mapstructure:"rules"`
	// HighRiskOverride forces approval for HIGH-risk tasks even when a
	// rule allows them.
	HighRiskOverride bool `mapstructure:"high_risk_override"`
}

// ApprovalConfig controls the human gate.
type ApprovalConfig struct {
	TimeoutSeconds      int `mapstructure:"timeout_seconds"`
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
}

// DispatchConfig controls executors.
type DispatchConfig struct {
	AllowList       []string          `mapstructure:"allow_list"`
	TimeoutSeconds  int               `mapstructure:"timeout_seconds"`
	CodeInterpreter string            `mapstructure:"code_interpreter"`
	WorkDir         string            `mapstructure:"work_dir"`
	WorkflowHooks   map[string]string `mapstructure:"workflow_hooks"`
}

// ChannelsConfig reviewer and alerting channel settings.
type ChannelsConfig struct {
	Slack    SlackConfig    `mapstructure:"slack"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

// SlackConfig incoming-webhook settings.
type SlackConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ApprovalWebhook string `mapstructure:"approval_webhook"`
	FailureWebhook  string `mapstructure:"failure_webhook"`
}

// TelegramConfig reviewer chat settings.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	ChatID  int64  `mapstructure:"chat_id"`
}

// WebhookConfig generic endpoint settings.
type WebhookConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ApprovalURL string `mapstructure:"approval_url"`
	FailureURL  string `mapstructure:"failure_url"`
}

// GatewayConfig server settings
type GatewayConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Token string `mapstructure:"token"`
}

// SweepConfig ticket-expiry sweeper settings.
type SweepConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"` // cron expression
}

// SubmitConfig submission defaults.
type SubmitConfig struct {
	DryRunDefault    bool   `mapstructure:"dry_run_default"`
	DefaultRequester string `mapstructure:"default_requester"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Dir: ConfigDir(),
		},
		Risk: RiskConfig{
			Matrix: risk.DefaultMatrix(),
		},
		Policy: PolicyConfig{
			Rules:            policy.DefaultRules(),
			HighRiskOverride: true,
		},
		Approval: ApprovalConfig{
			TimeoutSeconds:      3600,
			PollIntervalSeconds: 2,
		},
		Dispatch: DispatchConfig{
			AllowList:      dispatch.DefaultAllowList(),
			TimeoutSeconds: 60,
			WorkflowHooks:  map[string]string{},
		},
		Channels: ChannelsConfig{},
		Gateway: GatewayConfig{
			Host:  "0.0.0.0",
			Port:  18590,
			Token: "",
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Schedule: "* * * * *",
		},
		Submit: SubmitConfig{
			DryRunDefault:    true,
			DefaultRequester: "system",
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigDir returns the aegis config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".aegis")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads config from an explicit path, creating it with defaults
// when missing.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(configPath, cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("AEGIS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to the default path
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo saves config to an explicit path
func SaveTo(configPath string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Dir) == "" {
		c.Storage.Dir = ConfigDir()
	}

	if c.Approval.TimeoutSeconds < 0 {
		return fmt.Errorf("approval.timeout_seconds must not be negative, got %d", c.Approval.TimeoutSeconds)
	}
	if c.Approval.TimeoutSeconds == 0 {
		c.Approval.TimeoutSeconds = 3600
	}
	if c.Approval.PollIntervalSeconds < 0 {
		return fmt.Errorf("approval.poll_interval_seconds must not be negative, got %d", c.Approval.PollIntervalSeconds)
	}
	if c.Approval.PollIntervalSeconds == 0 {
		c.Approval.PollIntervalSeconds = 2
	}

	if c.Dispatch.TimeoutSeconds < 0 {
		return fmt.Errorf("dispatch.timeout_seconds must not be negative, got %d", c.Dispatch.TimeoutSeconds)
	}
	if c.Dispatch.TimeoutSeconds == 0 {
		c.Dispatch.TimeoutSeconds = 60
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}

	if c.Channels.Telegram.Enabled {
		if strings.TrimSpace(c.Channels.Telegram.Token) == "" {
			return fmt.Errorf("channels.telegram.token is required when telegram is enabled")
		}
		if c.Channels.Telegram.ChatID == 0 {
			return fmt.Errorf("channels.telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Sweep.Enabled {
		schedule := strings.TrimSpace(c.Sweep.Schedule)
		if schedule == "" {
			c.Sweep.Schedule = "* * * * *"
		} else if !gronx.New().IsValid(schedule) {
			return fmt.Errorf("sweep.schedule is not a valid cron expression: %q", schedule)
		}
	}

	for _, rule := range c.Policy.Rules {
		if strings.TrimSpace(rule.Name) == "" {
			return fmt.Errorf("policy rules require a name")
		}
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	return nil
}
