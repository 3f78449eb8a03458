package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the uispec configuration. Durations are milliseconds.
type Config struct {
	BaseURL            string                    `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	DefaultEnvironment string                    `json:"defaultEnvironment,omitempty" yaml:"defaultEnvironment,omitempty"`
	Environments       map[string]map[string]any `json:"environments,omitempty" yaml:"environments,omitempty"`
	Variables          map[string]any            `json:"variables,omitempty" yaml:"variables,omitempty"`
	Timeout            int                       `json:"timeout,omitempty" yaml:"timeout,omitempty"`                 // per wait
	ScenarioTimeout    int                       `json:"scenarioTimeout,omitempty" yaml:"scenarioTimeout,omitempty"` // whole scenario
	PollInterval       int                       `json:"pollInterval,omitempty" yaml:"pollInterval,omitempty"`
	Unmocked           string                    `json:"unmocked,omitempty" yaml:"unmocked,omitempty"`
	Scope              *string                   `json:"scope,omitempty" yaml:"scope,omitempty"`
	Headless           *bool                     `json:"headless,omitempty" yaml:"headless,omitempty"`
	NoSandbox          *bool                     `json:"noSandbox,omitempty" yaml:"noSandbox,omitempty"`
	Browser            string                    `json:"browser,omitempty" yaml:"browser,omitempty"`       // Chrome binary
	ControlURL         string                    `json:"controlUrl,omitempty" yaml:"controlUrl,omitempty"` // existing DevTools endpoint
	SlowMotion         int                       `json:"slowMotion,omitempty" yaml:"slowMotion,omitempty"`
	Reporters          []string                  `json:"reporters,omitempty" yaml:"reporters,omitempty"`
	OutputDir          string                    `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
	Parallel           *bool                     `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	Concurrency        int                       `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	Bail               *bool                     `json:"bail,omitempty" yaml:"bail,omitempty"`
	Verbose            *bool                     `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor            *bool                     `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	History            string                    `json:"history,omitempty" yaml:"history,omitempty"` // SQLite file
	Notify             *NotifyConfig             `json:"notify,omitempty" yaml:"notify,omitempty"`
}

// NotifyConfig configures run notifications.
type NotifyConfig struct {
	On           string `json:"on,omitempty" yaml:"on,omitempty"` // always, failure, success, recovery
	SlackWebhook string `json:"slackWebhook,omitempty" yaml:"slackWebhook,omitempty"`
	SlackChannel string `json:"slackChannel,omitempty" yaml:"slackChannel,omitempty"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetHeadless returns the headless setting, defaulting to true
func (c *Config) GetHeadless() bool {
	return getBool(c.Headless, true)
}

// GetNoSandbox returns the no-sandbox setting, defaulting to true
func (c *Config) GetNoSandbox() bool {
	return getBool(c.NoSandbox, true)
}

// GetParallel returns the parallel setting, defaulting to false
func (c *Config) GetParallel() bool {
	return getBool(c.Parallel, false)
}

// GetBail returns the bail setting, defaulting to false
func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration returns the per-wait bound.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// ScenarioTimeoutDuration returns the bound on a whole scenario.
func (c *Config) ScenarioTimeoutDuration() time.Duration {
	return time.Duration(c.ScenarioTimeout) * time.Millisecond
}

// PollIntervalDuration returns the delay between DOM polls.
func (c *Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

// ConfigFilenames contains the possible config file names, in lookup order
var ConfigFilenames = []string{
	".uispec.config.json",
	"uispec.config.json",
	"uispec.yaml",
	"uispec.yml",
}

// IsConfigFile reports whether path is named like a config file.
func IsConfigFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range ConfigFilenames {
		if base == name {
			return true
		}
	}
	return false
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Validate checks values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Unmocked) {
	case "", "fail", "strict", "passthrough", "pass":
	default:
		return fmt.Errorf("unmocked must be fail or passthrough, got %q", c.Unmocked)
	}
	if c.Timeout < 0 || c.ScenarioTimeout < 0 || c.PollInterval < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	if c.Notify != nil {
		switch c.Notify.On {
		case "", "always", "failure", "success", "recovery":
		default:
			return fmt.Errorf("notify.on must be always, failure, success or recovery, got %q", c.Notify.On)
		}
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.ScenarioTimeout > 0 {
		result.ScenarioTimeout = other.ScenarioTimeout
	}
	if other.PollInterval > 0 {
		result.PollInterval = other.PollInterval
	}
	if other.Unmocked != "" {
		result.Unmocked = other.Unmocked
	}
	if other.Browser != "" {
		result.Browser = other.Browser
	}
	if other.ControlURL != "" {
		result.ControlURL = other.ControlURL
	}
	if other.SlowMotion > 0 {
		result.SlowMotion = other.SlowMotion
	}
	if other.OutputDir != "" {
		result.OutputDir = other.OutputDir
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.History != "" {
		result.History = other.History
	}
	if other.Notify != nil {
		result.Notify = other.Notify
	}

	// Pointer fields - only override if explicitly set in other config
	if other.Scope != nil {
		result.Scope = other.Scope
	}
	if other.Headless != nil {
		result.Headless = other.Headless
	}
	if other.NoSandbox != nil {
		result.NoSandbox = other.NoSandbox
	}
	if other.Parallel != nil {
		result.Parallel = other.Parallel
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Variables) > 0 {
		vars := make(map[string]any, len(result.Variables)+len(other.Variables))
		for k, v := range result.Variables {
			vars[k] = v
		}
		for k, v := range other.Variables {
			vars[k] = v
		}
		result.Variables = vars
	}
	if len(other.Environments) > 0 {
		envs := make(map[string]map[string]any, len(result.Environments)+len(other.Environments))
		for k, v := range result.Environments {
			envs[k] = v
		}
		for k, v := range other.Environments {
			envs[k] = v
		}
		result.Environments = envs
	}
	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}

	return &result
}

// SaveConfig writes the configuration, as YAML or JSON by extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
