package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultEnvironment: "local",
		Timeout:            4000,  // 4 seconds per wait
		ScenarioTimeout:    60000, // 1 minute per scenario
		PollInterval:       50,
		Unmocked:           "fail",
		Reporters:          []string{"console"},
		Concurrency:        4,
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	d := DefaultConfig()
	return c.BaseURL == d.BaseURL &&
		c.DefaultEnvironment == d.DefaultEnvironment &&
		c.Timeout == d.Timeout &&
		c.ScenarioTimeout == d.ScenarioTimeout &&
		c.PollInterval == d.PollInterval &&
		c.Unmocked == d.Unmocked &&
		c.Scope == nil &&
		c.Headless == nil &&
		c.NoSandbox == nil &&
		c.Browser == "" &&
		c.ControlURL == "" &&
		c.SlowMotion == 0 &&
		len(c.Reporters) == 1 && c.Reporters[0] == "console" &&
		len(c.Variables) == 0 &&
		len(c.Environments) == 0 &&
		c.OutputDir == "" &&
		c.Parallel == nil &&
		c.Concurrency == d.Concurrency &&
		c.Bail == nil &&
		c.Verbose == nil &&
		c.NoColor == nil &&
		c.History == "" &&
		c.Notify == nil
}
