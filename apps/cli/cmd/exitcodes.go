package cmd

// Exit codes for uispec CLI
const (
	// ExitSuccess indicates all scenarios passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more scenarios failed
	ExitTestFailure = 1

	// ExitParseError indicates a suite file could not be parsed or validated
	ExitParseError = 2

	// ExitConfigError indicates a configuration or fixture error
	ExitConfigError = 3

	// ExitBrowserError indicates the browser could not be launched or reached
	ExitBrowserError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
