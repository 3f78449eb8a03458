// Package cmd implements the uispec CLI commands using Cobra.
//
// Available commands:
//   - run: Execute browser scenarios from suite files
//   - validate: Check suites and their fixtures without a browser
//   - list: Display all scenarios defined in suites
//   - mock: Serve a suite's intercepts over HTTP
//   - history: Show recorded runs and flaky scenarios
//   - init: Scaffold an example suite with fixtures
//   - version: Show uispec version information
//
// Flags fall back to UISPEC_* environment variables, then to the config
// file, so the same suite runs unchanged locally and in CI.
package cmd
