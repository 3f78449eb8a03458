// Package config handles the uispec project configuration.
//
// It provides functionality for:
//   - Finding and loading .uispec.config.json, uispec.config.json,
//     uispec.yaml or uispec.yml
//   - Default configuration values
//   - Merging file settings with command-line overrides
//   - Named environments of suite variables
package config
