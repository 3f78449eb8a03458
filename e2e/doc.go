//go:build e2e

// Package e2e runs the burger constructor suite in a real Chrome.
//
// These tests are isolated from the standard test suite via build tags.
// They need Chrome: UISPEC_CHROME_BIN, or one downloaded by Rod.
//
//	go test -tags=e2e ./e2e/...
//
// By default every test serves a small burger constructor front-end from
// testdata on a random port. Set UISPEC_E2E_BASE_URL to run the example
// suite against another deployment instead.
package e2e
