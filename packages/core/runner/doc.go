// Package runner executes uispec suite files against a browser.
//
// It provides functionality for:
//   - Filtering scenarios by name, tag, only and skip markers
//   - Giving every scenario its own page, intercept rules and session
//   - Executing steps strictly in order with bounded waits
//   - Failing a scenario on the first unmocked request
//   - Parallel scenario execution with configurable concurrency
//   - Summarizing wait latency percentiles
//
// A failing scenario never stops the others unless bail is set.
package runner
