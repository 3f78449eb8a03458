// Package scenario reads uispec suite files.
//
// A suite is a YAML document holding the shared setup of a group of
// scenarios (base URL, intercept rules, session seeding, selector aliases and
// modal definitions) followed by the scenarios themselves. Each scenario is an
// ordered list of steps, and each step is exactly one of:
//   - visit: navigate to a path
//   - click: interact with a target
//   - assert: wait for a predicate on a target
//   - modal: open, close or bypass a named modal
//   - request: check how often an endpoint was called
//
// Targets name a selector alias or are raw CSS.
package scenario
