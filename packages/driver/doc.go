// Package driver issues DOM queries and interactions against a rendered page
// and asserts on the state that follows.
//
// Rendering is not synchronous with the interaction or network response that
// triggers it, so every query polls up to a bounded timeout:
//   - Visit navigates to a path under the base URL and waits for the load
//   - Find waits until a selector matches the wanted number of elements
//   - Interact finds its target and performs an action (click, forced click)
//   - Assert waits until a predicate holds (exists, count, contains, ...)
//
// Selectors prefer a stable data-testid and fall back to structural CSS.
// Assertions are existence based: markup that is unmounted has zero matches.
package driver
