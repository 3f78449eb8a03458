// Package builtin provides the functions available inside {{...}}
// expressions in suite files.
//
// Available functions:
//   - uuid(): random UUID v4
//   - now(): current time in RFC 3339
//   - timestamp(): current Unix timestamp
//   - date(layout): current UTC date, 2006-01-02 by default
//   - random(min, max): random integer in range
//   - randomString(length): random alphanumeric string
//   - base64(value), urlEncode(value)
//   - env(name, default): environment variable with a fallback
//   - fixture(name, path): a value read from a fixture file, registered
//     per suite with Fixture
package builtin
