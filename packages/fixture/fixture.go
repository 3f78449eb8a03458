// Package fixture loads the named JSON payloads that stand in for backend
// responses during a scenario.
//
// A fixture file is either a plain JSON body or a response envelope:
//
//	{"statusCode": 201, "headers": {"X-Trace": "1"}, "body": {...}}
//
// Fixtures are immutable once loaded: accessors hand out copies.
package fixture

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// DefaultContentType is used when a fixture does not set one.
const DefaultContentType = "application/json"

// Fixture is a named, read-only response payload.
type Fixture struct {
	name        string
	body        []byte
	status      int
	contentType string
	headers     map[string]string
	parsed      gjson.Result
}

// Option customizes a fixture built with New.
type Option func(*Fixture)

// WithStatus overrides the default 200 status.
func WithStatus(status int) Option {
	return func(f *Fixture) {
		f.status = status
	}
}

// WithHeader adds a response header.
func WithHeader(key, value string) Option {
	return func(f *Fixture) {
		if http.CanonicalHeaderKey(key) == "Content-Type" {
			f.contentType = value
			return
		}
		f.headers[http.CanonicalHeaderKey(key)] = value
	}
}

// New builds a fixture from a raw body.
func New(name string, body []byte, opts ...Option) *Fixture {
	f := &Fixture{
		name:        name,
		body:        bytes.Clone(body),
		status:      http.StatusOK,
		contentType: DefaultContentType,
		headers:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	if gjson.ValidBytes(f.body) {
		f.parsed = gjson.ParseBytes(f.body)
	}
	return f
}

// Parse builds a fixture from file contents, unwrapping a response envelope
// when present.
func Parse(name string, data []byte) (*Fixture, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("fixture %s: invalid JSON", name)
	}

	root := gjson.ParseBytes(data)
	if !isEnvelope(root) {
		return New(name, data), nil
	}

	var opts []Option
	if status := root.Get("statusCode").Int(); status > 0 {
		opts = append(opts, WithStatus(int(status)))
	}
	root.Get("headers").ForEach(func(key, value gjson.Result) bool {
		opts = append(opts, WithHeader(key.String(), value.String()))
		return true
	})

	body := root.Get("body")
	if body.Type == gjson.String {
		f := New(name, []byte(body.String()), opts...)
		if _, ok := headerSet(root, "Content-Type"); !ok {
			f.contentType = "text/plain; charset=utf-8"
		}
		return f, nil
	}
	return New(name, []byte(body.Raw), opts...), nil
}

func isEnvelope(root gjson.Result) bool {
	return root.IsObject() && root.Get("statusCode").Exists() && root.Get("body").Exists()
}

func headerSet(root gjson.Result, key string) (string, bool) {
	var found string
	ok := false
	root.Get("headers").ForEach(func(k, v gjson.Result) bool {
		if http.CanonicalHeaderKey(k.String()) == key {
			found, ok = v.String(), true
			return false
		}
		return true
	})
	return found, ok
}

// Name returns the fixture name.
func (f *Fixture) Name() string { return f.name }

// Status returns the response status code.
func (f *Fixture) Status() int { return f.status }

// ContentType returns the response content type.
func (f *Fixture) ContentType() string { return f.contentType }

// Body returns a copy of the payload.
func (f *Fixture) Body() []byte { return bytes.Clone(f.body) }

// Headers returns a copy of the extra response headers.
func (f *Fixture) Headers() map[string]string {
	out := make(map[string]string, len(f.headers))
	for k, v := range f.headers {
		out[k] = v
	}
	return out
}

// Get queries the payload with a gjson path.
func (f *Fixture) Get(path string) gjson.Result {
	return f.parsed.Get(path)
}

// String returns the value at path, or an error when it is absent.
func (f *Fixture) String(path string) (string, error) {
	res := f.Get(path)
	if !res.Exists() {
		return "", fmt.Errorf("fixture %s: no value at %q", f.name, path)
	}
	return res.String(), nil
}
