package builtin

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/fixture"
	"github.com/google/uuid"
)

// Func evaluates a call with its parsed arguments.
type Func func(args []string) (any, error)

// Registry maps function names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
	now   func() time.Time
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		now:   time.Now,
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = func([]string) (any, error) { return r.now().UTC().Format(time.RFC3339), nil }
	r.funcs["timestamp"] = func([]string) (any, error) { return r.now().Unix(), nil }
	r.funcs["date"] = r.funcDate
	r.funcs["uuid"] = funcUUID
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["base64"] = funcBase64
	r.funcs["urlEncode"] = funcURLEncode
	r.funcs["env"] = funcEnv
}

// Register adds or replaces a function.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Names returns the registered function names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates expr. ok is false when expr is not a call to a registered
// function.
func (r *Registry) Call(expr string) (result any, ok bool, err error) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return nil, false, nil
	}

	r.mu.RLock()
	fn, found := r.funcs[matches[1]]
	r.mu.RUnlock()
	if !found {
		return nil, false, nil
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}
	result, err = fn(args)
	if err != nil {
		return nil, true, fmt.Errorf("%s(): %w", matches[1], err)
	}
	return result, true, nil
}

// parseArgs splits on commas outside single or double quotes.
func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

// Fixture returns fixture(name, path), which reads a gjson path from a
// fixture in store. It lets assertions quote the data the page was fed.
func Fixture(store *fixture.Store) Func {
	return func(args []string) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("want 2 arguments (name, path), got %d", len(args))
		}
		f, err := store.Load(args[0])
		if err != nil {
			return nil, err
		}
		return f.String(args[1])
	}
}

func (r *Registry) funcDate(args []string) (any, error) {
	layout := "2006-01-02"
	if len(args) >= 1 {
		layout = args[0]
	}
	return r.now().UTC().Format(layout), nil
}

func funcUUID([]string) (any, error) {
	return uuid.NewString(), nil
}

func funcRandom(args []string) (any, error) {
	lo, hi := 0, 100
	if len(args) >= 2 {
		var err error
		if lo, err = strconv.Atoi(args[0]); err != nil {
			return nil, fmt.Errorf("min %q is not an integer", args[0])
		}
		if hi, err = strconv.Atoi(args[1]); err != nil {
			return nil, fmt.Errorf("max %q is not an integer", args[1])
		}
	}
	if hi < lo {
		return nil, fmt.Errorf("max %d is below min %d", hi, lo)
	}
	return rand.Intn(hi-lo+1) + lo, nil
}

func funcRandomString(args []string) (any, error) {
	length := 16
	if len(args) >= 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return nil, fmt.Errorf("length %q is not a non-negative integer", args[0])
		}
		length = v
	}
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b), nil
}

func funcBase64(args []string) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0])), nil
}

func funcURLEncode(args []string) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	return url.QueryEscape(args[0]), nil
}

func funcEnv(args []string) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("missing variable name")
	}
	if v, ok := os.LookupEnv(args[0]); ok {
		return v, nil
	}
	if len(args) >= 2 {
		return args[1], nil
	}
	return nil, fmt.Errorf("%s is not set", args[0])
}
