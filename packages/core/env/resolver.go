package env

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/uispec/packages/builtin"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc receives warnings such as unresolved variables.
type WarnFunc func(format string, args ...any)

// Resolver expands {{...}} expressions. It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		funcs:     builtin.NewRegistry(),
	}
}

// SetWarnFunc sets the warning hook used by Resolve.
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

// Funcs returns the function registry, for registering suite functions.
func (r *Resolver) Funcs() *builtin.Registry {
	return r.funcs
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

// evaluate expands one expression. ok is false when it cannot be resolved.
func (r *Resolver) evaluate(expr string) (string, bool, error) {
	expr = strings.TrimSpace(expr)

	if name, isEnv := strings.CutPrefix(expr, "$"); isEnv {
		if val, ok := os.LookupEnv(name); ok {
			return val, true, nil
		}
		return "", false, nil
	}

	if strings.Contains(expr, "(") {
		result, ok, err := r.funcs.Call(expr)
		if err != nil || !ok {
			return "", false, err
		}
		return fmt.Sprint(result), true, nil
	}

	if val, ok := r.GetVariable(expr); ok {
		return fmt.Sprint(val), true, nil
	}
	return "", false, nil
}

// Resolve expands every expression in input. Expressions that cannot be
// resolved are left in place and reported through the warning hook.
func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		val, ok, err := r.evaluate(expr)
		switch {
		case err != nil:
			r.warn("%v", err)
			return match
		case !ok:
			r.warn("unresolved expression: %s", expr)
			return match
		}
		return val
	})
}

// ResolveStrict expands every expression in input and fails if any cannot
// be resolved.
func (r *Resolver) ResolveStrict(input string) (string, error) {
	var errs []error
	out := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		val, ok, err := r.evaluate(expr)
		switch {
		case err != nil:
			errs = append(errs, err)
			return match
		case !ok:
			errs = append(errs, fmt.Errorf("unresolved expression {{%s}}", expr))
			return match
		}
		return val
	})
	if err := errors.Join(errs...); err != nil {
		return "", err
	}
	return out, nil
}

// Unresolved returns the expressions in input that cannot be resolved, in
// order of appearance.
func (r *Resolver) Unresolved(input string) []string {
	var out []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if _, ok, err := r.evaluate(expr); err != nil || !ok {
			out = append(out, expr)
		}
	}
	return out
}

// HasUnresolved reports whether any expression in input cannot be resolved.
func (r *Resolver) HasUnresolved(input string) bool {
	return len(r.Unresolved(input)) > 0
}

// Clone copies the variables into a new resolver that shares the function
// registry.
func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &Resolver{
		variables: make(map[string]any, len(r.variables)),
		funcs:     r.funcs,
		warnFunc:  r.warnFunc,
	}
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	return clone
}
