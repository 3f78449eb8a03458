package env

import (
	"os"
	"strings"
)

// Prefix marks process environment variables that become suite variables:
// UISPEC_VAR_baseUrl sets {{baseUrl}}.
const Prefix = "UISPEC_VAR_"

// Select returns the variables of a named environment from the config, or
// nil when it is not defined.
func Select(envs map[string]map[string]any, name string) map[string]any {
	if envs == nil || name == "" {
		return nil
	}
	return envs[name]
}

// MergeVariables merges maps left to right; later sources win.
func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// StringVariables converts string pairs, as read from a .env file.
func StringVariables(vars map[string]string) map[string]any {
	result := make(map[string]any, len(vars))
	for k, v := range vars {
		result[k] = v
	}
	return result
}

// LoadSystemEnv returns process environment variables starting with prefix,
// with the prefix removed. An empty prefix returns everything.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if name, found := strings.CutPrefix(key, prefix); found && name != "" {
			result[name] = value
		}
	}
	return result
}
