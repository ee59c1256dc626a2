// Package dconfig provides environment-variable and YAML configuration
// loading shared by every storage adapter and the composition root.
package dconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvConfig reads typed values from the process environment under an
// optional prefix, e.g. NewEnvConfig("DATAOPS_").GetInt("POOL_MAX", 10)
// reads DATAOPS_POOL_MAX.
type EnvConfig struct {
	prefix string
}

// NewEnvConfig creates an environment configuration reader.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) key(name string) string {
	if ec.prefix == "" {
		return name
	}
	return ec.prefix + name
}

// GetString returns the named variable or defaultValue if unset/empty.
func (ec *EnvConfig) GetString(name, defaultValue string) string {
	if v := os.Getenv(ec.key(name)); v != "" {
		return v
	}
	return defaultValue
}

// MustGetString returns the named variable or panics if it is unset.
func (ec *EnvConfig) MustGetString(name string) string {
	full := ec.key(name)
	v := os.Getenv(full)
	if v == "" {
		panic(fmt.Sprintf("required environment variable %s not set", full))
	}
	return v
}

// GetInt returns the named variable parsed as an int, or defaultValue.
func (ec *EnvConfig) GetInt(name string, defaultValue int) int {
	if v := os.Getenv(ec.key(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetBool returns the named variable parsed as a bool, or defaultValue.
func (ec *EnvConfig) GetBool(name string, defaultValue bool) bool {
	if v := os.Getenv(ec.key(name)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// ExpandDefaults expands ${VAR:-default} references in s against the
// process environment, the syntax storage_configs YAML files use.
func ExpandDefaults(s string) string {
	var out strings.Builder
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "${")
		if start < 0 {
			out.WriteString(s[i:])
			break
		}
		start += i
		out.WriteString(s[i:start])
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			out.WriteString(s[start:])
			break
		}
		end += start
		expr := s[start+2 : end]
		name, def, hasDef := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDef {
			val = def
		}
		out.WriteString(coerce(val))
		i = end + 1
	}
	return out.String()
}

// coerce turns integer-looking and true/false substitutions into their
// literal textual form (post-expansion typed coercion happens at the YAML
// decode layer; this keeps whitespace-insensitive comparisons stable).
func coerce(v string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return v
	}
	if _, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return trimmed
	}
	if _, err := strconv.ParseBool(trimmed); err == nil {
		return trimmed
	}
	return v
}
