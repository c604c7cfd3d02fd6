package modlife

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/golobby/cast"
)

// EnvVars is the configuration input handed to every module's configure
// function. A key missing from the map is "absent".
type EnvVars map[string]string

// EnvFromOS snapshots the current process environment.
func EnvFromOS() EnvVars {
	env := make(EnvVars)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Lookup returns the value for key and whether it is present.
func (e EnvVars) Lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

// Get returns the value for key, or fallback when absent.
func (e EnvVars) Get(key, fallback string) string {
	if v, ok := e[key]; ok {
		return v
	}
	return fallback
}

// Merge returns a new EnvVars holding e overlaid with other.
func (e EnvVars) Merge(other EnvVars) EnvVars {
	out := make(EnvVars, len(e)+len(other))
	for k, v := range e {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// EnvAs converts the value stored under key to T. The boolean result is
// false when the key is absent, in which case the zero value is returned.
//
//	port, ok, err := modlife.EnvAs[int](env, "PORT")
func EnvAs[T any](env EnvVars, key string) (T, bool, error) {
	var zero T
	raw, ok := env[key]
	if !ok {
		return zero, false, nil
	}
	converted, err := cast.FromType(raw, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, true, fmt.Errorf("env %s: %w", key, err)
	}
	value, ok := converted.(T)
	if !ok {
		return zero, true, fmt.Errorf("env %s: cannot convert %q to %s", key, raw, reflect.TypeOf((*T)(nil)).Elem())
	}
	return value, true, nil
}
