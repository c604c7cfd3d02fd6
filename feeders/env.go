package feeders

import (
	"os"
	"strings"

	"github.com/GoCodeAlone/modlife"
)

// EnvFeeder reads the process environment. With a Prefix set, only the
// matching variables are kept and the prefix is stripped from their names.
type EnvFeeder struct {
	Prefix string
}

// NewEnvFeeder creates a new EnvFeeder keeping every variable.
func NewEnvFeeder() EnvFeeder {
	return EnvFeeder{}
}

// Feed implements Feeder.
func (f EnvFeeder) Feed() (modlife.EnvVars, error) {
	if f.Prefix == "" {
		return modlife.EnvFromOS(), nil
	}
	env := modlife.EnvVars{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if name, found := strings.CutPrefix(k, f.Prefix); found && name != "" {
			env[name] = v
		}
	}
	return env, nil
}
