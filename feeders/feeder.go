// Package feeders loads the environment variables handed to the lifecycle
// engine from the process environment and from configuration files.
package feeders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/GoCodeAlone/modlife"
)

// Feeder produces a set of environment variables.
type Feeder interface {
	Feed() (modlife.EnvVars, error)
}

// Load runs every feeder in order and merges the results. A later feeder
// overrides keys set by an earlier one.
func Load(feeders ...Feeder) (modlife.EnvVars, error) {
	env := modlife.EnvVars{}
	for _, f := range feeders {
		vars, err := f.Feed()
		if err != nil {
			return nil, fmt.Errorf("feed %T: %w", f, err)
		}
		env = env.Merge(vars)
	}
	return env, nil
}

// ForFile picks a feeder from the file extension: .yaml/.yml, .toml, .hcl,
// and .env for anything else.
func ForFile(path string) Feeder {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYamlFeeder(path)
	case ".toml":
		return NewTomlFeeder(path)
	case ".hcl":
		return NewHclFeeder(path)
	default:
		return NewDotEnvFeeder(path)
	}
}
