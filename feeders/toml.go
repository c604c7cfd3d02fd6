package feeders

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/GoCodeAlone/modlife"
)

// TomlFeeder reads a TOML file and flattens its tables into environment
// variables, e.g. `[store] path = "/data"` yields STORE_PATH=/data.
type TomlFeeder struct {
	Path string
}

func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{Path: filePath}
}

// Feed implements Feeder.
func (t TomlFeeder) Feed() (modlife.EnvVars, error) {
	var doc map[string]any
	if _, err := toml.DecodeFile(t.Path, &doc); err != nil {
		return nil, fmt.Errorf("failed to read toml: %w", err)
	}
	env := modlife.EnvVars{}
	if err := flatten("", doc, env); err != nil {
		return nil, err
	}
	return env, nil
}
