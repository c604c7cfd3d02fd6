package feeders

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/modlife"
)

// YamlFeeder reads a YAML document and flattens it into environment
// variables, e.g. `store: {path: /data}` yields STORE_PATH=/data.
type YamlFeeder struct {
	Path string
}

// NewYamlFeeder creates a new YamlFeeder that reads from the specified YAML file
func NewYamlFeeder(filePath string) YamlFeeder {
	return YamlFeeder{Path: filePath}
}

// Feed implements Feeder.
func (y YamlFeeder) Feed() (modlife.EnvVars, error) {
	data, err := os.ReadFile(y.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML %s: %w", y.Path, err)
	}
	env := modlife.EnvVars{}
	if err := flatten("", doc, env); err != nil {
		return nil, err
	}
	return env, nil
}
