package feeders

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/GoCodeAlone/modlife"
)

// DotEnvFeeder reads KEY=value pairs from a .env file. The file is parsed
// in memory; the process environment is left untouched.
type DotEnvFeeder struct {
	Path string

	// Optional tolerates a missing file.
	Optional bool
}

// NewDotEnvFeeder creates a new DotEnvFeeder that reads from the specified .env file
func NewDotEnvFeeder(filePath string) DotEnvFeeder {
	return DotEnvFeeder{Path: filePath}
}

// Feed implements Feeder.
func (f DotEnvFeeder) Feed() (modlife.EnvVars, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		if f.Optional && os.IsNotExist(err) {
			return modlife.EnvVars{}, nil
		}
		return nil, fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	env := modlife.EnvVars{}
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseEnvLine(line, lineNum)
		if err != nil {
			return nil, err
		}
		env[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	return env, nil
}

// parseEnvLine splits one line at the first '='. An optional "export "
// prefix is dropped and matching surrounding quotes are removed.
func parseEnvLine(line string, lineNum int) (string, string, error) {
	line = strings.TrimPrefix(line, "export ")
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", wrapDotEnvLineError(lineNum, line)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", fmt.Errorf("%w at line %d", ErrDotEnvEmptyKey, lineNum)
	}
	value = strings.TrimSpace(value)

	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return key, value, nil
}
