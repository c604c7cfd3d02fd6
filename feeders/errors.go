package feeders

import (
	"errors"
	"fmt"
)

// DotEnv feeder errors
var (
	ErrDotEnvInvalidLineFormat = errors.New("invalid .env line format")
	ErrDotEnvEmptyKey          = errors.New("empty .env key")
)

// Structured file errors
var (
	ErrUnsupportedValue = errors.New("unsupported configuration value")
)

func wrapDotEnvLineError(lineNum int, line string) error {
	return fmt.Errorf("%w at line %d: %s", ErrDotEnvInvalidLineFormat, lineNum, line)
}

func wrapUnsupportedValueError(key string, got any) error {
	return fmt.Errorf("%w %s, got %T", ErrUnsupportedValue, key, got)
}
