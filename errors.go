package modlife

import (
	"errors"
	"fmt"
)

// PhaseErrorCode is the stable code carried by every phase error.
const PhaseErrorCode = "phase.incorrect"

// Lifecycle errors
var (
	// Phase errors
	ErrPhaseIncorrect = errors.New("operation not allowed in current phase")

	// Registration errors
	ErrModuleNameEmpty          = errors.New("module name must not be empty")
	ErrModuleAlreadyRegistered  = errors.New("module already registered")
	ErrDependencyNotRegistered  = errors.New("dependency is not a previously registered module")
	ErrDependencyContract       = errors.New("dependency does not satisfy required contract")
	ErrInitializeFuncMissing    = errors.New("module descriptor has no initialize function")
	ErrBuilderCompleted         = errors.New("builder already completed")
	ErrReservedModuleName       = errors.New("module name is reserved")
	ErrDependencyKeyEmpty       = errors.New("dependency key must not be empty")
	ErrDependencyNotFound       = errors.New("dependency not declared")
	ErrDependencyWrongType      = errors.New("dependency instance has unexpected type")
	ErrConfigurationPanicked    = errors.New("configure panicked")
	ErrInitializationPanicked   = errors.New("initialize panicked")
	ErrFinalizationPanicked     = errors.New("finalize panicked")
	ErrFinalizationUnsuccessful = errors.New("finalize reported failure")

	// Invalid-use errors
	ErrInvalidUse         = errors.New("invalid use")
	ErrInstanceNotReady   = fmt.Errorf("%w: instance is not available before initialization succeeds", ErrInvalidUse)
	ErrFinalizeNotStarted = fmt.Errorf("%w: finalize has not been started", ErrInvalidUse)
	ErrEngineNotSet       = fmt.Errorf("%w: lifecycle engine is not set", ErrInvalidUse)
	ErrEngineAlreadySet   = fmt.Errorf("%w: lifecycle engine already set", ErrInvalidUse)

	// Run errors
	ErrConfigurationFailed = errors.New("configuration failed")
	ErrStartFailed         = errors.New("start failed")
	ErrStopFailed          = errors.New("stop failed")
)

// PhaseError is returned when an engine operation is attempted in a phase
// that does not allow it. The engine phase is left unchanged.
type PhaseError struct {
	Code  string
	Op    string
	Phase Phase
}

func newPhaseError(op string, phase Phase) *PhaseError {
	return &PhaseError{Code: PhaseErrorCode, Op: op, Phase: phase}
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: cannot %s while phase is %q", e.Code, e.Op, e.Phase)
}

// Is reports ErrPhaseIncorrect as a match so callers can use errors.Is.
func (e *PhaseError) Is(target error) bool {
	return target == ErrPhaseIncorrect
}

// ConfigFailures builds a configure error carrying one failure message per
// entry. Each message is reported separately by the engine.
func ConfigFailures(messages ...string) error {
	errs := make([]error, 0, len(messages))
	for _, m := range messages {
		errs = append(errs, errors.New(m))
	}
	return errors.Join(errs...)
}

// failureMessages flattens a configure error into the messages it carries.
func failureMessages(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			if e != nil {
				out = append(out, e.Error())
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{err.Error()}
}
