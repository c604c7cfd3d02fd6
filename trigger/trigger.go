// Package trigger arms external events that request a lifecycle stop:
// OS signals, the appearance of a sentinel file and cron schedules.
package trigger

import (
	"errors"

	"github.com/GoCodeAlone/modlife"
)

// Stopper is anything that can be asked to stop, typically *modlife.Engine.
type Stopper interface {
	Stop() error
}

// Trigger arms itself against stopper and returns a func that disarms it.
type Trigger func(stopper Stopper, logger modlife.Logger) (disarm func(), err error)

// Arm arms every trigger. If one fails, the already armed ones are disarmed.
func Arm(stopper Stopper, logger modlife.Logger, triggers ...Trigger) (func(), error) {
	disarms := make([]func(), 0, len(triggers))
	disarmAll := func() {
		for i := len(disarms) - 1; i >= 0; i-- {
			disarms[i]()
		}
	}
	for _, t := range triggers {
		disarm, err := t(stopper, logger)
		if err != nil {
			disarmAll()
			return func() {}, err
		}
		disarms = append(disarms, disarm)
	}
	return disarmAll, nil
}

// requestStop asks stopper to stop and logs the outcome. Phase errors are
// expected when a trigger fires before the engine can be stopped.
func requestStop(stopper Stopper, logger modlife.Logger, source string, args ...any) {
	logArgs := append([]any{"trigger", source}, args...)
	if err := stopper.Stop(); err != nil {
		if errors.Is(err, modlife.ErrPhaseIncorrect) {
			logger.Warn("Stop trigger fired in a phase that cannot stop", append(logArgs, "error", err)...)
			return
		}
		logger.Error("Stop trigger failed", append(logArgs, "error", err)...)
		return
	}
	logger.Info("Stop triggered", logArgs...)
}

// StopFunc adapts a function to Stopper, e.g. a context.CancelFunc feeding
// modlife.Run.
type StopFunc func() error

func (f StopFunc) Stop() error { return f() }
