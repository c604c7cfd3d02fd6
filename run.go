package modlife

import (
	"context"
	"fmt"
	"strings"
)

// Run configures and starts the engine, then blocks until it has stopped.
// Cancelling ctx requests a stop, interrupting Start if it is still running;
// a cancellation that arrives before Start stops the engine once started.
// A module failing to initialize stops the engine automatically.
func Run(ctx context.Context, e *Engine, env EnvVars) error {
	res, err := e.Configure(env)
	if err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("%w: %s", ErrConfigurationFailed, strings.Join(res.Failures, "; "))
	}

	stopOnDone := context.AfterFunc(ctx, func() {
		if err := e.Stop(); err != nil {
			// still configured; the check after Start picks it up
			e.logger.Debug("Stop on context cancellation deferred", "error", err)
		}
	})
	defer stopOnDone()

	started, err := e.Start(ctx, WithAutoStopOnError())
	if err != nil {
		return err
	}
	if started.Started {
		e.logger.Info("Lifecycle ready", "runID", e.runID)
	}
	if ctx.Err() != nil {
		if err := e.Stop(); err != nil {
			return err
		}
	}

	ok, err := e.WaitStopped(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}

	var failed []string
	for _, name := range e.Modules() {
		if e.guideState(name) == StateInitializationFailed {
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %s", ErrStartFailed, strings.Join(failed, ", "))
	}
	if !ok {
		return ErrStopFailed
	}
	return nil
}

func (e *Engine) guideState(name string) ModuleState {
	for _, g := range e.guides {
		if g.name == name {
			return g.State()
		}
	}
	return ""
}
