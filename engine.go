package modlife

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Phase is the global lifecycle stage of the engine.
type Phase string

const (
	PhaseLoading             Phase = "loading"
	PhaseConfiguring         Phase = "configuring"
	PhaseConfigured          Phase = "configured"
	PhaseConfigurationFailed Phase = "configuration_failed"
	PhaseStarting            Phase = "starting"
	PhaseReady               Phase = "ready"
	PhaseStartingFailed      Phase = "starting_failed"
	PhaseStopping            Phase = "stopping"
	PhaseStopped             Phase = "stopped"
	PhaseStoppingFailed      Phase = "stopping_failed"
)

// ConfigureResult is the outcome of Engine.Configure. Failures are
// prefixed with the name of the module that reported them.
type ConfigureResult struct {
	OK       bool     `json:"ok"`
	Failures []string `json:"failure,omitempty"`
}

// StartResult is the outcome of Engine.Start.
type StartResult struct {
	Started  bool `json:"started"`
	Stopping bool `json:"stopping"`
}

// EngineStatus is a point in time snapshot of the engine and its modules.
type EngineStatus struct {
	Phase            Phase                   `json:"phase"`
	InStoppablePhase bool                    `json:"inStoppablePhase"`
	Modules          map[string]ModuleStatus `json:"modules"`
}

// StartOption adjusts a single Start call.
type StartOption func(*startOptions)

type startOptions struct {
	autoStopOnError bool
}

// WithAutoStopOnError stops the engine as soon as a module fails to initialize.
func WithAutoStopOnError() StartOption {
	return func(o *startOptions) {
		o.autoStopOnError = true
	}
}

// Engine drives registered modules through configure, start and stop.
// It is created by Builder.Complete.
type Engine struct {
	guides      []*guide
	logger      Logger
	events      *eventHub
	runID       string
	stopTimeout time.Duration

	mu                 sync.Mutex
	phase              Phase
	interruptRequested bool
	startHalted        chan struct{}
	stoppedCh          chan struct{}
	stoppedOK          bool
}

func newEngine(guides []*guide, o *engineOptions) *Engine {
	e := &Engine{
		guides:      guides,
		logger:      o.logger,
		runID:       o.runID,
		stopTimeout: o.stopTimeout,
		phase:       PhaseLoading,
		startHalted: make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}
	e.events = newEventHub(e.logger, "modlife/"+e.runID)
	for _, reg := range o.observers {
		_ = e.events.register(reg.observer, reg.eventTypes...)
	}
	for _, g := range guides {
		g.attach(e.logger, e.moduleStateChanged)
	}
	return e
}

// RunID identifies this engine instance in logs and events.
func (e *Engine) RunID() string {
	return e.runID
}

// Phase returns the current engine phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// transitionLocked moves the phase to a new value and returns a func that
// reports the change. Callers must hold e.mu and report after unlocking.
func (e *Engine) transitionLocked(to Phase) func() {
	from := e.phase
	e.phase = to
	return func() { e.phaseChanged(from, to) }
}

func (e *Engine) phaseChanged(from, to Phase) {
	e.logger.Info("Lifecycle phase changed", "from", from, "to", to)
	e.events.emit(EventTypePhaseChanged, PhaseChangedData{From: from, To: to})
}

func (e *Engine) moduleStateChanged(name string, from, to ModuleState) {
	e.events.emit(EventTypeModuleStateChanged, ModuleStateChangedData{Module: name, From: from, To: to})
}

// Configure resolves every module's configuration in registration order.
// A failing module never prevents the others from being configured.
func (e *Engine) Configure(env EnvVars) (ConfigureResult, error) {
	e.mu.Lock()
	if e.phase != PhaseLoading {
		err := newPhaseError("configure", e.phase)
		e.mu.Unlock()
		return ConfigureResult{}, err
	}
	report := e.transitionLocked(PhaseConfiguring)
	e.mu.Unlock()
	report()

	var failures []string
	for _, g := range e.guides {
		for _, msg := range g.configure(env) {
			failures = append(failures, fmt.Sprintf("[%s] %s", g.name, msg))
		}
	}

	e.mu.Lock()
	if len(failures) > 0 {
		report = e.transitionLocked(PhaseConfigurationFailed)
	} else {
		report = e.transitionLocked(PhaseConfigured)
	}
	e.mu.Unlock()
	report()

	if len(failures) > 0 {
		e.logger.Error("Configuration failed", "failures", failures)
		return ConfigureResult{OK: false, Failures: failures}, nil
	}
	return ConfigureResult{OK: true}, nil
}

// Start initializes modules strictly in registration order. Each module's
// initialize settles before the next one begins. A Stop received while
// Start is running halts the loop before the next module.
func (e *Engine) Start(ctx context.Context, opts ...StartOption) (StartResult, error) {
	var o startOptions
	for _, opt := range opts {
		opt(&o)
	}

	e.mu.Lock()
	if e.phase != PhaseConfigured {
		err := newPhaseError("start", e.phase)
		e.mu.Unlock()
		return StartResult{}, err
	}
	report := e.transitionLocked(PhaseStarting)
	e.mu.Unlock()
	report()

	for _, g := range e.guides {
		if e.interruptPending() {
			return e.haltStart(), nil
		}
		if g.initialize(ctx) {
			continue
		}

		e.mu.Lock()
		if e.interruptRequested {
			e.mu.Unlock()
			return e.haltStart(), nil
		}
		report = e.transitionLocked(PhaseStartingFailed)
		e.mu.Unlock()
		report()
		e.logger.Error("Start failed", "module", g.name)

		if o.autoStopOnError {
			if err := e.Stop(); err != nil {
				e.logger.Error("Automatic stop failed", "error", err)
			}
			return StartResult{Started: false, Stopping: true}, nil
		}
		return StartResult{Started: false, Stopping: false}, nil
	}

	e.mu.Lock()
	if e.interruptRequested {
		e.mu.Unlock()
		return e.haltStart(), nil
	}
	report = e.transitionLocked(PhaseReady)
	e.mu.Unlock()
	report()
	return StartResult{Started: true}, nil
}

func (e *Engine) interruptPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interruptRequested
}

// haltStart signals the pending stop that the start loop is no longer advancing.
func (e *Engine) haltStart() StartResult {
	e.logger.Info("Start interrupted by stop request")
	close(e.startHalted)
	return StartResult{Started: false, Stopping: true}
}

// Stop finalizes every module in reverse registration order. It returns
// immediately; the outcome is available through Stopped and WaitStopped.
// Calling Stop while stopping or stopped is a no-op. Calling it while
// starting interrupts Start and defers finalization until Start has halted.
func (e *Engine) Stop() error {
	e.mu.Lock()
	switch e.phase {
	case PhaseStopping, PhaseStopped, PhaseStoppingFailed:
		e.mu.Unlock()
		return nil
	case PhaseStarting:
		e.interruptRequested = true
		report := e.transitionLocked(PhaseStopping)
		e.mu.Unlock()
		report()
		go func() {
			<-e.startHalted
			e.finalizeAll()
		}()
		return nil
	case PhaseReady, PhaseStartingFailed:
		report := e.transitionLocked(PhaseStopping)
		e.mu.Unlock()
		report()
		go e.finalizeAll()
		return nil
	default:
		err := newPhaseError("stop", e.phase)
		e.mu.Unlock()
		return err
	}
}

// finalizeAll walks the guides in reverse order. Finalize calls run
// concurrently; an ordered-finalization guide waits for every call issued
// before it, and everything after it waits for the guide itself.
func (e *Engine) finalizeAll() {
	ctx := context.Background()
	if e.stopTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.stopTimeout)
		defer cancel()
	}

	ok := true
	pending := new(errgroup.Group)
	for i := len(e.guides) - 1; i >= 0; i-- {
		g := e.guides[i]
		if !g.desc.Options.OrderedFinalization {
			pending.Go(func() error { return finalizeGuide(ctx, g) })
			continue
		}

		if err := pending.Wait(); err != nil {
			ok = false
		}
		e.logger.Debug("Finalization barrier reached", "module", g.name)
		if err := finalizeGuide(ctx, g); err != nil {
			ok = false
		}
		pending = new(errgroup.Group)
	}
	if err := pending.Wait(); err != nil {
		ok = false
	}

	e.mu.Lock()
	var report func()
	if ok {
		report = e.transitionLocked(PhaseStopped)
	} else {
		report = e.transitionLocked(PhaseStoppingFailed)
	}
	e.stoppedOK = ok
	e.mu.Unlock()
	report()

	close(e.stoppedCh)
	e.events.emit(EventTypeEngineStopped, StoppedData{Success: ok})
}

func finalizeGuide(ctx context.Context, g *guide) error {
	if !g.finalize(ctx) {
		return fmt.Errorf("%w: %s", ErrStopFailed, g.name)
	}
	return nil
}

// Stopped returns a channel that is closed once the stop sequence has
// completed. It may be read any number of times by any number of goroutines.
func (e *Engine) Stopped() <-chan struct{} {
	return e.stoppedCh
}

// WaitStopped blocks until the engine has stopped or ctx is done. It
// reports whether every module finalized successfully.
func (e *Engine) WaitStopped(ctx context.Context) (bool, error) {
	select {
	case <-e.stoppedCh:
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.stoppedOK, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Status returns the engine phase and the status of every module.
func (e *Engine) Status() EngineStatus {
	phase := e.Phase()
	modules := make(map[string]ModuleStatus, len(e.guides))
	for _, g := range e.guides {
		modules[g.name] = g.status()
	}
	return EngineStatus{
		Phase:            phase,
		InStoppablePhase: phase == PhaseReady || phase == PhaseStartingFailed,
		Modules:          modules,
	}
}

// Modules returns the registered module names in registration order.
func (e *Engine) Modules() []string {
	names := make([]string, 0, len(e.guides))
	for _, g := range e.guides {
		names = append(names, g.name)
	}
	return names
}
