package modlife

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ModuleState is the private lifecycle stage of a single module.
type ModuleState string

const (
	StateAdded                ModuleState = "added"
	StateConfiguring          ModuleState = "configuring"
	StateConfigured           ModuleState = "configured"
	StateConfigurationFailed  ModuleState = "configuration_failed"
	StateInitializing         ModuleState = "initializing"
	StateInitialized          ModuleState = "initialized"
	StateInitializationFailed ModuleState = "initialization_failed"
	StateAwaitingFinalization ModuleState = "awaiting_finalization"
	StateFinalizing           ModuleState = "finalizing"
	StateFinalized            ModuleState = "finalized"
	StateFinalizationFailed   ModuleState = "finalization_failed"
)

// ModuleStatus is the externally visible status of one module.
type ModuleStatus struct {
	State  ModuleState    `json:"state"`
	Status map[string]any `json:"status"`
}

// dependent is the handle a dependency keeps for each module that obtained
// its instance. settled is closed once the dependent's finalize outcome is known.
type dependent interface {
	moduleName() string
	settled() <-chan struct{}
}

// guide is the runtime wrapper around one descriptor. It owns the module's
// state machine, its instance and its finalize coordination.
type guide struct {
	name     string
	desc     Descriptor
	requires map[string]*guide
	logger   Logger
	notify   func(name string, from, to ModuleState)

	mu             sync.Mutex
	state          ModuleState
	config         any
	hasConfig      bool
	configFailures []string
	instance       any
	hasInstance    bool
	finalizeFn     FinalizeFunc
	statusFn       StatusFunc
	dependents     []dependent
	finalizing     bool
	finalizeOnce   sync.Once
	finalizeDone   chan struct{}
	finalizeOK     bool
}

func newGuide(name string, desc Descriptor, requires map[string]*guide) *guide {
	return &guide{
		name:         name,
		desc:         desc,
		requires:     requires,
		logger:       discardLogger(),
		state:        StateAdded,
		finalizeDone: make(chan struct{}),
	}
}

// attach binds the guide to the engine's logger and event sink.
func (g *guide) attach(logger Logger, notify func(name string, from, to ModuleState)) {
	g.logger = NewValueInjectionLoggerDecorator(logger, "module", g.name)
	g.notify = notify
}

func (g *guide) moduleName() string { return g.name }

func (g *guide) settled() <-chan struct{} { return g.finalizeDone }

func (g *guide) setState(to ModuleState) {
	g.mu.Lock()
	from := g.state
	g.state = to
	g.mu.Unlock()
	if g.notify != nil && from != to {
		g.notify(g.name, from, to)
	}
}

// State returns the current module state.
func (g *guide) State() ModuleState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// configure resolves the module configuration. It returns the failure
// messages, or nil on success.
func (g *guide) configure(env EnvVars) []string {
	g.mu.Lock()
	if g.state != StateAdded {
		// configure runs at most once
		failures := g.configFailures
		g.mu.Unlock()
		return failures
	}
	g.mu.Unlock()

	g.setState(StateConfiguring)
	if g.desc.Configure == nil {
		g.mu.Lock()
		g.config, g.hasConfig = NoConfig, true
		g.mu.Unlock()
		g.setState(StateConfigured)
		g.logger.Debug("Module needs no configuration")
		return nil
	}

	g.logger.Debug("Configuring module")
	cfg, err := g.callConfigure(env)
	if err != nil {
		failures := failureMessages(err)
		g.mu.Lock()
		g.configFailures = failures
		g.mu.Unlock()
		g.setState(StateConfigurationFailed)
		g.logger.Error("Module configuration failed", "failures", failures)
		return failures
	}

	g.mu.Lock()
	g.config, g.hasConfig = cfg, true
	g.mu.Unlock()
	g.setState(StateConfigured)
	g.logger.Info("Module configured")
	return nil
}

func (g *guide) callConfigure(env EnvVars) (cfg any, err error) {
	defer func() {
		if r := recover(); r != nil {
			cfg, err = nil, fmt.Errorf("%w: %v", ErrConfigurationPanicked, r)
		}
	}()
	return g.desc.Configure(env)
}

// initialize produces the module instance. It reports whether an instance
// exists afterwards; failures are logged and never returned.
func (g *guide) initialize(ctx context.Context) bool {
	g.mu.Lock()
	cfg, ok, state, has := g.config, g.hasConfig, g.state, g.hasInstance
	g.mu.Unlock()
	if !ok {
		return false
	}
	if state != StateConfigured {
		// initialize runs at most once
		return has
	}

	g.setState(StateInitializing)
	g.logger.Info("Initializing module")
	started := time.Now()

	deps := make(Dependencies, len(g.requires))
	for key, dep := range g.requires {
		instance, err := dep.getInstance(g)
		if err != nil {
			g.setState(StateInitializationFailed)
			g.logger.Error("Module dependency unavailable", "dependency", dep.name, "error", err)
			return false
		}
		deps[key] = instance
	}

	out, err := g.callInitialize(ctx, cfg, deps)
	if err != nil {
		g.setState(StateInitializationFailed)
		g.logger.Error("Module initialization failed", "error", err)
		return false
	}

	g.mu.Lock()
	g.instance, g.hasInstance = out.Instance, true
	g.finalizeFn = out.Finalize
	g.statusFn = out.Status
	g.mu.Unlock()
	g.setState(StateInitialized)
	g.logger.Info("Module initialized", "duration", time.Since(started))
	return true
}

func (g *guide) callInitialize(ctx context.Context, cfg any, deps Dependencies) (out Initialized, err error) {
	if g.desc.Initialize == nil {
		return Initialized{}, ErrInitializeFuncMissing
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = Initialized{}, fmt.Errorf("%w: %v", ErrInitializationPanicked, r)
		}
	}()
	return g.desc.Initialize(ctx, cfg, deps)
}

// getInstance registers d as a dependent and returns the instance.
func (g *guide) getInstance(d dependent) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.hasInstance {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotReady, g.name)
	}
	g.dependents = append(g.dependents, d)
	return g.instance, nil
}

// finalize runs at most once; every caller receives the same outcome.
func (g *guide) finalize(ctx context.Context) bool {
	g.finalizeOnce.Do(func() {
		g.mu.Lock()
		g.finalizing = true
		g.mu.Unlock()

		g.finalizeOK = g.runFinalize(ctx)
		close(g.finalizeDone)
	})
	<-g.finalizeDone
	return g.finalizeOK
}

func (g *guide) runFinalize(ctx context.Context) bool {
	g.mu.Lock()
	hasInstance := g.hasInstance
	dependents := append([]dependent(nil), g.dependents...)
	fn := g.finalizeFn
	g.mu.Unlock()

	if !hasInstance {
		return true
	}

	if len(dependents) > 0 {
		g.setState(StateAwaitingFinalization)
		names := make([]string, 0, len(dependents))
		for _, d := range dependents {
			names = append(names, d.moduleName())
		}
		g.logger.Debug("Waiting for dependents to finalize", "dependents", names)
		for _, d := range dependents {
			<-d.settled()
		}
	}

	g.setState(StateFinalizing)
	g.logger.Info("Finalizing module")
	ok, err := g.callFinalize(ctx, fn)
	if err == nil && !ok {
		err = ErrFinalizationUnsuccessful
	}
	if err != nil {
		g.setState(StateFinalizationFailed)
		g.logger.Error("Module finalization failed", "error", err)
		return false
	}
	g.setState(StateFinalized)
	g.logger.Info("Module finalized")
	return true
}

func (g *guide) callFinalize(ctx context.Context, fn FinalizeFunc) (ok bool, err error) {
	if fn == nil {
		return true, nil
	}
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("%w: %v", ErrFinalizationPanicked, r)
		}
	}()
	return fn(ctx)
}

// finalized returns a channel closed once finalize has settled.
func (g *guide) finalized() (<-chan struct{}, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.finalizing {
		return nil, fmt.Errorf("%w: %s", ErrFinalizeNotStarted, g.name)
	}
	return g.finalizeDone, nil
}

// finalizeOutcome reports the memoized outcome once finalize has settled.
func (g *guide) finalizeOutcome() (ok, settled bool) {
	select {
	case <-g.finalizeDone:
		return g.finalizeOK, true
	default:
		return false, false
	}
}

func (g *guide) status() ModuleStatus {
	g.mu.Lock()
	state, fn := g.state, g.statusFn
	g.mu.Unlock()

	st := ModuleStatus{State: state, Status: map[string]any{}}
	if fn != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					st.Status = map[string]any{"error": fmt.Sprint(r)}
				}
			}()
			if s := fn(); s != nil {
				st.Status = s
			}
		}()
	}
	return st
}
