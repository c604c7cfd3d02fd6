package modlife

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/modlife/internal/testutil"
)

// probe is a configurable test module that records its calls.
type probe struct {
	name         string
	log          *testutil.EventLog
	configureErr error
	initErr      error
	finalizeOK   bool
	finalizeErr  error
	finalizeWait time.Duration
	onInit       func(deps Dependencies)
	ordered      bool

	configures atomic.Int32
	inits      atomic.Int32
	finalizes  atomic.Int32
}

func newProbe(name string, log *testutil.EventLog) *probe {
	return &probe{name: name, log: log, finalizeOK: true}
}

func (p *probe) descriptor() Descriptor {
	return Descriptor{
		Configure: func(EnvVars) (any, error) {
			p.configures.Add(1)
			p.log.Add(p.name + ":configure")
			if p.configureErr != nil {
				return nil, p.configureErr
			}
			return p.name + "-config", nil
		},
		Initialize: func(_ context.Context, _ any, deps Dependencies) (Initialized, error) {
			p.inits.Add(1)
			p.log.Add(p.name + ":initialize")
			if p.onInit != nil {
				p.onInit(deps)
			}
			if p.initErr != nil {
				return Initialized{}, p.initErr
			}
			return Initialized{
				Instance: p.name + "-instance",
				Finalize: func(context.Context) (bool, error) {
					p.finalizes.Add(1)
					p.log.Add(p.name + ":finalize:start")
					time.Sleep(p.finalizeWait)
					p.log.Add(p.name + ":finalize:end")
					return p.finalizeOK, p.finalizeErr
				},
				Status: func() map[string]any { return map[string]any{"name": p.name} },
			}, nil
		},
		Options: Options{OrderedFinalization: p.ordered},
	}
}

func buildEngine(t *testing.T, probes []*probe, deps map[string]DependencyMap, opts ...Option) *Engine {
	t.Helper()
	b := NewBuilder(opts...)
	for _, p := range probes {
		var err error
		b, err = b.Add(p.name, p.descriptor(), deps[p.name])
		require.NoError(t, err)
	}
	e, err := b.Complete()
	require.NoError(t, err)
	return e
}

func waitStopped(t *testing.T, e *Engine) bool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok, err := e.WaitStopped(ctx)
	require.NoError(t, err)
	return ok
}

func requirePhaseError(t *testing.T, err error) {
	t.Helper()
	require.ErrorIs(t, err, ErrPhaseIncorrect)
	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "phase.incorrect", pe.Code)
}

func TestEngineConfigureCallsEveryModule(t *testing.T) {
	log := &testutil.EventLog{}
	a, b, c := newProbe("a", log), newProbe("b", log), newProbe("c", log)
	b.configureErr = ConfigFailures("missing A", "missing B")
	e := buildEngine(t, []*probe{a, b, c}, nil)

	res, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, []string{"[b] missing A", "[b] missing B"}, res.Failures)
	assert.Equal(t, []string{"a:configure", "b:configure", "c:configure"}, log.Entries())
	assert.Equal(t, PhaseConfigurationFailed, e.Phase())

	_, err = e.Start(context.Background())
	requirePhaseError(t, err)
	requirePhaseError(t, e.Stop())
}

func TestEngineConfigureTwiceIsPhaseError(t *testing.T) {
	e := buildEngine(t, []*probe{newProbe("a", &testutil.EventLog{})}, nil)
	res, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	require.True(t, res.OK)

	_, err = e.Configure(EnvVars{})
	requirePhaseError(t, err)
	assert.Equal(t, PhaseConfigured, e.Phase())
}

func TestEngineStartInLoadingIsPhaseError(t *testing.T) {
	e := buildEngine(t, nil, nil)
	_, err := e.Start(context.Background())
	requirePhaseError(t, err)
	assert.Equal(t, PhaseLoading, e.Phase())

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "start", pe.Op)
	assert.Equal(t, PhaseLoading, pe.Phase)
}

func TestEngineStartIsSequentialAndStopsAtFailure(t *testing.T) {
	log := &testutil.EventLog{}
	a, b, c := newProbe("a", log), newProbe("b", log), newProbe("c", log)
	b.initErr = errBoom
	e := buildEngine(t, []*probe{a, b, c}, nil)

	res, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	require.True(t, res.OK)

	started, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StartResult{Started: false, Stopping: false}, started)
	assert.Equal(t, PhaseStartingFailed, e.Phase())
	assert.EqualValues(t, 0, c.inits.Load())
	assert.True(t, log.Before("a:initialize", "b:initialize"))

	st := e.Status()
	assert.True(t, st.InStoppablePhase)
	assert.Equal(t, StateInitialized, st.Modules["a"].State)
	assert.Equal(t, StateInitializationFailed, st.Modules["b"].State)
	assert.Equal(t, StateConfigured, st.Modules["c"].State)

	require.NoError(t, e.Stop())
	assert.True(t, waitStopped(t, e))
	assert.Equal(t, PhaseStopped, e.Phase())
	assert.EqualValues(t, 1, a.finalizes.Load())
}

func TestEngineEndToEnd(t *testing.T) {
	log := &testutil.EventLog{}
	a, b, c := newProbe("a", log), newProbe("b", log), newProbe("c", log)
	e := buildEngine(t, []*probe{a, b, c}, nil)

	res, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	assert.Equal(t, ConfigureResult{OK: true}, res)

	started, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StartResult{Started: true}, started)
	assert.Equal(t, PhaseReady, e.Phase())

	st := e.Status()
	assert.Equal(t, PhaseReady, st.Phase)
	assert.True(t, st.InStoppablePhase)
	require.Len(t, st.Modules, 4)
	for _, name := range []string{LifecycleModuleName, "a", "b", "c"} {
		assert.Equal(t, StateInitialized, st.Modules[name].State, name)
	}
	assert.Equal(t, map[string]any{"name": "b"}, st.Modules["b"].Status)
	assert.Equal(t, []string{"a:initialize", "b:initialize", "c:initialize"},
		filterSuffix(log.Entries(), ":initialize"))

	require.NoError(t, e.Stop())
	assert.True(t, waitStopped(t, e))
	assert.Equal(t, PhaseStopped, e.Phase())
	assert.False(t, e.Status().InStoppablePhase)
	for _, name := range []string{LifecycleModuleName, "a", "b", "c"} {
		assert.Equal(t, StateFinalized, e.Status().Modules[name].State, name)
	}
}

func TestEngineAutoStopOnError(t *testing.T) {
	log := &testutil.EventLog{}
	a, b := newProbe("a", log), newProbe("b", log)
	a.finalizeWait = 5 * time.Millisecond
	b.initErr = errBoom
	e := buildEngine(t, []*probe{a, b}, nil)

	_, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	started, err := e.Start(context.Background(), WithAutoStopOnError())
	require.NoError(t, err)
	assert.Equal(t, StartResult{Started: false, Stopping: true}, started)

	assert.True(t, waitStopped(t, e))
	assert.Equal(t, PhaseStopped, e.Phase())
	assert.EqualValues(t, 1, a.finalizes.Load())
	assert.EqualValues(t, 0, b.finalizes.Load())
}

func TestEngineFinalizesEveryModuleInReverseOrder(t *testing.T) {
	log := &testutil.EventLog{}
	a, b, c := newProbe("a", log), newProbe("b", log), newProbe("c", log)
	c.finalizeErr = errBoom
	b.finalizeOK = false
	// ordered finalization serializes the pass so the order is observable
	a.ordered, b.ordered, c.ordered = true, true, true
	e := buildEngine(t, []*probe{a, b, c}, nil)

	_, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	_, err = e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Stop())

	assert.False(t, waitStopped(t, e))
	assert.Equal(t, PhaseStoppingFailed, e.Phase())
	assert.Equal(t, []string{"c:finalize:start", "b:finalize:start", "a:finalize:start"},
		filterSuffix(log.Entries(), ":finalize:start"))
	for _, p := range []*probe{a, b, c} {
		assert.EqualValues(t, 1, p.finalizes.Load(), p.name)
	}
	st := e.Status()
	assert.Equal(t, StateFinalized, st.Modules["a"].State)
	assert.Equal(t, StateFinalizationFailed, st.Modules["b"].State)
	assert.Equal(t, StateFinalizationFailed, st.Modules["c"].State)
}

func TestEngineDependencyFinalizesAfterDependent(t *testing.T) {
	log := &testutil.EventLog{}
	a, b := newProbe("a", log), newProbe("b", log)
	b.finalizeWait = 10 * time.Millisecond
	e := buildEngine(t, []*probe{a, b}, map[string]DependencyMap{"b": {"a": Dep("a")}})

	_, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	_, err = e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Stop())
	assert.True(t, waitStopped(t, e))

	assert.True(t, log.Before("b:finalize:end", "a:finalize:start"))
}

func TestEngineStopIsIdempotent(t *testing.T) {
	log := &testutil.EventLog{}
	a := newProbe("a", log)
	a.finalizeWait = 20 * time.Millisecond
	e := buildEngine(t, []*probe{a}, nil)

	_, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	_, err = e.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, e.Stop())
	assert.Equal(t, PhaseStopping, e.Phase())
	require.NoError(t, e.Stop())
	require.NoError(t, e.Stop())
	assert.True(t, waitStopped(t, e))
	require.NoError(t, e.Stop())

	assert.Equal(t, PhaseStopped, e.Phase())
	assert.EqualValues(t, 1, a.finalizes.Load())
}

func TestEngineStopBeforeStartIsPhaseError(t *testing.T) {
	e := buildEngine(t, []*probe{newProbe("a", &testutil.EventLog{})}, nil)
	requirePhaseError(t, e.Stop())
	assert.Equal(t, PhaseLoading, e.Phase())

	_, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	requirePhaseError(t, e.Stop())
	assert.Equal(t, PhaseConfigured, e.Phase())
}

func TestEngineOrderedFinalizationBarrier(t *testing.T) {
	log := &testutil.EventLog{}
	m0, syncA, m1, m2 := newProbe("m0", log), newProbe("sync-A", log), newProbe("m1", log), newProbe("m2", log)
	syncA.ordered = true
	syncA.finalizeWait = 5 * time.Millisecond
	m2.finalizeWait = 15 * time.Millisecond
	e := buildEngine(t, []*probe{m0, syncA, m1, m2}, nil)

	_, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	_, err = e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Stop())
	assert.True(t, waitStopped(t, e))

	// everything issued before the barrier settles before it starts
	assert.True(t, log.Before("m2:finalize:end", "sync-A:finalize:start"))
	assert.True(t, log.Before("m1:finalize:end", "sync-A:finalize:start"))
	// nothing after the barrier finishes before the barrier started
	assert.True(t, log.Before("sync-A:finalize:start", "m0:finalize:end"))
	assert.True(t, log.Before("sync-A:finalize:end", "m0:finalize:start"))
}

func TestEngineStopFromInitializerInterruptsStart(t *testing.T) {
	log := &testutil.EventLog{}
	a, b, c := newProbe("a", log), newProbe("b", log), newProbe("c", log)
	var stopErr error
	b.onInit = func(deps Dependencies) {
		ctrl, err := DependencyAs[Controller](deps, "lifecycle")
		if err != nil {
			stopErr = err
			return
		}
		stopErr = ctrl.Stop()
	}
	e := buildEngine(t, []*probe{a, b, c}, map[string]DependencyMap{
		"b": {"lifecycle": DepOf[Controller](LifecycleModuleName)},
	})

	_, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	started, err := e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, stopErr)
	assert.Equal(t, StartResult{Started: false, Stopping: true}, started)

	assert.True(t, waitStopped(t, e))
	assert.Equal(t, PhaseStopped, e.Phase())
	assert.EqualValues(t, 0, c.inits.Load())
	assert.EqualValues(t, 1, a.finalizes.Load())
	assert.EqualValues(t, 1, b.finalizes.Load())
	assert.Equal(t, StateConfigured, e.Status().Modules["c"].State)
}

func TestEngineExternalStopDuringStart(t *testing.T) {
	log := &testutil.EventLog{}
	a, b, c := newProbe("a", log), newProbe("b", log), newProbe("c", log)
	entered := make(chan struct{})
	release := make(chan struct{})
	b.onInit = func(Dependencies) {
		close(entered)
		<-release
	}
	e := buildEngine(t, []*probe{a, b, c}, nil)
	_, err := e.Configure(EnvVars{})
	require.NoError(t, err)

	result := make(chan StartResult, 1)
	go func() {
		started, _ := e.Start(context.Background())
		result <- started
	}()

	<-entered
	require.NoError(t, e.Stop())
	assert.Equal(t, PhaseStopping, e.Phase())
	require.NoError(t, e.Stop())

	// finalization waits for the in-flight initialize
	select {
	case <-e.Stopped():
		t.Fatal("stopped before the interrupted start halted")
	case <-time.After(20 * time.Millisecond):
	}
	assert.EqualValues(t, 0, a.finalizes.Load())

	close(release)
	assert.Equal(t, StartResult{Started: false, Stopping: true}, <-result)
	assert.True(t, waitStopped(t, e))
	assert.EqualValues(t, 0, c.inits.Load())
	assert.EqualValues(t, 1, a.finalizes.Load())
	assert.EqualValues(t, 1, b.finalizes.Load())
}

func TestEngineInterruptWinsOverInitializeFailure(t *testing.T) {
	log := &testutil.EventLog{}
	a := newProbe("a", log)
	a.initErr = errBoom
	a.onInit = func(deps Dependencies) {
		ctrl, _ := DependencyAs[Controller](deps, "lifecycle")
		_ = ctrl.Stop()
	}
	e := buildEngine(t, []*probe{a}, map[string]DependencyMap{
		"a": {"lifecycle": DepOf[Controller](LifecycleModuleName)},
	})

	_, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	started, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StartResult{Started: false, Stopping: true}, started)
	assert.True(t, waitStopped(t, e))
	assert.Equal(t, PhaseStopped, e.Phase())
}

func TestEngineStoppedSignal(t *testing.T) {
	e := buildEngine(t, []*probe{newProbe("a", &testutil.EventLog{})}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := e.WaitStopped(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = e.Configure(EnvVars{})
	require.NoError(t, err)
	_, err = e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Stop())

	for i := 0; i < 3; i++ {
		<-e.Stopped()
	}
	assert.True(t, waitStopped(t, e))
	assert.True(t, waitStopped(t, e))
}

func TestEngineStopTimeoutBoundsFinalizeContext(t *testing.T) {
	var deadline atomic.Bool
	e, err := NewBuilder(WithStopTimeout(time.Minute)).
		MustAdd("a", Descriptor{
			Initialize: func(context.Context, any, Dependencies) (Initialized, error) {
				return Initialized{Instance: 1, Finalize: func(ctx context.Context) (bool, error) {
					_, ok := ctx.Deadline()
					deadline.Store(ok)
					return true, nil
				}}, nil
			},
		}, nil).
		Complete()
	require.NoError(t, err)

	_, err = e.Configure(EnvVars{})
	require.NoError(t, err)
	_, err = e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Stop())
	assert.True(t, waitStopped(t, e))
	assert.True(t, deadline.Load())
}

func TestEngineLogsLifecycle(t *testing.T) {
	logger := &testutil.RecordingLogger{}
	a := newProbe("a", &testutil.EventLog{})
	a.initErr = errBoom
	e := buildEngine(t, []*probe{a}, nil, WithLogger(logger))

	_, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	_, err = e.Start(context.Background())
	require.NoError(t, err)

	failures := logger.Find("error", "Module initialization failed")
	require.Len(t, failures, 1)
	module, _ := failures[0].Value("module")
	assert.Equal(t, "a", module)
	logged, _ := failures[0].Value("error")
	assert.Equal(t, errBoom, logged)

	assert.NotEmpty(t, logger.Find("info", "Lifecycle phase changed"))
}

func TestEngineSurvivesPanickingLogger(t *testing.T) {
	e := buildEngine(t, []*probe{newProbe("a", &testutil.EventLog{})}, nil, WithLogger(panicLogger{}))

	res, err := e.Configure(EnvVars{})
	require.NoError(t, err)
	require.True(t, res.OK)
	_, err = e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Stop())
	assert.True(t, waitStopped(t, e))
}

type panicLogger struct{}

func (panicLogger) Info(string, ...any)  { panic(errors.New("logger down")) }
func (panicLogger) Error(string, ...any) { panic(errors.New("logger down")) }
func (panicLogger) Warn(string, ...any)  { panic(errors.New("logger down")) }
func (panicLogger) Debug(string, ...any) { panic(errors.New("logger down")) }

func filterSuffix(entries []string, suffix string) []string {
	var out []string
	for _, e := range entries {
		if len(e) >= len(suffix) && e[len(e)-len(suffix):] == suffix {
			out = append(out, e)
		}
	}
	return out
}

func ExampleEngine() {
	b := NewBuilder().
		MustAdd("greeting", Define(
			func(env EnvVars) (string, error) { return env.Get("GREETING", "hello"), nil },
			func(_ context.Context, greeting string, _ Dependencies) (Instance[string], error) {
				return Instance[string]{Instance: greeting + ", world"}, nil
			}), nil)
	engine, _ := b.Complete()

	res, _ := engine.Configure(EnvVars{"GREETING": "hi"})
	started, _ := engine.Start(context.Background())
	_ = engine.Stop()
	<-engine.Stopped()

	fmt.Println(res.OK, started.Started, engine.Phase())
	// Output: true true stopped
}
