package modlife

import (
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Option configures the engine produced by a Builder.
type Option func(*engineOptions)

type observerOption struct {
	observer   Observer
	eventTypes []string
}

type engineOptions struct {
	logger      Logger
	observers   []observerOption
	stopTimeout time.Duration
	runID       string
}

// WithLogger sets the logger used for every lifecycle log line. The logger
// is wrapped so that a panicking logger cannot disturb the lifecycle.
func WithLogger(logger Logger) Option {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = NewSafeLoggerDecorator(logger)
		}
	}
}

// WithObserver registers an observer on the engine as soon as it is created,
// so that it also sees events emitted during Configure.
func WithObserver(observer Observer, eventTypes ...string) Option {
	return func(o *engineOptions) {
		o.observers = append(o.observers, observerOption{observer: observer, eventTypes: eventTypes})
	}
}

// WithStopTimeout bounds the context handed to finalize functions. The
// engine still waits for every finalize call to return; the deadline is a
// signal to the modules. Zero means no deadline.
func WithStopTimeout(timeout time.Duration) Option {
	return func(o *engineOptions) {
		o.stopTimeout = timeout
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(o *engineOptions) {
		if id != "" {
			o.runID = id
		}
	}
}

// Builder accumulates modules in registration order. It is append-only:
// Add returns an extended builder and leaves the receiver untouched.
// Registration order is the dependency order; a module may only depend on
// modules added before it.
type Builder struct {
	opts      *engineOptions
	guides    []*guide
	cell      *engineCell
	completed *atomic.Bool
}

// NewBuilder creates a builder holding only the reserved lifecycle module.
func NewBuilder(opts ...Option) *Builder {
	o := &engineOptions{
		logger: NewSafeLoggerDecorator(discardLogger()),
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(o)
	}

	cell := &engineCell{}
	return &Builder{
		opts:      o,
		guides:    []*guide{newGuide(LifecycleModuleName, lifecycleDescriptor(cell), nil)},
		cell:      cell,
		completed: &atomic.Bool{},
	}
}

// Add registers a module under name. Every entry of deps must name a module
// that is already registered; typed requirements are checked against the
// target's declared instance type.
func (b *Builder) Add(name string, desc Descriptor, deps DependencyMap) (*Builder, error) {
	if b.completed.Load() {
		return nil, ErrBuilderCompleted
	}
	if name == "" {
		return nil, ErrModuleNameEmpty
	}
	if b.lookup(name) != nil {
		if name == LifecycleModuleName {
			return nil, fmt.Errorf("%w: %s", ErrReservedModuleName, name)
		}
		return nil, fmt.Errorf("%w: %s", ErrModuleAlreadyRegistered, name)
	}
	if desc.Initialize == nil {
		return nil, fmt.Errorf("%w: %s", ErrInitializeFuncMissing, name)
	}

	requires := make(map[string]*guide, len(deps))
	for key, req := range deps {
		if key == "" {
			return nil, fmt.Errorf("%w: module %s", ErrDependencyKeyEmpty, name)
		}
		target := b.lookup(req.Module)
		if target == nil {
			return nil, fmt.Errorf("%w: %s requires %q as %q", ErrDependencyNotRegistered, name, req.Module, key)
		}
		if !satisfies(target.desc.Provides, req.Contract) {
			return nil, fmt.Errorf("%w: %s requires %s from %q, which provides %s",
				ErrDependencyContract, name, req.Contract, req.Module, target.desc.Provides)
		}
		requires[key] = target
	}

	guides := make([]*guide, 0, len(b.guides)+1)
	guides = append(guides, b.guides...)
	guides = append(guides, newGuide(name, desc, requires))
	return &Builder{
		opts:      b.opts,
		guides:    guides,
		cell:      b.cell,
		completed: b.completed,
	}, nil
}

// MustAdd is like Add but panics on registration errors. It is meant for
// static module lists assembled at program start.
func (b *Builder) MustAdd(name string, desc Descriptor, deps DependencyMap) *Builder {
	next, err := b.Add(name, desc, deps)
	if err != nil {
		panic(err)
	}
	return next
}

func (b *Builder) lookup(name string) *guide {
	for _, g := range b.guides {
		if g.name == name {
			return g
		}
	}
	return nil
}

// Names returns the registered module names in registration order.
func (b *Builder) Names() []string {
	names := make([]string, 0, len(b.guides))
	for _, g := range b.guides {
		names = append(names, g.name)
	}
	return names
}

// Complete seals the module sequence and returns the engine driving it.
// A builder lineage can be completed only once.
func (b *Builder) Complete() (*Engine, error) {
	if !b.completed.CompareAndSwap(false, true) {
		return nil, ErrBuilderCompleted
	}
	e := newEngine(slices.Clone(b.guides), b.opts)
	if err := b.cell.set(e); err != nil {
		return nil, err
	}
	e.logger.Info("Lifecycle engine created", "runID", e.runID, "modules", e.Modules())
	return e, nil
}
