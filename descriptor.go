// Package modlife guides a set of independently built application modules
// through a strict runtime lifecycle: configure, initialize, ready and
// finalize, with dependencies between modules resolved by name.
//
// Modules are described by a Descriptor and registered, in dependency-safe
// order, on a Builder. Completing the builder yields an Engine that drives
// every module through the phases:
//
//	b, _ := modlife.NewBuilder(modlife.WithLogger(logger)).
//		Add("db", dbDescriptor, nil)
//	b, _ = b.Add("api", apiDescriptor, modlife.DependencyMap{"db": modlife.Dep("db")})
//	engine, _ := b.Complete()
//
//	if res, _ := engine.Configure(modlife.EnvFromOS()); !res.OK {
//		log.Fatal(res.Failures)
//	}
//	engine.Start(ctx, modlife.WithAutoStopOnError())
//	...
//	engine.Stop()
//	<-engine.Stopped()
//
// Finalization runs in reverse registration order and is dependency aware: a
// module is never finalized before every module that consumed its instance.
package modlife

import (
	"context"
	"fmt"
	"reflect"
)

// ConfigureFunc resolves a module's configuration from environment variables.
// A non-nil error is a configuration failure; an error built with
// errors.Join or ConfigFailures reports one failure per joined error.
type ConfigureFunc func(env EnvVars) (any, error)

// InitializeFunc produces a module's instance from its resolved configuration
// and the instances of its declared dependencies.
type InitializeFunc func(ctx context.Context, cfg any, deps Dependencies) (Initialized, error)

// FinalizeFunc releases a module's instance. Returning false or an error
// marks the module as finalization_failed.
type FinalizeFunc func(ctx context.Context) (bool, error)

// StatusFunc reports module specific status details.
type StatusFunc func() map[string]any

// Initialized is the outcome of a successful initialize call.
type Initialized struct {
	Instance any
	Finalize FinalizeFunc
	Status   StatusFunc
}

// Options tune how the engine treats a module.
type Options struct {
	// OrderedFinalization makes the module's finalize a full barrier in the
	// reverse finalize sequence: every finalize issued before it settles
	// before it starts, and nothing after it is issued until it settles.
	OrderedFinalization bool
}

// Descriptor is the static, user supplied definition of a module.
type Descriptor struct {
	// Configure is optional; nil means the module needs no configuration.
	Configure ConfigureFunc

	Initialize InitializeFunc

	Options Options

	// Provides optionally declares the type of the instance produced by
	// Initialize. Typed dependency requirements are checked against it
	// at registration.
	Provides reflect.Type
}

// noConfig is the resolved configuration of a module without Configure.
type noConfig struct{}

// NoConfig is the configuration passed to modules that declare no
// configure function.
var NoConfig any = noConfig{}

// Instance is the typed counterpart of Initialized used with Define.
type Instance[I any] struct {
	Instance I
	Finalize FinalizeFunc
	Status   StatusFunc
}

// DescriptorOption adjusts a descriptor built by Define.
type DescriptorOption func(*Descriptor)

// WithOrderedFinalization marks the module as a finalization barrier.
func WithOrderedFinalization() DescriptorOption {
	return func(d *Descriptor) {
		d.Options.OrderedFinalization = true
	}
}

// Define builds a Descriptor with a typed configuration C and a typed
// instance I. The configure function may be nil when C needs no input,
// in which case the initializer receives the zero value of C.
func Define[C, I any](
	configure func(env EnvVars) (C, error),
	initialize func(ctx context.Context, cfg C, deps Dependencies) (Instance[I], error),
	opts ...DescriptorOption,
) Descriptor {
	d := Descriptor{
		Provides: reflect.TypeOf((*I)(nil)).Elem(),
		Initialize: func(ctx context.Context, cfg any, deps Dependencies) (Initialized, error) {
			var typed C
			if c, ok := cfg.(C); ok {
				typed = c
			} else if cfg != NoConfig {
				return Initialized{}, fmt.Errorf("%w: config has type %T", ErrDependencyWrongType, cfg)
			}
			out, err := initialize(ctx, typed, deps)
			if err != nil {
				return Initialized{}, err
			}
			return Initialized{Instance: out.Instance, Finalize: out.Finalize, Status: out.Status}, nil
		},
	}
	if configure != nil {
		d.Configure = func(env EnvVars) (any, error) {
			return configure(env)
		}
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Requirement names a previously registered module and, optionally, the
// contract its instance must satisfy.
type Requirement struct {
	Module   string
	Contract reflect.Type
}

// Dep requires the module registered under name without a type contract.
func Dep(name string) Requirement {
	return Requirement{Module: name}
}

// DepOf requires the module registered under name and checks at
// registration time that its declared instance type satisfies T.
func DepOf[T any](name string) Requirement {
	return Requirement{Module: name, Contract: reflect.TypeOf((*T)(nil)).Elem()}
}

// DependencyMap maps the key a module uses to look up a dependency to the
// requirement it resolves to.
type DependencyMap map[string]Requirement

// Dependencies holds resolved dependency instances keyed as declared in
// the module's DependencyMap.
type Dependencies map[string]any

// DependencyAs returns the dependency stored under key as T.
func DependencyAs[T any](deps Dependencies, key string) (T, error) {
	var zero T
	raw, ok := deps[key]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrDependencyNotFound, key)
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T, want %s", ErrDependencyWrongType, key, raw, reflect.TypeOf((*T)(nil)).Elem())
	}
	return typed, nil
}

// satisfies reports whether a provider declaring provided can fulfil contract.
// An undeclared provided type cannot be checked and is accepted.
func satisfies(provided, contract reflect.Type) bool {
	if contract == nil || provided == nil {
		return true
	}
	if provided.AssignableTo(contract) {
		return true
	}
	return contract.Kind() == reflect.Interface && provided.Implements(contract)
}
