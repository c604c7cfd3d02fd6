package modlife

import (
	"context"
	"sync"
)

// LifecycleModuleName is the reserved name of the module that exposes the
// engine itself to other modules.
const LifecycleModuleName = "lifecycle"

// Controller is the instance provided by the reserved lifecycle module.
// Depend on it with DepOf[Controller](LifecycleModuleName).
type Controller interface {
	Status() EngineStatus
	Stop() error
}

// engineCell holds the engine for the lifecycle module. The engine only
// exists once Builder.Complete runs, while the module is registered first;
// the cell is written exactly once by Complete and read during Start.
type engineCell struct {
	mu     sync.Mutex
	engine *Engine
}

func (c *engineCell) set(e *Engine) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine != nil {
		return ErrEngineAlreadySet
	}
	c.engine = e
	return nil
}

func (c *engineCell) get() (*Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return nil, ErrEngineNotSet
	}
	return c.engine, nil
}

func lifecycleDescriptor(cell *engineCell) Descriptor {
	return Define[struct{}, Controller](nil,
		func(_ context.Context, _ struct{}, _ Dependencies) (Instance[Controller], error) {
			e, err := cell.get()
			if err != nil {
				return Instance[Controller]{}, err
			}
			return Instance[Controller]{Instance: e}, nil
		})
}
