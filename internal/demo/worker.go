package demo

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoCodeAlone/modlife"
)

// WorkerModuleName is the name the worker is registered under.
const WorkerModuleName = "worker"

const defaultWorkerInterval = time.Second

// WorkerConfig is resolved from WORKER_INTERVAL and WORKER_LIMIT.
type WorkerConfig struct {
	Interval time.Duration
	// Limit caps the number of writes; zero means unlimited.
	Limit int
}

// Worker periodically writes a tick into the store until stopped.
type Worker struct {
	store    *Store
	interval time.Duration
	limit    int
	ticks    atomic.Int64
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func configureWorker(env modlife.EnvVars) (WorkerConfig, error) {
	cfg := WorkerConfig{Interval: defaultWorkerInterval}
	var errs []string

	if raw, ok := env.Lookup("WORKER_INTERVAL"); ok {
		d, err := time.ParseDuration(raw)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("WORKER_INTERVAL: %v", err))
		case d <= 0:
			errs = append(errs, "WORKER_INTERVAL must be positive")
		default:
			cfg.Interval = d
		}
	}
	limit, _, err := modlife.EnvAs[int](env, "WORKER_LIMIT")
	switch {
	case err != nil:
		errs = append(errs, err.Error())
	case limit < 0:
		errs = append(errs, "WORKER_LIMIT must not be negative")
	default:
		cfg.Limit = limit
	}

	if len(errs) > 0 {
		return WorkerConfig{}, modlife.ConfigFailures(errs...)
	}
	return cfg, nil
}

// Ticks returns the number of writes performed so far.
func (w *Worker) Ticks() int64 {
	return w.ticks.Load()
}

func (w *Worker) start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				n := w.ticks.Add(1)
				w.store.Put("tick-"+strconv.FormatInt(n, 10), t.UTC().Format(time.RFC3339Nano))
				if w.limit > 0 && n >= int64(w.limit) {
					return
				}
			}
		}
	}()
}

func (w *Worker) stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker did not stop: %w", ctx.Err())
	}
}

// WorkerDependencies declares the worker's dependency on the store.
func WorkerDependencies() modlife.DependencyMap {
	return modlife.DependencyMap{"store": modlife.DepOf[*Store](StoreModuleName)}
}

// WorkerModule describes the worker. Its finalize is a barrier so that the
// writes it stops are complete before anything registered earlier shuts down.
func WorkerModule(logger modlife.Logger) modlife.Descriptor {
	return modlife.Define(configureWorker,
		func(_ context.Context, cfg WorkerConfig, deps modlife.Dependencies) (modlife.Instance[*Worker], error) {
			store, err := modlife.DependencyAs[*Store](deps, "store")
			if err != nil {
				return modlife.Instance[*Worker]{}, err
			}
			w := &Worker{store: store, interval: cfg.Interval, limit: cfg.Limit}
			w.start()
			logger.Debug("Worker started", "interval", cfg.Interval)
			return modlife.Instance[*Worker]{
				Instance: w,
				Finalize: func(ctx context.Context) (bool, error) {
					if err := w.stop(ctx); err != nil {
						return false, err
					}
					logger.Info("Worker stopped", "ticks", w.Ticks())
					return true, nil
				},
				Status: func() map[string]any {
					return map[string]any{"ticks": w.Ticks(), "interval": cfg.Interval.String()}
				},
			}, nil
		},
		modlife.WithOrderedFinalization())
}
