// Package demo contains the modules wired by the modlifed daemon. They are
// small but real: the store persists a snapshot on finalize, the worker
// writes into the store until stopped, and the reporter logs engine status
// on a schedule.
package demo

import (
	"context"
	"fmt"
	"maps"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/modlife"
)

// StoreModuleName is the name the store is registered under.
const StoreModuleName = "store"

// StoreConfig is resolved from STORE_SNAPSHOT.
type StoreConfig struct {
	// SnapshotPath receives a YAML dump of the store on finalize. Empty
	// disables the snapshot.
	SnapshotPath string
}

// Store is a concurrency safe key/value map.
type Store struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{items: make(map[string]string)}
}

func (s *Store) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Snapshot writes the items as YAML to path.
func (s *Store) Snapshot(path string) error {
	s.mu.RLock()
	items := maps.Clone(s.items)
	s.mu.RUnlock()

	data, err := yaml.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal store snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write store snapshot: %w", err)
	}
	return nil
}

func configureStore(env modlife.EnvVars) (StoreConfig, error) {
	return StoreConfig{SnapshotPath: env.Get("STORE_SNAPSHOT", "")}, nil
}

// StoreModule describes the store module. It has no dependencies.
func StoreModule(logger modlife.Logger) modlife.Descriptor {
	return modlife.Define(configureStore,
		func(_ context.Context, cfg StoreConfig, _ modlife.Dependencies) (modlife.Instance[*Store], error) {
			store := NewStore()
			return modlife.Instance[*Store]{
				Instance: store,
				Finalize: func(context.Context) (bool, error) {
					if cfg.SnapshotPath == "" {
						return true, nil
					}
					if err := store.Snapshot(cfg.SnapshotPath); err != nil {
						return false, err
					}
					logger.Info("Store snapshot written", "path", cfg.SnapshotPath, "items", store.Len())
					return true, nil
				},
				Status: func() map[string]any {
					return map[string]any{"items": store.Len()}
				},
			}, nil
		})
}
