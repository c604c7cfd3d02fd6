package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/modlife"
)

func event(t *testing.T, eventType string, data any, at time.Time) (string, func(*Store)) {
	t.Helper()
	ev := modlife.NewCloudEvent(eventType, "test", data, nil)
	ev.SetTime(at)
	return ev.ID(), func(s *Store) { require.NoError(t, s.OnEvent(context.Background(), ev)) }
}

func TestStoreQuery(t *testing.T) {
	s := NewStore(10)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, addPhase := event(t, modlife.EventTypePhaseChanged, modlife.PhaseChangedData{From: modlife.PhaseLoading, To: modlife.PhaseConfiguring}, base)
	dbID, addDB := event(t, modlife.EventTypeModuleStateChanged, modlife.ModuleStateChangedData{Module: "db", To: modlife.StateConfigured}, base.Add(2*time.Second))
	_, addAPI := event(t, modlife.EventTypeModuleStateChanged, modlife.ModuleStateChangedData{Module: "api", To: modlife.StateConfigured}, base.Add(time.Second))

	// arrival order differs from event time
	addDB(s)
	addPhase(s)
	addAPI(s)
	require.Equal(t, 3, s.Len())

	all := s.Query(Criteria{})
	require.Len(t, all, 3)
	assert.Equal(t, modlife.EventTypePhaseChanged, all[0].Type())
	assert.Equal(t, dbID, all[2].ID())

	modules := s.Query(Criteria{Types: []string{modlife.EventTypeModuleStateChanged}})
	assert.Len(t, modules, 2)

	db := s.Query(Criteria{Module: "db"})
	require.Len(t, db, 1)
	assert.Equal(t, dbID, db[0].ID())

	recent := s.Query(Criteria{Since: base.Add(500 * time.Millisecond)})
	assert.Len(t, recent, 2)

	last := s.Query(Criteria{Limit: 1})
	require.Len(t, last, 1)
	assert.Equal(t, dbID, last[0].ID())

	got, err := s.Get(dbID)
	require.NoError(t, err)
	assert.Equal(t, dbID, got.ID())
	_, err = s.Get("missing")
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestStoreEvictsOldest(t *testing.T) {
	s := NewStore(2)
	now := time.Now()
	firstID, addFirst := event(t, modlife.EventTypePhaseChanged, nil, now)
	_, addSecond := event(t, modlife.EventTypePhaseChanged, nil, now.Add(time.Millisecond))
	_, addThird := event(t, modlife.EventTypePhaseChanged, nil, now.Add(2*time.Millisecond))
	addFirst(s)
	addSecond(s)
	addThird(s)

	assert.Equal(t, 2, s.Len())
	_, err := s.Get(firstID)
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.Equal(t, DefaultCapacity, NewStore(0).capacity)
}

func TestStoreRecordsEngineEvents(t *testing.T) {
	s := NewStore(0)
	e, err := modlife.NewBuilder(modlife.WithObserver(s)).Complete()
	require.NoError(t, err)

	_, err = e.Configure(modlife.EnvVars{})
	require.NoError(t, err)
	_, err = e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Stop())
	<-e.Stopped()

	require.Eventually(t, func() bool {
		return len(s.Query(Criteria{Types: []string{modlife.EventTypeEngineStopped}})) == 1
	}, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		for _, ev := range s.Query(Criteria{Module: modlife.LifecycleModuleName}) {
			var data modlife.ModuleStateChangedData
			if ev.DataAs(&data) == nil && data.To == modlife.StateFinalized {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}
