package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventLogConcurrentAdd(t *testing.T) {
	var log EventLog
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Addf("entry-%d", i)
		}()
	}
	wg.Wait()
	assert.Len(t, log.Entries(), 50)
}

func TestEventLogBefore(t *testing.T) {
	var log EventLog
	log.Add("a")
	log.Add("b")

	assert.True(t, log.Before("a", "b"))
	assert.False(t, log.Before("b", "a"))
	assert.True(t, log.Before("a", "missing"))
	assert.False(t, log.Before("missing", "a"))
	assert.Equal(t, -1, log.Index("missing"))
}

func TestRecordingLogger(t *testing.T) {
	var l RecordingLogger
	l.Info("started", "module", "db")
	l.Error("failed", "module", "api", "error", "boom")

	found := l.Find("error", "failed")
	if assert.Len(t, found, 1) {
		v, ok := found[0].Value("module")
		assert.True(t, ok)
		assert.Equal(t, "api", v)
		assert.Equal(t, "ERROR failed module=api error=boom", found[0].String())
	}
	assert.Empty(t, l.Find("info", "failed"))
}
