package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/nsqlite/sqlitetrack/internal/trackdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStats() (*Stats, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 2, 10, 0, 30, 0, time.UTC)}
	return newStats(clock.Now), clock
}

func TestInc(t *testing.T) {
	s, _ := newTestStats()

	s.Inc(trackdb.StatementTypeRead)
	s.Inc(trackdb.StatementTypeRead)
	s.Inc(trackdb.StatementTypeWrite)
	s.Inc(trackdb.StatementTypeBegin)
	s.Inc(trackdb.StatementTypeCommit)
	s.Inc(trackdb.StatementTypeRollback)
	s.IncFailed()

	snap := s.Snapshot(5)
	want := Stat{All: 7, Read: 2, Write: 1, Begin: 1, Commit: 1, Rollback: 1, Failed: 1}
	assert.Equal(t, want, snap.Total)
	require.Len(t, snap.Minutes, 1)
	assert.Equal(t, want, snap.Minutes[0].Stat)
	assert.Equal(t, time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), snap.Minutes[0].Minute)
}

func TestSnapshot(t *testing.T) {
	s, clock := newTestStats()

	for range 4 {
		s.Inc(trackdb.StatementTypeWrite)
		clock.Add(time.Minute)
	}

	snap := s.Snapshot(2)
	require.Len(t, snap.Minutes, 2)
	assert.True(t, snap.Minutes[0].Minute.After(snap.Minutes[1].Minute))
	assert.Equal(t, int64(4), snap.Total.Write)
	assert.Equal(t, 4*time.Minute, snap.Uptime)

	assert.Len(t, s.Snapshot(-1).Minutes, 4)
	assert.Empty(t, s.Snapshot(0).Minutes)
}

func TestCleanup(t *testing.T) {
	s, clock := newTestStats()

	s.Inc(trackdb.StatementTypeRead)
	clock.Add(Retention + time.Minute)
	s.Inc(trackdb.StatementTypeRead)

	s.cleanup()

	snap := s.Snapshot(-1)
	assert.Len(t, snap.Minutes, 1)
	assert.Equal(t, int64(2), snap.Total.Read)
}

func TestConcurrentInc(t *testing.T) {
	s := New(time.Millisecond)
	defer s.Close()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Inc(trackdb.StatementTypeRead)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), s.Snapshot(1).Total.Read)
	s.Close()
}
