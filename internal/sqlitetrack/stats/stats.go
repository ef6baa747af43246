// Package stats counts the statements run by the shell per minute.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/nsqlite/sqlitetrack/internal/trackdb"
)

// Retention is how long per-minute stats are kept.
const Retention = 24 * time.Hour

// Stat holds counters for different statement types.
type Stat struct {
	All      int64
	Read     int64
	Write    int64
	Begin    int64
	Commit   int64
	Rollback int64
	Failed   int64
}

// MinuteStat links a specific minute (UTC) with its stats.
type MinuteStat struct {
	Minute time.Time
	Stat
}

// Snapshot is a copy of the stats at a point in time.
type Snapshot struct {
	// Minutes is ordered newest first.
	Minutes []MinuteStat
	Total   Stat
	Uptime  time.Duration
}

// Stats manages per-minute and total stats. A background cleanup removes
// stats older than Retention.
type Stats struct {
	mu sync.Mutex

	now       func() time.Time
	startedAt time.Time
	minutes   map[time.Time]Stat
	total     Stat

	stopOnce        sync.Once
	stopCleanupChan chan struct{}
}

// New creates a Stats instance and starts a background cleanup that
// runs every cleanupInterval.
func New(cleanupInterval time.Duration) *Stats {
	s := newStats(time.Now)
	go s.runCleanupWorker(cleanupInterval)
	return s
}

func newStats(now func() time.Time) *Stats {
	return &Stats{
		now:             now,
		startedAt:       now(),
		minutes:         make(map[time.Time]Stat),
		stopCleanupChan: make(chan struct{}),
	}
}

// Close stops the background cleanup worker. It can be called many times.
func (s *Stats) Close() {
	s.stopOnce.Do(func() { close(s.stopCleanupChan) })
}

func (s *Stats) runCleanupWorker(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanupChan:
			return
		}
	}
}

// cleanup removes entries older than Retention.
func (s *Stats) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().Add(-Retention)
	for minute := range s.minutes {
		if minute.Before(cutoff) {
			delete(s.minutes, minute)
		}
	}
}

// add updates the stats for the current minute and the totals.
func (s *Stats) add(update func(*Stat)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.now().UTC().Truncate(time.Minute)
	current := s.minutes[key]
	update(&current)
	s.minutes[key] = current

	update(&s.total)
}

// Inc counts a statement of the given type.
func (s *Stats) Inc(typ trackdb.StatementType) {
	s.add(func(st *Stat) {
		st.All++
		switch typ {
		case trackdb.StatementTypeRead:
			st.Read++
		case trackdb.StatementTypeWrite:
			st.Write++
		case trackdb.StatementTypeBegin:
			st.Begin++
		case trackdb.StatementTypeCommit:
			st.Commit++
		case trackdb.StatementTypeRollback:
			st.Rollback++
		}
	})
}

// IncFailed counts a statement that returned an error.
func (s *Stats) IncFailed() {
	s.add(func(st *Stat) {
		st.All++
		st.Failed++
	})
}

// Snapshot returns the stats of at most the last n minutes with activity
// and the totals since the start.
func (s *Stats) Snapshot(n int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	minutes := make([]MinuteStat, 0, len(s.minutes))
	for minute, st := range s.minutes {
		minutes = append(minutes, MinuteStat{Minute: minute, Stat: st})
	}
	sort.Slice(minutes, func(i, j int) bool {
		return minutes[j].Minute.Before(minutes[i].Minute)
	})
	if n >= 0 && len(minutes) > n {
		minutes = minutes[:n]
	}

	return Snapshot{
		Minutes: minutes,
		Total:   s.total,
		Uptime:  s.now().Sub(s.startedAt),
	}
}
