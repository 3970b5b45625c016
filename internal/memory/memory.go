package memory

import (
	"sync"
	"time"

	"github.com/xaenox/storebot/internal/clock"
	"github.com/xaenox/storebot/internal/models"
)

// Log is the bounded conversation memory: at most maxEntries exchanges,
// none older than maxAge, oldest evicted first. It is an assistive signal
// only; races between concurrent appends are acceptable.
type Log struct {
	mu         sync.Mutex
	entries    []models.MemoryEntry
	maxEntries int
	maxAge     time.Duration
	clock      clock.Clock
}

func NewLog(maxEntries int, maxAge time.Duration, clk clock.Clock) *Log {
	return &Log{
		maxEntries: maxEntries,
		maxAge:     maxAge,
		clock:      clk,
	}
}

// Now exposes the log's clock so callers can stamp entries consistently.
func (l *Log) Now() time.Time {
	return l.clock.Now()
}

func (l *Log) Append(e models.MemoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, e)
	l.evict()
}

// Recall returns the retained exchanges, oldest first.
func (l *Log) Recall() []models.MemoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evict()
	out := make([]models.MemoryEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// evict drops entries over either bound. Callers must hold the mutex.
func (l *Log) evict() {
	cutoff := l.clock.Now().Add(-l.maxAge)
	start := 0
	for start < len(l.entries) && l.entries[start].Time.Before(cutoff) {
		start++
	}
	if over := len(l.entries) - start - l.maxEntries; over > 0 {
		start += over
	}
	if start > 0 {
		l.entries = append([]models.MemoryEntry(nil), l.entries[start:]...)
	}
}
