// Package history stores summaries of finished import runs.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/surveyimport/internal/core"
)

// DefaultMemoryCapacity bounds the in-memory store.
const DefaultMemoryCapacity = 500

// MemoryStore keeps summaries in process memory. Used when no database is
// configured; contents are lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	entries  []core.RunSummary
}

var _ core.HistoryStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding at most capacity summaries. The
// oldest entries are dropped first.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

// Record stores a summary, replacing any earlier summary of the same run.
func (m *MemoryStore) Record(_ context.Context, summary core.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.entries {
		if e.RunID == summary.RunID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	m.entries = append(m.entries, summary)
	if over := len(m.entries) - m.capacity; over > 0 {
		m.entries = append([]core.RunSummary(nil), m.entries[over:]...)
	}
	return nil
}

// Recent returns up to limit summaries, most recently finished first.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]core.RunSummary, error) {
	m.mu.Lock()
	out := append([]core.RunSummary(nil), m.entries...)
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinishedAt.After(out[j].FinishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PurgeBefore drops summaries that finished before cutoff.
func (m *MemoryStore) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	var purged int64
	for _, e := range m.entries {
		if e.FinishedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return purged, nil
}
