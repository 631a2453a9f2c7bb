// Package journal records the metadata of indexing runs: what ran, when, and
// how many failures it reported. Reports themselves are not persisted.
package journal

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Outcome classifies a finished run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomePartial  Outcome = "partial"
	OutcomeRejected Outcome = "rejected"
)

// Entry is one recorded run.
type Entry struct {
	RunID        string        `json:"runId"`
	Kind         string        `json:"kind"`
	Stage        string        `json:"stage"`
	ContentTypes []string      `json:"contentTypes"`
	StartedAt    time.Time     `json:"startedAt"`
	Duration     time.Duration `json:"duration"`
	ErrorCount   int           `json:"errorCount"`
	Outcome      Outcome       `json:"outcome"`
}

// Memory keeps the most recent entries in process.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
}

// NewMemory creates a journal holding at most limit entries.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = 100
	}
	return &Memory{limit: limit}
}

func (m *Memory) Record(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if len(m.entries) > m.limit {
		m.entries = m.entries[len(m.entries)-m.limit:]
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (m *Memory) Recent(ctx context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
