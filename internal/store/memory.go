package store

import (
	"context"
	"sort"
	"sync"

	"github.com/JonMunkholm/sdtm/internal/core"
)

// Memory keeps encoded summaries in a map. Values are stored encoded so
// callers never share slices with the store.
type Memory struct {
	mu   sync.RWMutex
	runs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{runs: make(map[string][]byte)}
}

func (m *Memory) Save(_ context.Context, summary *core.RunSummary) error {
	data, err := encode(summary)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[summary.ID] = data
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*core.RunSummary, error) {
	m.mu.RLock()
	data, ok := m.runs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	return decode(data)
}

func (m *Memory) List(_ context.Context, limit int) ([]*core.RunSummary, error) {
	m.mu.RLock()
	out := make([]*core.RunSummary, 0, len(m.runs))
	for _, data := range m.runs {
		s, err := decode(data)
		if err != nil {
			m.mu.RUnlock()
			return nil, err
		}
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.After(out[j].CompletedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

// Len reports the number of stored runs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}
