// Package memory implements an in-process Repository mirror used for read
// continuity when the durable store is unreachable. It is never
// authoritative: writes here are best-effort and lost on restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"webharvest/internal/domain/entity"
	"webharvest/internal/repository"
)

// Mirror is a single-writer/multi-reader in-memory Repository.
type Mirror struct {
	mu      sync.RWMutex
	byID    map[string]*entity.Record
	order   []string // insertion order, for stable iteration
}

// New creates an empty Mirror.
func New() *Mirror {
	return &Mirror{byID: make(map[string]*entity.Record)}
}

// Save upserts batch by id.
func (m *Mirror) Save(_ context.Context, batch []*entity.Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range batch {
		if _, exists := m.byID[rec.ID]; !exists {
			m.order = append(m.order, rec.ID)
		}
		m.byID[rec.ID] = rec
	}
	return len(batch), nil
}

// List returns records matching filter, most recent first.
func (m *Mirror) List(_ context.Context, filter repository.Filter) ([]*entity.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*entity.Record, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		rec := m.byID[m.order[i]]
		if rec == nil || !matches(rec, filter) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	return paginate(matched, filter), nil
}

func matches(rec *entity.Record, filter repository.Filter) bool {
	if filter.Source != nil && rec.Source != *filter.Source {
		return false
	}
	if filter.Category != nil && rec.Category != *filter.Category {
		return false
	}
	if filter.Query != nil {
		q := strings.ToLower(*filter.Query)
		if !strings.Contains(strings.ToLower(rec.Title), q) && !strings.Contains(strings.ToLower(rec.Content), q) {
			return false
		}
	}
	return true
}

func paginate(xs []*entity.Record, filter repository.Filter) []*entity.Record {
	start := 0
	if filter.Offset != nil && *filter.Offset > 0 {
		start = *filter.Offset
	}
	if start >= len(xs) {
		return []*entity.Record{}
	}
	end := len(xs)
	if filter.Limit != nil && start+*filter.Limit < end {
		end = start + *filter.Limit
	}
	return xs[start:end]
}

// Count returns the total number of stored records.
func (m *Mirror) Count(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.byID)), nil
}

// Sources returns the distinct source names with at least one record.
func (m *Mirror) Sources(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var sources []string
	for _, rec := range m.byID {
		if _, ok := seen[rec.Source]; ok {
			continue
		}
		seen[rec.Source] = struct{}{}
		sources = append(sources, rec.Source)
	}
	sort.Strings(sources)
	return sources, nil
}

// Clear removes every stored record.
func (m *Mirror) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID = make(map[string]*entity.Record)
	m.order = nil
	return nil
}

var _ repository.Repository = (*Mirror)(nil)
