// Package dedupe removes duplicate Records by (lower_trim(title), source),
// keeping the first occurrence.
package dedupe

import "webharvest/internal/domain/entity"

// Deduplicator removes records sharing a DedupeKey, keeping the first.
type Deduplicator struct{}

// New creates a Deduplicator.
func New() *Deduplicator {
	return &Deduplicator{}
}

// Run returns xs with duplicates removed. It is pure and idempotent:
// Run(Run(xs)) yields the same records as Run(xs).
func (d *Deduplicator) Run(xs []*entity.Record) []*entity.Record {
	seen := make(map[string]struct{}, len(xs))
	out := make([]*entity.Record, 0, len(xs))

	for _, r := range xs {
		key := r.DedupeKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}

	return out
}
