// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Record and SourceSpec, along with
// their validation rules and domain-specific errors.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// MetaValue is the set of scalar types allowed in Record.Metadata.
// Anything else must be coerced to a string before being stored.
type MetaValue = any

// Record is the canonical unit persisted and served by the harvesting engine.
// It is produced by an Extractor, reshaped by the Normalizer, and deduplicated
// before being handed to the Repository.
type Record struct {
	ID        string
	Source    string
	URL       string
	Title     string
	Content   string
	Price     *float64
	ImageURL  string
	Author    string
	Category  string
	Timestamp time.Time
	Metadata  map[string]MetaValue
}

// NewRecord builds a Record with a fresh ID and an initialized metadata map.
// Timestamp is set to now in UTC at extraction time and never mutated
// afterwards.
func NewRecord(source, url string) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Source:    source,
		URL:       url,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]MetaValue),
	}
}

// SetMeta stores a scalar value in Metadata, rejecting anything that is not
// string, a numeric kind, or bool.
func (r *Record) SetMeta(key string, value MetaValue) {
	switch value.(type) {
	case string, bool, int, int64, float32, float64:
		if r.Metadata == nil {
			r.Metadata = make(map[string]MetaValue)
		}
		r.Metadata[key] = value
	}
}

// DedupeKey returns the (lower_trim(title), source) key used by the
// Deduplicator and by read-query duplicate suppression.
func (r *Record) DedupeKey() string {
	return normalizeKeyPart(r.Title) + "\x00" + normalizeKeyPart(r.Source)
}
