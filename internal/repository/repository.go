// Package repository defines the durable-store contract the engine persists
// Records through, independent of the concrete storage technology.
package repository

import (
	"context"

	"webharvest/internal/domain/entity"
)

// Filter narrows a List call. Nil fields are unconstrained.
type Filter struct {
	Source   *string
	Query    *string
	Category *string
	Limit    *int
	Offset   *int
}

// Repository is the durable-store contract. Save is an upsert keyed by
// Record.ID: re-saving a record with the same ID replaces it rather than
// erroring or duplicating.
type Repository interface {
	// Save upserts batch, returning the number of records written.
	Save(ctx context.Context, batch []*entity.Record) (int, error)

	// List returns records matching filter, most recent first.
	List(ctx context.Context, filter Filter) ([]*entity.Record, error)

	// Count returns the total number of stored records.
	Count(ctx context.Context) (uint64, error)

	// Sources returns the distinct source names with at least one record.
	Sources(ctx context.Context) ([]string, error)

	// Clear removes every stored record.
	Clear(ctx context.Context) error
}
