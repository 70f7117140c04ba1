package repository

import (
	"context"
	"log/slog"

	"webharvest/internal/domain/entity"
)

// DualSink writes every batch to both a durable Repository and an in-memory
// mirror, and serves reads from the durable store unless it is down, in
// which case it serves from the mirror so the engine stays queryable
// through a transient outage.
type DualSink struct {
	durable Repository
	mirror  Repository
}

// NewDualSink composes durable and mirror into a single Repository.
func NewDualSink(durable, mirror Repository) *DualSink {
	return &DualSink{durable: durable, mirror: mirror}
}

// Save writes to the mirror unconditionally, then to durable storage. A
// durable-store failure is returned to the caller (the engine retries once
// before reporting PartialPersistence), but the mirror write having already
// happened means reads stay available in the meantime.
func (d *DualSink) Save(ctx context.Context, batch []*entity.Record) (int, error) {
	if _, err := d.mirror.Save(ctx, batch); err != nil {
		slog.Warn("mirror save failed, continuing to durable store", slog.String("error", err.Error()))
	}
	return d.durable.Save(ctx, batch)
}

// List reads from durable storage, falling back to the mirror on error.
func (d *DualSink) List(ctx context.Context, filter Filter) ([]*entity.Record, error) {
	records, err := d.durable.List(ctx, filter)
	if err != nil {
		slog.Warn("durable store list failed, serving from mirror", slog.String("error", err.Error()))
		return d.mirror.List(ctx, filter)
	}
	return records, nil
}

// Count reads from durable storage, falling back to the mirror on error.
func (d *DualSink) Count(ctx context.Context) (uint64, error) {
	count, err := d.durable.Count(ctx)
	if err != nil {
		slog.Warn("durable store count failed, serving from mirror", slog.String("error", err.Error()))
		return d.mirror.Count(ctx)
	}
	return count, nil
}

// Sources reads from durable storage, falling back to the mirror on error.
func (d *DualSink) Sources(ctx context.Context) ([]string, error) {
	sources, err := d.durable.Sources(ctx)
	if err != nil {
		slog.Warn("durable store sources failed, serving from mirror", slog.String("error", err.Error()))
		return d.mirror.Sources(ctx)
	}
	return sources, nil
}

// Clear clears both the durable store and the mirror.
func (d *DualSink) Clear(ctx context.Context) error {
	if err := d.mirror.Clear(ctx); err != nil {
		slog.Warn("mirror clear failed", slog.String("error", err.Error()))
	}
	return d.durable.Clear(ctx)
}

var _ Repository = (*DualSink)(nil)
