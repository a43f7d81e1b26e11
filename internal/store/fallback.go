// Package store composes the durable PostgreSQL bot store with the JSON
// snapshot fallback.
package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

// Fallback layers a durable store over a snapshot store. Every write goes to
// the snapshot so the file always mirrors the latest state; durable writes
// that fail degrade to snapshot-only with a warning instead of surfacing the
// failure. Reads prefer the durable store and fall back to the snapshot. A
// nil durable store runs snapshot-only, the startup policy when the database
// is unreachable.
type Fallback struct {
	durable  domain.BotStore
	snapshot domain.BotStore
	logger   *slog.Logger
}

// NewFallback creates the layered store. durable may be nil.
func NewFallback(durable, snapshot domain.BotStore, logger *slog.Logger) *Fallback {
	return &Fallback{
		durable:  durable,
		snapshot: snapshot,
		logger:   logger.With(slog.String("component", "store")),
	}
}

// LoadAll reads from the durable store, falling back to the snapshot file
// when the database cannot serve the read.
func (f *Fallback) LoadAll(ctx context.Context) ([]domain.BotRecord, error) {
	if f.durable != nil {
		records, err := f.durable.LoadAll(ctx)
		if err == nil {
			return records, nil
		}
		f.logger.WarnContext(ctx, "durable load failed, using snapshot",
			slog.String("error", err.Error()),
		)
	}
	return f.snapshot.LoadAll(ctx)
}

// UpsertOne writes to both stores. The snapshot write is authoritative for
// the call's outcome; a durable failure only logs.
func (f *Fallback) UpsertOne(ctx context.Context, rec domain.BotRecord) error {
	if f.durable != nil {
		if err := f.durable.UpsertOne(ctx, rec); err != nil {
			f.logger.WarnContext(ctx, "durable upsert failed",
				slog.String("bot_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return f.snapshot.UpsertOne(ctx, rec)
}

// Delete removes the record from both stores. ErrNotFound from the durable
// side is ignored; the snapshot decides whether the record existed.
func (f *Fallback) Delete(ctx context.Context, id string) error {
	if f.durable != nil {
		if err := f.durable.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			f.logger.WarnContext(ctx, "durable delete failed",
				slog.String("bot_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return f.snapshot.Delete(ctx, id)
}

// Compile-time interface check.
var _ domain.BotStore = (*Fallback)(nil)
