package domain

import (
	"context"
	"time"
)

// BotStore persists bot records. Implementations: postgres (durable), local
// JSON snapshot (fallback), and a composite that degrades between the two.
type BotStore interface {
	// LoadAll returns every stored bot record.
	LoadAll(ctx context.Context) ([]BotRecord, error)

	// UpsertOne writes the full record, inserting or replacing by ID.
	UpsertOne(ctx context.Context, rec BotRecord) error

	// Delete removes a record. Returns ErrNotFound when the ID is unknown.
	Delete(ctx context.Context, id string) error
}

// PriceCache stores the latest observed trade price per symbol.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
}
