package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

type memStore struct {
	records map[string]domain.BotRecord
	fail    bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]domain.BotRecord)}
}

func (m *memStore) LoadAll(ctx context.Context) ([]domain.BotRecord, error) {
	if m.fail {
		return nil, errors.New("store down")
	}
	out := make([]domain.BotRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memStore) UpsertOne(ctx context.Context, rec domain.BotRecord) error {
	if m.fail {
		return errors.New("store down")
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	if m.fail {
		return errors.New("store down")
	}
	if _, ok := m.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFallbackWritesThrough(t *testing.T) {
	ctx := context.Background()
	durable := newMemStore()
	snap := newMemStore()
	f := NewFallback(durable, snap, testLogger())

	rec := domain.BotRecord{ID: "a", Capital: 100}
	require.NoError(t, f.UpsertOne(ctx, rec))

	// Both stores hold the record after a healthy write.
	assert.Contains(t, durable.records, "a")
	assert.Contains(t, snap.records, "a")
}

func TestFallbackDegradesOnDurableFailure(t *testing.T) {
	ctx := context.Background()
	durable := newMemStore()
	durable.fail = true
	snap := newMemStore()
	f := NewFallback(durable, snap, testLogger())

	require.NoError(t, f.UpsertOne(ctx, domain.BotRecord{ID: "a"}))
	assert.Contains(t, snap.records, "a")

	records, err := f.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestFallbackPrefersDurableReads(t *testing.T) {
	ctx := context.Background()
	durable := newMemStore()
	durable.records["d"] = domain.BotRecord{ID: "d"}
	snap := newMemStore()
	snap.records["s"] = domain.BotRecord{ID: "s"}
	f := NewFallback(durable, snap, testLogger())

	records, err := f.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "d", records[0].ID)
}

func TestFallbackSnapshotOnly(t *testing.T) {
	ctx := context.Background()
	snap := newMemStore()
	f := NewFallback(nil, snap, testLogger())

	require.NoError(t, f.UpsertOne(ctx, domain.BotRecord{ID: "a"}))
	require.NoError(t, f.Delete(ctx, "a"))
	err := f.Delete(ctx, "a")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
