package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "nested", "bots.json"))

	// Missing file reads as empty.
	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	rec := domain.BotRecord{
		ID:      "abc12345",
		UserID:  "u1",
		Symbol:  "BTC_USDT",
		Capital: 1000,
		Status:  domain.BotStopped,
	}
	require.NoError(t, s.UpsertOne(ctx, rec))

	records, err = s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "abc12345", records[0].ID)
	assert.Equal(t, 1000.0, records[0].Capital)
}

func TestSnapshotUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "bots.json"))

	rec := domain.BotRecord{ID: "a", Capital: 100}
	require.NoError(t, s.UpsertOne(ctx, rec))

	rec.Capital = 200
	require.NoError(t, s.UpsertOne(ctx, rec))

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 200.0, records[0].Capital)
}

func TestSnapshotDelete(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "bots.json"))

	require.NoError(t, s.UpsertOne(ctx, domain.BotRecord{ID: "a"}))
	require.NoError(t, s.UpsertOne(ctx, domain.BotRecord{ID: "b"}))

	require.NoError(t, s.Delete(ctx, "a"))

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].ID)

	err = s.Delete(ctx, "a")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
