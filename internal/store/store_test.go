package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elfiee/engine/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.elf")
	s, err := Create(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendBatchRejectsEmpty(t *testing.T) {
	s := openTemp(t)
	err := s.AppendBatch(context.Background(), nil)
	require.Error(t, err)
}

func TestAppendAndReplayPreservesOrder(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	batch1 := []model.Event{
		{ID: "e1", Entity: "b1", Attribute: "core.create", Value: map[string]any{"name": "Doc"}, Timestamp: map[string]uint64{"alice": 1}},
	}
	batch2 := []model.Event{
		{ID: "e2", Entity: "b1", Attribute: "core.rename", Value: map[string]any{"name": "Doc2"}, Timestamp: map[string]uint64{"alice": 2}},
		{ID: "e3", Entity: "b1", Attribute: "core.delete", Value: map[string]any{"deleted": true}, Timestamp: map[string]uint64{"alice": 3}},
	}

	require.NoError(t, s.AppendBatch(ctx, batch1))
	require.NoError(t, s.AppendBatch(ctx, batch2))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	events, err := s.ReplayAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "e1", events[0].ID)
	require.Equal(t, "e2", events[1].ID)
	require.Equal(t, "e3", events[2].ID)
	require.Equal(t, "Doc2", events[1].Value["name"])
}

func TestAppendBatchIsAtomic(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.AppendBatch(ctx, []model.Event{
		{ID: "dup", Entity: "b1", Attribute: "core.create", Value: map[string]any{}, Timestamp: map[string]uint64{"alice": 1}},
	}))

	// Second batch reuses "dup" as its first event id and should fail
	// entirely, leaving the valid second event unpersisted too.
	err := s.AppendBatch(ctx, []model.Event{
		{ID: "dup", Entity: "b1", Attribute: "core.rename", Value: map[string]any{}, Timestamp: map[string]uint64{"alice": 2}},
		{ID: "e-valid", Entity: "b1", Attribute: "core.rename", Value: map[string]any{}, Timestamp: map[string]uint64{"alice": 3}},
	})
	require.Error(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestReplayIsRestartable(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.AppendBatch(ctx, []model.Event{
		{ID: "e1", Entity: "b1", Attribute: "core.create", Value: map[string]any{}, Timestamp: map[string]uint64{"alice": 1}},
	}))

	first, err := s.ReplayAll(ctx)
	require.NoError(t, err)
	second, err := s.ReplayAll(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
