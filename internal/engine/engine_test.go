package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/elfiee/engine/internal/capability"
	"github.com/elfiee/engine/internal/engineerr"
	"github.com/elfiee/engine/internal/model"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.sqlite")
	return NewManager(capability.NewBuiltinRegistry(), nil), path
}

func createEditor(t *testing.T, h *Handle, ctx context.Context, name string) string {
	t.Helper()
	events, err := h.ProcessCommand(ctx, model.Command{
		EditorID: "bootstrap", CapID: "editor.create",
		Payload: map[string]any{"name": name}, WallTime: time.Now().Unix(),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0].Entity
}

func createBlock(t *testing.T, h *Handle, ctx context.Context, editorID, name, blockType string) string {
	t.Helper()
	events, err := h.ProcessCommand(ctx, model.Command{
		EditorID: editorID, CapID: "core.create",
		Payload: map[string]any{"name": name, "block_type": blockType}, WallTime: time.Now().Unix(),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0].Entity
}

func TestS1_CreateRenameDelete(t *testing.T) {
	m, path := newTestManager(t)
	ctx := context.Background()
	h, err := m.Spawn(ctx, "f1", path)
	require.NoError(t, err)

	alice := createEditor(t, h, ctx, "alice")
	b := createBlock(t, h, ctx, alice, "Doc", "markdown")

	_, err = h.ProcessCommand(ctx, model.Command{
		EditorID: alice, CapID: "core.rename", BlockID: b,
		Payload: map[string]any{"name": "Doc2"}, WallTime: time.Now().Unix(),
	})
	require.NoError(t, err)

	block, ok, err := h.GetBlock(ctx, b)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Doc2", block.Name)

	_, err = h.ProcessCommand(ctx, model.Command{
		EditorID: alice, CapID: "core.delete", BlockID: b,
		Payload: map[string]any{}, WallTime: time.Now().Unix(),
	})
	require.NoError(t, err)

	_, ok, err = h.GetBlock(ctx, b)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestS2_GrantUnlocksAccess(t *testing.T) {
	m, path := newTestManager(t)
	ctx := context.Background()
	h, err := m.Spawn(ctx, "f1", path)
	require.NoError(t, err)

	alice := createEditor(t, h, ctx, "alice")
	bob := createEditor(t, h, ctx, "bob")
	b := createBlock(t, h, ctx, alice, "Doc", "markdown")

	_, err = h.ProcessCommand(ctx, model.Command{
		EditorID: bob, CapID: "markdown.write", BlockID: b,
		Payload: map[string]any{"content": "hi"}, WallTime: time.Now().Unix(),
	})
	require.Error(t, err)
	require.ErrorIs(t, err, engineerr.New(engineerr.Unauthorized, ""))

	_, err = h.ProcessCommand(ctx, model.Command{
		EditorID: alice, CapID: "core.grant", BlockID: b,
		Payload: map[string]any{"target_editor": bob, "capability": "markdown.write", "target_block": b},
		WallTime: time.Now().Unix(),
	})
	require.NoError(t, err)

	_, err = h.ProcessCommand(ctx, model.Command{
		EditorID: bob, CapID: "markdown.write", BlockID: b,
		Payload: map[string]any{"content": "hi"}, WallTime: time.Now().Unix(),
	})
	require.NoError(t, err)

	block, _, err := h.GetBlock(ctx, b)
	require.NoError(t, err)
	require.Equal(t, "hi", block.Contents["markdown"])
}

func TestS3_WildcardGrant(t *testing.T) {
	m, path := newTestManager(t)
	ctx := context.Background()
	h, err := m.Spawn(ctx, "f1", path)
	require.NoError(t, err)

	alice := createEditor(t, h, ctx, "alice")
	bob := createEditor(t, h, ctx, "bob")
	d := createBlock(t, h, ctx, alice, "Dir", "directory")

	_, err = h.ProcessCommand(ctx, model.Command{
		EditorID: alice, CapID: "core.grant", BlockID: d,
		Payload: map[string]any{"target_editor": bob, "capability": "directory.write"},
		WallTime: time.Now().Unix(),
	})
	require.NoError(t, err)

	_, err = h.ProcessCommand(ctx, model.Command{
		EditorID: bob, CapID: "directory.write", BlockID: d,
		Payload: map[string]any{"entries": map[string]any{"a.txt": "file"}}, WallTime: time.Now().Unix(),
	})
	require.NoError(t, err)
}

func TestS4_CycleRejection(t *testing.T) {
	m, path := newTestManager(t)
	ctx := context.Background()
	h, err := m.Spawn(ctx, "f1", path)
	require.NoError(t, err)

	alice := createEditor(t, h, ctx, "alice")
	a := createBlock(t, h, ctx, alice, "A", "markdown")
	b := createBlock(t, h, ctx, alice, "B", "markdown")
	c := createBlock(t, h, ctx, alice, "C", "markdown")

	_, err = h.ProcessCommand(ctx, model.Command{EditorID: alice, CapID: "core.link", BlockID: a,
		Payload: map[string]any{"target_id": b}, WallTime: time.Now().Unix()})
	require.NoError(t, err)
	_, err = h.ProcessCommand(ctx, model.Command{EditorID: alice, CapID: "core.link", BlockID: b,
		Payload: map[string]any{"target_id": c}, WallTime: time.Now().Unix()})
	require.NoError(t, err)

	_, err = h.ProcessCommand(ctx, model.Command{EditorID: alice, CapID: "core.link", BlockID: c,
		Payload: map[string]any{"target_id": a}, WallTime: time.Now().Unix()})
	require.Error(t, err)
	require.ErrorIs(t, err, engineerr.New(engineerr.InvalidPayload, ""))

	blockA, _, err := h.GetBlock(ctx, a)
	require.NoError(t, err)
	blockC, _, err := h.GetBlock(ctx, c)
	require.NoError(t, err)
	require.Equal(t, []string{b}, blockA.Children[model.RelationImplement])
	require.Empty(t, blockC.Children[model.RelationImplement])
}

func TestS5_SelfLoopAndDuplicateRejection(t *testing.T) {
	m, path := newTestManager(t)
	ctx := context.Background()
	h, err := m.Spawn(ctx, "f1", path)
	require.NoError(t, err)

	alice := createEditor(t, h, ctx, "alice")
	a := createBlock(t, h, ctx, alice, "A", "markdown")
	b := createBlock(t, h, ctx, alice, "B", "markdown")

	_, err = h.ProcessCommand(ctx, model.Command{EditorID: alice, CapID: "core.link", BlockID: a,
		Payload: map[string]any{"target_id": a}, WallTime: time.Now().Unix()})
	require.Error(t, err)

	_, err = h.ProcessCommand(ctx, model.Command{EditorID: alice, CapID: "core.link", BlockID: a,
		Payload: map[string]any{"target_id": b}, WallTime: time.Now().Unix()})
	require.NoError(t, err)

	_, err = h.ProcessCommand(ctx, model.Command{EditorID: alice, CapID: "core.link", BlockID: a,
		Payload: map[string]any{"target_id": b}, WallTime: time.Now().Unix()})
	require.Error(t, err)
}

func TestS6_ReloadAfterExternalAppend(t *testing.T) {
	m, path := newTestManager(t)
	ctx := context.Background()
	h, err := m.Spawn(ctx, "f1", path)
	require.NoError(t, err)

	createEditor(t, h, ctx, "alice")

	// A second manager opens the same archive file and appends independently
	// of the first actor, simulating a headless writer (spec.md "Dual
	// writers").
	m2 := NewManager(capability.NewBuiltinRegistry(), nil)
	h2, err := m2.Spawn(ctx, "f1-external", path)
	require.NoError(t, err)
	createEditor(t, h2, ctx, "carol")
	require.NoError(t, m2.Close(ctx, "f1-external"))

	count, err := h.ReloadState(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestS7_ReplayEquivalenceAfterReopen(t *testing.T) {
	m, path := newTestManager(t)
	ctx := context.Background()
	h, err := m.Spawn(ctx, "f1", path)
	require.NoError(t, err)

	alice := createEditor(t, h, ctx, "alice")
	a := createBlock(t, h, ctx, alice, "A", "markdown")
	b := createBlock(t, h, ctx, alice, "B", "markdown")
	_, err = h.ProcessCommand(ctx, model.Command{EditorID: alice, CapID: "core.link", BlockID: a,
		Payload: map[string]any{"target_id": b}, WallTime: time.Now().Unix()})
	require.NoError(t, err)

	before, err := h.GetAllBlocks(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, "f1"))

	m2 := NewManager(capability.NewBuiltinRegistry(), nil)
	h2, err := m2.Spawn(ctx, "f1", path)
	require.NoError(t, err)
	after, err := h2.GetAllBlocks(ctx)
	require.NoError(t, err)

	require.Equal(t, len(before), len(after))
	afterByID := make(map[string]*model.Block, len(after))
	for _, blk := range after {
		afterByID[blk.ID] = blk
	}
	for _, blk := range before {
		require.Equal(t, blk, afterByID[blk.ID])
	}
}
