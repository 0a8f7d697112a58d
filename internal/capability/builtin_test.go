package capability

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elfiee/engine/internal/model"
)

type fakeWorld map[string]*model.Block

func (w fakeWorld) GetBlock(id string) (*model.Block, bool) {
	b, ok := w[id]
	return b, ok
}

func TestBuiltinsRegisterWithoutDuplicates(t *testing.T) {
	require.NotPanics(t, func() {
		NewBuiltinRegistry()
	})
}

func TestCoreCreateRequiresNameAndType(t *testing.T) {
	_, err := handleCoreCreate(model.Command{EditorID: "alice", Payload: map[string]any{}}, nil, nil)
	require.Error(t, err)

	_, err = handleCoreCreate(model.Command{EditorID: "alice", Payload: map[string]any{"name": "  "}}, nil, nil)
	require.Error(t, err)

	events, err := handleCoreCreate(model.Command{EditorID: "alice", Payload: map[string]any{
		"name": "Doc", "block_type": "markdown",
	}}, nil, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "core.create", events[0].Attribute)
	require.Equal(t, "alice", events[0].Value["owner"])
}

func TestCoreLinkRejectsSelfLoop(t *testing.T) {
	a := &model.Block{ID: "a", Children: map[string][]string{}}
	world := fakeWorld{"a": a}
	_, err := handleCoreLink(model.Command{EditorID: "alice", Payload: map[string]any{"target_id": "a"}}, a, world)
	require.Error(t, err)
}

func TestCoreLinkRejectsDuplicate(t *testing.T) {
	a := &model.Block{ID: "a", Children: map[string][]string{model.RelationImplement: {"b"}}}
	b := &model.Block{ID: "b", Children: map[string][]string{}}
	world := fakeWorld{"a": a, "b": b}
	_, err := handleCoreLink(model.Command{EditorID: "alice", Payload: map[string]any{"target_id": "b"}}, a, world)
	require.Error(t, err)
}

func TestCoreLinkRejectsNonImplementRelation(t *testing.T) {
	a := &model.Block{ID: "a", Children: map[string][]string{}}
	b := &model.Block{ID: "b", Children: map[string][]string{}}
	world := fakeWorld{"a": a, "b": b}
	_, err := handleCoreLink(model.Command{EditorID: "alice", Payload: map[string]any{
		"target_id": "b", "relation": "depends_on",
	}}, a, world)
	require.Error(t, err)
}

func TestCoreLinkRejectsCycle(t *testing.T) {
	// a -> b -> c exists; c -> a would close a cycle.
	a := &model.Block{ID: "a", Children: map[string][]string{model.RelationImplement: {"b"}}}
	b := &model.Block{ID: "b", Children: map[string][]string{model.RelationImplement: {"c"}}}
	c := &model.Block{ID: "c", Children: map[string][]string{}}
	world := fakeWorld{"a": a, "b": b, "c": c}

	_, err := handleCoreLink(model.Command{EditorID: "alice", Payload: map[string]any{"target_id": "a"}}, c, world)
	require.Error(t, err)
}

func TestCoreLinkAcceptsValidEdge(t *testing.T) {
	a := &model.Block{ID: "a", Children: map[string][]string{}}
	b := &model.Block{ID: "b", Children: map[string][]string{}}
	world := fakeWorld{"a": a, "b": b}

	events, err := handleCoreLink(model.Command{EditorID: "alice", Payload: map[string]any{"target_id": "b"}}, a, world)
	require.NoError(t, err)
	require.Len(t, events, 1)
	children := events[0].Value["children"].(map[string]any)
	require.Equal(t, []any{"b"}, children[model.RelationImplement])
}

func TestCoreUnlinkDropsEmptyRelation(t *testing.T) {
	a := &model.Block{ID: "a", Children: map[string][]string{model.RelationImplement: {"b"}}}
	events, err := handleCoreUnlink(model.Command{EditorID: "alice", Payload: map[string]any{"target_id": "b"}}, a, nil)
	require.NoError(t, err)
	children := events[0].Value["children"].(map[string]any)
	_, hasRelation := children[model.RelationImplement]
	require.False(t, hasRelation)
}

func TestDirectoryWriteRequiresObjectEntries(t *testing.T) {
	block := &model.Block{ID: "d1"}
	_, err := handleDirectoryWrite(model.Command{Payload: map[string]any{"entries": "not-an-object"}}, block, nil)
	require.Error(t, err)

	events, err := handleDirectoryWrite(model.Command{Payload: map[string]any{"entries": map[string]any{"a.txt": "file"}}}, block, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestMarkdownWriteTouchesContents(t *testing.T) {
	block := &model.Block{ID: "m1"}
	events, err := handleMarkdownWrite(model.Command{EditorID: "alice", Payload: map[string]any{"content": "hello"}}, block, nil)
	require.NoError(t, err)
	contents := events[0].Value["contents"].(map[string]any)
	require.Equal(t, "hello", contents["markdown"])
}
