package capability

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elfiee/engine/internal/engineerr"
	"github.com/elfiee/engine/internal/model"
)

// touchedAt renders the command's wall-clock timestamp deterministically,
// so metadata.updated_at is derived from the command rather than read from
// the system clock during handling — a handler that called time.Now()
// itself would make cold replay's output depend on when replay happens to
// run, breaking the determinism property of spec.md section 8.
func touchedAt(cmd model.Command) string {
	return time.Unix(cmd.WallTime, 0).UTC().Format(time.RFC3339)
}

// ReservedBlockTypes are the block-type tags the host registers
// capabilities against out of the box (spec.md section 6).
var ReservedBlockTypes = []string{
	model.BlockTypeMarkdown,
	model.BlockTypeCode,
	model.BlockTypeDirectory,
	model.BlockTypeTerminal,
	model.BlockTypeAgent,
}

// Builtins returns the built-in capability set of spec.md section 4.3,
// grounded on original_source/src-tauri/src/capabilities/builtins.
func Builtins() []Descriptor {
	return []Descriptor{
		{CapID: "core.create", Target: TargetAnyBlock, RequiresBlock: false, Public: true, Handler: handleCoreCreate},
		{CapID: "core.rename", Target: TargetAnyBlock, RequiresBlock: true, Handler: handleCoreRename},
		{CapID: "core.change_type", Target: TargetAnyBlock, RequiresBlock: true, Handler: handleCoreChangeType},
		{CapID: "core.delete", Target: TargetAnyBlock, RequiresBlock: true, Handler: handleCoreDelete},
		{CapID: "core.read", Target: TargetAnyBlock, RequiresBlock: true, Handler: handleCoreRead},
		{CapID: "core.link", Target: TargetAnyBlock, RequiresBlock: true, Handler: handleCoreLink},
		{CapID: "core.unlink", Target: TargetAnyBlock, RequiresBlock: true, Handler: handleCoreUnlink},
		{CapID: "core.grant", Target: TargetAnyBlock, RequiresBlock: true, Handler: handleCoreGrant},
		{CapID: "core.revoke", Target: TargetAnyBlock, RequiresBlock: true, Handler: handleCoreRevoke},

		{CapID: "editor.create", Target: TargetSystem, RequiresBlock: false, Public: true, Handler: handleEditorCreate},
		{CapID: "editor.delete", Target: TargetSystem, RequiresBlock: false, Public: true, Handler: handleEditorDelete},

		{CapID: "markdown.read", Target: model.BlockTypeMarkdown, RequiresBlock: true, Handler: handleNoopRead},
		{CapID: "markdown.write", Target: model.BlockTypeMarkdown, RequiresBlock: true, Handler: handleMarkdownWrite},
		{CapID: "code.read", Target: model.BlockTypeCode, RequiresBlock: true, Handler: handleNoopRead},
		{CapID: "code.write", Target: model.BlockTypeCode, RequiresBlock: true, Handler: handleCodeWrite},

		{CapID: "directory.read", Target: model.BlockTypeDirectory, RequiresBlock: true, Handler: handleNoopRead},
		{CapID: "directory.root", Target: model.BlockTypeDirectory, RequiresBlock: true, Handler: handleDirectoryRoot},
		{CapID: "directory.write", Target: model.BlockTypeDirectory, RequiresBlock: true, Handler: handleDirectoryWrite},
		{CapID: "directory.export", Target: model.BlockTypeDirectory, RequiresBlock: true, Handler: handleDirectoryExport},
		{CapID: "directory.watch", Target: model.BlockTypeDirectory, RequiresBlock: true, Handler: handleDirectoryWatch},

		{CapID: "terminal.read", Target: model.BlockTypeTerminal, RequiresBlock: true, Handler: handleNoopRead},
		{CapID: "terminal.init", Target: model.BlockTypeTerminal, RequiresBlock: true, Handler: handleTerminalInit},
		{CapID: "terminal.close", Target: model.BlockTypeTerminal, RequiresBlock: true, Handler: handleTerminalClose},
		{CapID: "terminal.write", Target: model.BlockTypeTerminal, RequiresBlock: true, Handler: handleNoopRead},
		{CapID: "terminal.resize", Target: model.BlockTypeTerminal, RequiresBlock: true, Handler: handleNoopRead},
		{CapID: "terminal.save", Target: model.BlockTypeTerminal, RequiresBlock: true, Handler: handleTerminalSave},
	}
}

// createEvent builds a single-event batch the way the original
// create_event helper does: the editor_count placeholder is always 1, the
// engine actor overwrites it with the authoritative vector-clock value
// (spec.md section 4.3 "The editor_count field... is a placeholder").
func createEvent(entity, capID string, value map[string]any, editorID string) model.Event {
	return model.Event{
		ID:        uuid.NewString(),
		Entity:    entity,
		Attribute: capID,
		Value:     value,
		Timestamp: map[string]uint64{editorID: 1},
	}
}

func invalid(format string) error {
	return engineerr.New(engineerr.InvalidPayload, format)
}

func stringField(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ---- core.* ----

func handleCoreCreate(cmd model.Command, _ *model.Block, _ World) ([]model.Event, error) {
	name, ok := stringField(cmd.Payload, "name")
	if !ok || strings.TrimSpace(name) == "" {
		return nil, invalid("missing or empty 'name' in payload")
	}
	blockType, ok := stringField(cmd.Payload, "block_type")
	if !ok || strings.TrimSpace(blockType) == "" {
		return nil, invalid("missing or empty 'block_type' in payload")
	}

	blockID := uuid.NewString()
	event := createEvent(blockID, "core.create", map[string]any{
		"name":     strings.TrimSpace(name),
		"type":     blockType,
		"owner":    cmd.EditorID,
		"contents": map[string]any{},
		"children": map[string]any{},
		"metadata": map[string]any{"created_at": touchedAt(cmd), "updated_at": touchedAt(cmd)},
	}, cmd.EditorID)
	return []model.Event{event}, nil
}

func handleCoreRename(cmd model.Command, block *model.Block, _ World) ([]model.Event, error) {
	name, ok := stringField(cmd.Payload, "name")
	if !ok || strings.TrimSpace(name) == "" {
		return nil, invalid("missing or empty 'name' in payload")
	}
	return []model.Event{createEvent(block.ID, "core.rename", map[string]any{
		"name": strings.TrimSpace(name),
	}, cmd.EditorID)}, nil
}

func handleCoreChangeType(cmd model.Command, block *model.Block, _ World) ([]model.Event, error) {
	blockType, ok := stringField(cmd.Payload, "block_type")
	if !ok || strings.TrimSpace(blockType) == "" {
		return nil, invalid("missing or empty 'block_type' in payload")
	}
	return []model.Event{createEvent(block.ID, "core.change_type", map[string]any{
		"block_type": strings.TrimSpace(blockType),
	}, cmd.EditorID)}, nil
}

func handleCoreDelete(cmd model.Command, block *model.Block, _ World) ([]model.Event, error) {
	return []model.Event{createEvent(block.ID, "core.delete", map[string]any{
		"deleted": true,
	}, cmd.EditorID)}, nil
}

func handleCoreRead(_ model.Command, _ *model.Block, _ World) ([]model.Event, error) {
	return nil, nil
}

func handleCoreLink(cmd model.Command, block *model.Block, world World) ([]model.Event, error) {
	targetID, ok := stringField(cmd.Payload, "target_id")
	if !ok || targetID == "" {
		return nil, invalid("missing 'target_id' in payload")
	}
	relation, _ := stringField(cmd.Payload, "relation")
	if relation == "" {
		relation = model.RelationImplement
	}
	if relation != model.RelationImplement {
		return nil, invalid("only the 'implement' relation is permitted")
	}
	if targetID == block.ID {
		return nil, invalid("a block cannot link to itself")
	}
	if _, exists := world.GetBlock(targetID); !exists {
		return nil, invalid("target block does not exist: " + targetID)
	}
	for _, existing := range block.Children[model.RelationImplement] {
		if existing == targetID {
			return nil, invalid("edge already exists")
		}
	}
	if reachable(world, targetID, block.ID, map[string]bool{}) {
		return nil, invalid("link would create a cycle")
	}

	newChildren := cloneChildren(block.Children)
	newChildren[model.RelationImplement] = append(newChildren[model.RelationImplement], targetID)
	return []model.Event{createEvent(block.ID, "core.link", map[string]any{
		"children": childrenToValue(newChildren),
	}, cmd.EditorID)}, nil
}

func handleCoreUnlink(cmd model.Command, block *model.Block, _ World) ([]model.Event, error) {
	targetID, ok := stringField(cmd.Payload, "target_id")
	if !ok || targetID == "" {
		return nil, invalid("missing 'target_id' in payload")
	}
	relation, _ := stringField(cmd.Payload, "relation")
	if relation == "" {
		relation = model.RelationImplement
	}

	newChildren := cloneChildren(block.Children)
	targets := newChildren[relation]
	filtered := targets[:0:0]
	for _, id := range targets {
		if id != targetID {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) == 0 {
		delete(newChildren, relation)
	} else {
		newChildren[relation] = filtered
	}
	return []model.Event{createEvent(block.ID, "core.unlink", map[string]any{
		"children": childrenToValue(newChildren),
	}, cmd.EditorID)}, nil
}

// reachable performs the DFS of spec.md section 9: starting from
// targetID, can we reach wantID by following children[implement] edges?
// If so, adding block->targetID would close a cycle back to block.
func reachable(world World, fromID, wantID string, visited map[string]bool) bool {
	if fromID == wantID {
		return true
	}
	if visited[fromID] {
		return false
	}
	visited[fromID] = true
	b, ok := world.GetBlock(fromID)
	if !ok {
		return false
	}
	for _, next := range b.Children[model.RelationImplement] {
		if reachable(world, next, wantID, visited) {
			return true
		}
	}
	return false
}

func cloneChildren(children map[string][]string) map[string][]string {
	out := make(map[string][]string, len(children))
	for k, v := range children {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

func childrenToValue(children map[string][]string) map[string]any {
	out := make(map[string]any, len(children))
	for k, v := range children {
		ids := make([]any, len(v))
		for i, id := range v {
			ids[i] = id
		}
		out[k] = ids
	}
	return out
}

func handleCoreGrant(cmd model.Command, _ *model.Block, _ World) ([]model.Event, error) {
	targetEditor, ok := stringField(cmd.Payload, "target_editor")
	if !ok || targetEditor == "" {
		return nil, invalid("missing 'target_editor' in payload")
	}
	capID, ok := stringField(cmd.Payload, "capability")
	if !ok || capID == "" {
		return nil, invalid("missing 'capability' in payload")
	}
	targetBlock, ok := stringField(cmd.Payload, "target_block")
	if !ok || targetBlock == "" {
		targetBlock = model.WildcardBlock
	}

	return []model.Event{createEvent(targetBlock, "core.grant", map[string]any{
		"editor":     targetEditor,
		"capability": capID,
		"block":      targetBlock,
	}, cmd.EditorID)}, nil
}

func handleCoreRevoke(cmd model.Command, _ *model.Block, _ World) ([]model.Event, error) {
	targetEditor, ok := stringField(cmd.Payload, "target_editor")
	if !ok || targetEditor == "" {
		return nil, invalid("missing 'target_editor' in payload")
	}
	capID, ok := stringField(cmd.Payload, "capability")
	if !ok || capID == "" {
		return nil, invalid("missing 'capability' in payload")
	}
	targetBlock, ok := stringField(cmd.Payload, "target_block")
	if !ok || targetBlock == "" {
		targetBlock = model.WildcardBlock
	}

	return []model.Event{createEvent(targetBlock, "core.revoke", map[string]any{
		"editor":     targetEditor,
		"capability": capID,
		"block":      targetBlock,
	}, cmd.EditorID)}, nil
}

// ---- editor.* ----

func handleEditorCreate(cmd model.Command, _ *model.Block, _ World) ([]model.Event, error) {
	name, ok := stringField(cmd.Payload, "name")
	if !ok || strings.TrimSpace(name) == "" {
		return nil, invalid("missing or empty 'name' in payload")
	}
	editorID, ok := stringField(cmd.Payload, "editor_id")
	if !ok || editorID == "" {
		editorID = uuid.NewString()
	}
	return []model.Event{createEvent(editorID, "editor.create", map[string]any{
		"editor_id": editorID,
		"name":      strings.TrimSpace(name),
	}, cmd.EditorID)}, nil
}

func handleEditorDelete(cmd model.Command, _ *model.Block, _ World) ([]model.Event, error) {
	editorID, ok := stringField(cmd.Payload, "editor_id")
	if !ok || editorID == "" {
		return nil, invalid("missing 'editor_id' in payload")
	}
	return []model.Event{createEvent(editorID, "editor.delete", map[string]any{
		"editor_id": editorID,
	}, cmd.EditorID)}, nil
}

// ---- type-specific permission gates ----

func handleNoopRead(_ model.Command, _ *model.Block, _ World) ([]model.Event, error) {
	return nil, nil
}

// ---- markdown / code ----

func handleMarkdownWrite(cmd model.Command, block *model.Block, _ World) ([]model.Event, error) {
	content, ok := stringField(cmd.Payload, "content")
	if !ok {
		return nil, invalid("missing 'content' in payload")
	}
	return []model.Event{createEvent(block.ID, "markdown.write", map[string]any{
		"contents": map[string]any{"markdown": content},
		"metadata": map[string]any{"updated_at": touchedAt(cmd)},
	}, cmd.EditorID)}, nil
}

func handleCodeWrite(cmd model.Command, block *model.Block, _ World) ([]model.Event, error) {
	content, ok := stringField(cmd.Payload, "content")
	if !ok {
		return nil, invalid("missing 'content' in payload")
	}
	return []model.Event{createEvent(block.ID, "code.write", map[string]any{
		"contents": map[string]any{"text": content},
		"metadata": map[string]any{"updated_at": touchedAt(cmd)},
	}, cmd.EditorID)}, nil
}

// ---- directory ----

func handleDirectoryRoot(cmd model.Command, block *model.Block, _ World) ([]model.Event, error) {
	path, ok := stringField(cmd.Payload, "path")
	if !ok || strings.TrimSpace(path) == "" {
		return nil, invalid("missing or empty 'path' in payload")
	}
	info, err := statDir(path)
	if err != nil || !info {
		return nil, invalid("path does not exist or is not a directory: " + path)
	}
	canonical, err := canonicalizePath(path)
	if err != nil {
		return nil, invalid("could not canonicalize 'path': " + path)
	}

	recursive, _ := cmd.Payload["recursive"].(bool)
	hidden, _ := cmd.Payload["show_hidden"].(bool)
	depth := 0
	if d, ok := cmd.Payload["depth"].(float64); ok {
		depth = int(d)
	}

	return []model.Event{createEvent(block.ID, "directory.root", map[string]any{
		"contents": map[string]any{
			"root":        canonical,
			"recursive":   recursive,
			"show_hidden": hidden,
			"depth":       depth,
			"entries":     map[string]any{},
		},
	}, cmd.EditorID)}, nil
}

func handleDirectoryWrite(cmd model.Command, block *model.Block, _ World) ([]model.Event, error) {
	entries, ok := cmd.Payload["entries"].(map[string]any)
	if !ok {
		return nil, invalid("'entries' must be an object")
	}
	return []model.Event{createEvent(block.ID, "directory.write", map[string]any{
		"contents": map[string]any{"entries": entries},
	}, cmd.EditorID)}, nil
}

func handleDirectoryExport(cmd model.Command, block *model.Block, _ World) ([]model.Event, error) {
	source, ok := stringField(cmd.Payload, "source")
	if !ok || strings.TrimSpace(source) == "" {
		return nil, invalid("missing or empty 'source' in payload")
	}
	target, ok := stringField(cmd.Payload, "target")
	if !ok || strings.TrimSpace(target) == "" {
		return nil, invalid("missing or empty 'target' in payload")
	}
	// Audit-only: the actual file copy is performed by an external
	// collaborator after the core returns success (spec.md section 9).
	return []model.Event{createEvent(block.ID, "directory.export", map[string]any{
		"audit": map[string]any{"source": source, "target": target},
	}, cmd.EditorID)}, nil
}

func handleDirectoryWatch(cmd model.Command, block *model.Block, _ World) ([]model.Event, error) {
	enabled, _ := cmd.Payload["enabled"].(bool)
	return []model.Event{createEvent(block.ID, "directory.watch", map[string]any{
		"contents": map[string]any{"watch_enabled": enabled},
	}, cmd.EditorID)}, nil
}

// ---- terminal ----

func handleTerminalInit(cmd model.Command, block *model.Block, _ World) ([]model.Event, error) {
	return []model.Event{createEvent(block.ID, "terminal.init", map[string]any{
		"audit": map[string]any{"session": "init"},
	}, cmd.EditorID)}, nil
}

func handleTerminalClose(cmd model.Command, block *model.Block, _ World) ([]model.Event, error) {
	return []model.Event{createEvent(block.ID, "terminal.close", map[string]any{
		"audit": map[string]any{"session": "close"},
	}, cmd.EditorID)}, nil
}

func handleTerminalSave(cmd model.Command, block *model.Block, _ World) ([]model.Event, error) {
	content, ok := stringField(cmd.Payload, "content")
	if !ok {
		return nil, invalid("missing 'content' in payload")
	}
	savedAt, ok := stringField(cmd.Payload, "saved_at")
	if !ok || savedAt == "" {
		savedAt = touchedAt(cmd)
	}
	return []model.Event{createEvent(block.ID, "terminal.save", map[string]any{
		"contents": map[string]any{
			"saved_content": content,
			"saved_at":      savedAt,
		},
	}, cmd.EditorID)}, nil
}
