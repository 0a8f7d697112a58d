package projector

import (
	"github.com/elfiee/engine/internal/engineerr"
	"github.com/elfiee/engine/internal/model"
)

// ColdReplay projects the full event log from an empty state.
func ColdReplay(events []model.Event) (*State, error) {
	s := New()
	if err := ApplyBatch(s, events); err != nil {
		return nil, err
	}
	return s, nil
}

// ApplyBatch extends state in place with a freshly appended batch. Cold
// replay is defined as ApplyBatch over the whole log starting from an
// empty state, so the two modes agree by construction (spec.md 4.5,
// "incremental equivalence").
func ApplyBatch(s *State, events []model.Event) error {
	for _, ev := range events {
		if err := applyOne(s, ev); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(s *State, ev model.Event) error {
	switch ev.CapID() {
	case "core.create":
		return applyCoreCreate(s, ev)
	case "core.rename":
		return applyOnBlock(s, ev, func(b *model.Block) error {
			if name, ok := ev.Value["name"].(string); ok {
				b.Name = name
			}
			return nil
		})
	case "core.change_type":
		return applyOnBlock(s, ev, func(b *model.Block) error {
			if bt, ok := ev.Value["block_type"].(string); ok {
				b.BlockType = bt
			}
			return nil
		})
	case "core.delete":
		applyCoreDelete(s, ev.Entity)
		return nil
	case "core.link":
		return applyLink(s, ev)
	case "core.unlink":
		return applyLink(s, ev)
	case "core.grant":
		applyGrantChange(s, ev, true)
		return nil
	case "core.revoke":
		applyGrantChange(s, ev, false)
		return nil
	case "editor.create":
		applyEditorCreate(s, ev)
		return nil
	case "editor.delete":
		applyEditorDelete(s, ev)
		return nil
	case "markdown.write", "code.write", "terminal.save":
		return applyOnBlock(s, ev, func(b *model.Block) error {
			mergeContentsAndMetadata(b, ev.Value)
			return nil
		})
	case "directory.root", "directory.write", "directory.export", "directory.watch":
		return applyOnBlock(s, ev, func(b *model.Block) error {
			mergeContentsAndMetadata(b, ev.Value)
			return nil
		})
	default:
		// Permission gates and unrecognized attributes (core.read,
		// markdown.read, terminal.write/resize/init/close, ...) are
		// audit-only or no-ops on projection.
		return nil
	}
}

// applyOnBlock resolves ev.Entity to a live block and runs fn against it.
// Events against a deleted or never-created block are a no-op on replay
// (spec.md 4.5).
func applyOnBlock(s *State, ev model.Event, fn func(b *model.Block) error) error {
	b, ok := s.Blocks[ev.Entity]
	if !ok {
		return nil
	}
	return fn(b)
}

func applyCoreCreate(s *State, ev model.Event) error {
	if _, exists := s.Blocks[ev.Entity]; exists {
		// A second core.create for the same id would violate the
		// one-block-per-id invariant; treat as a no-op rather than
		// clobbering the original.
		return nil
	}
	name, _ := ev.Value["name"].(string)
	blockType, _ := ev.Value["type"].(string)
	owner, _ := ev.Value["owner"].(string)

	b := &model.Block{
		ID:        ev.Entity,
		Name:      name,
		BlockType: blockType,
		Owner:     owner,
		Contents:  map[string]any{},
		Children:  map[string][]string{},
	}
	if contents, ok := ev.Value["contents"].(map[string]any); ok {
		mergeMap(b.Contents, contents)
	}
	if meta, ok := ev.Value["metadata"].(map[string]any); ok {
		applyMetadata(&b.Metadata, meta)
	}
	s.Blocks[ev.Entity] = b

	if children, ok := ev.Value["children"].(map[string]any); ok {
		setChildren(s, b, parseChildren(children))
	}
	return nil
}

func applyCoreDelete(s *State, blockID string) {
	b, ok := s.Blocks[blockID]
	if !ok {
		return
	}
	// Scrub incoming parent edges: every block that lists blockID as an
	// implement-child loses that entry.
	for parentID := range s.Parents[blockID] {
		if parent, ok := s.Blocks[parentID]; ok {
			removeChild(parent, blockID)
		}
	}
	delete(s.Parents, blockID)
	// blockID is no longer a parent of its own children.
	for _, childID := range b.Children[model.RelationImplement] {
		s.removeParent(childID, blockID)
	}
	delete(s.Blocks, blockID)
}

func removeChild(b *model.Block, targetID string) {
	list := b.Children[model.RelationImplement]
	filtered := list[:0:0]
	for _, id := range list {
		if id != targetID {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) == 0 {
		delete(b.Children, model.RelationImplement)
	} else {
		b.Children[model.RelationImplement] = filtered
	}
}

func applyLink(s *State, ev model.Event) error {
	return applyOnBlock(s, ev, func(b *model.Block) error {
		children, ok := ev.Value["children"].(map[string]any)
		if !ok {
			return engineerr.New(engineerr.ProjectionInvariantViolated, "link event missing children")
		}
		setChildren(s, b, parseChildren(children))
		return nil
	})
}

// setChildren replaces b.Children wholesale and rebuilds the reverse-index
// entries it owns: the handler already computed the full post-edit child
// list, so the projector's job is bookkeeping, not merging.
func setChildren(s *State, b *model.Block, newChildren map[string][]string) {
	old := b.Children[model.RelationImplement]
	for _, id := range old {
		s.removeParent(id, b.ID)
	}
	b.Children = newChildren
	for _, id := range b.Children[model.RelationImplement] {
		s.addParent(id, b.ID)
	}
}

func parseChildren(v map[string]any) map[string][]string {
	out := make(map[string][]string, len(v))
	for relation, raw := range v {
		ids, ok := raw.([]any)
		if !ok {
			continue
		}
		list := make([]string, 0, len(ids))
		for _, id := range ids {
			if s, ok := id.(string); ok {
				list = append(list, s)
			}
		}
		if len(list) > 0 {
			out[relation] = list
		}
	}
	return out
}

func applyGrantChange(s *State, ev model.Event, grant bool) {
	editor, _ := ev.Value["editor"].(string)
	capID, _ := ev.Value["capability"].(string)
	block, _ := ev.Value["block"].(string)
	if editor == "" || capID == "" {
		return
	}
	g := model.Grant{EditorID: editor, CapID: capID, BlockID: block}
	if grant {
		s.Grants.Add(g)
	} else {
		s.Grants.Remove(g)
	}
}

func applyEditorCreate(s *State, ev model.Event) {
	editorID, _ := ev.Value["editor_id"].(string)
	name, _ := ev.Value["name"].(string)
	if editorID == "" {
		return
	}
	s.Editors[editorID] = model.Editor{ID: editorID, Name: name}
}

func applyEditorDelete(s *State, ev model.Event) {
	editorID, _ := ev.Value["editor_id"].(string)
	delete(s.Editors, editorID)
}

// mergeContentsAndMetadata folds value["contents"] into b.Contents
// (top-level key merge) and value["metadata"] into b.Metadata. Audit-only
// events (directory.export, terminal.init/close) carry neither key and so
// are no-ops here, matching their "no mutation" role in spec.md 4.3.
func mergeContentsAndMetadata(b *model.Block, value map[string]any) {
	if contents, ok := value["contents"].(map[string]any); ok {
		if b.Contents == nil {
			b.Contents = map[string]any{}
		}
		mergeMap(b.Contents, contents)
	}
	if meta, ok := value["metadata"].(map[string]any); ok {
		applyMetadata(&b.Metadata, meta)
	}
}

func applyMetadata(m *model.BlockMetadata, fields map[string]any) {
	if createdAt, ok := fields["created_at"].(string); ok {
		m.CreatedAt = createdAt
	}
	if updatedAt, ok := fields["updated_at"].(string); ok {
		m.UpdatedAt = updatedAt
	}
	if description, ok := fields["description"].(string); ok {
		m.Description = description
	}
}

func mergeMap(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopyValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopyValue(vv)
		}
		return out
	default:
		return v
	}
}
