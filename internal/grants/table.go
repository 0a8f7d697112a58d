// Package grants implements the CBAC grants projection: a table of
// (editor, capability, block-or-wildcard) triples built by replaying
// core.grant / core.revoke events, queryable for authorization.
package grants

import "github.com/elfiee/engine/internal/model"

// Table is keyed by editor_id, mapping to the list of grants held.
type Table struct {
	byEditor map[string][]model.Grant
}

// New returns an empty grants table.
func New() *Table {
	return &Table{byEditor: make(map[string][]model.Grant)}
}

// Add records a grant. Duplicate grants are idempotent.
func (t *Table) Add(g model.Grant) {
	for _, existing := range t.byEditor[g.EditorID] {
		if existing == g {
			return
		}
	}
	t.byEditor[g.EditorID] = append(t.byEditor[g.EditorID], g)
}

// Remove deletes a matching grant triple, if present.
func (t *Table) Remove(g model.Grant) {
	list := t.byEditor[g.EditorID]
	for i, existing := range list {
		if existing == g {
			t.byEditor[g.EditorID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Authorized reports whether editorID holds a grant matching capID that
// covers blockID (exactly, or via the wildcard "*").
func (t *Table) Authorized(editorID, capID, blockID string) bool {
	for _, g := range t.byEditor[editorID] {
		if g.CapID == capID && g.AppliesToBlock(blockID) {
			return true
		}
	}
	return false
}

// All returns an owned deep copy of every grant in the table, for
// GetAllGrants snapshots.
func (t *Table) All() []model.Grant {
	var out []model.Grant
	for _, list := range t.byEditor {
		out = append(out, list...)
	}
	return out
}

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	clone := New()
	for editor, list := range t.byEditor {
		cp := make([]model.Grant, len(list))
		copy(cp, list)
		clone.byEditor[editor] = cp
	}
	return clone
}
