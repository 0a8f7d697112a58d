// Package projector turns an ordered Event stream into the current Block
// map, Editor map, grants table and reverse causal index — the
// StateProjector of spec.md section 4.5. It supports cold replay (from an
// empty state over the whole log) and incremental apply (extending an
// existing state with a freshly appended batch); the two must agree.
package projector

import (
	"github.com/elfiee/engine/internal/grants"
	"github.com/elfiee/engine/internal/model"
)

// State is the projector's output: the live Block/Editor maps, the grants
// table, and the reverse index of the implement-DAG (child -> parents).
type State struct {
	Blocks  map[string]*model.Block
	Editors map[string]model.Editor
	Grants  *grants.Table
	Parents map[string]map[string]bool
}

// New returns an empty state, the result of projecting zero events.
func New() *State {
	return &State{
		Blocks:  make(map[string]*model.Block),
		Editors: make(map[string]model.Editor),
		Grants:  grants.New(),
		Parents: make(map[string]map[string]bool),
	}
}

// GetBlock satisfies capability.World: link/unlink consult the live graph
// for the cycle check without the handler touching storage.
func (s *State) GetBlock(id string) (*model.Block, bool) {
	b, ok := s.Blocks[id]
	return b, ok
}

// SnapshotBlock returns an owned deep copy of block id, the shape the
// engine actor's GetBlock message hands back to callers (spec.md 4.6).
func (s *State) SnapshotBlock(id string) (*model.Block, bool) {
	b, ok := s.Blocks[id]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// SnapshotAllBlocks returns owned deep copies of every live block.
func (s *State) SnapshotAllBlocks() []*model.Block {
	out := make([]*model.Block, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		out = append(out, b.Clone())
	}
	return out
}

// addParent records blockID as a parent of childID in the reverse index.
func (s *State) addParent(childID, blockID string) {
	set, ok := s.Parents[childID]
	if !ok {
		set = make(map[string]bool)
		s.Parents[childID] = set
	}
	set[blockID] = true
}

// removeParent drops blockID as a parent of childID.
func (s *State) removeParent(childID, blockID string) {
	set, ok := s.Parents[childID]
	if !ok {
		return
	}
	delete(set, blockID)
	if len(set) == 0 {
		delete(s.Parents, childID)
	}
}
