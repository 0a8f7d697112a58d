// Package capability implements the CBAC capability registry: an
// immutable, process-wide map of capability id to handler descriptor, and
// the built-in capability set of spec.md section 4.3.
package capability

import (
	"github.com/elfiee/engine/internal/grants"
	"github.com/elfiee/engine/internal/model"
)

// TargetSystem marks a capability that addresses no block at all
// (editor.create, editor.delete).
const TargetSystem = "system"

// TargetAnyBlock marks a capability that applies to any block type, the
// "core/*" wildcard of spec.md section 4.3.
const TargetAnyBlock = "core/*"

// World is the read-only view of projected state a handler may consult
// beyond its single target block — core.link needs it to run the
// implement-DAG reachability check of spec.md section 9 before a new edge
// is allowed. Handlers only read through World; they never mutate it.
type World interface {
	GetBlock(id string) (*model.Block, bool)
}

// Handler is a pure function from (command, target block, read-only world)
// to proposed events. block is nil for capabilities that don't require
// one. Implementations never persist or mutate state — the engine actor is
// the only component allowed to — and perform no I/O, except that
// directory.root stats and resolves its path on the local filesystem.
type Handler func(cmd model.Command, block *model.Block, world World) ([]model.Event, error)

// Descriptor bundles a capability's identity, target pattern, and handler.
type Descriptor struct {
	CapID         string
	Target        string // exact block type, TargetAnyBlock, or TargetSystem
	RequiresBlock bool
	// Public capabilities skip the owner-or-grant authorization check
	// entirely: core.create and the system-targeted editor capabilities,
	// per spec.md section 4.3 ("implicitly public at MVP").
	Public  bool
	Handler Handler
}

// MatchesBlockType reports whether this descriptor's target pattern
// applies to the given block type.
func (d Descriptor) MatchesBlockType(blockType string) bool {
	switch d.Target {
	case TargetSystem:
		return false
	case TargetAnyBlock:
		return true
	default:
		return d.Target == blockType
	}
}

// Registry is the immutable, process-wide capability-id -> descriptor map.
// Populated once at construction and never mutated afterward.
type Registry struct {
	byID map[string]Descriptor
}

// NewRegistry builds a registry from the given descriptors. Panics on a
// duplicate capability id: that is a programming error, not a runtime
// condition callers should need to handle.
func NewRegistry(descriptors ...Descriptor) *Registry {
	r := &Registry{byID: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, exists := r.byID[d.CapID]; exists {
			panic("capability: duplicate registration for " + d.CapID)
		}
		r.byID[d.CapID] = d
	}
	return r
}

// NewBuiltinRegistry returns the registry populated with the built-in
// capability set of spec.md section 4.3.
func NewBuiltinRegistry() *Registry {
	return NewRegistry(Builtins()...)
}

// Lookup resolves a capability by id.
func (r *Registry) Lookup(capID string) (Descriptor, bool) {
	d, ok := r.byID[capID]
	return d, ok
}

// Authorized implements the default certificator: an editor is authorized
// on a block iff they are its owner or the grants table holds a matching
// (editor, cap, block-or-wildcard) triple. Public capabilities are always
// authorized and never call this.
func Authorized(editorID string, block *model.Block, capID string, gt *grants.Table) bool {
	if block != nil && block.Owner == editorID {
		return true
	}
	blockID := ""
	if block != nil {
		blockID = block.ID
	}
	return gt.Authorized(editorID, capID, blockID)
}
