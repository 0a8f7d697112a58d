package engine

import (
	"context"

	"github.com/elfiee/engine/internal/model"
)

// Handle is the public, goroutine-safe front of an actor: every method
// sends a message into the actor's mailbox and awaits the matching reply,
// so callers never touch actor state directly (spec.md section 4.6).
type Handle struct {
	a *actor
}

// ProcessCommand submits cmd and awaits the committed events or error.
func (h *Handle) ProcessCommand(ctx context.Context, cmd model.Command) ([]model.Event, error) {
	reply := make(chan processCommandReply, 1)
	select {
	case h.a.inbox <- processCommandMsg{cmd: cmd, reply: reply}:
	case <-h.a.done:
		return nil, errClosed()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.events, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetBlock returns an owned deep copy of the block, if present.
func (h *Handle) GetBlock(ctx context.Context, id string) (*model.Block, bool, error) {
	reply := make(chan getBlockReply, 1)
	select {
	case h.a.inbox <- getBlockMsg{id: id, reply: reply}:
	case <-h.a.done:
		return nil, false, errClosed()
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.block, r.ok, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// GetAllBlocks returns an owned snapshot of every live block.
func (h *Handle) GetAllBlocks(ctx context.Context) ([]*model.Block, error) {
	reply := make(chan getAllBlocksReply, 1)
	select {
	case h.a.inbox <- getAllBlocksMsg{reply: reply}:
	case <-h.a.done:
		return nil, errClosed()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.blocks, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetAllGrants returns a snapshot of the grants table.
func (h *Handle) GetAllGrants(ctx context.Context) ([]model.Grant, error) {
	reply := make(chan getAllGrantsReply, 1)
	select {
	case h.a.inbox <- getAllGrantsMsg{reply: reply}:
	case <-h.a.done:
		return nil, errClosed()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.grants, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReloadState re-derives state from a fresh replay of the archive,
// returning the event count observed.
func (h *Handle) ReloadState(ctx context.Context) (int64, error) {
	reply := make(chan reloadStateReply, 1)
	select {
	case h.a.inbox <- reloadStateMsg{reply: reply}:
	case <-h.a.done:
		return 0, errClosed()
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.eventCount, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Subscribe returns a channel of future StateChangeEvents for this
// archive, and a cancel func to stop receiving them.
func (h *Handle) Subscribe() (<-chan StateChangeEvent, func()) {
	return h.a.hub.Subscribe()
}

// Shutdown stops the actor's run loop and waits for it to drain.
func (h *Handle) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case h.a.inbox <- shutdownMsg{done: done}:
	case <-h.a.done:
		return nil // already stopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func errClosed() error {
	return errActorClosed
}
