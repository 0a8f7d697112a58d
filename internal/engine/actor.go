// Package engine implements the EngineActor and EngineManager of spec.md
// sections 4.6-4.7: one actor per open archive, owning all mutable state,
// processing its mailbox strictly in order.
package engine

import (
	"context"

	"github.com/elfiee/engine/internal/capability"
	"github.com/elfiee/engine/internal/engineerr"
	"github.com/elfiee/engine/internal/logging"
	"github.com/elfiee/engine/internal/model"
	"github.com/elfiee/engine/internal/projector"
	"github.com/elfiee/engine/internal/store"
	"github.com/elfiee/engine/internal/vclock"
)

// actor owns one archive's mutable state and processes its mailbox
// single-threaded. All exported operations go through Handle, the
// goroutine-safe front the Handle type exposes.
type actor struct {
	fileID   string
	store    *store.Store
	registry *capability.Registry
	log      *logging.Logger
	hub      *Hub

	inbox chan any
	done  chan struct{}

	clock *vclock.Clock
	state *projector.State
}

// newActor cold-replays the archive and starts the actor's run loop.
// mailboxSize bounds the inbox; broadcastBufferSize bounds each
// subscriber's channel in the Hub (spec.md section 5, "Back-pressure").
func newActor(ctx context.Context, fileID string, st *store.Store, registry *capability.Registry, log *logging.Logger, mailboxSize, broadcastBufferSize int) (*actor, error) {
	if log == nil {
		log = logging.Nop()
	}
	events, err := st.ReplayAll(ctx)
	if err != nil {
		return nil, err
	}
	state, err := projector.ColdReplay(events)
	if err != nil {
		return nil, err
	}

	a := &actor{
		fileID:   fileID,
		store:    st,
		registry: registry,
		log:      log.With("file_id", fileID),
		hub:      NewHub(broadcastBufferSize),
		inbox:    make(chan any, mailboxSize),
		done:     make(chan struct{}),
		clock:    vclock.New(),
		state:    state,
	}
	a.clock.Merge(replayHighWaterMarks(events))
	go a.run(ctx)
	return a, nil
}

// replayHighWaterMarks reconstructs the vector clock's starting point from
// the log: clock[e] must resume at the highest value e has ever authored,
// so a reopened archive doesn't reissue a timestamp an earlier session
// already committed (spec.md section 8, vector-clock monotonicity).
func replayHighWaterMarks(events []model.Event) map[string]uint64 {
	high := make(map[string]uint64)
	for _, ev := range events {
		for editor, count := range ev.Timestamp {
			if count > high[editor] {
				high[editor] = count
			}
		}
	}
	return high
}

func (a *actor) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.inbox:
			switch m := msg.(type) {
			case processCommandMsg:
				events, err := a.processCommand(ctx, m.cmd)
				m.reply <- processCommandReply{events: events, err: err}
			case getBlockMsg:
				block, ok := a.state.SnapshotBlock(m.id)
				m.reply <- getBlockReply{block: block, ok: ok}
			case getAllBlocksMsg:
				m.reply <- getAllBlocksReply{blocks: a.state.SnapshotAllBlocks()}
			case getAllGrantsMsg:
				m.reply <- getAllGrantsReply{grants: a.state.Grants.All()}
			case reloadStateMsg:
				count, err := a.reloadState(ctx)
				m.reply <- reloadStateReply{eventCount: count, err: err}
			case shutdownMsg:
				close(m.done)
				return
			}
		}
	}
}

// processCommand runs the pipeline of spec.md section 4.6: resolve
// capability, resolve block, authorize, invoke handler, stamp vector
// clock, persist, project, broadcast, reply.
func (a *actor) processCommand(ctx context.Context, cmd model.Command) ([]model.Event, error) {
	desc, ok := a.registry.Lookup(cmd.CapID)
	if !ok {
		return nil, engineerr.New(engineerr.UnknownCapability, "unknown capability "+cmd.CapID)
	}

	var block *model.Block
	if desc.RequiresBlock {
		b, ok := a.state.Blocks[cmd.BlockID]
		if !ok {
			return nil, engineerr.New(engineerr.BlockNotFound, "block not found: "+cmd.BlockID)
		}
		block = b
	}

	if !desc.Public {
		if !capability.Authorized(cmd.EditorID, block, cmd.CapID, a.state.Grants) {
			return nil, engineerr.New(engineerr.Unauthorized, "editor "+cmd.EditorID+" lacks "+cmd.CapID)
		}
	}

	proposed, err := desc.Handler(cmd, block, a.state)
	if err != nil {
		if _, ok := err.(*engineerr.Error); ok {
			return nil, err
		}
		return nil, engineerr.Wrap(engineerr.InvalidPayload, "handler rejected command", err)
	}
	if len(proposed) == 0 {
		// Pure gates (core.read, *.read, terminal.write/resize) commit
		// nothing; nothing to persist, project or broadcast.
		return nil, nil
	}

	for i := range proposed {
		count := a.clock.Bump(cmd.EditorID)
		proposed[i].Timestamp = map[string]uint64{cmd.EditorID: count}
	}

	if err := a.store.AppendBatch(ctx, proposed); err != nil {
		return nil, err
	}

	if err := projector.ApplyBatch(a.state, proposed); err != nil {
		// The batch is already durable; a post-append projection failure
		// is promoted rather than silently dropping the event (spec.md
		// section 7).
		return nil, engineerr.Wrap(engineerr.ProjectionInvariantViolated, "apply committed batch", err)
	}

	a.hub.Publish(StateChangeEvent{FileID: a.fileID, Events: proposed})
	return proposed, nil
}

// reloadState re-derives the projector from a full replay and swaps it in
// atomically. Run from inside the actor loop, so no ProcessCommand can
// interleave with it (spec.md section 4.6, "Reload protocol").
func (a *actor) reloadState(ctx context.Context) (int64, error) {
	events, err := a.store.ReplayAll(ctx)
	if err != nil {
		return 0, err
	}
	fresh, err := projector.ColdReplay(events)
	if err != nil {
		return 0, engineerr.Wrap(engineerr.ProjectionInvariantViolated, "reload replay", err)
	}
	a.state = fresh
	a.clock.Merge(replayHighWaterMarks(events))
	return int64(len(events)), nil
}

var _ capability.World = (*projector.State)(nil)
