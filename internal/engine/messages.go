package engine

import "github.com/elfiee/engine/internal/model"

// The actor's mailbox carries one of the message types below, each paired
// with a typed reply channel so callers don't need a type assertion on
// the way out.

type processCommandMsg struct {
	cmd   model.Command
	reply chan processCommandReply
}

type processCommandReply struct {
	events []model.Event
	err    error
}

type getBlockMsg struct {
	id    string
	reply chan getBlockReply
}

type getBlockReply struct {
	block *model.Block
	ok    bool
}

type getAllBlocksMsg struct {
	reply chan getAllBlocksReply
}

type getAllBlocksReply struct {
	blocks []*model.Block
}

type getAllGrantsMsg struct {
	reply chan getAllGrantsReply
}

type getAllGrantsReply struct {
	grants []model.Grant
}

type reloadStateMsg struct {
	reply chan reloadStateReply
}

type reloadStateReply struct {
	eventCount int64
	err        error
}

type shutdownMsg struct {
	done chan struct{}
}
