package engine

import "github.com/elfiee/engine/internal/engineerr"

// errActorClosed is returned by Handle methods called after Shutdown has
// drained the actor's run loop.
var errActorClosed = engineerr.New(engineerr.StorageUnavailable, "engine actor is shut down")
