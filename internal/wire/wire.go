// Package wire defines the JSON envelopes spec.md section 6 specifies for
// reaching the engine over an external protocol: a Command request, a
// success Response, and an Error with one of the well-defined codes.
// The core never transports these itself; cmd/engined's control-plane
// listener is the one concrete consumer.
package wire

import (
	"github.com/elfiee/engine/internal/engineerr"
	"github.com/elfiee/engine/internal/model"
)

// Command is the wire shape of a capability invocation. It carries no
// editor id: the transport supplies one to ToModel (cmd/engined's control
// plane reads it from an editor_id field sent alongside the envelope).
type Command struct {
	Capability string         `json:"capability"`
	Project    string         `json:"project,omitempty"`
	Block      string         `json:"block,omitempty"`
	Payload    map[string]any `json:"payload"`
}

// ToModel builds a model.Command from a wire Command plus the
// out-of-band fields the transport is responsible for supplying.
func (c Command) ToModel(cmdID, editorID string, wallTime int64) model.Command {
	return model.Command{
		ID:       cmdID,
		EditorID: editorID,
		CapID:    c.Capability,
		BlockID:  c.Block,
		Payload:  c.Payload,
		WallTime: wallTime,
	}
}

// Response is the success envelope.
type Response struct {
	Status      string        `json:"status"`
	Events      []model.Event `json:"events"`
	EventsCount int           `json:"events_count"`
}

// NewResponse builds a success envelope from committed events.
func NewResponse(events []model.Event) Response {
	return Response{Status: "success", Events: events, EventsCount: len(events)}
}

// Well-defined error codes, spec.md section 6.
const (
	CodeProjectNotOpen    = "PROJECT_NOT_OPEN"
	CodeBlockNotFound     = "BLOCK_NOT_FOUND"
	CodeInvalidCapability = "INVALID_CAPABILITY"
	CodeMissingParameter  = "MISSING_PARAMETER"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
)

// Error is the wire error envelope.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// kindToCode maps the core's closed error-kind enum to a wire code. Kinds
// with no direct wire equivalent (PersistFailed, StorageUnavailable,
// ProjectionInvariantViolated) surface as INTERNAL_ERROR: they describe a
// host-side failure, not a malformed request.
var kindToCode = map[engineerr.Kind]string{
	engineerr.UnknownCapability:          CodeInvalidCapability,
	engineerr.BlockNotFound:              CodeBlockNotFound,
	engineerr.Unauthorized:               CodeUnauthorized,
	engineerr.InvalidPayload:             CodeMissingParameter,
	engineerr.PersistFailed:              CodeInternalError,
	engineerr.ProjectionInvariantViolated: CodeInternalError,
	engineerr.StorageUnavailable:         CodeInternalError,
}

// NewError maps err to a wire Error. A non-engineerr error (shouldn't
// happen past the actor boundary, but transports must be defensive)
// becomes an opaque INTERNAL_ERROR.
func NewError(err error) Error {
	ee, ok := err.(*engineerr.Error)
	if !ok {
		return Error{Code: CodeInternalError, Message: err.Error()}
	}
	code, ok := kindToCode[ee.Kind]
	if !ok {
		code = CodeInternalError
	}
	return Error{Code: code, Message: ee.Message}
}
