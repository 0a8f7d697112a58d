package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/elfiee/engine/internal/engine"
	"github.com/elfiee/engine/internal/logging"
	"github.com/elfiee/engine/internal/wire"
)

// controlPlane exposes the wire Command/Response envelope over HTTP.
type controlPlane struct {
	manager *engine.Manager
	fileID  string
	log     *logging.Logger
}

func (cp *controlPlane) routes(mux *http.ServeMux) {
	mux.HandleFunc("/commands", cp.handleCommand)
	mux.HandleFunc("/blocks", cp.handleBlocks)
	mux.HandleFunc("/reload", cp.handleReload)
}

type commandRequest struct {
	wire.Command
	EditorID string `json:"editor_id"`
}

func (cp *controlPlane) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWireError(w, http.StatusBadRequest, wire.Error{Code: wire.CodeMissingParameter, Message: err.Error()})
		return
	}
	h, ok := cp.manager.Get(cp.fileID)
	if !ok {
		writeWireError(w, http.StatusNotFound, wire.Error{Code: wire.CodeProjectNotOpen, Message: "archive not open"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	cmd := req.Command.ToModel("", req.EditorID, time.Now().Unix())
	events, err := h.ProcessCommand(ctx, cmd)
	if err != nil {
		werr := wire.NewError(err)
		writeWireError(w, statusForWireCode(werr.Code), werr)
		return
	}
	writeJSON(w, http.StatusOK, wire.NewResponse(events))
}

func (cp *controlPlane) handleBlocks(w http.ResponseWriter, r *http.Request) {
	h, ok := cp.manager.Get(cp.fileID)
	if !ok {
		writeWireError(w, http.StatusNotFound, wire.Error{Code: wire.CodeProjectNotOpen, Message: "archive not open"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	blocks, err := h.GetAllBlocks(ctx)
	if err != nil {
		writeWireError(w, http.StatusInternalServerError, wire.NewError(err))
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (cp *controlPlane) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h, ok := cp.manager.Get(cp.fileID)
	if !ok {
		writeWireError(w, http.StatusNotFound, wire.Error{Code: wire.CodeProjectNotOpen, Message: "archive not open"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	count, err := h.ReloadState(ctx)
	if err != nil {
		writeWireError(w, http.StatusInternalServerError, wire.NewError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"event_count": count})
}

func statusForWireCode(code string) int {
	switch code {
	case wire.CodeProjectNotOpen, wire.CodeBlockNotFound:
		return http.StatusNotFound
	case wire.CodeInvalidCapability, wire.CodeMissingParameter:
		return http.StatusBadRequest
	case wire.CodeUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeWireError(w http.ResponseWriter, status int, e wire.Error) {
	writeJSON(w, status, e)
}
