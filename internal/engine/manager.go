package engine

import (
	"context"
	"sync"

	"github.com/elfiee/engine/internal/capability"
	"github.com/elfiee/engine/internal/config"
	"github.com/elfiee/engine/internal/engineerr"
	"github.com/elfiee/engine/internal/logging"
	"github.com/elfiee/engine/internal/store"
)

// defaultMailboxSize and defaultBroadcastBufferSize back a Manager built
// without an explicit EngineConfig (tests, one-shot CLI commands).
const (
	defaultMailboxSize         = 64
	defaultBroadcastBufferSize = 64
)

// Manager maps file_id to its EngineHandle (spec.md section 4.7). Safe for
// concurrent lookup; the actors it spawns enforce their own internal
// serialization.
type Manager struct {
	mu       sync.RWMutex
	handles  map[string]*Handle
	registry *capability.Registry
	log      *logging.Logger
	cfg      config.EngineConfig
}

// NewManager builds a manager that dispatches every spawned actor against
// the same capability registry (normally capability.NewBuiltinRegistry()).
func NewManager(registry *capability.Registry, log *logging.Logger) *Manager {
	return NewManagerWithConfig(registry, log, config.EngineConfig{
		MailboxSize:         defaultMailboxSize,
		BroadcastBufferSize: defaultBroadcastBufferSize,
	})
}

// NewManagerWithConfig builds a manager whose spawned actors use the
// mailbox and broadcast buffer sizes loaded from cfg (internal/config),
// per SPEC_FULL.md's ambient configuration layer.
func NewManagerWithConfig(registry *capability.Registry, log *logging.Logger, cfg config.EngineConfig) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = defaultMailboxSize
	}
	if cfg.BroadcastBufferSize <= 0 {
		cfg.BroadcastBufferSize = defaultBroadcastBufferSize
	}
	return &Manager{
		handles:  make(map[string]*Handle),
		registry: registry,
		log:      log,
		cfg:      cfg,
	}
}

// Spawn opens (or creates) the archive at path, cold-replays it, and
// starts an actor for fileID. Spawning twice for the same fileID without
// an intervening Close returns the existing handle.
func (m *Manager) Spawn(ctx context.Context, fileID, path string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.handles[fileID]; ok {
		return h, nil
	}

	st, err := store.Open(path, m.log.With("component", "store"))
	if err != nil {
		return nil, err
	}
	a, err := newActor(ctx, fileID, st, m.registry, m.log.With("component", "actor"), m.cfg.MailboxSize, m.cfg.BroadcastBufferSize)
	if err != nil {
		st.Close()
		return nil, err
	}
	h := &Handle{a: a}
	m.handles[fileID] = h
	return h, nil
}

// Get retrieves a previously spawned handle.
func (m *Manager) Get(fileID string) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[fileID]
	return h, ok
}

// Close shuts the actor down, closes its archive, and forgets the handle.
func (m *Manager) Close(ctx context.Context, fileID string) error {
	m.mu.Lock()
	h, ok := m.handles[fileID]
	if ok {
		delete(m.handles, fileID)
	}
	m.mu.Unlock()
	if !ok {
		return engineerr.New(engineerr.StorageUnavailable, "no open engine for "+fileID)
	}
	if err := h.Shutdown(ctx); err != nil {
		return err
	}
	return h.a.store.Close()
}
