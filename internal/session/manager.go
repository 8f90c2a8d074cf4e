package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/matt0x6f/cascade-core/internal/conversation"
	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/message"
	"github.com/matt0x6f/cascade-core/internal/model"
	"github.com/matt0x6f/cascade-core/internal/prefs"
	"github.com/matt0x6f/cascade-core/internal/validation"
)

// Manager is the top-level connection state machine. It exclusively owns
// the engine handle; every other component reads the handle through
// Engine() on each use so a reconnect can swap it out underneath them.
type Manager struct {
	bus     *events.Bus
	convs   *conversation.Manager
	prefs   *prefs.Store
	handler *message.Handler

	dispatcher *Dispatcher
	reconnect  *Reconnector
	keepalive  *KeepAlive
	auth       *AuthSequencer

	mu     sync.RWMutex
	state  model.ConnectionState
	desc   *model.Descriptor
	engine Engine
	cfg    *EngineConfig
}

// NewManager wires up a disconnected session
func NewManager(bus *events.Bus, convs *conversation.Manager, store *prefs.Store) *Manager {
	m := &Manager{
		bus:     bus,
		convs:   convs,
		prefs:   store,
		handler: message.NewHandler(store),
		state:   model.ConnectionState{Phase: model.PhaseDisconnected},
	}

	m.dispatcher = NewDispatcher(m, convs, store, m.handler, bus)
	m.reconnect = NewReconnector(m.IsConnected, m.reconnectAttempt)
	m.keepalive = NewKeepAlive(m.sendProbe)
	m.auth = NewAuthSequencer(m.Engine)

	return m
}

// State returns the current connection state
func (m *Manager) State() model.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the session is in the connected state
func (m *Manager) IsConnected() bool {
	return m.State().Phase == model.PhaseConnected
}

// Engine returns the current engine handle, or nil when no connection is
// active. Callers must not hold the returned handle across a reconnect.
func (m *Manager) Engine() Engine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.engine
}

// Config returns the engine configuration of the current attempt
func (m *Manager) Config() *EngineConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// CurrentNick returns the nickname in use on the connection, falling back
// to the descriptor's nickname before registration
func (m *Manager) CurrentNick() string {
	m.mu.RLock()
	engine, desc := m.engine, m.desc
	m.mu.RUnlock()

	if engine != nil {
		if nick := engine.CurrentNick(); nick != "" {
			return nick
		}
	}
	if desc != nil {
		return desc.Nickname
	}
	return ""
}

// Descriptor returns the saved connection descriptor, or nil
func (m *Manager) Descriptor() *model.Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.desc == nil {
		return nil
	}
	copied := *m.desc
	return &copied
}

// Connect starts a connection attempt for the descriptor. It is only
// meaningful from the disconnected or error states; otherwise it is a
// logged no-op.
func (m *Manager) Connect(desc model.Descriptor) error {
	if err := validation.ValidateDescriptor(desc.Server, desc.Port, desc.Nickname); err != nil {
		return fmt.Errorf("invalid connection descriptor: %w", err)
	}

	m.mu.Lock()
	if !m.state.Disconnected() {
		phase := m.state.Phase
		m.mu.Unlock()
		logger.Log.Debug().Str("phase", string(phase)).Msg("Connect ignored, not disconnected")
		return nil
	}
	m.desc = &desc
	m.mu.Unlock()

	m.setState(model.ConnectionState{Phase: model.PhaseConnecting})

	cfg := BuildEngineConfig(desc)
	m.dispatcher.Attach(cfg.Conn)

	m.mu.Lock()
	m.engine = cfg.Conn
	m.cfg = cfg
	m.mu.Unlock()

	logger.Log.Info().Str("server", cfg.Conn.Server).Str("nick", desc.Nickname).Msg("Connecting")
	if err := cfg.Conn.Connect(); err != nil {
		m.setState(model.ConnectionState{Phase: model.PhaseError, Reason: err.Error()})
		return fmt.Errorf("failed to connect: %w", err)
	}

	go cfg.Conn.Loop()

	// Best-effort identify, fire and forget
	if desc.Password != "" {
		go m.auth.Run(desc.Nickname, desc.Password)
	}

	return nil
}

// Disconnect sends a graceful quit, clears all non-status conversations and
// the available channel list, and lands in the disconnected state no matter
// where it started. Calling it repeatedly is safe.
func (m *Manager) Disconnect() {
	m.setState(model.ConnectionState{Phase: model.PhaseDisconnecting})
	m.reconnect.Stop()

	m.mu.Lock()
	engine := m.engine
	m.engine = nil
	m.cfg = nil
	m.mu.Unlock()

	if engine != nil {
		quitEngine(engine)
	}

	m.convs.ClearAllExceptStatus()
	m.convs.ClearAvailableChannels()

	m.setState(model.ConnectionState{Phase: model.PhaseDisconnected})
}

// ReconnectIfNeeded starts a connection attempt unless one is already up
func (m *Manager) ReconnectIfNeeded(desc model.Descriptor) {
	if m.IsConnected() {
		return
	}
	if err := m.Connect(desc); err != nil {
		logger.Log.Warn().Err(err).Msg("Reconnect attempt failed")
	}
}

// StartKeepAlive starts the liveness probe loop
func (m *Manager) StartKeepAlive() { m.keepalive.Start() }

// StopKeepAlive stops the liveness probe loop
func (m *Manager) StopKeepAlive() { m.keepalive.Stop() }

// Reconnector exposes the auto-reconnect controller
func (m *Manager) Reconnector() *Reconnector { return m.reconnect }

// Auth exposes the identify sequencer (the dispatcher confirms through it)
func (m *Manager) Auth() *AuthSequencer { return m.auth }

// OnNetworkAvailable is the advisory signal that a network came back after
// none was active
func (m *Manager) OnNetworkAvailable() {
	if m.IsConnected() {
		return
	}
	m.mu.RLock()
	hasDesc := m.desc != nil
	m.mu.RUnlock()
	if !hasDesc {
		return
	}
	logger.Log.Info().Msg("Network available, starting reconnection")
	m.reconnect.Start()
}

// OnNetworkLost is the advisory signal that the last network went away.
// The engine's own disconnect callback drives the actual state change.
func (m *Manager) OnNetworkLost() {
	logger.Log.Info().Msg("Network lost")
}

// OnNetworkChanged is the advisory signal that the active transport
// switched type. The old socket may be stale on the new interface, so the
// connection is recycled.
func (m *Manager) OnNetworkChanged() {
	if !m.IsConnected() {
		return
	}
	logger.Log.Info().Msg("Network type changed, recycling connection")

	m.mu.Lock()
	engine := m.engine
	m.engine = nil
	m.cfg = nil
	m.mu.Unlock()

	if engine != nil {
		quitEngine(engine)
	}
	m.setState(model.ConnectionState{Phase: model.PhaseDisconnected})
	m.reconnect.Start()
}

// handleConnected is driven by the engine's connect callback
func (m *Manager) handleConnected() {
	m.setState(model.ConnectionState{Phase: model.PhaseConnected})
	m.reconnect.Reset()
	m.autoJoin()
}

// handleDisconnected is driven by the engine's disconnect callback. An
// unexpected drop kicks off the reconnection loop; a deliberate disconnect
// does not.
func (m *Manager) handleDisconnected() {
	prev := m.State().Phase
	if prev == model.PhaseDisconnecting || prev == model.PhaseDisconnected {
		return
	}

	m.setState(model.ConnectionState{Phase: model.PhaseDisconnected})

	m.mu.RLock()
	hasDesc := m.desc != nil
	m.mu.RUnlock()
	if hasDesc {
		m.reconnect.Start()
	}
}

// handleEngineError is driven by engine-reported fatal errors during setup
func (m *Manager) handleEngineError(reason string) {
	if m.State().Phase == model.PhaseConnecting {
		m.setState(model.ConnectionState{Phase: model.PhaseError, Reason: reason})
	}
}

// reconnectAttempt is the reconnector's callback: one fresh connect using
// the saved descriptor
func (m *Manager) reconnectAttempt() {
	m.mu.RLock()
	desc := m.desc
	m.mu.RUnlock()
	if desc == nil {
		return
	}

	// Retire any half-dead engine before dialing again
	m.mu.Lock()
	if m.engine != nil && m.state.Phase != model.PhaseConnected {
		quitEngine(m.engine)
		m.engine = nil
		m.cfg = nil
	}
	m.mu.Unlock()

	if err := m.Connect(*desc); err != nil {
		logger.Log.Warn().Err(err).Msg("Reconnection attempt failed")
	}
}

func (m *Manager) autoJoin() {
	cfg := m.Config()
	engine := m.Engine()
	if cfg == nil || engine == nil {
		return
	}
	for _, channel := range cfg.AutoJoin {
		m.convs.HandleAutoJoinChannel(channel)
		if err := engine.Join(channel); err != nil {
			logger.Log.Warn().Err(err).Str("channel", channel).Msg("Auto-join failed")
		}
	}
}

func (m *Manager) sendProbe() error {
	engine := m.Engine()
	if engine == nil {
		return nil
	}
	return engine.SendRaw(fmt.Sprintf("PING :%d", time.Now().Unix()))
}

// setState applies a state transition and broadcasts the coarse status and
// sync strings for the rest of the application
func (m *Manager) setState(state model.ConnectionState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()

	syncState := "out-of-sync"
	if state.Phase == model.PhaseConnected {
		syncState = "in-sync"
	}

	logger.Log.Info().Str("phase", string(state.Phase)).Str("reason", state.Reason).Msg("Connection state changed")
	m.bus.Emit(events.Event{
		Type: EventConnectionState,
		Data: map[string]interface{}{
			"phase":  string(state.Phase),
			"reason": state.Reason,
			"status": state.StatusText(),
			"sync":   syncState,
		},
		Timestamp: time.Now(),
		Source:    events.EventSourceSession,
	})
}

// quitEngine sends a graceful quit, shielding the caller from engine
// panics on an already-dead connection
func quitEngine(engine Engine) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Log.Debug().Interface("panic", rec).Msg("Engine quit panicked")
		}
	}()
	engine.Quit()
}
