package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/matt0x6f/cascade-core/internal/conversation"
	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/model"
	"github.com/matt0x6f/cascade-core/internal/netmon"
	"github.com/matt0x6f/cascade-core/internal/notify"
	"github.com/matt0x6f/cascade-core/internal/prefs"
	"github.com/matt0x6f/cascade-core/internal/security"
	"github.com/matt0x6f/cascade-core/internal/session"
)

const appName = "cascade-core"

// App owns the long-lived components of a running session and their
// lifecycles
type App struct {
	bus      *events.Bus
	prefs    *prefs.Store
	convs    *conversation.Manager
	session  *session.Manager
	commands *session.Commands
	monitor  *netmon.Monitor
	notifier *notify.Notifier
	keychain *security.Keychain
}

// NewApp wires up all components against a preferences database at dbPath.
// Pass ":memory:" for an ephemeral store.
func NewApp(dbPath string) (*App, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	bus := events.NewBus()
	store, err := prefs.Open(dbPath, bus)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}

	convs := conversation.NewManager(bus)
	mgr := session.NewManager(bus, convs, store)

	app := &App{
		bus:      bus,
		prefs:    store,
		convs:    convs,
		session:  mgr,
		commands: session.NewCommands(mgr, convs, bus),
		notifier: notify.NewNotifier(bus, appName, ""),
		keychain: security.NewKeychain(),
	}
	app.monitor = netmon.NewMonitor(netmon.Callbacks{
		OnAvailable: func(netmon.NetworkType) { mgr.OnNetworkAvailable() },
		OnLost:      mgr.OnNetworkLost,
		OnChanged:   func(old, new netmon.NetworkType) { mgr.OnNetworkChanged() },
	})
	return app, nil
}

// Connect resolves the descriptor's password against the keychain when it
// is empty, then starts the session plus its background loops
func (a *App) Connect(desc model.Descriptor) error {
	if desc.Password == "" {
		if stored, err := a.keychain.GetPassword(desc.Server); err == nil && stored != "" {
			logger.Log.Debug().Str("server", desc.Server).Msg("Using stored password")
			desc.Password = stored
		}
	}

	if err := a.session.Connect(desc); err != nil {
		return err
	}

	a.monitor.Start()
	a.session.StartKeepAlive()
	return nil
}

// Commands returns the command surface for the running session
func (a *App) Commands() *session.Commands { return a.commands }

// Session returns the session manager
func (a *App) Session() *session.Manager { return a.session }

// Shutdown stops background loops, disconnects, and releases resources.
// Safe to call more than once.
func (a *App) Shutdown() {
	logger.Log.Info().Msg("Shutting down")

	a.monitor.Stop()
	a.session.StopKeepAlive()
	a.session.Disconnect()
	a.notifier.Close()

	if err := a.prefs.Close(); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to close preferences store")
	}
}
