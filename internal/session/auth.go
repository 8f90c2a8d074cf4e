package session

import (
	"sync"
	"time"

	"github.com/matt0x6f/cascade-core/internal/constants"
	"github.com/matt0x6f/cascade-core/internal/logger"
)

// Services the identify sequence talks to. The secondary syntax covers
// networks that run an AuthServ-style service instead of NickServ.
const (
	primaryAuthService   = "NickServ"
	secondaryAuthService = "AuthServ"
)

// AuthSequencer performs the best-effort post-connect identify handshake.
// Both attempts are fire-and-forget: failures are logged and surfaced as a
// status warning, never fatal to the connection.
type AuthSequencer struct {
	engine func() Engine

	// Delay and fallback window are fields so tests can shrink them
	delay  time.Duration
	window time.Duration

	mu        sync.Mutex
	confirmed bool
	running   bool
}

// NewAuthSequencer creates an identify sequencer reading the engine handle
// freshly through the given accessor
func NewAuthSequencer(engine func() Engine) *AuthSequencer {
	return &AuthSequencer{
		engine: engine,
		delay:  constants.IdentifyDelay,
		window: constants.IdentifyFallbackWindow,
	}
}

// Confirm marks the identify attempt as acknowledged by the network.
// Called by the dispatcher when a services confirmation arrives.
func (a *AuthSequencer) Confirm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.confirmed = true
}

// Confirmed reports whether the network acknowledged the identify attempt
func (a *AuthSequencer) Confirmed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.confirmed
}

// Run executes the identify sequence: wait for the server to settle, try
// the primary service, and fall back to the secondary syntax when no
// acknowledgement arrives within the window. Run returns whether an
// acknowledgement was observed; callers treat the result as advisory.
func (a *AuthSequencer) Run(nickname, password string) bool {
	if password == "" {
		return false
	}

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return false
	}
	a.running = true
	a.confirmed = false
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	time.Sleep(a.delay)

	engine := a.engine()
	if engine == nil {
		logger.Log.Debug().Msg("No engine handle, skipping identify")
		return false
	}

	logger.Log.Info().Str("service", primaryAuthService).Msg("Sending identify")
	if err := engine.Privmsg(primaryAuthService, "IDENTIFY "+password); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to send identify")
	}

	if a.waitConfirmed() {
		return true
	}

	// No acknowledgement; retry with the alternative services syntax
	engine = a.engine()
	if engine == nil {
		return false
	}
	logger.Log.Info().Str("service", secondaryAuthService).Msg("Identify unacknowledged, trying fallback")
	if err := engine.Privmsg(secondaryAuthService, "AUTH "+nickname+" "+password); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to send fallback identify")
	}

	return a.waitConfirmed()
}

func (a *AuthSequencer) waitConfirmed() bool {
	deadline := time.Now().Add(a.window)
	for time.Now().Before(deadline) {
		if a.Confirmed() {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return a.Confirmed()
}
