package session

import (
	"sync"
	"time"

	"github.com/matt0x6f/cascade-core/internal/constants"
	"github.com/matt0x6f/cascade-core/internal/logger"
)

// KeepAlive sends a periodic liveness probe to the active connection. It
// never interprets probe results itself; a dead link surfaces through the
// engine's disconnect callback.
type KeepAlive struct {
	interval time.Duration
	probe    func() error

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewKeepAlive creates a stopped keep-alive monitor around a probe function
func NewKeepAlive(probe func() error) *KeepAlive {
	return &KeepAlive{
		interval: constants.KeepAliveInterval,
		probe:    probe,
	}
}

// Start begins the probe loop. It is a no-op when already running.
func (k *KeepAlive) Start() {
	k.mu.Lock()
	if k.running {
		k.mu.Unlock()
		return
	}
	k.running = true
	k.stopCh = make(chan struct{})
	stopCh := k.stopCh
	k.mu.Unlock()

	go func() {
		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				// Probe errors are swallowed; the engine's disconnect
				// callback owns failure detection
				if err := k.probe(); err != nil {
					logger.Log.Debug().Err(err).Msg("Keep-alive probe failed")
				}
			}
		}
	}()
}

// Stop halts the probe loop
func (k *KeepAlive) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.running {
		return
	}
	k.running = false
	close(k.stopCh)
}
