package session

import (
	"sync"
	"time"

	"github.com/matt0x6f/cascade-core/internal/constants"
	"github.com/matt0x6f/cascade-core/internal/logger"
)

// Reconnector drives backoff-based reconnection attempts. It is idle until
// Start is called and returns to idle when the connection comes back, Stop
// is called, or the attempt budget is exhausted.
type Reconnector struct {
	backoff     []time.Duration
	settle      time.Duration
	maxAttempts int

	isConnected func() bool
	onReconnect func()

	// sleep is interruptible and injectable for tests
	sleep func(d time.Duration, cancel <-chan struct{})

	mu           sync.Mutex
	reconnecting bool
	attempts     int
	stopCh       chan struct{}
}

// NewReconnector creates an idle reconnector. onReconnect performs a single
// reconnection attempt; isConnected is polled after the settle window to
// decide whether the loop is done.
func NewReconnector(isConnected func() bool, onReconnect func()) *Reconnector {
	return &Reconnector{
		backoff:     constants.ReconnectBackoff,
		settle:      constants.ReconnectSettleDelay,
		maxAttempts: constants.MaxReconnectAttempts,
		isConnected: isConnected,
		onReconnect: onReconnect,
		sleep:       sleepInterruptible,
	}
}

// Start begins the retry loop. It is a no-op when already reconnecting.
func (r *Reconnector) Start() {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return
	}
	r.reconnecting = true
	r.attempts = 0
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()

	logger.Log.Info().Msg("Starting reconnection attempts")
	go r.loop(stopCh)
}

// Stop aborts the retry loop and returns the controller to idle
func (r *Reconnector) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.reconnecting {
		return
	}
	r.reconnecting = false
	close(r.stopCh)
}

// Reset zeroes the attempt counter without stopping the loop. Used after a
// manual successful connect so a later drop starts from a short delay again.
func (r *Reconnector) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = 0
}

// Reconnecting reports whether the retry loop is active
func (r *Reconnector) Reconnecting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reconnecting
}

func (r *Reconnector) loop(stopCh <-chan struct{}) {
	for {
		r.mu.Lock()
		if !r.reconnecting {
			r.mu.Unlock()
			return
		}
		r.attempts++
		attempt := r.attempts
		r.mu.Unlock()

		if attempt > r.maxAttempts {
			logger.Log.Warn().Int("attempts", r.maxAttempts).Msg("Reconnection attempts exhausted, giving up")
			r.Stop()
			return
		}

		delay := r.backoff[min(attempt-1, len(r.backoff)-1)]
		logger.Log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("Waiting before reconnection attempt")
		r.sleep(delay, stopCh)

		if stopped(stopCh) {
			return
		}

		r.attempt()

		// Give the connection a settle window to come up before deciding
		// whether to keep retrying
		r.sleep(r.settle, stopCh)
		if stopped(stopCh) {
			return
		}
		if r.isConnected() {
			logger.Log.Info().Int("attempt", attempt).Msg("Reconnected")
			r.Stop()
			return
		}
	}
}

// attempt invokes the reconnect callback; a panic or error in a single
// attempt only fails that attempt, not the loop
func (r *Reconnector) attempt() {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Log.Error().Interface("panic", rec).Msg("Reconnection attempt panicked")
		}
	}()
	r.onReconnect()
}

func sleepInterruptible(d time.Duration, cancel <-chan struct{}) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-cancel:
	}
}

func stopped(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
