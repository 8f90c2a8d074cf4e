package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matt0x6f/cascade-core/internal/constants"
)

// fakeSleep records requested sleep durations and returns immediately
type fakeSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (f *fakeSleep) sleep(d time.Duration, cancel <-chan struct{}) {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()
}

func (f *fakeSleep) recorded() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

const settleSentinel = 123 * time.Microsecond

func newTestReconnector(isConnected func() bool, onReconnect func()) (*Reconnector, *fakeSleep) {
	r := NewReconnector(isConnected, onReconnect)
	fs := &fakeSleep{}
	r.sleep = fs.sleep
	r.settle = settleSentinel
	return r, fs
}

func TestReconnectorExhaustsAttempts(t *testing.T) {
	var attempts atomic.Int64
	r, fs := newTestReconnector(
		func() bool { return false },
		func() { attempts.Add(1) },
	)

	r.Start()
	require.Eventually(t, func() bool { return !r.Reconnecting() }, 5*time.Second, time.Millisecond)

	assert.Equal(t, int64(constants.MaxReconnectAttempts), attempts.Load())

	// The backoff table drives the pre-attempt delays, repeating its last
	// entry once exhausted
	var backoffs []time.Duration
	for _, d := range fs.recorded() {
		if d != settleSentinel {
			backoffs = append(backoffs, d)
		}
	}
	require.Len(t, backoffs, constants.MaxReconnectAttempts)
	for i, d := range backoffs {
		want := constants.ReconnectBackoff[min(i, len(constants.ReconnectBackoff)-1)]
		assert.Equal(t, want, d, "attempt %d", i+1)
	}
}

func TestReconnectorStopsOnSuccess(t *testing.T) {
	var connected atomic.Bool
	var attempts atomic.Int64
	r, _ := newTestReconnector(
		connected.Load,
		func() {
			attempts.Add(1)
			connected.Store(true)
		},
	)

	r.Start()
	require.Eventually(t, func() bool { return !r.Reconnecting() }, 5*time.Second, time.Millisecond)

	assert.Equal(t, int64(1), attempts.Load())
}

func TestReconnectorStop(t *testing.T) {
	block := make(chan struct{})
	r := NewReconnector(func() bool { return false }, func() {})
	r.sleep = func(d time.Duration, cancel <-chan struct{}) {
		select {
		case <-block:
		case <-cancel:
		}
	}

	r.Start()
	require.True(t, r.Reconnecting())

	r.Stop()
	assert.False(t, r.Reconnecting())

	// Stopping when idle is a no-op
	r.Stop()
	close(block)
}

func TestReconnectorStartWhileRunningIsNoop(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	r := NewReconnector(func() bool { return false }, func() {})
	r.sleep = func(d time.Duration, cancel <-chan struct{}) {
		select {
		case <-block:
		case <-cancel:
		}
	}

	r.Start()
	r.Start()
	assert.True(t, r.Reconnecting())
	r.Stop()
}

func TestReconnectorAttemptPanicDoesNotKillLoop(t *testing.T) {
	var attempts atomic.Int64
	r, _ := newTestReconnector(
		func() bool { return false },
		func() {
			attempts.Add(1)
			panic("dial exploded")
		},
	)

	r.Start()
	require.Eventually(t, func() bool { return !r.Reconnecting() }, 5*time.Second, time.Millisecond)
	assert.Equal(t, int64(constants.MaxReconnectAttempts), attempts.Load())
}
