package session

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeepAliveProbes(t *testing.T) {
	var probes atomic.Int64
	k := NewKeepAlive(func() error {
		probes.Add(1)
		return nil
	})
	k.interval = time.Millisecond

	k.Start()
	require.Eventually(t, func() bool { return probes.Load() >= 3 }, time.Second, time.Millisecond)
	k.Stop()

	// No more probes once stopped
	settled := probes.Load()
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, probes.Load(), settled+1)
}

func TestKeepAliveSwallowsProbeErrors(t *testing.T) {
	var probes atomic.Int64
	k := NewKeepAlive(func() error {
		probes.Add(1)
		return errors.New("link down")
	})
	k.interval = time.Millisecond

	k.Start()
	require.Eventually(t, func() bool { return probes.Load() >= 2 }, time.Second, time.Millisecond)
	k.Stop()
}

func TestKeepAliveStartStopIdempotent(t *testing.T) {
	k := NewKeepAlive(func() error { return nil })
	k.interval = time.Hour

	k.Start()
	k.Start()
	k.Stop()
	k.Stop()
}
