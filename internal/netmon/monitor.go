package netmon

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/matt0x6f/cascade-core/internal/constants"
	"github.com/matt0x6f/cascade-core/internal/logger"
)

// NetworkType is the coarse classification of the active transport
type NetworkType string

const (
	NetworkNone     NetworkType = "none"
	NetworkWifi     NetworkType = "wifi"
	NetworkCellular NetworkType = "cellular"
	NetworkOther    NetworkType = "other"
)

// Sampler reports the currently active network type
type Sampler func() NetworkType

// Callbacks are the advisory signals fired on transport transitions. They
// never mutate connection state themselves; the connection manager decides
// what to do with them.
type Callbacks struct {
	// OnAvailable fires when a network appears after none was active
	OnAvailable func(NetworkType)
	// OnLost fires when the last active network goes away
	OnLost func()
	// OnChanged fires when the active network switches between two
	// non-none types (the old socket may be stale on the new interface)
	OnChanged func(old, new NetworkType)
}

// Monitor watches transport availability and type at a fixed sampling
// interval
type Monitor struct {
	sample   Sampler
	interval time.Duration
	cb       Callbacks

	mu      sync.Mutex
	current NetworkType
	stopCh  chan struct{}
	running bool
}

// NewMonitor creates a monitor with the default interface sampler
func NewMonitor(cb Callbacks) *Monitor {
	return NewMonitorWithSampler(SampleInterfaces, constants.NetworkPollInterval, cb)
}

// NewMonitorWithSampler creates a monitor with a custom sampler and
// interval (used by tests)
func NewMonitorWithSampler(sample Sampler, interval time.Duration, cb Callbacks) *Monitor {
	return &Monitor{
		sample:   sample,
		interval: interval,
		cb:       cb,
		current:  NetworkNone,
	}
}

// Start begins sampling. It is a no-op if the monitor is already running.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.current = m.sample()
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	logger.Log.Debug().Str("network", string(m.current)).Msg("Network monitor started")

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				m.observe(m.sample())
			}
		}
	}()
}

// Stop halts sampling
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
}

// Current returns the last observed network type
func (m *Monitor) Current() NetworkType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Monitor) observe(next NetworkType) {
	m.mu.Lock()
	prev := m.current
	if next == prev {
		m.mu.Unlock()
		return
	}
	m.current = next
	m.mu.Unlock()

	logger.Log.Info().Str("from", string(prev)).Str("to", string(next)).Msg("Network transition")

	switch {
	case prev == NetworkNone && next != NetworkNone:
		if m.cb.OnAvailable != nil {
			m.cb.OnAvailable(next)
		}
	case prev != NetworkNone && next == NetworkNone:
		if m.cb.OnLost != nil {
			m.cb.OnLost()
		}
	default:
		if m.cb.OnChanged != nil {
			m.cb.OnChanged(prev, next)
		}
	}
}

// SampleInterfaces classifies the active network from the system interface
// list. Wifi wins over cellular, cellular over anything else.
func SampleInterfaces() NetworkType {
	ifaces, err := net.Interfaces()
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to list network interfaces")
		return NetworkNone
	}

	found := NetworkNone
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}

		switch classifyInterface(iface.Name) {
		case NetworkWifi:
			return NetworkWifi
		case NetworkCellular:
			found = NetworkCellular
		default:
			if found == NetworkNone {
				found = NetworkOther
			}
		}
	}
	return found
}

func classifyInterface(name string) NetworkType {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "wlan"), strings.HasPrefix(name, "wl"), strings.HasPrefix(name, "wifi"):
		return NetworkWifi
	case strings.HasPrefix(name, "wwan"), strings.HasPrefix(name, "rmnet"), strings.HasPrefix(name, "ccmni"):
		return NetworkCellular
	default:
		return NetworkOther
	}
}
