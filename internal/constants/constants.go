package constants

import "time"

// Connection timing constants
const (
	// KeepAliveInterval is the interval between liveness PINGs sent to the server
	KeepAliveInterval = 150 * time.Second

	// ReconnectSettleDelay is how long a reconnect attempt waits after invoking
	// the reconnect callback before checking whether the connection came up
	ReconnectSettleDelay = 5 * time.Second

	// MaxReconnectAttempts is the number of reconnect attempts before giving up
	MaxReconnectAttempts = 10

	// IdentifyDelay is the delay after connect before the identify sequence
	// starts, giving the server time to present itself
	IdentifyDelay = 2 * time.Second

	// IdentifyFallbackWindow is how long the identify sequence waits for an
	// acknowledgement before trying the fallback services syntax
	IdentifyFallbackWindow = 5 * time.Second

	// NetworkPollInterval is the sampling interval of the network change monitor
	NetworkPollInterval = 3 * time.Second
)

// ReconnectBackoff is the ordered retry delay table for the auto-reconnect
// controller. Attempts beyond the table length reuse the last entry.
var ReconnectBackoff = []time.Duration{
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
	300 * time.Second,
}
