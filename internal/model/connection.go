package model

// ConnectionPhase is the coarse lifecycle phase of the server connection
type ConnectionPhase string

const (
	PhaseDisconnected  ConnectionPhase = "disconnected"
	PhaseConnecting    ConnectionPhase = "connecting"
	PhaseConnected     ConnectionPhase = "connected"
	PhaseDisconnecting ConnectionPhase = "disconnecting"
	PhaseError         ConnectionPhase = "error"
)

// ConnectionState is the observable connection state. Reason is only set when
// Phase is PhaseError.
type ConnectionState struct {
	Phase  ConnectionPhase
	Reason string
}

// Disconnected reports whether no connection is active or pending
func (s ConnectionState) Disconnected() bool {
	return s.Phase == PhaseDisconnected || s.Phase == PhaseError
}

// StatusText returns the coarse status string broadcast on every transition
// (used for the foreground notification)
func (s ConnectionState) StatusText() string {
	switch s.Phase {
	case PhaseConnecting:
		return "Connecting..."
	case PhaseConnected:
		return "Connected"
	case PhaseDisconnecting:
		return "Disconnecting..."
	case PhaseError:
		if s.Reason != "" {
			return "Connection error: " + s.Reason
		}
		return "Connection error"
	default:
		return "Disconnected"
	}
}

// Descriptor describes a single connection attempt. It is immutable once an
// attempt starts; a new connect request replaces it wholesale.
type Descriptor struct {
	Server    string   `toml:"server"`
	Port      int      `toml:"port"`
	TLS       bool     `toml:"tls"`
	Encoding  string   `toml:"encoding"`
	Nickname  string   `toml:"nickname"`
	Username  string   `toml:"username"`
	Realname  string   `toml:"realname"`
	Password  string   `toml:"password"`
	AutoJoin  []string `toml:"channels"`
	SASLLogin string   `toml:"sasl_login"`
	SASLPass  string   `toml:"sasl_password"`
}
