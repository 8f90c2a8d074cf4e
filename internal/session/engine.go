package session

// Engine is the narrow surface of the protocol engine that command
// execution and the liveness monitor are allowed to touch. The concrete
// engine is *ircevent.Connection; components must fetch it freshly from the
// connection manager on every use and never cache it across a reconnect,
// because reconnecting swaps the handle out.
type Engine interface {
	Join(channel string) error
	Part(channel string) error
	Privmsg(target, text string) error
	Notice(target, text string) error
	Send(command string, params ...string) error
	SendRaw(line string) error
	CurrentNick() string
	Quit()
}
