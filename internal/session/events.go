package session

// Event types emitted by the session on the event bus
const (
	EventConnectionState  = "connection.state"
	EventMessageReceived  = "message.received"
	EventMessageSent      = "message.sent"
	EventMessageMentioned = "message.mentioned"
	EventWhoisReceived    = "whois.received"
	EventInviteReceived   = "invite.received"
	EventEngineError      = "engine.error"
	EventRosterUpdated    = "channel.roster.updated"
)
