package model

import "time"

// MessageType is the coarse rendering class of a message
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageNotice MessageType = "notice"
	MessageAction MessageType = "action"
)

// Message is a single entry in a conversation log. A message is immutable
// once appended except for the Read flag.
type Message struct {
	Sender           string
	Content          string
	ConversationType ConversationType
	MessageType      MessageType
	EventType        EventType
	OwnMessage       bool
	Mentioned        bool
	// ChannelName is the routing key: it must match the name of the
	// conversation the message belongs to
	ChannelName    string
	Timestamp      time.Time
	AdditionalInfo map[string]string
	ColorClass     string
	Read           bool
}

// NewTextMessage creates a plain text message for a conversation
func NewTextMessage(sender, content, channelName string, convType ConversationType) Message {
	return Message{
		Sender:           sender,
		Content:          content,
		ConversationType: convType,
		MessageType:      MessageText,
		EventType:        EventNone,
		ChannelName:      channelName,
		Timestamp:        time.Now(),
		ColorClass:       ColorClass(EventNone),
	}
}
