package model

import (
	"time"

	"github.com/google/uuid"
)

// ConversationType classifies a conversation
type ConversationType string

const (
	ConversationChannel ConversationType = "channel"
	ConversationPrivate ConversationType = "private"
	ConversationService ConversationType = "service"
	ConversationStatus  ConversationType = "status"
)

// StatusConversationName is the display name of the singleton server status
// conversation
const StatusConversationName = "Server Status"

// Conversation is a named, typed message thread. Instances are treated as
// immutable snapshots by readers; all mutation goes through the conversation
// manager, which replaces the whole conversation on write.
type Conversation struct {
	ID     string
	Name   string
	Type   ConversationType
	// Origin is the type the conversation was created with and never changes
	Origin   ConversationType
	Messages []Message
	LastRead time.Time
	Active   bool
}

// NewConversation creates a conversation of the given type
func NewConversation(name string, convType ConversationType) *Conversation {
	return &Conversation{
		ID:     uuid.NewString(),
		Name:   name,
		Type:   convType,
		Origin: convType,
		Active: true,
	}
}

// WithMessage returns a copy of the conversation with msg appended. The
// original conversation and its message slice are not modified.
func (c *Conversation) WithMessage(msg Message) *Conversation {
	clone := *c
	clone.Messages = make([]Message, len(c.Messages), len(c.Messages)+1)
	copy(clone.Messages, c.Messages)
	clone.Messages = append(clone.Messages, msg)
	return &clone
}

// WithAllRead returns a copy with every message marked read and the read
// timestamp advanced
func (c *Conversation) WithAllRead(at time.Time) *Conversation {
	clone := *c
	clone.Messages = make([]Message, len(c.Messages))
	copy(clone.Messages, c.Messages)
	for i := range clone.Messages {
		clone.Messages[i].Read = true
	}
	clone.LastRead = at
	return &clone
}

// UnreadCount returns the number of unread messages
func (c *Conversation) UnreadCount() int {
	n := 0
	for i := range c.Messages {
		if !c.Messages[i].Read {
			n++
		}
	}
	return n
}
