package conversation

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/model"
)

// Event types emitted by the conversation manager
const (
	EventConversationsChanged    = "conversations.changed"
	EventChannelRemovalConfirmed = "channel.removal.confirmed"
	EventAvailableChannels       = "channels.available"
)

// AvailableChannel is one entry of the server channel list cache
type AvailableChannel struct {
	Name      string
	UserCount int
	Topic     string
}

// snapshot is the full immutable conversation collection. Every mutation
// swaps in a new snapshot via compare-and-swap, so readers never observe a
// partially applied update and never need a lock.
type snapshot struct {
	conversations []*model.Conversation
}

// Manager is the single source of mutation truth for the conversation
// collection and its message logs
type Manager struct {
	state atomic.Pointer[snapshot]
	bus   *events.Bus

	rosterMu sync.RWMutex
	rosters  map[string]map[string]model.ChannelUser

	availableMu sync.RWMutex
	available   []AvailableChannel
}

// NewManager creates an empty conversation manager
func NewManager(bus *events.Bus) *Manager {
	m := &Manager{
		bus:     bus,
		rosters: make(map[string]map[string]model.ChannelUser),
	}
	m.state.Store(&snapshot{})
	return m
}

// Conversations returns the current conversation snapshot. The returned
// slice and the conversations it points at must be treated as read-only.
func (m *Manager) Conversations() []*model.Conversation {
	return m.state.Load().conversations
}

// Find returns the conversation with the given name and type, or nil
func (m *Manager) Find(name string, convType model.ConversationType) *model.Conversation {
	for _, c := range m.Conversations() {
		if c.Name == name && c.Type == convType {
			return c
		}
	}
	return nil
}

// findByName returns the first conversation matching name regardless of type
func findByName(s *snapshot, name string) (int, *model.Conversation) {
	for i, c := range s.conversations {
		if c.Name == name {
			return i, c
		}
	}
	return -1, nil
}

// mutate applies fn to the current snapshot until the compare-and-swap
// succeeds. fn must be pure: it may not touch shared state and must return
// a fresh snapshot (or nil to abort the mutation).
func (m *Manager) mutate(fn func(old *snapshot) *snapshot) bool {
	for {
		old := m.state.Load()
		next := fn(old)
		if next == nil {
			return false
		}
		if m.state.CompareAndSwap(old, next) {
			return true
		}
	}
}

// AddMessage routes a message to the conversation whose name matches the
// message's channel name. Messages with no matching conversation are
// dropped; callers must create the conversation first.
func (m *Manager) AddMessage(msg model.Message) bool {
	added := m.mutate(func(old *snapshot) *snapshot {
		i, conv := findByName(old, msg.ChannelName)
		if conv == nil {
			return nil
		}
		next := cloneSnapshot(old)
		next.conversations[i] = conv.WithMessage(msg)
		return next
	})

	if !added {
		logger.Log.Debug().Str("channel", msg.ChannelName).Msg("No conversation for message, dropping")
		return false
	}

	m.emitChanged(msg.ChannelName)
	return true
}

// StatusConversation returns the server status conversation, creating it on
// first use. At most one exists and it is always first in iteration order.
func (m *Manager) StatusConversation() *model.Conversation {
	for {
		if c := m.Find(model.StatusConversationName, model.ConversationStatus); c != nil {
			return c
		}
		created := model.NewConversation(model.StatusConversationName, model.ConversationStatus)
		ok := m.mutate(func(old *snapshot) *snapshot {
			for _, c := range old.conversations {
				if c.Type == model.ConversationStatus {
					return nil
				}
			}
			next := &snapshot{conversations: make([]*model.Conversation, 0, len(old.conversations)+1)}
			next.conversations = append(next.conversations, created)
			next.conversations = append(next.conversations, old.conversations...)
			return next
		})
		if ok {
			m.emitChanged(created.Name)
			return created
		}
	}
}

// getOrCreate returns the conversation with the given name and type,
// creating it after the status conversation if absent
func (m *Manager) getOrCreate(name string, convType model.ConversationType) *model.Conversation {
	for {
		if c := m.Find(name, convType); c != nil {
			return c
		}
		created := model.NewConversation(name, convType)
		ok := m.mutate(func(old *snapshot) *snapshot {
			for _, c := range old.conversations {
				if c.Name == name && c.Type == convType {
					return nil
				}
			}
			next := cloneSnapshot(old)
			next.conversations = append(next.conversations, created)
			return next
		})
		if ok {
			m.emitChanged(name)
			return created
		}
	}
}

// StartPrivate opens (or returns) the private conversation with a user
func (m *Manager) StartPrivate(nickname string) *model.Conversation {
	return m.getOrCreate(nickname, model.ConversationPrivate)
}

// StartService opens (or returns) the conversation with a network service
func (m *Manager) StartService(name string) *model.Conversation {
	return m.getOrCreate(name, model.ConversationService)
}

// HandleAutoJoinChannel opens (or returns) a channel conversation
func (m *Manager) HandleAutoJoinChannel(channel string) *model.Conversation {
	return m.getOrCreate(channel, model.ConversationChannel)
}

// RemoveChannel deletes a channel conversation and its roster
func (m *Manager) RemoveChannel(channel string) bool {
	return m.remove(channel, model.ConversationChannel)
}

// RemovePrivateConversation deletes a private conversation
func (m *Manager) RemovePrivateConversation(nickname string) bool {
	return m.remove(nickname, model.ConversationPrivate)
}

func (m *Manager) remove(name string, convType model.ConversationType) bool {
	removed := m.mutate(func(old *snapshot) *snapshot {
		idx := -1
		for i, c := range old.conversations {
			if c.Name == name && c.Type == convType {
				idx = i
				break
			}
		}
		if idx == -1 {
			return nil
		}
		next := &snapshot{conversations: make([]*model.Conversation, 0, len(old.conversations)-1)}
		next.conversations = append(next.conversations, old.conversations[:idx]...)
		next.conversations = append(next.conversations, old.conversations[idx+1:]...)
		return next
	})

	if removed {
		if convType == model.ConversationChannel {
			m.ClearRoster(name)
		}
		m.emitChanged(name)
	}
	return removed
}

// ClearAllExceptStatus drops every conversation except the server status
// conversation, along with all channel rosters
func (m *Manager) ClearAllExceptStatus() {
	m.mutate(func(old *snapshot) *snapshot {
		next := &snapshot{}
		for _, c := range old.conversations {
			if c.Type == model.ConversationStatus {
				next.conversations = append(next.conversations, c)
			}
		}
		return next
	})

	m.rosterMu.Lock()
	m.rosters = make(map[string]map[string]model.ChannelUser)
	m.rosterMu.Unlock()

	m.emitChanged("")
}

// MarkRead marks every message in the named conversation as read
func (m *Manager) MarkRead(name string) {
	now := time.Now()
	changed := m.mutate(func(old *snapshot) *snapshot {
		i, conv := findByName(old, name)
		if conv == nil {
			return nil
		}
		next := cloneSnapshot(old)
		next.conversations[i] = conv.WithAllRead(now)
		return next
	})
	if changed {
		m.emitChanged(name)
	}
}

// ConfirmChannelRemoval publishes the removed channel name as a one-shot
// notification for the application layer
func (m *Manager) ConfirmChannelRemoval(channel string) {
	m.bus.Emit(events.Event{
		Type:      EventChannelRemovalConfirmed,
		Data:      map[string]interface{}{"channel": channel},
		Timestamp: time.Now(),
		Source:    events.EventSourceSession,
	})
}

func cloneSnapshot(old *snapshot) *snapshot {
	next := &snapshot{conversations: make([]*model.Conversation, len(old.conversations))}
	copy(next.conversations, old.conversations)
	return next
}

func (m *Manager) emitChanged(name string) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(events.Event{
		Type:      EventConversationsChanged,
		Data:      map[string]interface{}{"conversation": name},
		Timestamp: time.Now(),
		Source:    events.EventSourceSession,
	})
}
