package message

import (
	"strings"
	"time"

	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/model"
)

// Preferences is the slice of the preference store the handler consults
type Preferences interface {
	IsBlocked(nickname string) bool
	IsIgnored(nickname, channel string) bool
	BlockAllPrivate() bool
}

// ContentEvent is an inbound content event (message, notice or action) as
// reported by the protocol engine
type ContentEvent struct {
	Sender  string
	Target  string
	Content string
	Type    model.MessageType
}

// IsChannel reports whether the event targets a channel
func (e ContentEvent) IsChannel() bool {
	return len(e.Target) > 0 && (e.Target[0] == '#' || e.Target[0] == '&')
}

// Handler turns raw content events into domain messages and applies the
// ignore/block/mention filters
type Handler struct {
	prefs Preferences
}

// NewHandler creates a message handler backed by the given preferences
func NewHandler(prefs Preferences) *Handler {
	return &Handler{prefs: prefs}
}

// Handle converts a content event into a message, or returns nil when the
// event is suppressed (ignored sender, blocked sender, or blocked private
// message). Sending any rejection notice is the caller's responsibility.
func (h *Handler) Handle(ev ContentEvent, currentNick string) *model.Message {
	if ev.IsChannel() {
		return h.handleChannel(ev, currentNick)
	}
	return h.handlePrivate(ev, currentNick)
}

func (h *Handler) handleChannel(ev ContentEvent, currentNick string) *model.Message {
	if h.prefs.IsIgnored(ev.Sender, ev.Target) {
		logger.Log.Debug().Str("sender", ev.Sender).Str("channel", ev.Target).Msg("Dropping message from ignored user")
		return nil
	}

	msg := model.Message{
		Sender:           ev.Sender,
		Content:          ev.Content,
		ConversationType: model.ConversationChannel,
		MessageType:      ev.Type,
		ChannelName:      ev.Target,
		OwnMessage:       ev.Sender == currentNick,
		Mentioned:        IsMentioned(ev.Content, currentNick),
		Timestamp:        time.Now(),
		ColorClass:       model.ColorClass(model.EventNone),
	}
	return &msg
}

func (h *Handler) handlePrivate(ev ContentEvent, currentNick string) *model.Message {
	if h.prefs.IsIgnored(ev.Sender, "") {
		logger.Log.Debug().Str("sender", ev.Sender).Msg("Dropping private message from ignored user")
		return nil
	}
	if h.prefs.BlockAllPrivate() || h.prefs.IsBlocked(ev.Sender) {
		logger.Log.Debug().Str("sender", ev.Sender).Msg("Dropping private message from blocked user")
		return nil
	}

	// Private conversations are named after the remote user; for our own
	// outbound echoes that is the target, otherwise the sender
	name := ev.Sender
	own := ev.Sender == currentNick
	if own {
		name = ev.Target
	}

	msg := model.Message{
		Sender:           ev.Sender,
		Content:          ev.Content,
		ConversationType: model.ConversationPrivate,
		MessageType:      ev.Type,
		ChannelName:      name,
		OwnMessage:       own,
		Mentioned:        IsMentioned(ev.Content, currentNick),
		Timestamp:        time.Now(),
		ColorClass:       model.ColorClass(model.EventNone),
	}
	return &msg
}

// IsMentioned reports whether content mentions the nickname. The match is a
// case-sensitive substring check, so short nicknames match inside longer
// words; that permissiveness is intentional.
func IsMentioned(content, nickname string) bool {
	if nickname == "" {
		return false
	}
	return strings.Contains(content, nickname) || strings.Contains(content, "@"+nickname)
}

// NewSystemMessage creates a system notice for a conversation
func NewSystemMessage(content, channelName string, convType model.ConversationType) model.Message {
	return model.Message{
		Sender:           "*",
		Content:          content,
		ConversationType: convType,
		MessageType:      MessageTypeForEvent(model.EventSystem),
		EventType:        model.EventSystem,
		ChannelName:      channelName,
		Timestamp:        time.Now(),
		ColorClass:       model.ColorClass(model.EventSystem),
	}
}

// NewErrorMessage creates a typed error message for a conversation
func NewErrorMessage(content, channelName string, convType model.ConversationType) model.Message {
	return model.Message{
		Sender:           "*",
		Content:          "Error: " + content,
		ConversationType: convType,
		MessageType:      model.MessageNotice,
		EventType:        model.EventError,
		ChannelName:      channelName,
		Timestamp:        time.Now(),
		ColorClass:       model.ColorClass(model.EventError),
	}
}

// NewEventMessage creates a message for a protocol event. The subject user
// and any extra rendering data travel in the auxiliary info map.
func NewEventMessage(t model.EventType, channelName, subject string, info map[string]string) model.Message {
	if info == nil {
		info = make(map[string]string)
	}
	if _, ok := info[model.InfoNick]; !ok {
		info[model.InfoNick] = subject
	}

	return model.Message{
		Sender:           subject,
		Content:          model.FormatEvent(t, info),
		ConversationType: model.ConversationChannel,
		MessageType:      MessageTypeForEvent(t),
		EventType:        t,
		ChannelName:      channelName,
		Timestamp:        time.Now(),
		AdditionalInfo:   info,
		ColorClass:       model.ColorClass(t),
	}
}

// MessageTypeForEvent returns the coarse message type used to render an
// event type
func MessageTypeForEvent(t model.EventType) model.MessageType {
	if t == model.EventNone {
		return model.MessageText
	}
	return model.MessageNotice
}
