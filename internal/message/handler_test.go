package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matt0x6f/cascade-core/internal/model"
)

type fakePrefs struct {
	blocked         map[string]bool
	ignored         map[string]bool
	blockAllPrivate bool
}

func (f *fakePrefs) IsBlocked(nickname string) bool { return f.blocked[nickname] }
func (f *fakePrefs) IsIgnored(nickname, channel string) bool {
	return f.ignored[nickname]
}
func (f *fakePrefs) BlockAllPrivate() bool { return f.blockAllPrivate }

func newFakePrefs() *fakePrefs {
	return &fakePrefs{blocked: map[string]bool{}, ignored: map[string]bool{}}
}

func TestHandleChannelMessage(t *testing.T) {
	h := NewHandler(newFakePrefs())

	msg := h.Handle(ContentEvent{
		Sender:  "alice",
		Target:  "#go",
		Content: "hello everyone",
		Type:    model.MessageText,
	}, "bob")

	require.NotNil(t, msg)
	assert.Equal(t, "#go", msg.ChannelName)
	assert.Equal(t, model.ConversationChannel, msg.ConversationType)
	assert.False(t, msg.OwnMessage)
	assert.False(t, msg.Mentioned)
}

func TestHandleChannelMention(t *testing.T) {
	h := NewHandler(newFakePrefs())

	msg := h.Handle(ContentEvent{
		Sender:  "alice",
		Target:  "#go",
		Content: "hello @bob",
		Type:    model.MessageText,
	}, "bob")

	require.NotNil(t, msg)
	assert.True(t, msg.Mentioned)
}

func TestHandleIgnoredUser(t *testing.T) {
	prefs := newFakePrefs()
	prefs.ignored["spammer"] = true
	h := NewHandler(prefs)

	t.Run("channel", func(t *testing.T) {
		msg := h.Handle(ContentEvent{Sender: "spammer", Target: "#go", Content: "buy now"}, "bob")
		assert.Nil(t, msg)
	})

	t.Run("private", func(t *testing.T) {
		msg := h.Handle(ContentEvent{Sender: "spammer", Target: "bob", Content: "buy now"}, "bob")
		assert.Nil(t, msg)
	})
}

func TestHandlePrivateMessage(t *testing.T) {
	h := NewHandler(newFakePrefs())

	t.Run("inbound named after sender", func(t *testing.T) {
		msg := h.Handle(ContentEvent{Sender: "alice", Target: "bob", Content: "hi"}, "bob")
		require.NotNil(t, msg)
		assert.Equal(t, "alice", msg.ChannelName)
		assert.Equal(t, model.ConversationPrivate, msg.ConversationType)
		assert.False(t, msg.OwnMessage)
	})

	t.Run("own echo named after target", func(t *testing.T) {
		msg := h.Handle(ContentEvent{Sender: "bob", Target: "alice", Content: "hi"}, "bob")
		require.NotNil(t, msg)
		assert.Equal(t, "alice", msg.ChannelName)
		assert.True(t, msg.OwnMessage)
	})
}

func TestHandleBlockedPrivate(t *testing.T) {
	t.Run("blocked sender", func(t *testing.T) {
		prefs := newFakePrefs()
		prefs.blocked["mallory"] = true
		h := NewHandler(prefs)

		msg := h.Handle(ContentEvent{Sender: "mallory", Target: "bob", Content: "hi"}, "bob")
		assert.Nil(t, msg)
	})

	t.Run("block all private", func(t *testing.T) {
		prefs := newFakePrefs()
		prefs.blockAllPrivate = true
		h := NewHandler(prefs)

		msg := h.Handle(ContentEvent{Sender: "alice", Target: "bob", Content: "hi"}, "bob")
		assert.Nil(t, msg)
	})

	t.Run("block does not apply to channels", func(t *testing.T) {
		prefs := newFakePrefs()
		prefs.blocked["mallory"] = true
		h := NewHandler(prefs)

		msg := h.Handle(ContentEvent{Sender: "mallory", Target: "#go", Content: "hi"}, "bob")
		assert.NotNil(t, msg)
	})
}

func TestIsMentioned(t *testing.T) {
	assert.True(t, IsMentioned("hello bob", "bob"))
	assert.True(t, IsMentioned("hello @bob", "bob"))
	// Substring matching is deliberately permissive
	assert.True(t, IsMentioned("hello bobby", "bob"))
	assert.False(t, IsMentioned("hello Bob", "bob"))
	assert.False(t, IsMentioned("hello alice", "bob"))
	assert.False(t, IsMentioned("hello", ""))
}

func TestMessageTypeForEvent(t *testing.T) {
	assert.Equal(t, model.MessageText, MessageTypeForEvent(model.EventNone))
	assert.Equal(t, model.MessageNotice, MessageTypeForEvent(model.EventUserJoin))
}

func TestNewEventMessage(t *testing.T) {
	msg := NewEventMessage(model.EventUserKick, "#go", "alice", map[string]string{
		model.InfoTarget: "bob",
		model.InfoReason: "spam",
	})
	assert.Equal(t, "alice kicked bob (spam)", msg.Content)
	assert.Equal(t, "#go", msg.ChannelName)
	assert.Equal(t, model.EventUserKick, msg.EventType)
	assert.Equal(t, "alice", msg.AdditionalInfo[model.InfoNick])
}
