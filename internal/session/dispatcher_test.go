package session

import (
	"strings"
	"testing"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matt0x6f/cascade-core/internal/conversation"
	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/model"
	"github.com/matt0x6f/cascade-core/internal/prefs"
)

type dispatcherFixture struct {
	bus   *events.Bus
	convs *conversation.Manager
	prefs *prefs.Store
	mgr   *Manager
	d     *Dispatcher
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()

	bus := events.NewBus()
	store, err := prefs.Open(":memory:", bus)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	convs := conversation.NewManager(bus)
	mgr := NewManager(bus, convs, store)
	mgr.desc = &model.Descriptor{Nickname: "me"}
	t.Cleanup(mgr.dispatcher.Stop)

	return &dispatcherFixture{
		bus:   bus,
		convs: convs,
		prefs: store,
		mgr:   mgr,
		d:     mgr.dispatcher,
	}
}

func (f *dispatcherFixture) statusMessages() []model.Message {
	conv := f.convs.Find(model.StatusConversationName, model.ConversationStatus)
	if conv == nil {
		return nil
	}
	return conv.Messages
}

func TestDispatcherPrivmsgToChannel(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.handlePrivmsg("alice", "#go", "hello me")

	conv := f.convs.Find("#go", model.ConversationChannel)
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hello me", conv.Messages[0].Content)
	assert.Equal(t, model.MessageText, conv.Messages[0].MessageType)
	assert.True(t, conv.Messages[0].Mentioned)
}

func TestDispatcherPrivmsgAction(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.handlePrivmsg("alice", "#go", "\x01ACTION waves\x01")

	conv := f.convs.Find("#go", model.ConversationChannel)
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, model.MessageAction, conv.Messages[0].MessageType)
	assert.Equal(t, "waves", conv.Messages[0].Content)
}

func TestDispatcherPrivateMessage(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.handlePrivmsg("alice", "me", "psst")

	conv := f.convs.Find("alice", model.ConversationPrivate)
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 1)
}

func TestDispatcherBlockedPrivateCreatesNothing(t *testing.T) {
	f := newDispatcherFixture(t)
	require.NoError(t, f.prefs.BlockUser("mallory"))

	f.d.handlePrivmsg("mallory", "me", "hi")

	assert.Nil(t, f.convs.Find("mallory", model.ConversationPrivate))
}

func TestDispatcherCTCPRequestLogged(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.handlePrivmsg("alice", "me", "\x01VERSION\x01")

	// No private conversation; the exchange lands in status
	assert.Nil(t, f.convs.Find("alice", model.ConversationPrivate))
	msgs := f.statusMessages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, model.EventCTCP, msgs[len(msgs)-1].EventType)
}

func TestDispatcherServiceNotice(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.handleNotice("NickServ", "me", "You are now identified for me")

	conv := f.convs.Find("NickServ", model.ConversationService)
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 1)
	assert.True(t, f.mgr.Auth().Confirmed())
}

func TestDispatcherServerNoticeGoesToStatus(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.handleNotice("irc.example.org", "me", "*** Looking up your hostname")

	msgs := f.statusMessages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "Looking up your hostname")
}

func TestDispatcherJoin(t *testing.T) {
	f := newDispatcherFixture(t)
	f.convs.HandleAutoJoinChannel("#go")

	t.Run("visible by default", func(t *testing.T) {
		f.d.handleJoin("#go", "alice")

		users := f.convs.UsersForChannel("#go")
		require.Len(t, users, 1)
		assert.Equal(t, "alice", users[0].Nickname)

		conv := f.convs.Find("#go", model.ConversationChannel)
		require.Len(t, conv.Messages, 1)
		assert.Equal(t, model.EventUserJoin, conv.Messages[0].EventType)
	})

	t.Run("suppressed by preference", func(t *testing.T) {
		require.NoError(t, f.prefs.SetBool(prefs.KeyShowJoinEvents, false))
		f.d.handleJoin("#go", "bob")

		// Roster updates regardless of visibility
		assert.Len(t, f.convs.UsersForChannel("#go"), 2)
		conv := f.convs.Find("#go", model.ConversationChannel)
		assert.Len(t, conv.Messages, 1)
	})
}

func TestDispatcherSelfJoinCreatesConversation(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.handleJoin("#new", "me")

	assert.NotNil(t, f.convs.Find("#new", model.ConversationChannel))
}

func TestDispatcherSelfPartRemovesConversation(t *testing.T) {
	f := newDispatcherFixture(t)
	f.convs.HandleAutoJoinChannel("#go")

	removed := make(chan events.Event, 1)
	f.bus.Subscribe(conversation.EventChannelRemovalConfirmed, events.SubscriberFunc(func(ev events.Event) {
		removed <- ev
	}))

	f.d.handlePart("#go", "me", "bye")

	assert.Nil(t, f.convs.Find("#go", model.ConversationChannel))
	ev := <-removed
	assert.Equal(t, "#go", ev.Data["channel"])
}

func TestDispatcherQuitFanOut(t *testing.T) {
	f := newDispatcherFixture(t)
	f.convs.HandleAutoJoinChannel("#go")
	f.convs.HandleAutoJoinChannel("#rust")
	f.convs.HandleAutoJoinChannel("#idle")
	f.convs.StartPrivate("alice")
	f.convs.RosterAdd("#go", model.ChannelUser{Nickname: "alice"})
	f.convs.RosterAdd("#rust", model.ChannelUser{Nickname: "alice"})

	f.d.handleQuit("alice", "timeout")

	for _, channel := range []string{"#go", "#rust"} {
		conv := f.convs.Find(channel, model.ConversationChannel)
		require.Len(t, conv.Messages, 1, channel)
		assert.Equal(t, model.EventUserQuit, conv.Messages[0].EventType)
	}
	// Channels the user was not in stay quiet
	assert.Empty(t, f.convs.Find("#idle", model.ConversationChannel).Messages)

	// Terminal message in the open private conversation
	private := f.convs.Find("alice", model.ConversationPrivate)
	require.Len(t, private.Messages, 1)
	assert.Equal(t, model.ConversationPrivate, private.Messages[0].ConversationType)
}

func TestDispatcherKickAlwaysShown(t *testing.T) {
	f := newDispatcherFixture(t)
	f.convs.HandleAutoJoinChannel("#go")
	f.convs.RosterAdd("#go", model.ChannelUser{Nickname: "bob"})
	require.NoError(t, f.prefs.SetBool(prefs.KeyShowPartEvents, false))
	require.NoError(t, f.prefs.SetBool(prefs.KeyShowQuitEvents, false))

	f.d.handleKick("#go", "alice", "bob", "flooding")

	conv := f.convs.Find("#go", model.ConversationChannel)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, model.EventUserKick, conv.Messages[0].EventType)
	assert.Empty(t, f.convs.UsersForChannel("#go"))
}

func TestDispatcherModeChange(t *testing.T) {
	f := newDispatcherFixture(t)
	f.convs.HandleAutoJoinChannel("#go")
	f.convs.RosterAdd("#go", model.ChannelUser{Nickname: "bob"})

	f.d.handleMode("alice", "#go", "+o", "bob")

	users := f.convs.UsersForChannel("#go")
	require.Len(t, users, 1)
	assert.True(t, users[0].Op)

	conv := f.convs.Find("#go", model.ConversationChannel)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, model.EventUserOp, conv.Messages[0].EventType)
}

func TestDispatcherBanVisibilityToggle(t *testing.T) {
	f := newDispatcherFixture(t)
	f.convs.HandleAutoJoinChannel("#go")
	require.NoError(t, f.prefs.SetBool(prefs.KeyShowBanEvents, false))

	f.d.handleMode("alice", "#go", "+b", "*!*@spam.host")

	assert.Empty(t, f.convs.Find("#go", model.ConversationChannel).Messages)
}

func TestDispatcherTopic(t *testing.T) {
	f := newDispatcherFixture(t)
	f.convs.HandleAutoJoinChannel("#go")

	t.Run("change", func(t *testing.T) {
		f.d.handleTopic("alice", "#go", "welcome", true)
		conv := f.convs.Find("#go", model.ConversationChannel)
		require.Len(t, conv.Messages, 1)
		assert.Contains(t, conv.Messages[0].Content, "changed the topic")
	})

	t.Run("reported via numeric", func(t *testing.T) {
		f.d.handleNumeric("332", []string{"me", "#go", "welcome"})
		conv := f.convs.Find("#go", model.ConversationChannel)
		require.Len(t, conv.Messages, 2)
		assert.Equal(t, "Topic: welcome", conv.Messages[1].Content)
	})
}

func TestDispatcherNamesReply(t *testing.T) {
	f := newDispatcherFixture(t)
	f.convs.RosterAdd("#go", model.ChannelUser{Nickname: "stale"})

	f.d.handleNamesReply([]string{"me", "=", "#go", "@alice +bob carol"})
	f.d.handleNamesReply([]string{"me", "=", "#go", "~dave"})
	f.d.handleNamesEnd("#go")

	users := f.convs.UsersForChannel("#go")
	require.Len(t, users, 4)
	// Sorted by rank: owner, op, voice, plain
	assert.Equal(t, "dave", users[0].Nickname)
	assert.True(t, users[0].Owner)
	assert.Equal(t, "alice", users[1].Nickname)
	assert.True(t, users[1].Op)
	assert.Equal(t, "bob", users[2].Nickname)
	assert.True(t, users[2].Voice)
	assert.Equal(t, "carol", users[3].Nickname)

	// A fresh burst resets the roster again
	f.d.handleNamesReply([]string{"me", "=", "#go", "eve"})
	assert.Len(t, f.convs.UsersForChannel("#go"), 1)
}

func TestDispatcherChannelList(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.handleNumeric("321", []string{"me", "Channel", "Users Name"})
	f.d.handleNumeric("322", []string{"me", "#go", "42", "gophers"})
	f.d.handleNumeric("322", []string{"me", "#rust", "17", ""})
	f.d.handleNumeric("323", []string{"me", "End of /LIST"})

	channels := f.convs.AvailableChannels()
	require.Len(t, channels, 2)
	assert.Equal(t, "#go", channels[0].Name)
	assert.Equal(t, 42, channels[0].UserCount)
	assert.Equal(t, "gophers", channels[0].Topic)
}

func TestDispatcherWhoisSummary(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.handleNumeric("311", []string{"me", "alice", "alice", "example.org", "*", "Alice A."})
	f.d.handleNumeric("319", []string{"me", "alice", "#go #rust"})
	f.d.handleNumeric("330", []string{"me", "alice", "alice_account"})
	f.d.handleNumeric("318", []string{"me", "alice", "End of /WHOIS list"})

	msgs := f.statusMessages()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0].Content, "alice is alice@example.org")
	assert.Contains(t, msgs[0].Content, "(Alice A.)")

	// A second end-of-whois for the same nick has nothing buffered
	before := len(f.statusMessages())
	f.d.handleNumeric("318", []string{"me", "alice", "End of /WHOIS list"})
	assert.Len(t, f.statusMessages(), before)
}

func TestDispatcherNumericAllowList(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.handleNumeric("001", []string{"me", "Welcome to the network"})
	require.Len(t, f.statusMessages(), 1)

	// Unlisted informational numerics are protocol noise
	f.d.handleNumeric("341", []string{"me", "alice", "#go"})
	assert.Len(t, f.statusMessages(), 1)
}

func TestDispatcherErrorNumericRouting(t *testing.T) {
	f := newDispatcherFixture(t)
	f.convs.HandleAutoJoinChannel("#go")

	t.Run("channel error lands in the channel", func(t *testing.T) {
		f.d.handleNumeric("404", []string{"me", "#go", "Cannot send to channel"})
		conv := f.convs.Find("#go", model.ConversationChannel)
		require.Len(t, conv.Messages, 1)
		assert.Equal(t, model.EventError, conv.Messages[0].EventType)
	})

	t.Run("unscoped error lands in status", func(t *testing.T) {
		f.d.handleNumeric("433", []string{"me", "newnick", "Nickname is already in use"})
		msgs := f.statusMessages()
		require.Len(t, msgs, 1)
		assert.Contains(t, msgs[0].Content, "already in use")
	})
}

func TestDispatcherUnknownCommandAllowList(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.handleRaw("CAP", "irc.example.org", []string{"me", "LS", "sasl"})
	require.Len(t, f.statusMessages(), 1)
	assert.Equal(t, model.EventUnknownCommand, f.statusMessages()[0].EventType)

	f.d.handleRaw("TAGMSG", "alice", nil)
	assert.Len(t, f.statusMessages(), 1)
}

func TestDispatcherAuthNumeric(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.handleNumeric("900", []string{"me", "me!me@host", "me", "You are now logged in as me"})

	assert.True(t, f.mgr.Auth().Confirmed())
	require.Len(t, f.statusMessages(), 1)
}

func TestCTCPHelpers(t *testing.T) {
	payload, ok := ctcpPayload("\x01ACTION waves\x01")
	require.True(t, ok)
	command, args := splitCTCP(payload)
	assert.Equal(t, "ACTION", command)
	assert.Equal(t, "waves", args)

	_, ok = ctcpPayload("plain text")
	assert.False(t, ok)

	command, args = splitCTCP("version")
	assert.Equal(t, "VERSION", command)
	assert.Empty(t, args)
}

func TestIsChannelName(t *testing.T) {
	assert.True(t, isChannelName("#go"))
	assert.True(t, isChannelName("&local"))
	assert.False(t, isChannelName("alice"))
	assert.False(t, isChannelName(""))
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, isNumeric("001"))
	assert.True(t, isNumeric("433"))
	assert.False(t, isNumeric("CAP"))
	assert.False(t, isNumeric("01"))
	assert.False(t, isNumeric("01a"))
}

// Drives raw protocol lines through the engine's own callback dispatch to
// prove every registration in Attach actually fires
func TestAttachRoutesEngineCallbacks(t *testing.T) {
	f := newDispatcherFixture(t)
	cfg := BuildEngineConfig(model.Descriptor{Server: "irc.example.org", Port: 6697, Nickname: "me"})
	f.d.Attach(cfg.Conn)

	deliver := func(line string) {
		t.Helper()
		msg, err := ircmsg.ParseLine(line)
		require.NoError(t, err)
		cfg.Conn.HandleMessage(msg)
	}
	statusContains := func(text string) func() bool {
		return func() bool {
			for _, msg := range f.statusMessages() {
				if strings.Contains(msg.Content, text) {
					return true
				}
			}
			return false
		}
	}
	const wait, tick = time.Second, 5 * time.Millisecond

	t.Run("welcome numeric reaches status", func(t *testing.T) {
		deliver(":server 001 me :Welcome to the network")
		require.Eventually(t, statusContains("Welcome to the network"), wait, tick)
	})

	t.Run("end of MOTD completes registration", func(t *testing.T) {
		deliver(":server 376 me :End of /MOTD command")
		require.Eventually(t, statusContains("Connected to server"), wait, tick)
		assert.Equal(t, model.PhaseConnected, f.mgr.State().Phase)
	})

	t.Run("privmsg lands in its channel", func(t *testing.T) {
		deliver(":alice!u@host PRIVMSG #go :hello there")
		require.Eventually(t, func() bool {
			conv := f.convs.Find("#go", model.ConversationChannel)
			return conv != nil && len(conv.Messages) == 1
		}, wait, tick)
	})

	t.Run("names burst fills the roster", func(t *testing.T) {
		deliver(":server 353 me = #go :@alice +bob")
		deliver(":server 366 me #go :End of /NAMES list")
		require.Eventually(t, func() bool {
			return len(f.convs.UsersForChannel("#go")) == 2
		}, wait, tick)
	})

	t.Run("topic report reaches the channel", func(t *testing.T) {
		deliver(":server 332 me #go :all things go")
		require.Eventually(t, func() bool {
			conv := f.convs.Find("#go", model.ConversationChannel)
			if conv == nil {
				return false
			}
			for _, msg := range conv.Messages {
				if msg.EventType == model.EventTopicChange {
					return true
				}
			}
			return false
		}, wait, tick)
	})

	t.Run("list burst caches available channels", func(t *testing.T) {
		deliver(":server 321 me Channel :Users Name")
		deliver(":server 322 me #rust 17 :crustaceans welcome")
		deliver(":server 323 me :End of /LIST")
		require.Eventually(t, func() bool {
			channels := f.convs.AvailableChannels()
			return len(channels) == 1 && channels[0].Name == "#rust"
		}, wait, tick)
	})

	t.Run("ERROR is handled exactly once", func(t *testing.T) {
		errorCount := func() int {
			count := 0
			for _, msg := range f.statusMessages() {
				if msg.EventType == model.EventError {
					count++
				}
			}
			return count
		}
		deliver("ERROR :Closing Link: too many connections")
		require.Eventually(t, func() bool { return errorCount() == 1 }, wait, tick)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, errorCount())
	})
}
