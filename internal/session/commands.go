package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/matt0x6f/cascade-core/internal/conversation"
	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/message"
	"github.com/matt0x6f/cascade-core/internal/model"
	"github.com/matt0x6f/cascade-core/internal/validation"
)

// Commands translates user intents into outbound protocol operations plus
// optimistic local updates. Every method shares the same contract: validate
// preconditions, perform the engine call, optionally echo locally, and on
// failure log and append an error message instead of propagating.
type Commands struct {
	mgr   *Manager
	convs *conversation.Manager
	bus   *events.Bus
}

// NewCommands creates the command surface for a session
func NewCommands(mgr *Manager, convs *conversation.Manager, bus *events.Bus) *Commands {
	return &Commands{mgr: mgr, convs: convs, bus: bus}
}

// engine returns the live engine handle, or nil when not connected
func (c *Commands) engine() Engine {
	if !c.mgr.IsConnected() {
		return nil
	}
	return c.mgr.Engine()
}

// JoinChannel joins a channel. The result callback reports validation and
// send failures synchronously even though the join itself completes
// asynchronously via the JOIN event.
func (c *Commands) JoinChannel(channel string, result func(error)) {
	if result == nil {
		result = func(error) {}
	}
	if err := validation.ValidateChannelName(channel); err != nil {
		result(fmt.Errorf("invalid channel name: %w", err))
		return
	}
	engine := c.engine()
	if engine == nil {
		result(fmt.Errorf("not connected"))
		return
	}
	if err := engine.Join(channel); err != nil {
		logger.Log.Warn().Err(err).Str("channel", channel).Msg("Join failed")
		result(fmt.Errorf("failed to join %s: %w", channel, err))
		return
	}
	result(nil)
}

// PartChannel leaves a channel
func (c *Commands) PartChannel(channel string) {
	engine := c.engine()
	if engine == nil {
		return
	}
	if err := engine.Part(channel); err != nil {
		logger.Log.Warn().Err(err).Str("channel", channel).Msg("Part failed")
		c.appendError(channel, model.ConversationChannel, err.Error())
	}
}

// SetTopic sets a channel topic and echoes a confirmation locally. The
// result callback reports send failures.
func (c *Commands) SetTopic(channel, topic string, result func(error)) {
	if result == nil {
		result = func(error) {}
	}
	engine := c.engine()
	if engine == nil {
		result(fmt.Errorf("not connected"))
		return
	}
	if err := engine.Send("TOPIC", channel, c.mgr.Config().EncodeText(topic)); err != nil {
		logger.Log.Warn().Err(err).Str("channel", channel).Msg("Topic change failed")
		c.appendError(channel, model.ConversationChannel, err.Error())
		result(err)
		return
	}
	c.convs.AddMessage(message.NewEventMessage(model.EventTopicChange, channel, c.mgr.CurrentNick(), map[string]string{
		model.InfoTopic:   topic,
		model.InfoChanged: "true",
	}))
	result(nil)
}

// ListChannels requests the server channel list; the dispatcher caches the
// replies as they stream in
func (c *Commands) ListChannels() {
	c.convs.ClearAvailableChannels()
	engine := c.engine()
	if engine == nil {
		return
	}
	if err := engine.Send("LIST"); err != nil {
		logger.Log.Warn().Err(err).Msg("Channel list request failed")
	}
}

// SendMessage sends a text message to a channel or user and echoes it into
// the matching conversation
func (c *Commands) SendMessage(target, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	engine := c.engine()
	if engine == nil {
		c.appendError(target, conversationTypeFor(target), "not connected")
		return
	}
	if err := engine.Privmsg(target, c.mgr.Config().EncodeText(text)); err != nil {
		logger.Log.Warn().Err(err).Str("target", target).Msg("Send failed")
		c.appendError(target, conversationTypeFor(target), err.Error())
		return
	}
	c.echoOwn(target, text, model.MessageText)
}

// SendPrivateMessage opens (if needed) a private conversation and sends a
// message into it
func (c *Commands) SendPrivateMessage(nickname, text string) {
	if err := validation.ValidateNickname(nickname); err != nil {
		logger.Log.Warn().Err(err).Msg("Refusing private message")
		return
	}
	c.convs.StartPrivate(nickname)
	c.SendMessage(nickname, text)
}

// SendNotice sends a notice to a channel or user
func (c *Commands) SendNotice(target, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	engine := c.engine()
	if engine == nil {
		return
	}
	if err := engine.Notice(target, c.mgr.Config().EncodeText(text)); err != nil {
		logger.Log.Warn().Err(err).Str("target", target).Msg("Notice failed")
		c.appendError(target, conversationTypeFor(target), err.Error())
		return
	}
	c.echoOwn(target, text, model.MessageNotice)
}

// SendAction sends a CTCP ACTION ("/me") to a channel or user
func (c *Commands) SendAction(target, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	engine := c.engine()
	if engine == nil {
		return
	}
	payload := fmt.Sprintf("%cACTION %s%c", ctcpDelim, c.mgr.Config().EncodeText(text), ctcpDelim)
	if err := engine.Privmsg(target, payload); err != nil {
		logger.Log.Warn().Err(err).Str("target", target).Msg("Action failed")
		c.appendError(target, conversationTypeFor(target), err.Error())
		return
	}
	c.echoOwn(target, text, model.MessageAction)
}

// ChangeNick requests a new nickname; the NICK event echoes the change
func (c *Commands) ChangeNick(nickname string) {
	if err := validation.ValidateNickname(nickname); err != nil {
		logger.Log.Warn().Err(err).Msg("Refusing nick change")
		return
	}
	engine := c.engine()
	if engine == nil {
		return
	}
	if err := engine.Send("NICK", nickname); err != nil {
		logger.Log.Warn().Err(err).Str("nick", nickname).Msg("Nick change failed")
	}
}

// Whois requests WHOIS information; replies surface in the status
// conversation
func (c *Commands) Whois(nickname string) {
	engine := c.engine()
	if engine == nil {
		return
	}
	if err := engine.Send("WHOIS", nickname); err != nil {
		logger.Log.Warn().Err(err).Str("nick", nickname).Msg("Whois failed")
	}
}

// Op grants channel operator status
func (c *Commands) Op(channel, nickname string) { c.setChannelMode(channel, "+o", nickname) }

// Deop removes channel operator status
func (c *Commands) Deop(channel, nickname string) { c.setChannelMode(channel, "-o", nickname) }

// Voice grants voice
func (c *Commands) Voice(channel, nickname string) { c.setChannelMode(channel, "+v", nickname) }

// Devoice removes voice
func (c *Commands) Devoice(channel, nickname string) { c.setChannelMode(channel, "-v", nickname) }

// Ban sets a ban mask on a channel
func (c *Commands) Ban(channel, mask string) { c.setChannelMode(channel, "+b", mask) }

// Unban removes a ban mask from a channel
func (c *Commands) Unban(channel, mask string) { c.setChannelMode(channel, "-b", mask) }

// Invite invites a user to a channel
func (c *Commands) Invite(channel, nickname string) {
	engine := c.engine()
	if engine == nil {
		return
	}
	if err := engine.Send("INVITE", nickname, channel); err != nil {
		logger.Log.Warn().Err(err).Str("channel", channel).Str("nick", nickname).Msg("Invite failed")
		c.appendError(channel, model.ConversationChannel, err.Error())
	}
}

// SetMode sets an arbitrary mode string on a channel or user
func (c *Commands) SetMode(target, modes string) {
	if strings.TrimSpace(modes) == "" {
		return
	}
	engine := c.engine()
	if engine == nil {
		return
	}
	params := append([]string{target}, strings.Fields(modes)...)
	if err := engine.Send("MODE", params...); err != nil {
		logger.Log.Warn().Err(err).Str("target", target).Str("modes", modes).Msg("Mode change failed")
	}
}

// SendRawLine sends a raw protocol line and logs it into the status
// conversation
func (c *Commands) SendRawLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	engine := c.engine()
	if engine == nil {
		return
	}
	if err := engine.SendRaw(line); err != nil {
		logger.Log.Warn().Err(err).Str("line", line).Msg("Raw send failed")
		return
	}
	conv := c.convs.StatusConversation()
	c.convs.AddMessage(message.NewSystemMessage(line, conv.Name, model.ConversationStatus))
}

// ServiceCommand sends a command to a network service (NickServ, ChanServ,
// ...) and echoes it into the service conversation
func (c *Commands) ServiceCommand(service, command string) {
	if strings.TrimSpace(command) == "" {
		return
	}
	engine := c.engine()
	if engine == nil {
		return
	}
	conv := c.convs.StartService(service)
	if err := engine.Privmsg(service, command); err != nil {
		logger.Log.Warn().Err(err).Str("service", service).Msg("Service command failed")
		c.appendError(conv.Name, model.ConversationService, err.Error())
		return
	}
	c.echoInto(conv.Name, model.ConversationService, command, model.MessageText)
}

func (c *Commands) setChannelMode(channel, mode, arg string) {
	engine := c.engine()
	if engine == nil {
		return
	}
	if strings.TrimSpace(arg) == "" {
		return
	}
	if err := engine.Send("MODE", channel, mode, arg); err != nil {
		logger.Log.Warn().Err(err).Str("channel", channel).Str("mode", mode).Msg("Mode change failed")
		c.appendError(channel, model.ConversationChannel, err.Error())
	}
}

// echoOwn appends the optimistic local copy of an outbound message
func (c *Commands) echoOwn(target, text string, msgType model.MessageType) {
	convType := conversationTypeFor(target)
	name := target
	if convType == model.ConversationPrivate {
		c.convs.StartPrivate(name)
	}
	c.echoInto(name, convType, text, msgType)

	c.bus.Emit(events.Event{
		Type: EventMessageSent,
		Data: map[string]interface{}{
			"target": target,
		},
		Timestamp: time.Now(),
		Source:    events.EventSourceSession,
	})
}

func (c *Commands) echoInto(name string, convType model.ConversationType, text string, msgType model.MessageType) {
	msg := model.Message{
		Sender:           c.mgr.CurrentNick(),
		Content:          text,
		ConversationType: convType,
		MessageType:      msgType,
		ChannelName:      name,
		OwnMessage:       true,
		Read:             true,
		Timestamp:        time.Now(),
		ColorClass:       model.ColorClass(model.EventNone),
	}
	c.convs.AddMessage(msg)
}

// appendError puts a typed error message into the conversation the failure
// belongs to, falling back to status when none exists
func (c *Commands) appendError(name string, convType model.ConversationType, text string) {
	if c.convs.Find(name, convType) != nil {
		c.convs.AddMessage(message.NewErrorMessage(text, name, convType))
		return
	}
	conv := c.convs.StatusConversation()
	c.convs.AddMessage(message.NewErrorMessage(text, conv.Name, model.ConversationStatus))
}

func conversationTypeFor(target string) model.ConversationType {
	if isChannelName(target) {
		return model.ConversationChannel
	}
	return model.ConversationPrivate
}
