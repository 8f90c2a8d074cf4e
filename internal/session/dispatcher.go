package session

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"

	"github.com/matt0x6f/cascade-core/internal/conversation"
	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/message"
	"github.com/matt0x6f/cascade-core/internal/model"
	"github.com/matt0x6f/cascade-core/internal/prefs"
)

// ctcpDelim wraps CTCP payloads inside PRIVMSG/NOTICE bodies
const ctcpDelim = '\x01'

// privateRejectionNotice is sent back to senders whose private messages are
// blocked by preference
const privateRejectionNotice = "Your message was rejected by the recipient"

// Service nicknames whose notices are routed into service conversations
var serviceNicks = map[string]bool{
	"NickServ": true,
	"ChanServ": true,
	"AuthServ": true,
	"MemoServ": true,
	"HostServ": true,
}

// statusNumericPatterns is the allow-list of numeric replies surfaced in
// the status conversation: connection/welcome, usage statistics, MOTD,
// rules, auth results and errors. Everything else is protocol noise.
var statusNumericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^00\d$`),    // welcome and server info
	regexp.MustCompile(`^2(5\d|6[56])$`), // luser statistics
	regexp.MustCompile(`^30[78]$`),   // rules
	regexp.MustCompile(`^37[256]$`),  // MOTD
	regexp.MustCompile(`^[45]\d\d$`), // errors
	regexp.MustCompile(`^9\d\d$`),    // SASL / account auth
}

// unknownCommandPrefixes is the allow-list of non-numeric commands without
// a dedicated handler that still get surfaced in the status conversation.
// ERROR is absent: it has its own callback.
var unknownCommandPrefixes = []string{
	"CAP",
	"AUTHENTICATE",
	"ACCOUNT",
	"WALLOPS",
	"CHGHOST",
}

// rawCommands enumerates every command routed through the raw pipeline: the
// numerics with dedicated handling, the allow-listed status numeric ranges,
// and the non-numeric commands surfaced in status. The engine dispatches
// callbacks by exact command name, so each one is registered individually.
func rawCommands() []string {
	commands := []string{
		"311", "312", "317", "318", "319", // WHOIS
		"321", "322", "323", // LIST
		"330", // WHOIS account
		"332", // topic report
		"353", "366", // NAMES
	}
	commands = append(commands, unknownCommandPrefixes...)

	ranges := [][2]int{
		{1, 9},     // welcome and server info
		{250, 259}, // luser statistics
		{265, 266},
		{307, 308}, // rules
		{372, 372},
		{375, 376}, // MOTD
		{400, 599}, // errors
		{900, 999}, // SASL / account auth
	}
	for _, r := range ranges {
		for code := r[0]; code <= r[1]; code++ {
			commands = append(commands, fmt.Sprintf("%03d", code))
		}
	}
	return commands
}

// WhoisInfo accumulates the numeric replies of one WHOIS exchange
type WhoisInfo struct {
	Nickname    string
	Username    string
	Hostmask    string
	RealName    string
	Server      string
	ServerInfo  string
	AccountName string
	IdleTime    int64
	Channels    []string
}

// Dispatcher is the single entry point for every protocol callback. The
// engine delivers callbacks on its own I/O goroutine, so each handler only
// enqueues work onto a single worker; that keeps all conversation and
// preference access sequential without ever blocking the engine.
type Dispatcher struct {
	mgr     *Manager
	convs   *conversation.Manager
	prefs   *prefs.Store
	handler *message.Handler
	bus     *events.Bus

	queue  chan func()
	stopCh chan struct{}

	namesMu         sync.Mutex
	namesInProgress map[string]bool

	whoisMu         sync.Mutex
	whoisInProgress map[string]*WhoisInfo

	listMu     sync.Mutex
	listBuffer []conversation.AvailableChannel
}

// NewDispatcher creates a dispatcher and starts its worker
func NewDispatcher(mgr *Manager, convs *conversation.Manager, store *prefs.Store, handler *message.Handler, bus *events.Bus) *Dispatcher {
	d := &Dispatcher{
		mgr:             mgr,
		convs:           convs,
		prefs:           store,
		handler:         handler,
		bus:             bus,
		queue:           make(chan func(), 256),
		stopCh:          make(chan struct{}),
		namesInProgress: make(map[string]bool),
		whoisInProgress: make(map[string]*WhoisInfo),
	}
	go d.worker()
	return d
}

// Stop halts the dispatch worker
func (d *Dispatcher) Stop() {
	close(d.stopCh)
}

func (d *Dispatcher) worker() {
	for {
		select {
		case <-d.stopCh:
			return
		case fn := <-d.queue:
			fn()
		}
	}
}

// enqueue hands work to the dispatch worker. When the queue is full the
// handoff moves to a goroutine so the engine's delivery goroutine never
// blocks.
func (d *Dispatcher) enqueue(fn func()) {
	select {
	case d.queue <- fn:
	default:
		go func() {
			select {
			case d.queue <- fn:
			case <-d.stopCh:
			}
		}()
	}
}

// Attach registers every callback on a freshly built engine connection.
// Called once per connection attempt, before the engine starts.
func (d *Dispatcher) Attach(conn *ircevent.Connection) {
	conn.AddConnectCallback(func(e ircmsg.Message) {
		d.enqueue(func() {
			d.mgr.handleConnected()
			d.appendStatus("Connected to server")
		})
	})

	conn.AddDisconnectCallback(func(e ircmsg.Message) {
		d.enqueue(func() {
			d.appendStatus("Disconnected from server")
			d.mgr.handleDisconnected()
		})
	})

	conn.AddCallback("ERROR", func(e ircmsg.Message) {
		reason := ""
		if len(e.Params) > 0 {
			reason = e.Params[len(e.Params)-1]
		}
		d.enqueue(func() { d.handleEngineError(reason) })
	})

	conn.AddCallback("PRIVMSG", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		target, text, sender := e.Params[0], e.Params[1], e.Nick()
		d.enqueue(func() { d.handlePrivmsg(sender, target, text) })
	})

	conn.AddCallback("NOTICE", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		target, text, sender := e.Params[0], e.Params[1], e.Nick()
		d.enqueue(func() { d.handleNotice(sender, target, text) })
	})

	conn.AddCallback("JOIN", func(e ircmsg.Message) {
		if len(e.Params) < 1 {
			return
		}
		channel, nick := e.Params[0], e.Nick()
		d.enqueue(func() { d.handleJoin(channel, nick) })
	})

	conn.AddCallback("PART", func(e ircmsg.Message) {
		if len(e.Params) < 1 {
			return
		}
		channel, nick := e.Params[0], e.Nick()
		reason := ""
		if len(e.Params) > 1 {
			reason = e.Params[1]
		}
		d.enqueue(func() { d.handlePart(channel, nick, reason) })
	})

	conn.AddCallback("QUIT", func(e ircmsg.Message) {
		nick := e.Nick()
		reason := ""
		if len(e.Params) > 0 {
			reason = e.Params[0]
		}
		d.enqueue(func() { d.handleQuit(nick, reason) })
	})

	conn.AddCallback("KICK", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		channel, kicked, kicker := e.Params[0], e.Params[1], e.Nick()
		reason := ""
		if len(e.Params) > 2 {
			reason = e.Params[2]
		}
		d.enqueue(func() { d.handleKick(channel, kicker, kicked, reason) })
	})

	conn.AddCallback("NICK", func(e ircmsg.Message) {
		if len(e.Params) < 1 {
			return
		}
		oldNick, newNick := e.Nick(), e.Params[0]
		d.enqueue(func() { d.handleNickChange(oldNick, newNick) })
	})

	conn.AddCallback("MODE", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		target, mode, actor := e.Params[0], e.Params[1], e.Nick()
		subject := ""
		if len(e.Params) > 2 {
			subject = e.Params[2]
		}
		d.enqueue(func() { d.handleMode(actor, target, mode, subject) })
	})

	conn.AddCallback("TOPIC", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		channel, topic, actor := e.Params[0], e.Params[1], e.Nick()
		d.enqueue(func() { d.handleTopic(actor, channel, topic, true) })
	})

	conn.AddCallback("INVITE", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		channel, inviter := e.Params[1], e.Nick()
		d.enqueue(func() { d.handleInvite(inviter, channel) })
	})

	// The engine has no wildcard dispatch, so every numeric and command the
	// raw pipeline consumes gets its own registration
	raw := func(e ircmsg.Message) {
		params := append([]string(nil), e.Params...)
		command, sender := e.Command, e.Nick()
		d.enqueue(func() { d.handleRaw(command, sender, params) })
	}
	for _, command := range rawCommands() {
		conn.AddCallback(command, raw)
	}
}

// ---- content events ----

func (d *Dispatcher) handlePrivmsg(sender, target, text string) {
	text = d.mgr.Config().DecodeText(text)

	if payload, ok := ctcpPayload(text); ok {
		command, args := splitCTCP(payload)
		if command == "ACTION" {
			d.dispatchContent(message.ContentEvent{
				Sender:  sender,
				Target:  target,
				Content: args,
				Type:    model.MessageAction,
			})
			return
		}
		d.handleCTCPRequest(sender, command, args)
		return
	}

	d.dispatchContent(message.ContentEvent{
		Sender:  sender,
		Target:  target,
		Content: text,
		Type:    model.MessageText,
	})
}

func (d *Dispatcher) handleNotice(sender, target, text string) {
	text = d.mgr.Config().DecodeText(text)

	if payload, ok := ctcpPayload(text); ok {
		command, args := splitCTCP(payload)
		d.appendStatusEvent(model.EventCTCP, sender, map[string]string{
			model.InfoText: fmt.Sprintf("%s reply from %s: %s", command, sender, args),
		})
		return
	}

	// Service notices feed the identify sequencer and land in a service
	// conversation of their own
	if serviceNicks[sender] {
		if isAuthConfirmation(text) {
			d.mgr.Auth().Confirm()
		}
		conv := d.convs.StartService(sender)
		msg := model.Message{
			Sender:           sender,
			Content:          text,
			ConversationType: model.ConversationService,
			MessageType:      model.MessageNotice,
			ChannelName:      conv.Name,
			Timestamp:        time.Now(),
			ColorClass:       model.ColorClass(model.EventNone),
		}
		d.convs.AddMessage(msg)
		return
	}

	if isChannelName(target) {
		d.dispatchContent(message.ContentEvent{
			Sender:  sender,
			Target:  target,
			Content: text,
			Type:    model.MessageNotice,
		})
		return
	}

	// Server notices and anything else without a home go to status
	d.appendStatus(text)
}

func (d *Dispatcher) dispatchContent(ev message.ContentEvent) {
	currentNick := d.mgr.CurrentNick()

	// Blocked private messages get a one-line rejection and never create a
	// conversation
	if !ev.IsChannel() && ev.Sender != currentNick {
		if d.prefs.BlockAllPrivate() || d.prefs.IsBlocked(ev.Sender) {
			logger.Log.Debug().Str("sender", ev.Sender).Msg("Rejecting blocked private message")
			if engine := d.mgr.Engine(); engine != nil {
				if err := engine.Notice(ev.Sender, privateRejectionNotice); err != nil {
					logger.Log.Debug().Err(err).Msg("Failed to send rejection notice")
				}
			}
			return
		}
	}

	msg := d.handler.Handle(ev, currentNick)
	if msg == nil {
		return
	}

	switch msg.ConversationType {
	case model.ConversationChannel:
		d.convs.HandleAutoJoinChannel(msg.ChannelName)
	case model.ConversationPrivate:
		d.convs.StartPrivate(msg.ChannelName)
	}
	d.convs.AddMessage(*msg)

	d.emit(EventMessageReceived, map[string]interface{}{
		"conversation": msg.ChannelName,
		"sender":       msg.Sender,
	})
	if msg.Mentioned && !msg.OwnMessage {
		d.emit(EventMessageMentioned, map[string]interface{}{
			"conversation": msg.ChannelName,
			"sender":       msg.Sender,
			"content":      msg.Content,
		})
	}
}

// ---- membership events ----

func (d *Dispatcher) handleJoin(channel, nick string) {
	d.convs.RosterAdd(channel, model.ChannelUser{Nickname: nick})

	if nick == d.mgr.CurrentNick() {
		d.convs.HandleAutoJoinChannel(channel)
		if engine := d.mgr.Engine(); engine != nil {
			// Request the full roster for the channel we just joined
			if err := engine.SendRaw("NAMES " + channel); err != nil {
				logger.Log.Debug().Err(err).Str("channel", channel).Msg("NAMES request failed")
			}
		}
	}

	if d.prefs.EventVisible(model.EventUserJoin) {
		d.convs.AddMessage(message.NewEventMessage(model.EventUserJoin, channel, nick, nil))
	}
	d.emit(EventRosterUpdated, map[string]interface{}{"channel": channel})
}

func (d *Dispatcher) handlePart(channel, nick, reason string) {
	if d.prefs.EventVisible(model.EventUserPart) {
		d.convs.AddMessage(message.NewEventMessage(model.EventUserPart, channel, nick, map[string]string{
			model.InfoReason: reason,
		}))
	}

	d.convs.RosterRemove(channel, nick)

	if nick == d.mgr.CurrentNick() {
		d.convs.RemoveChannel(channel)
		d.convs.ConfirmChannelRemoval(channel)
	}
	d.emit(EventRosterUpdated, map[string]interface{}{"channel": channel})
}

func (d *Dispatcher) handleQuit(nick, reason string) {
	shared := d.convs.RosterRemoveEverywhere(nick)
	if !d.prefs.EventVisible(model.EventUserQuit) {
		return
	}

	info := map[string]string{model.InfoReason: reason}
	for _, channel := range shared {
		d.convs.AddMessage(message.NewEventMessage(model.EventUserQuit, channel, nick, info))
	}
	// Terminal message in any open private conversation with the user
	if conv := d.convs.Find(nick, model.ConversationPrivate); conv != nil {
		msg := message.NewEventMessage(model.EventUserQuit, conv.Name, nick, info)
		msg.ConversationType = model.ConversationPrivate
		d.convs.AddMessage(msg)
	}
}

func (d *Dispatcher) handleKick(channel, kicker, kicked, reason string) {
	// Kick events are always shown
	d.convs.AddMessage(message.NewEventMessage(model.EventUserKick, channel, kicker, map[string]string{
		model.InfoTarget: kicked,
		model.InfoReason: reason,
	}))

	d.convs.RosterRemove(channel, kicked)
	if kicked == d.mgr.CurrentNick() {
		d.convs.ClearRoster(channel)
	}
	d.emit(EventRosterUpdated, map[string]interface{}{"channel": channel})
}

func (d *Dispatcher) handleNickChange(oldNick, newNick string) {
	channels := d.convs.RosterRename(oldNick, newNick)
	info := map[string]string{
		model.InfoOldNick: oldNick,
		model.InfoNewNick: newNick,
	}
	for _, channel := range channels {
		d.convs.AddMessage(message.NewEventMessage(model.EventNickChange, channel, oldNick, info))
	}
}

// ---- mode and topic ----

func (d *Dispatcher) handleMode(actor, target, mode, subject string) {
	if !isChannelName(target) {
		d.appendStatus(fmt.Sprintf("Mode %s %s", target, mode))
		return
	}

	eventType := model.ClassifyModeChange(mode)
	d.applyModeToRoster(target, eventType, subject)

	if !d.prefs.EventVisible(eventType) {
		return
	}
	d.convs.AddMessage(message.NewEventMessage(eventType, target, actor, map[string]string{
		model.InfoMode:   mode,
		model.InfoTarget: subject,
	}))
	d.emit(EventRosterUpdated, map[string]interface{}{"channel": target})
}

func (d *Dispatcher) applyModeToRoster(channel string, eventType model.EventType, subject string) {
	if subject == "" {
		return
	}
	d.convs.RosterUpdate(channel, subject, func(user *model.ChannelUser) {
		switch eventType {
		case model.EventUserOp:
			user.Op = true
		case model.EventUserDeop:
			user.Op = false
		case model.EventUserVoice:
			user.Voice = true
		case model.EventUserDevoice:
			user.Voice = false
		case model.EventUserHalfOp:
			user.HalfOp = true
		case model.EventUserDeHalfOp:
			user.HalfOp = false
		}
	})
}

// handleTopic appends a topic message; changed distinguishes an actual
// topic change from the topic merely being reported on join
func (d *Dispatcher) handleTopic(actor, channel, topic string, changed bool) {
	info := map[string]string{
		model.InfoTopic:   topic,
		model.InfoChanged: strconv.FormatBool(changed),
	}
	d.convs.AddMessage(message.NewEventMessage(model.EventTopicChange, channel, actor, info))
}

// ---- server and informational events ----

func (d *Dispatcher) handleInvite(inviter, channel string) {
	d.appendStatusEvent(model.EventInvite, inviter, map[string]string{
		model.InfoChannel: channel,
	})
	d.emit(EventInviteReceived, map[string]interface{}{
		"inviter": inviter,
		"channel": channel,
	})
}

func (d *Dispatcher) handleEngineError(reason string) {
	d.appendStatusEvent(model.EventError, "*", map[string]string{model.InfoText: reason})
	d.emit(EventEngineError, map[string]interface{}{"error": reason})
	d.mgr.handleEngineError(reason)
}

func (d *Dispatcher) handleRaw(command, sender string, params []string) {
	if isNumeric(command) {
		d.handleNumeric(command, params)
		return
	}
	d.handleUnknownCommand(command, sender, params)
}

func (d *Dispatcher) handleNumeric(command string, params []string) {
	switch command {
	case "332": // RPL_TOPIC - topic reported, not changed
		if len(params) >= 3 {
			d.handleTopic("*", params[1], params[2], false)
		}
	case "353": // RPL_NAMREPLY
		d.handleNamesReply(params)
	case "366": // RPL_ENDOFNAMES
		if len(params) >= 2 {
			d.handleNamesEnd(params[1])
		}
	case "321": // RPL_LISTSTART
		d.listMu.Lock()
		d.listBuffer = nil
		d.listMu.Unlock()
	case "322": // RPL_LIST
		d.handleListEntry(params)
	case "323": // RPL_LISTEND
		d.listMu.Lock()
		channels := d.listBuffer
		d.listBuffer = nil
		d.listMu.Unlock()
		d.convs.UpdateAvailableChannels(channels)
	case "311", "312", "317", "319", "330":
		d.handleWhoisReply(command, params)
	case "318": // RPL_ENDOFWHOIS
		if len(params) >= 2 {
			d.handleWhoisEnd(params[1])
		}
	case "900": // RPL_LOGGEDIN
		d.mgr.Auth().Confirm()
		d.appendStatus("Authentication successful")
	default:
		d.handleFilteredNumeric(command, params)
	}
}

// handleFilteredNumeric surfaces allow-listed numerics in status and routes
// channel-scoped errors into their channel conversation
func (d *Dispatcher) handleFilteredNumeric(command string, params []string) {
	allowed := false
	for _, pattern := range statusNumericPatterns {
		if pattern.MatchString(command) {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}

	text := ""
	if len(params) > 0 {
		text = params[len(params)-1]
	}

	if command[0] == '4' || command[0] == '5' {
		// Error numerics referencing a channel we know land in that channel
		if len(params) >= 2 && isChannelName(params[1]) {
			if conv := d.convs.Find(params[1], model.ConversationChannel); conv != nil {
				d.convs.AddMessage(message.NewErrorMessage(text, conv.Name, model.ConversationChannel))
				return
			}
		}
		conv := d.convs.StatusConversation()
		d.convs.AddMessage(message.NewErrorMessage(text, conv.Name, model.ConversationStatus))
		return
	}

	d.appendStatus(text)
}

func (d *Dispatcher) handleUnknownCommand(command, sender string, params []string) {
	allowed := false
	for _, prefix := range unknownCommandPrefixes {
		if strings.HasPrefix(command, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}

	line := command
	if len(params) > 0 {
		line = command + " " + strings.Join(params, " ")
	}
	d.appendStatusEvent(model.EventUnknownCommand, sender, map[string]string{
		model.InfoText: line,
	})
}

func (d *Dispatcher) handleNamesReply(params []string) {
	if len(params) < 4 {
		return
	}
	channel, names := params[2], params[3]

	// The first NAMES reply of a burst resets the roster so a re-request
	// starts fresh
	d.namesMu.Lock()
	first := !d.namesInProgress[channel]
	d.namesInProgress[channel] = true
	d.namesMu.Unlock()
	if first {
		d.convs.ClearRoster(channel)
	}

	for _, nameWithPrefix := range strings.Fields(names) {
		nickname := strings.TrimLeft(nameWithPrefix, "~&@%+")
		prefixes := nameWithPrefix[:len(nameWithPrefix)-len(nickname)]
		if nickname == "" {
			continue
		}
		d.convs.RosterAdd(channel, model.ChannelUserFromPrefixes(nickname, prefixes))
	}
}

func (d *Dispatcher) handleNamesEnd(channel string) {
	d.namesMu.Lock()
	delete(d.namesInProgress, channel)
	d.namesMu.Unlock()
	d.emit(EventRosterUpdated, map[string]interface{}{"channel": channel})
}

func (d *Dispatcher) handleListEntry(params []string) {
	if len(params) < 3 {
		return
	}
	count, _ := strconv.Atoi(params[2])
	topic := ""
	if len(params) >= 4 {
		topic = params[3]
	}
	d.listMu.Lock()
	d.listBuffer = append(d.listBuffer, conversation.AvailableChannel{
		Name:      params[1],
		UserCount: count,
		Topic:     topic,
	})
	d.listMu.Unlock()
}

func (d *Dispatcher) handleWhoisReply(command string, params []string) {
	if len(params) < 2 {
		return
	}
	nickname := params[1]

	d.whoisMu.Lock()
	defer d.whoisMu.Unlock()
	info := d.whoisInProgress[nickname]
	if info == nil {
		info = &WhoisInfo{Nickname: nickname}
		d.whoisInProgress[nickname] = info
	}

	switch command {
	case "311": // RPL_WHOISUSER
		if len(params) >= 4 {
			info.Username = params[2]
			info.Hostmask = params[3]
		}
		if len(params) >= 6 {
			info.RealName = params[5]
		}
	case "312": // RPL_WHOISSERVER
		if len(params) >= 3 {
			info.Server = params[2]
		}
		if len(params) >= 4 {
			info.ServerInfo = params[3]
		}
	case "317": // RPL_WHOISIDLE
		if len(params) >= 3 {
			info.IdleTime, _ = strconv.ParseInt(params[2], 10, 64)
		}
	case "319": // RPL_WHOISCHANNELS
		if len(params) >= 3 {
			info.Channels = strings.Fields(params[2])
		}
	case "330": // RPL_WHOISACCOUNT
		if len(params) >= 3 {
			info.AccountName = params[2]
		}
	}
}

func (d *Dispatcher) handleWhoisEnd(nickname string) {
	d.whoisMu.Lock()
	info := d.whoisInProgress[nickname]
	delete(d.whoisInProgress, nickname)
	d.whoisMu.Unlock()

	if info == nil {
		return
	}

	summary := fmt.Sprintf("%s is %s@%s", info.Nickname, info.Username, info.Hostmask)
	if info.RealName != "" {
		summary += fmt.Sprintf(" (%s)", info.RealName)
	}
	d.appendStatusEvent(model.EventWhois, info.Nickname, map[string]string{model.InfoText: summary})
	if info.Server != "" {
		d.appendStatusEvent(model.EventWhois, info.Nickname, map[string]string{
			model.InfoText: fmt.Sprintf("%s is connected via %s (%s)", info.Nickname, info.Server, info.ServerInfo),
		})
	}
	if len(info.Channels) > 0 {
		d.appendStatusEvent(model.EventWhois, info.Nickname, map[string]string{
			model.InfoText: fmt.Sprintf("%s is on %s", info.Nickname, strings.Join(info.Channels, " ")),
		})
	}
	if info.AccountName != "" {
		d.appendStatusEvent(model.EventWhois, info.Nickname, map[string]string{
			model.InfoText: fmt.Sprintf("%s is logged in as %s", info.Nickname, info.AccountName),
		})
	}

	d.emit(EventWhoisReceived, map[string]interface{}{"nickname": info.Nickname})
}

// ---- CTCP ----

// handleCTCPRequest answers VERSION/TIME/PING/CLIENTINFO requests and logs
// the exchange into the status conversation
func (d *Dispatcher) handleCTCPRequest(from, command, args string) {
	d.appendStatusEvent(model.EventCTCP, from, map[string]string{
		model.InfoText: strings.TrimSpace(command + " " + args),
	})

	var response string
	switch command {
	case "VERSION":
		response = "cascade-core v1.0.0"
	case "TIME":
		response = time.Now().Format(time.RFC1123Z)
	case "PING":
		if args != "" {
			response = args
		} else {
			response = strconv.FormatInt(time.Now().Unix(), 10)
		}
	case "CLIENTINFO":
		response = "ACTION CLIENTINFO PING TIME VERSION"
	default:
		// Unknown CTCP command - don't respond
		return
	}

	engine := d.mgr.Engine()
	if engine == nil {
		return
	}
	reply := fmt.Sprintf("%c%s %s%c", ctcpDelim, command, response, ctcpDelim)
	if err := engine.Notice(from, reply); err != nil {
		logger.Log.Debug().Err(err).Str("from", from).Msg("Failed to answer CTCP request")
	}
}

// ---- helpers ----

func (d *Dispatcher) appendStatus(content string) {
	if content == "" {
		return
	}
	conv := d.convs.StatusConversation()
	d.convs.AddMessage(message.NewSystemMessage(content, conv.Name, model.ConversationStatus))
}

func (d *Dispatcher) appendStatusEvent(t model.EventType, subject string, info map[string]string) {
	conv := d.convs.StatusConversation()
	msg := message.NewEventMessage(t, conv.Name, subject, info)
	msg.ConversationType = model.ConversationStatus
	d.convs.AddMessage(msg)
}

func (d *Dispatcher) emit(eventType string, data map[string]interface{}) {
	d.bus.Emit(events.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		Source:    events.EventSourceSession,
	})
}

func isChannelName(name string) bool {
	return len(name) > 0 && (name[0] == '#' || name[0] == '&')
}

func isNumeric(command string) bool {
	if len(command) != 3 {
		return false
	}
	for _, r := range command {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func ctcpPayload(text string) (string, bool) {
	if len(text) >= 2 && text[0] == ctcpDelim && text[len(text)-1] == ctcpDelim {
		return text[1 : len(text)-1], true
	}
	return "", false
}

func splitCTCP(payload string) (command, args string) {
	parts := strings.Fields(payload)
	if len(parts) == 0 {
		return "", ""
	}
	command = strings.ToUpper(parts[0])
	args = strings.Join(parts[1:], " ")
	return command, args
}

func isAuthConfirmation(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "identified") ||
		strings.Contains(lower, "accepted") ||
		strings.Contains(lower, "logged in") ||
		strings.Contains(lower, "authentication successful")
}
