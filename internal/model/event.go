package model

import (
	"fmt"
	"strings"
)

// EventType is the fine-grained classification of the protocol occurrence
// that produced a message
type EventType string

const (
	// EventNone marks plain content messages with no protocol event attached
	EventNone EventType = ""

	EventUserJoin       EventType = "user-join"
	EventUserPart       EventType = "user-part"
	EventUserQuit       EventType = "user-quit"
	EventUserKick       EventType = "user-kick"
	EventNickChange     EventType = "nick-change"
	EventModeChange     EventType = "mode-change"
	EventTopicChange    EventType = "topic-change"
	EventUserOp         EventType = "user-op"
	EventUserDeop       EventType = "user-deop"
	EventUserVoice      EventType = "user-voice"
	EventUserDevoice    EventType = "user-devoice"
	EventUserHalfOp     EventType = "user-halfop"
	EventUserDeHalfOp   EventType = "user-dehalfop"
	EventUserBan        EventType = "user-ban"
	EventUserUnban      EventType = "user-unban"
	EventWhois          EventType = "whois"
	EventInvite         EventType = "invite"
	EventCTCP           EventType = "ctcp"
	EventUnknownCommand EventType = "unknown-command"
	EventError          EventType = "error"
	EventSystem         EventType = "system"
	EventSync           EventType = "sync"
)

// Auxiliary info keys carried in Message.AdditionalInfo for event rendering
const (
	InfoNick    = "nick"
	InfoTarget  = "target"
	InfoChannel = "channel"
	InfoReason  = "reason"
	InfoMode    = "mode"
	InfoTopic   = "topic"
	InfoOldNick = "old_nick"
	InfoNewNick = "new_nick"
	InfoText    = "text"
	InfoChanged = "changed"
)

// colorClasses maps event types to the display color class attached to the
// rendered message. Unlisted events fall back to the default class.
var colorClasses = map[EventType]string{
	EventUserJoin:       "event-join",
	EventUserPart:       "event-part",
	EventUserQuit:       "event-quit",
	EventUserKick:       "event-kick",
	EventNickChange:     "event-nick",
	EventModeChange:     "event-mode",
	EventTopicChange:    "event-topic",
	EventUserOp:         "event-mode",
	EventUserDeop:       "event-mode",
	EventUserVoice:      "event-mode",
	EventUserDevoice:    "event-mode",
	EventUserHalfOp:     "event-mode",
	EventUserDeHalfOp:   "event-mode",
	EventUserBan:        "event-ban",
	EventUserUnban:      "event-ban",
	EventWhois:          "event-info",
	EventInvite:         "event-info",
	EventCTCP:           "event-info",
	EventUnknownCommand: "event-info",
	EventError:          "event-error",
	EventSystem:         "event-system",
	EventSync:           "event-system",
}

// ColorClass returns the display color class for an event type
func ColorClass(t EventType) string {
	if class, ok := colorClasses[t]; ok {
		return class
	}
	return "message-default"
}

// eventFormatter renders an event into human-readable text from its
// auxiliary data
type eventFormatter func(info map[string]string) string

var eventFormatters = map[EventType]eventFormatter{
	EventUserJoin: func(info map[string]string) string {
		return fmt.Sprintf("%s joined the channel", info[InfoNick])
	},
	EventUserPart: func(info map[string]string) string {
		return withReason(fmt.Sprintf("%s left the channel", info[InfoNick]), info[InfoReason])
	},
	EventUserQuit: func(info map[string]string) string {
		return withReason(fmt.Sprintf("%s quit", info[InfoNick]), info[InfoReason])
	},
	EventUserKick: func(info map[string]string) string {
		return withReason(fmt.Sprintf("%s kicked %s", info[InfoNick], info[InfoTarget]), info[InfoReason])
	},
	EventNickChange: func(info map[string]string) string {
		return fmt.Sprintf("%s is now known as %s", info[InfoOldNick], info[InfoNewNick])
	},
	EventModeChange: func(info map[string]string) string {
		return fmt.Sprintf("%s sets mode %s", info[InfoNick], info[InfoMode])
	},
	EventTopicChange: func(info map[string]string) string {
		if info[InfoChanged] == "true" {
			return fmt.Sprintf("%s changed the topic to: %s", info[InfoNick], info[InfoTopic])
		}
		return fmt.Sprintf("Topic: %s", info[InfoTopic])
	},
	EventUserOp: func(info map[string]string) string {
		return fmt.Sprintf("%s gives channel operator status to %s", info[InfoNick], info[InfoTarget])
	},
	EventUserDeop: func(info map[string]string) string {
		return fmt.Sprintf("%s removes channel operator status from %s", info[InfoNick], info[InfoTarget])
	},
	EventUserVoice: func(info map[string]string) string {
		return fmt.Sprintf("%s gives voice to %s", info[InfoNick], info[InfoTarget])
	},
	EventUserDevoice: func(info map[string]string) string {
		return fmt.Sprintf("%s removes voice from %s", info[InfoNick], info[InfoTarget])
	},
	EventUserHalfOp: func(info map[string]string) string {
		return fmt.Sprintf("%s gives half-operator status to %s", info[InfoNick], info[InfoTarget])
	},
	EventUserDeHalfOp: func(info map[string]string) string {
		return fmt.Sprintf("%s removes half-operator status from %s", info[InfoNick], info[InfoTarget])
	},
	EventUserBan: func(info map[string]string) string {
		return fmt.Sprintf("%s sets ban on %s", info[InfoNick], info[InfoTarget])
	},
	EventUserUnban: func(info map[string]string) string {
		return fmt.Sprintf("%s removes ban on %s", info[InfoNick], info[InfoTarget])
	},
	EventInvite: func(info map[string]string) string {
		return fmt.Sprintf("%s invites you to %s", info[InfoNick], info[InfoChannel])
	},
	EventCTCP: func(info map[string]string) string {
		return fmt.Sprintf("CTCP %s from %s", info[InfoText], info[InfoNick])
	},
	EventError: func(info map[string]string) string {
		return fmt.Sprintf("Error: %s", info[InfoText])
	},
}

// FormatEvent renders an event type plus its auxiliary data into display
// text. Events without a dedicated formatter fall back to the raw text key.
func FormatEvent(t EventType, info map[string]string) string {
	if f, ok := eventFormatters[t]; ok {
		return f(info)
	}
	return info[InfoText]
}

func withReason(text, reason string) string {
	if reason == "" {
		return text
	}
	return fmt.Sprintf("%s (%s)", text, reason)
}

// ClassifyModeChange maps a raw mode string to the specific mode sub-event.
// Unrecognized mode strings classify as a generic mode change.
func ClassifyModeChange(mode string) EventType {
	switch {
	case strings.Contains(mode, "+o"):
		return EventUserOp
	case strings.Contains(mode, "-o"):
		return EventUserDeop
	case strings.Contains(mode, "+v"):
		return EventUserVoice
	case strings.Contains(mode, "-v"):
		return EventUserDevoice
	case strings.Contains(mode, "+h"):
		return EventUserHalfOp
	case strings.Contains(mode, "-h"):
		return EventUserDeHalfOp
	case strings.Contains(mode, "+b"):
		return EventUserBan
	case strings.Contains(mode, "-b"):
		return EventUserUnban
	default:
		return EventModeChange
	}
}
