package notify

import (
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/beeep"

	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/session"
)

// Notifier bridges session events to desktop notifications. It is a plain
// bus subscriber; unsubscribing it detaches it completely.
type Notifier struct {
	bus      *events.Bus
	appName  string
	iconPath string

	// enabled is read from bus delivery goroutines
	enabled atomic.Bool
}

// NewNotifier creates a notifier and subscribes it to the events it cares
// about
func NewNotifier(bus *events.Bus, appName, iconPath string) *Notifier {
	n := &Notifier{bus: bus, appName: appName, iconPath: iconPath}
	n.enabled.Store(true)
	bus.Subscribe(session.EventMessageMentioned, n)
	bus.Subscribe(session.EventConnectionState, n)
	return n
}

// SetEnabled toggles delivery without unsubscribing
func (n *Notifier) SetEnabled(enabled bool) { n.enabled.Store(enabled) }

// Close detaches the notifier from the bus
func (n *Notifier) Close() {
	n.bus.Unsubscribe(session.EventMessageMentioned, n)
	n.bus.Unsubscribe(session.EventConnectionState, n)
}

// OnEvent implements events.Subscriber
func (n *Notifier) OnEvent(ev events.Event) {
	if !n.enabled.Load() {
		return
	}

	switch ev.Type {
	case session.EventMessageMentioned:
		sender, _ := ev.Data["sender"].(string)
		conversation, _ := ev.Data["conversation"].(string)
		content, _ := ev.Data["content"].(string)
		title := fmt.Sprintf("%s mentioned you in %s", sender, conversation)
		n.send(title, content)

	case session.EventConnectionState:
		phase, _ := ev.Data["phase"].(string)
		switch phase {
		case "connected":
			n.send(n.appName, "Connected to server")
		case "error":
			reason, _ := ev.Data["reason"].(string)
			n.send(n.appName, "Connection error: "+reason)
		}
	}
}

func (n *Notifier) send(title, body string) {
	if err := beeep.Notify(title, body, n.iconPath); err != nil {
		logger.Log.Debug().Err(err).Msg("Desktop notification failed")
	}
}
