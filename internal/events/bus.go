package events

import (
	"sync"
	"time"
)

// EventSource represents the source of an event
type EventSource string

const (
	EventSourceSession EventSource = "session"
	EventSourceSystem  EventSource = "system"
)

// Event represents a generic event
type Event struct {
	Type      string
	Data      map[string]interface{}
	Timestamp time.Time
	Source    EventSource
}

// Subscriber is an interface for event subscribers
type Subscriber interface {
	OnEvent(event Event)
}

// SubscriberFunc adapts a plain function to the Subscriber interface
type SubscriberFunc func(event Event)

// OnEvent implements Subscriber
func (f SubscriberFunc) OnEvent(event Event) {
	f(event)
}

// Bus manages event routing between the session core and its observers
type Bus struct {
	subscribers map[string][]Subscriber
	mu          sync.RWMutex
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]Subscriber),
	}
}

// Subscribe subscribes a subscriber to a specific event type. Subscribing to
// "*" receives every event.
func (b *Bus) Subscribe(eventType string, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// Unsubscribe removes a subscriber from an event type
func (b *Bus) Unsubscribe(eventType string, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, sub := range subs {
		if sub == subscriber {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// Emit emits an event to all subscribers asynchronously
func (b *Bus) Emit(event Event) {
	specific, wildcard := b.snapshot(event.Type)

	for _, sub := range specific {
		go sub.OnEvent(event)
	}
	for _, sub := range wildcard {
		go sub.OnEvent(event)
	}
}

// EmitSync emits an event synchronously (for testing or when order matters)
func (b *Bus) EmitSync(event Event) {
	specific, wildcard := b.snapshot(event.Type)

	for _, sub := range specific {
		sub.OnEvent(event)
	}
	for _, sub := range wildcard {
		sub.OnEvent(event)
	}
}

func (b *Bus) snapshot(eventType string) ([]Subscriber, []Subscriber) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	specific := make([]Subscriber, len(b.subscribers[eventType]))
	copy(specific, b.subscribers[eventType])
	wildcard := make([]Subscriber, len(b.subscribers["*"]))
	copy(wildcard, b.subscribers["*"])
	return specific, wildcard
}
