// Package events implements the in-process event broker used to fan out
// Event records (§3) to in-process subscribers (the engine's event persister
// and the health manager) and, for WARN/ERROR severities, to the
// structured logger. It is the teacher's publish/subscribe Broker, widened
// from a fixed catalogue of service-lifecycle event types to the engine's
// free-form ObjType/ObjID/Status record.
package events

import (
	"sync"
	"time"

	"github.com/cuemby/fleetd/pkg/log"
)

// Level mirrors the four severities the original health/audit log used
// (EVENT.debug/info/warning/error); §3 just calls this "level".
type Level string

const (
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Event is the append-only record of §3: timestamp, level, the optional
// action that caused it, the affected object, and the actor.
type Event struct {
	ID        string
	Timestamp time.Time
	Level     Level
	ActionID  string
	ObjType   string
	ObjID     string
	ObjName   string
	Status    string
	Reason    string
	User      string
	Project   string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker manages event subscriptions and distribution.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers and, for WARNING/ERROR,
// mirrors it to the structured logger so operators see it without a
// watcher attached.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	switch event.Level {
	case LevelError:
		log.WithComponent("events").Error().
			Str("obj_type", event.ObjType).Str("obj_id", event.ObjID).
			Str("status", event.Status).Str("reason", event.Reason).Msg("event")
	case LevelWarning:
		log.WithComponent("events").Warn().
			Str("obj_type", event.ObjType).Str("obj_id", event.ObjID).
			Str("status", event.Status).Str("reason", event.Reason).Msg("event")
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
