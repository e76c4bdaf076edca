/*
Package events provides an in-memory event broker for fleetd's pub/sub messaging.

The events package implements a lightweight event bus for broadcasting cluster
events to interested subscribers. All events broadcast to every subscriber
(no topic filtering); WARNING and ERROR events are additionally mirrored to
the structured logger so operators see them without a watcher attached. This
enables loose coupling between fleetd components for state changes,
notifications, and monitoring.

# Architecture

fleetd's event system provides pub/sub messaging with buffered channels:

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                   │          │
	│  │  - In-memory message bus                    │          │
	│  │  - Topic-agnostic (all events broadcast)    │          │
	│  │  - Buffered publish (waits when full)       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                 │          │
	│  │                                              │          │
	│  │  Publisher → Event Channel (buffer: 100)    │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop                              │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Record (§3)                 │          │
	│  │                                              │          │
	│  │  ID, Timestamp, Level                       │          │
	│  │  ActionID (the action that caused it, opt)  │          │
	│  │  ObjType, ObjID, ObjName (affected object)  │          │
	│  │  Status, Reason                             │          │
	│  │  User, Project (the actor)                  │          │
	│  └────────────────────────────────────────────┘           │
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Subscribers                      │          │
	│  │                                              │          │
	│  │  internal/health: lifecycle event listener  │          │
	│  │  internal/engine: persist events to storage │          │
	│  │  Structured logger: WARNING/ERROR mirror    │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Buffered publish: waits while the 100-slot channel is full
  - Graceful shutdown via stop channel

Event:
  - ID: Unique event identifier
  - Timestamp: When event occurred (set by Publish if zero)
  - Level: DEBUG, INFO, WARNING or ERROR
  - ActionID: The action that caused the event, if any
  - ObjType/ObjID/ObjName: The affected cluster/node/profile/policy/action
  - Status/Reason: What happened and why
  - User/Project: The actor that triggered the change

Subscriber:
  - Channel that receives Event pointers
  - Buffered (50 events) to handle bursts
  - Created via broker.Subscribe()
  - Closed via broker.Unsubscribe()

Level:
  - LevelDebug, LevelInfo, LevelWarning, LevelError

# Event Flow

Publish Flow:
 1. Publisher calls broker.Publish(event)
 2. If Level is WARNING or ERROR, the event is also logged via pkg/log
 3. Event added to main event channel (waits while it is full; gives up
    without delivering once the broker is stopped)
 4. Broadcast loop receives event
 5. Event sent to all subscriber channels
 6. Subscribers receive event asynchronously
 7. Full subscriber buffers skip (no blocking)

Subscribe Flow:
 1. Subscriber calls broker.Subscribe()
 2. New buffered channel created
 3. Channel registered in subscriber map
 4. Subscriber channel returned
 5. Subscriber receives events via channel
 6. Subscriber processes events in own goroutine

Unsubscribe Flow:
 1. Subscriber calls broker.Unsubscribe(channel)
 2. Channel removed from subscriber map
 3. Channel closed
 4. Subscriber stops receiving events

# Usage

Creating and Starting Broker:

	import "github.com/cuemby/fleetd/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Subscribing to Events:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("Event: %s %s/%s - %s\n", event.Level, event.ObjType, event.ObjID, event.Status)
		}
	}()

Publishing Events:

	event := &events.Event{
		ID:      "evt-123",
		Level:   events.LevelInfo,
		ObjType: "cluster",
		ObjID:   "cluster-xyz",
		ObjName: "web-tier",
		Status:  "ACTIVE",
		Reason:  "cluster_create succeeded",
	}
	broker.Publish(event)

Filtering Events by Object Type:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			switch event.ObjType {
			case "cluster":
				handleClusterEvent(event)
			case "node":
				handleNodeEvent(event)
			default:
				// Ignore other events
			}
		}
	}()

Complete Example:

	package main

	import (
		"fmt"
		"time"
		"github.com/cuemby/fleetd/pkg/events"
	)

	func main() {
		// Create and start broker
		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		// Subscribe to events
		sub := broker.Subscribe()
		defer broker.Unsubscribe(sub)

		// Process events in background
		go func() {
			for event := range sub {
				fmt.Printf("[%s] %s %s/%s: %s\n",
					event.Timestamp.Format("15:04:05"),
					event.Level, event.ObjType, event.ObjID, event.Status)
			}
		}()

		// Publish events
		broker.Publish(&events.Event{
			Level:   events.LevelInfo,
			ObjType: "cluster",
			ObjID:   "cluster-xyz",
			Status:  "ACTIVE",
			Reason:  "cluster_create succeeded with 3 nodes",
		})

		broker.Publish(&events.Event{
			Level:   events.LevelError,
			ObjType: "node",
			ObjID:   "node-123",
			Status:  "ERROR",
			Reason:  "health check exhausted retries",
		})

		// Wait for events to be processed
		time.Sleep(100 * time.Millisecond)
	}

# Integration Points

This package integrates with:

  - internal/engine: persistEvents subscribes and appends every event to
    the storage adapter's durable Event log so GET /events has history
  - api/restv1: serves the persisted Event log via GET /events (it reads
    storage, not the broker)
  - internal/health, internal/executor, internal/policy: publish
    lifecycle and CHECK_ERROR/cooldown events as they happen
  - pkg/log: WARNING/ERROR events are mirrored to the structured logger

# Design Patterns

Buffered Publish:
  - Publish sends to a 100-slot buffered channel
  - Returns at once while the channel has room; otherwise waits for the
    broadcast loop, or returns without delivering once Stop was called
  - Events are dropped only at full subscriber buffers, not at Publish

Fan-Out Pattern:
  - Single event broadcast to all subscribers
  - Each subscriber gets own channel
  - Independent processing rates
  - Full buffers skip to prevent blocking

Fire-and-Forget:
  - No acknowledgment from subscribers
  - No retry on delivery failure
  - Simplifies broker implementation
  - Durable history comes from internal/engine's persistence subscriber,
    not from the broker itself

Graceful Shutdown:
  - broker.Stop() signals the broadcast loop
  - Subscriber channels remain open until explicitly unsubscribed

# Troubleshooting

Common Issues:

Events Not Received:
  - Symptom: Subscriber receives no events
  - Check: broker.Start() called
  - Check: Subscriber goroutine running
  - Solution: Verify broker started and subscriber loop active

Events Dropped:
  - Symptom: Missing events in subscriber
  - Cause: Subscriber buffer full (slow processing)
  - Check: SubscriberCount() and event rate
  - Solution: Process events faster, or read from the persisted log via
    GET /events instead of relying on the live broker feed

Memory Leak:
  - Symptom: Increasing memory usage over time
  - Cause: Subscribers not unsubscribed
  - Check: SubscriberCount() grows
  - Solution: Always defer broker.Unsubscribe(sub)

# Use Cases

Event History over HTTP:
  - api/restv1 serves the persisted Event log via GET /events
  - Query filters: obj_type, obj_id, level, limit and marker
  - Example: "curl /events?obj_type=cluster&limit=20"

Durable Event Log:
  - internal/engine.persistEvents subscribes and writes every event to
    the storage adapter's append-only log (§3)
  - Survives process restarts, unlike the in-memory broker alone

Audit Trail:
  - Every lifecycle transition (cluster/node/action) publishes an event
    with its actor (User/Project) recorded
  - Forms the basis for GET /events filtering and troubleshooting

# Limitations

Current Limitations:
  - Broker itself is in-memory only (no persistence) - durability comes
    from internal/engine's persistence subscriber
  - No guaranteed delivery from the broker (best effort, buffer drops)
  - No topic-based filtering (all events broadcast; filter client-side)

# Best Practices

Do:
  - Always defer broker.Unsubscribe(sub)
  - Process events asynchronously in goroutine
  - Filter events by ObjType/Level at subscriber
  - Include Reason/Status so GET /events is self-explanatory
  - Start broker before publishing events

Don't:
  - Block in subscriber event loop
  - Publish events before broker.Start()
  - Forget to unsubscribe (causes leaks)
  - Rely on the live broker feed for critical audit requirements; use the
    persisted Event log instead

# See Also

  - internal/engine for the persistence subscriber
  - api/restv1 for the persisted event history over HTTP
  - Event sourcing: https://martinfowler.com/eaaDev/EventSourcing.html
  - Pub/sub pattern: https://en.wikipedia.org/wiki/Publish%E2%80%93subscribe_pattern
*/
package events
