package game

import (
	"time"

	"github.com/stakehouse/blackjackd/internal/deck"
)

// EventType represents a table event type with type safety
type EventType string

// EventType constants for table domain events. These map one-to-one onto
// the outbound wire messages.
const (
	EventTypeTableUpdate   EventType = "table_update"
	EventTypeRoundStarted  EventType = "round_started"
	EventTypeYourTurn      EventType = "your_turn"
	EventTypeCountdownTick EventType = "countdown_tick"
	EventTypePlayerUpdated EventType = "player_updated"
	EventTypeRoundResult   EventType = "round_result"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// Event represents anything the table broadcasts to its observers
type Event interface {
	EventType() EventType
	TableID() string
	Timestamp() time.Time
}

// TableUpdateEvent carries a fresh snapshot after any table mutation
type TableUpdateEvent struct {
	Snapshot  Snapshot
	timestamp time.Time
}

func (e TableUpdateEvent) EventType() EventType { return EventTypeTableUpdate }
func (e TableUpdateEvent) TableID() string      { return e.Snapshot.TableID }
func (e TableUpdateEvent) Timestamp() time.Time { return e.timestamp }

// RoundStartedEvent is published once dealing completes and play begins
type RoundStartedEvent struct {
	Snapshot  Snapshot
	timestamp time.Time
}

func (e RoundStartedEvent) EventType() EventType { return EventTypeRoundStarted }
func (e RoundStartedEvent) TableID() string      { return e.Snapshot.TableID }
func (e RoundStartedEvent) Timestamp() time.Time { return e.timestamp }

// YourTurnEvent names the player whose active hand may act
type YourTurnEvent struct {
	Table     string
	Username  string
	timestamp time.Time
}

func (e YourTurnEvent) EventType() EventType { return EventTypeYourTurn }
func (e YourTurnEvent) TableID() string      { return e.Table }
func (e YourTurnEvent) Timestamp() time.Time { return e.timestamp }

// CountdownTickEvent is broadcast once per second during the betting
// countdown
type CountdownTickEvent struct {
	Table       string
	SecondsLeft int
	timestamp   time.Time
}

func (e CountdownTickEvent) EventType() EventType { return EventTypeCountdownTick }
func (e CountdownTickEvent) TableID() string      { return e.Table }
func (e CountdownTickEvent) Timestamp() time.Time { return e.timestamp }

// PlayerUpdatedEvent carries one player's refreshed hand
type PlayerUpdatedEvent struct {
	Table     string
	Username  string
	Hand      []deck.Card
	timestamp time.Time
}

func (e PlayerUpdatedEvent) EventType() EventType { return EventTypePlayerUpdated }
func (e PlayerUpdatedEvent) TableID() string      { return e.Table }
func (e PlayerUpdatedEvent) Timestamp() time.Time { return e.timestamp }

// RoundResultEvent carries the settled snapshot at the end of a round
type RoundResultEvent struct {
	Snapshot  Snapshot
	timestamp time.Time
}

func (e RoundResultEvent) EventType() EventType { return EventTypeRoundResult }
func (e RoundResultEvent) TableID() string      { return e.Snapshot.TableID }
func (e RoundResultEvent) Timestamp() time.Time { return e.timestamp }

// EventSubscriber can subscribe to table events. OnEvent is invoked while
// the table lock is held: subscribers must hand the event off (enqueue,
// send on a buffered channel) rather than call back into the engine.
type EventSubscriber interface {
	OnEvent(event Event)
}

// EventBus manages event publishing and subscription
type EventBus interface {
	Subscribe(subscriber EventSubscriber)
	Unsubscribe(subscriber EventSubscriber)
	Publish(event Event)
}

// SimpleEventBus is a basic in-memory event bus implementation
type SimpleEventBus struct {
	subscribers []EventSubscriber
}

// NewEventBus creates a new event bus
func NewEventBus() EventBus {
	return &SimpleEventBus{subscribers: make([]EventSubscriber, 0)}
}

// Subscribe adds a subscriber to receive events
func (bus *SimpleEventBus) Subscribe(subscriber EventSubscriber) {
	bus.subscribers = append(bus.subscribers, subscriber)
}

// Unsubscribe removes a subscriber from receiving events
func (bus *SimpleEventBus) Unsubscribe(subscriber EventSubscriber) {
	for i, sub := range bus.subscribers {
		if sub == subscriber {
			bus.subscribers = append(bus.subscribers[:i], bus.subscribers[i+1:]...)
			break
		}
	}
}

// Publish sends an event to all subscribers
func (bus *SimpleEventBus) Publish(event Event) {
	for _, subscriber := range bus.subscribers {
		subscriber.OnEvent(event)
	}
}
