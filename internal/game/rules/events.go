package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a game event.
type EventType string

const (
	// Turn events
	EventTurnStarted EventType = "TURN_STARTED"
	EventGameOver    EventType = "GAME_OVER"

	// Action events
	EventActionDeclared  EventType = "ACTION_DECLARED"
	EventTargetChosen    EventType = "TARGET_CHOSEN"
	EventCostPaid        EventType = "COST_PAID"
	EventActionResolved  EventType = "ACTION_RESOLVED"
	EventActionCancelled EventType = "ACTION_CANCELLED"

	// Block and challenge events
	EventBlockDeclared     EventType = "BLOCK_DECLARED"
	EventBlockStands       EventType = "BLOCK_STANDS"
	EventBlockFailed       EventType = "BLOCK_FAILED"
	EventChallengeDeclared EventType = "CHALLENGE_DECLARED"
	EventChallengePassed   EventType = "CHALLENGE_PASSED"

	// Card events
	EventCardRevealed  EventType = "CARD_REVEALED"
	EventRevealRefused EventType = "REVEAL_REFUSED"
	EventCardExchanged EventType = "CARD_EXCHANGED"

	// Influence events
	EventInfluenceLost    EventType = "INFLUENCE_LOST"
	EventPlayerEliminated EventType = "PLAYER_ELIMINATED"
)

// NoPlayer marks an unused player index on an event.
const NoPlayer = -1

// Event records something that happened during a game. Player indices refer
// to seating order; unused indices hold NoPlayer.
type Event struct {
	Type        EventType
	Turn        int
	Player      int
	Target      int
	Action      Action
	Card        Card
	Amount      int
	Description string
	Timestamp   time.Time
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by handle, typed or not.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	bus.removeTyped(handle)
}

// UnsubscribeTyped removes a typed listener by handle.
func (bus *EventBus) UnsubscribeTyped(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.removeTyped(handle)
}

func (bus *EventBus) removeTyped(handle int) {
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// NewEvent creates an event with no target, card or amount.
func NewEvent(eventType EventType, turn, player int) Event {
	return Event{
		Type:      eventType,
		Turn:      turn,
		Player:    player,
		Target:    NoPlayer,
		Timestamp: time.Now(),
	}
}
