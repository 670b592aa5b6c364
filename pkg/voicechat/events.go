package voicechat

import (
	"sync"
	"time"
)

// EventBus delivers events to subscribed listeners.
type EventBus struct {
	mu              sync.RWMutex
	nextID          int
	listeners       map[EventType]map[int]Listener
	globalListeners map[int]Listener
}

func NewEventBus() *EventBus {
	return &EventBus{
		listeners:       make(map[EventType]map[int]Listener),
		globalListeners: make(map[int]Listener),
	}
}

// Subscribe registers a listener for one event type and returns its unsubscribe func.
func (eb *EventBus) Subscribe(eventType EventType, listener Listener) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := eb.nextID
	eb.nextID++
	if eb.listeners[eventType] == nil {
		eb.listeners[eventType] = make(map[int]Listener)
	}
	eb.listeners[eventType][id] = listener

	return func() {
		eb.mu.Lock()
		delete(eb.listeners[eventType], id)
		eb.mu.Unlock()
	}
}

// SubscribeAll registers a listener for every event type.
func (eb *EventBus) SubscribeAll(listener Listener) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := eb.nextID
	eb.nextID++
	eb.globalListeners[id] = listener

	return func() {
		eb.mu.Lock()
		delete(eb.globalListeners, id)
		eb.mu.Unlock()
	}
}

// Publish hands the event to all listeners on a separate goroutine.
func (eb *EventBus) Publish(event *Event) {
	eb.mu.RLock()
	targets := make([]Listener, 0, len(eb.listeners[event.Type])+len(eb.globalListeners))
	for _, l := range eb.listeners[event.Type] {
		targets = append(targets, l)
	}
	for _, l := range eb.globalListeners {
		targets = append(targets, l)
	}
	eb.mu.RUnlock()

	go func() {
		for _, listener := range targets {
			safeInvoke(listener, event)
		}
	}()
}

// Emit publishes a payload-less event of the given type.
func (eb *EventBus) Emit(eventType EventType) {
	eb.Publish(&Event{Type: eventType, Timestamp: time.Now()})
}

func safeInvoke(listener Listener, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			GetGlobalLogger().WithComponent("EventBus").
				WithField("event", string(event.Type)).
				WithField("panic", r).
				Error("Listener panicked")
		}
	}()
	listener(event)
}
