package session

import (
	"sync"

	"go.uber.org/zap"
)

// EventKind names the part of the published state that changed.
type EventKind string

const (
	EventKindTree       EventKind = "tree"
	EventKindFiltered   EventKind = "filtered"
	EventKindFiltering  EventKind = "filtering"
	EventKindSelection  EventKind = "selection"
	EventKindContent    EventKind = "content"
	EventKindTokens     EventKind = "tokens"
	EventKindExclusions EventKind = "exclusions"
	EventKindWarning    EventKind = "warning"
)

// Event announces a state change. Consumers read the new state through Snapshot.
type Event struct {
	Kind    EventKind
	Path    string
	Message string
}

// broadcaster fans events out to subscribers without ever blocking the publisher.
type broadcaster struct {
	logger      *zap.Logger
	mutex       sync.Mutex
	closed      bool
	nextID      int
	subscribers map[int]chan Event
}

func newBroadcaster(logger *zap.Logger) *broadcaster {
	return &broadcaster{logger: logger, subscribers: make(map[int]chan Event)}
}

func (hub *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	channel := make(chan Event, buffer)
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if hub.closed {
		close(channel)
		return channel, func() {}
	}
	identifier := hub.nextID
	hub.nextID++
	hub.subscribers[identifier] = channel
	var once sync.Once
	return channel, func() {
		once.Do(func() {
			hub.mutex.Lock()
			defer hub.mutex.Unlock()
			if subscriber, found := hub.subscribers[identifier]; found {
				delete(hub.subscribers, identifier)
				close(subscriber)
			}
		})
	}
}

func (hub *broadcaster) publish(event Event) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	for _, subscriber := range hub.subscribers {
		select {
		case subscriber <- event:
		default:
			hub.logger.Debug("dropping event for slow subscriber", zap.String("kind", string(event.Kind)))
		}
	}
}

func (hub *broadcaster) close() {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.closed = true
	for identifier, subscriber := range hub.subscribers {
		delete(hub.subscribers, identifier)
		close(subscriber)
	}
}
