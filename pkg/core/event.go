package core

import (
	"fmt"
	"time"
)

// EventType names a lifecycle notification emitted by the engine.
type EventType string

const (
	EventLoadStart      EventType = "load.start"
	EventLoadFinish     EventType = "load.finish"
	EventLoadError      EventType = "load.error"
	EventSaveStart      EventType = "save.start"
	EventSaveFinish     EventType = "save.finish"
	EventSaveSuccess    EventType = "save.success"
	EventSaveFailure    EventType = "save.failure"
	EventProbandWarning EventType = "proband.warning"
	EventGraphClear     EventType = "graph.clear"
	EventStoreChanged   EventType = "store.changed"
)

// Event is a notification emitted by the engine.
type Event struct {
	Type      EventType
	Seq       uint64 // load sequence number, zero for saves
	Message   string
	Err       error
	Timestamp int64 // Unix timestamp
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, seq uint64, msg string, err error) Event {
	return Event{Type: t, Seq: seq, Message: msg, Err: err, Timestamp: time.Now().Unix()}
}

// String implements lifecycle.Event.
func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return string(e.Type)
}

// Observer receives engine events. Implementations must not block.
type Observer interface {
	Notify(e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e Event)

// Notify implements Observer.
func (f ObserverFunc) Notify(e Event) { f(e) }
