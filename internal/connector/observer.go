package connector

import (
	"context"
	"log/slog"
	"time"
)

// EventType names a step of a delivery.
type EventType string

const (
	EventSendStart    EventType = "send_start"
	EventTableFetched EventType = "table_fetched"
	EventFieldMap     EventType = "field_map"
	EventMerged       EventType = "merged"
	EventRows         EventType = "rows"
	EventChanges      EventType = "changes"
	EventRowUpdated   EventType = "row_updated"
	EventRowInserted  EventType = "row_inserted"
	EventWriteFailed  EventType = "write_failed"
	EventIssueCreated EventType = "issue_created"
	EventSendDone     EventType = "send_done"
)

// Event is a diagnostic emitted while a connector works.
type Event struct {
	Type      EventType
	Service   string
	MessageID string
	Timestamp time.Time
	Data      any
}

// Observer receives connector events.
type Observer interface {
	OnEvent(event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f(event).
func (f ObserverFunc) OnEvent(event Event) { f(event) }

// NopObserver discards every event.
type NopObserver struct{}

// OnEvent implements Observer.
func (NopObserver) OnEvent(Event) {}

// LoggingObserver writes events to a structured logger at debug level.
type LoggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates an observer that logs to logger, or to the
// default logger when logger is nil.
func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{logger: logger}
}

// OnEvent implements Observer.
func (lo *LoggingObserver) OnEvent(event Event) {
	lo.logger.LogAttrs(context.Background(), slog.LevelDebug, "connector event",
		slog.String("event", string(event.Type)),
		slog.String("service", event.Service),
		slog.String("message_id", event.MessageID),
		slog.Time("timestamp", event.Timestamp),
		slog.Any("data", event.Data),
	)
}

// Emitter stamps and forwards events for one connector.
type Emitter struct {
	Observer Observer
	Service  string
}

// Emit sends an event of type t about msgID.
func (e Emitter) Emit(t EventType, msgID string, data any) {
	if e.Observer == nil {
		return
	}
	e.Observer.OnEvent(Event{
		Type:      t,
		Service:   e.Service,
		MessageID: msgID,
		Timestamp: time.Now(),
		Data:      data,
	})
}
