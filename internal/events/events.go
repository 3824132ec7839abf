package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types published after a committed mutation.
const (
	TypeDatesAssigned     = "dates_assigned"
	TypeDatesReset        = "dates_reset"
	TypeTestArchived      = "test_archived"
	TypeTestReopened      = "test_reopened"
	TypeStepUpdated       = "step_updated"
	TypeOperatorsAssigned = "operators_assigned"
	TypeBlockCreated      = "block_created"
)

// AllTypes lists every event type, for subscribers that follow the whole stream.
var AllTypes = []string{
	TypeDatesAssigned,
	TypeDatesReset,
	TypeTestArchived,
	TypeTestReopened,
	TypeStepUpdated,
	TypeOperatorsAssigned,
	TypeBlockCreated,
}

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// TestPayload describes a change to a single test.
type TestPayload struct {
	Code    string `json:"code"`
	Role    string `json:"role"`
	Version int64  `json:"version"`
	Step    string `json:"step,omitempty"`
	Value   string `json:"value,omitempty"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

// BlockPayload describes a created facility block.
type BlockPayload struct {
	Code  string `json:"code"`
	Type  string `json:"type"`
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
	Role  string `json:"role"`
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	for _, t := range AllTypes {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil {
			b.logger.Error().Err(err).Str("event_type", event.Type).Str("event_id", event.ID).Msg("event handler failed")
		}
	}
}

// PublishJSON marshals payload and publishes it under eventType.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.Publish(Event{Type: eventType, Payload: data})
	return nil
}
