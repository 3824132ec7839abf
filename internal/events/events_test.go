package events

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus() *EventBus {
	logger := zerolog.New(io.Discard)
	return NewEventBus(&logger)
}

func TestPublishJSON(t *testing.T) {
	bus := newBus()

	var got []Event
	bus.Subscribe(TypeDatesAssigned, func(e Event) error {
		got = append(got, e)
		return nil
	})
	bus.Subscribe(TypeDatesReset, func(e Event) error {
		t.Fatal("unexpected event type")
		return nil
	})

	require.NoError(t, bus.PublishJSON(TypeDatesAssigned, TestPayload{Code: "T-001", Start: "2025-06-10", End: "2025-06-11"}))
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())

	var p TestPayload
	require.NoError(t, got[0].Decode(&p))
	assert.Equal(t, "T-001", p.Code)
	assert.Equal(t, "2025-06-11", p.End)
}

func TestHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := newBus()
	calls := 0
	bus.Subscribe(TypeBlockCreated, func(Event) error { calls++; return errors.New("boom") })
	bus.Subscribe(TypeBlockCreated, func(Event) error { calls++; return nil })

	bus.Publish(Event{Type: TypeBlockCreated})
	assert.Equal(t, 2, calls)
}

func TestSubscribeAll(t *testing.T) {
	bus := newBus()
	seen := map[string]int{}
	bus.SubscribeAll(func(e Event) error {
		seen[e.Type]++
		return nil
	})
	for _, tp := range AllTypes {
		bus.Publish(Event{Type: tp})
	}
	assert.Len(t, seen, len(AllTypes))
}

func TestPublishJSONRejectsUnmarshalable(t *testing.T) {
	assert.Error(t, newBus().PublishJSON(TypeStepUpdated, make(chan int)))
}
