package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscribePublish(t *testing.T) {
	b := New()
	var got []Event
	unsub := b.Subscribe(EventMappingCreated, func(e Event) {
		got = append(got, e)
	})

	b.Publish(Event{Type: EventMappingCreated, Data: "m1"})
	b.Publish(Event{Type: EventMappingUpdated, Data: "m2"})

	require.Len(t, got, 1)
	require.Equal(t, "m1", got[0].Data)

	unsub()
	b.Publish(Event{Type: EventMappingCreated, Data: "m3"})
	require.Len(t, got, 1, "handler must not fire after unsubscribe")
}

func TestUnsubscribeIdempotent(t *testing.T) {
	b := New()
	unsub := b.Subscribe(EventMappingDeleted, func(Event) {})
	require.Equal(t, 1, b.SubscriberCount(EventMappingDeleted))
	unsub()
	unsub()
	require.Equal(t, 0, b.SubscriberCount(EventMappingDeleted))
}

func TestHandlerCanUnsubscribeDuringPublish(t *testing.T) {
	b := New()
	var calls int
	var unsub Unsubscribe
	unsub = b.Subscribe(EventMappingCreated, func(Event) {
		calls++
		unsub()
	})
	b.Subscribe(EventMappingCreated, func(Event) { calls++ })

	require.NotPanics(t, func() {
		b.Publish(Event{Type: EventMappingCreated})
	})
	require.Equal(t, 2, calls)
	require.Equal(t, 1, b.SubscriberCount(EventMappingCreated))
}
