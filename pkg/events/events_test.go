package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishFansOutToAllObservers(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var received []Kind

	bus.Subscribe(func(ev CompilationEvent) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev.Kind)
	})
	bus.Subscribe(func(ev CompilationEvent) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev.Kind)
	})

	bus.Publish(CompilationEvent{Kind: KindPipelineStarted})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	require.Equal(t, KindPipelineStarted, received[0])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	count := 0
	token := bus.Subscribe(func(CompilationEvent) { count++ })
	bus.Publish(CompilationEvent{Kind: KindStageStarted})
	require.Equal(t, 1, count)

	bus.Unsubscribe(token)
	bus.Publish(CompilationEvent{Kind: KindStageCompleted})
	require.Equal(t, 1, count)
}

func TestUnsubscribeUnknownTokenIsNoop(t *testing.T) {
	bus := NewBus()
	require.NotPanics(t, func() { bus.Unsubscribe(999) })
}

func TestNewCorrelationIDIsUnique(t *testing.T) {
	a := NewCorrelationID()
	b := NewCorrelationID()
	require.NotEqual(t, a, b)
}
