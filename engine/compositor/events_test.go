package compositor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueOrder(t *testing.T) {
	q := NewEventQueue()
	_, ok := q.Poll()
	assert.False(t, ok)

	q.Push(Event{Kind: EventResolutionChanged, Width: 10, Height: 20})
	q.Push(Event{Kind: EventQuit})
	assert.Equal(t, 2, q.Len())

	e, ok := q.Poll()
	require.True(t, ok)
	assert.Equal(t, Event{Kind: EventResolutionChanged, Width: 10, Height: 20}, e)

	e, ok = q.Poll()
	require.True(t, ok)
	assert.Equal(t, EventQuit, e.Kind)
	assert.Zero(t, q.Len())
}

func TestEventQueueSubscribe(t *testing.T) {
	q := NewEventQueue()

	var first, second []EventKind
	cancelFirst := q.Subscribe(func(e Event) { first = append(first, e.Kind) })
	q.Subscribe(func(e Event) { second = append(second, e.Kind) })

	q.Push(Event{Kind: EventResolutionChanged})
	q.Poll()

	cancelFirst()
	cancelFirst()
	q.Push(Event{Kind: EventQuit})
	q.Poll()

	assert.Equal(t, []EventKind{EventResolutionChanged}, first)
	assert.Equal(t, []EventKind{EventResolutionChanged, EventQuit}, second)
}

func TestEventQueueConcurrentPush(t *testing.T) {
	q := NewEventQueue()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				q.Push(Event{Kind: EventResolutionChanged})
			}
		}()
	}
	wg.Wait()

	n := 0
	for {
		if _, ok := q.Poll(); !ok {
			break
		}
		n++
	}
	assert.Equal(t, 800, n)
}

func TestSubscriptionsClose(t *testing.T) {
	q := NewEventQueue()
	subs := NewSubscriptions()

	calls := 0
	for range 3 {
		subs.Add(q.Subscribe(func(Event) { calls++ }))
	}

	q.Push(Event{Kind: EventQuit})
	q.Poll()
	require.Equal(t, 3, calls)

	subs.Close()
	subs.Close()

	q.Push(Event{Kind: EventQuit})
	q.Poll()
	assert.Equal(t, 3, calls)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "resolution changed", EventResolutionChanged.String())
	assert.Equal(t, "quit", EventQuit.String())
	assert.Equal(t, "event(9)", EventKind(9).String())
}
