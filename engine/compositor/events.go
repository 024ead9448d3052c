package compositor

import (
	"fmt"
	"sync"
)

// EventKind identifies a device event.
type EventKind int

const (
	// EventResolutionChanged means the headset's recommended render size changed. Width and Height carry the new size.
	EventResolutionChanged EventKind = iota
	// EventQuit means the compositor asked the application to exit.
	EventQuit
)

func (k EventKind) String() string {
	switch k {
	case EventResolutionChanged:
		return "resolution changed"
	case EventQuit:
		return "quit"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a device event delivered through an EventQueue.
type Event struct {
	Kind   EventKind
	Width  int
	Height int
}

// EventQueue buffers device events until the render thread drains them. Producers may push from
// any goroutine; subscribers are invoked on the goroutine that calls Poll.
type EventQueue struct {
	mu     *sync.Mutex
	events []Event
	subs   map[int]func(Event)
	nextID int
}

// NewEventQueue creates an empty EventQueue.
//
// Returns:
//   - *EventQueue: the queue
func NewEventQueue() *EventQueue {
	return &EventQueue{
		mu:   &sync.Mutex{},
		subs: make(map[int]func(Event)),
	}
}

// Push appends an event.
//
// Parameters:
//   - e: the event
func (q *EventQueue) Push(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
}

// Poll pops the oldest event and delivers it to every subscriber before returning it.
//
// Returns:
//   - Event: the event
//   - bool: false when the queue is empty
func (q *EventQueue) Poll() (Event, bool) {
	q.mu.Lock()
	if len(q.events) == 0 {
		q.mu.Unlock()
		return Event{}, false
	}
	e := q.events[0]
	q.events = q.events[1:]
	subs := make([]func(Event), 0, len(q.subs))
	for _, fn := range q.subs {
		subs = append(subs, fn)
	}
	q.mu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
	return e, true
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Subscribe registers fn for every polled event.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - func(): removes the subscription; calling it more than once is a no-op
func (q *EventQueue) Subscribe(fn func(Event)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextID
	q.nextID++
	q.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			delete(q.subs, id)
		})
	}
}

// Subscriptions collects unsubscribe functions so an owner can drop all of them when it is destroyed.
type Subscriptions struct {
	mu      *sync.Mutex
	cancels []func()
}

// NewSubscriptions creates an empty Subscriptions set.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{mu: &sync.Mutex{}}
}

// Add records an unsubscribe function returned by Subscribe.
func (s *Subscriptions) Add(cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels = append(s.cancels, cancel)
}

// Close runs every recorded unsubscribe function. It is safe to call more than once.
func (s *Subscriptions) Close() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
