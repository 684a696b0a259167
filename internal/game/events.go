package game

import (
	"sync"

	"github.com/scythe504/botornot-backend/internal"
)

// =============================================================================
// SESSION EVENT BUS
// =============================================================================

// Bus fans session events out to subscribers. Publish never blocks: each
// subscriber owns an unbounded queue drained by its own pump goroutine, so
// events can be published while a room lock is held and keep their order.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]*subscription
	nextID int
	closed bool
}

type subscription struct {
	mu     sync.Mutex
	queue  []internal.Event
	signal chan struct{}
	done   chan struct{}
	out    chan internal.Event
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Subscribe returns a channel of events and a function that cancels the
// subscription. The channel is closed after cancellation.
func (b *Bus) Subscribe() (<-chan internal.Event, func()) {
	sub := &subscription{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan internal.Event),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.out)
		return sub.out, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go sub.pump()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			b.mu.Lock()
			_, live := b.subs[id]
			delete(b.subs, id)
			b.mu.Unlock()
			// Close already ended subscriptions it removed.
			if live {
				close(sub.done)
			}
		})
	}
}

func (b *Bus) Publish(ev internal.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		sub.push(ev)
	}
}

// Close cancels every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[int]*subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.done)
	}
}

func (s *subscription) push(ev internal.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}
	}
}
