package chat

import (
	"context"
	"sync"
)

// DefaultCapacity is the number of pending entries a room retains for slow subscribers.
const DefaultCapacity = 1000

// Room is a named broadcast feed. Posts go into a fixed-size ring; every
// Subscription keeps its own cursor into it. A subscriber that falls more than
// capacity entries behind loses the overwritten entries and is told how many.
type Room struct {
	name string

	mu          sync.Mutex
	entries     []string
	next        uint64 // sequence number of the next post
	signal      chan struct{}
	subscribers int
	closed      bool
}

// NewRoom creates an open room retaining up to capacity entries.
func NewRoom(name string, capacity int) *Room {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Room{
		name:    name,
		entries: make([]string, capacity),
		signal:  make(chan struct{}),
	}
}

// Name returns the room's key.
func (r *Room) Name() string {
	return r.name
}

// Post appends text to the feed and wakes waiting subscribers. It never
// blocks on subscribers; posts to a closed room are discarded.
func (r *Room) Post(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.entries[r.next%uint64(len(r.entries))] = text
	r.next++

	close(r.signal)
	r.signal = make(chan struct{})
}

// Subscribe returns a cursor positioned after the latest post.
func (r *Room) Subscribe() *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscribers++
	return &Subscription{room: r, next: r.next}
}

// Close ends the feed. Subscribers drain what is still buffered and then
// receive ErrClosed.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	close(r.signal)
}

// Subscribers returns the number of open subscriptions.
func (r *Room) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscribers
}

// Published returns the total number of posts accepted by the room.
func (r *Room) Published() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// oldest returns the sequence number of the oldest retained entry. Must be
// called with lock held.
func (r *Room) oldest() uint64 {
	capacity := uint64(len(r.entries))
	if r.next <= capacity {
		return 0
	}
	return r.next - capacity
}

// Subscription is one reader's cursor into a room. It is not safe for
// concurrent use.
type Subscription struct {
	room *Room
	next uint64
	once sync.Once
}

// Room returns the room this subscription reads from.
func (s *Subscription) Room() *Room {
	return s.room
}

// Next blocks until an entry is available and returns it. If entries were
// overwritten before this cursor reached them it returns a *LagError and
// moves to the oldest retained entry. It returns ErrClosed once the room is
// closed and drained, or ctx.Err() if ctx ends first.
func (s *Subscription) Next(ctx context.Context) (string, error) {
	r := s.room
	for {
		r.mu.Lock()
		if oldest := r.oldest(); s.next < oldest {
			missed := oldest - s.next
			s.next = oldest
			r.mu.Unlock()
			return "", &LagError{Room: r.name, Missed: missed}
		}
		if s.next < r.next {
			text := r.entries[s.next%uint64(len(r.entries))]
			s.next++
			r.mu.Unlock()
			return text, nil
		}
		if r.closed {
			r.mu.Unlock()
			return "", ErrClosed
		}
		wait := r.signal
		r.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.room.mu.Lock()
		s.room.subscribers--
		s.room.mu.Unlock()
	})
}
