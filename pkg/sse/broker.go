// Package sse multicasts optimization events to subscribed HTTP clients,
// keyed by optimization id.
//
// A terminal event (complete or error) closes all streams for its id after
// a short grace window, so subscribers that race the completion still see
// it. Ids with no activity for an hour are dropped by Sweep, which the
// cleanup scheduler runs periodically.
package sse

import (
	"errors"
	"sync"
	"time"

	"github.com/marmos91/imgforge/internal/logger"
)

var (
	// ErrEmptyID indicates a subscription without an optimization id.
	ErrEmptyID = errors.New("subscription id must not be empty")

	// ErrClosed indicates the broker has shut down.
	ErrClosed = errors.New("sse broker is closed")
)

const (
	// DefaultGrace is the delay between a terminal event and stream close.
	DefaultGrace = 5 * time.Second

	// DefaultIdleTTL is how long an inactive id survives in the broker.
	DefaultIdleTTL = time.Hour

	// subscriberBuffer bounds each subscriber channel. A subscriber that
	// cannot keep up loses non-terminal events rather than blocking the
	// publisher; terminal events displace the oldest buffered event.
	subscriberBuffer = 16
)

type stream struct {
	subs         map[chan Event]struct{}
	lastActivity time.Time
	closing      bool
}

// Broker is a keyed multicast hub for optimization events.
type Broker struct {
	mu      sync.Mutex
	streams map[string]*stream
	closed  bool

	grace   time.Duration
	idleTTL time.Duration

	now func() time.Time
}

// Option configures a Broker.
type Option func(*Broker)

// WithGrace overrides the terminal-event grace window.
func WithGrace(d time.Duration) Option {
	return func(b *Broker) {
		if d >= 0 {
			b.grace = d
		}
	}
}

// WithIdleTTL overrides the idle expiry for inactive ids.
func WithIdleTTL(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.idleTTL = d
		}
	}
}

// NewBroker creates an empty broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		streams: make(map[string]*stream),
		grace:   DefaultGrace,
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new subscriber for id. The returned channel receives
// every event published for id after this call and is closed when the stream
// ends. The returned cancel function detaches the subscriber early; it is
// safe to call more than once.
func (b *Broker) Subscribe(id string) (<-chan Event, func(), error) {
	if id == "" {
		return nil, nil, ErrEmptyID
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrClosed
	}

	s, ok := b.streams[id]
	if !ok {
		s = &stream{subs: make(map[chan Event]struct{})}
		b.streams[id] = s
	}
	s.lastActivity = b.now()

	ch := make(chan Event, subscriberBuffer)
	s.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if cur, ok := b.streams[id]; ok {
				if _, live := cur.subs[ch]; live {
					delete(cur.subs, ch)
					close(ch)
				}
			}
		})
	}

	return ch, cancel, nil
}

// Publish delivers ev to every current subscriber of ev.ID. A terminal
// event schedules the stream close after the grace window. Publishing to an
// id with no subscribers is a no-op apart from activity tracking.
func (b *Broker) Publish(ev Event) {
	if ev.ID == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	s, ok := b.streams[ev.ID]
	if !ok {
		return
	}
	if s.closing && !ev.Terminal() {
		return
	}
	s.lastActivity = b.now()

	for ch := range s.subs {
		select {
		case ch <- ev:
			continue
		default:
		}

		if !ev.Terminal() {
			logger.Warn("dropping event for slow subscriber",
				"optimization_id", ev.ID, "event_type", string(ev.Type))
			continue
		}

		// A terminal event must reach even a stalled subscriber: evict the
		// oldest buffered event to make room. Only Publish fills the buffer
		// and it runs under the lock, so the retry cannot fail.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}

	if ev.Terminal() && !s.closing {
		s.closing = true
		id := ev.ID
		time.AfterFunc(b.grace, func() {
			b.closeStream(id)
		})
	}
}

// SubscriberCount returns the number of live subscribers for id.
func (b *Broker) SubscriberCount(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.streams[id]; ok {
		return len(s.subs)
	}
	return 0
}

// StreamCount returns the number of tracked ids.
func (b *Broker) StreamCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streams)
}

// Sweep drops ids inactive for longer than the idle TTL, closing their
// subscribers. Returns the number of ids dropped.
func (b *Broker) Sweep() int {
	cutoff := b.now().Add(-b.idleTTL)

	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for id, s := range b.streams {
		if s.lastActivity.After(cutoff) {
			continue
		}
		for ch := range s.subs {
			close(ch)
		}
		delete(b.streams, id)
		dropped++
	}
	return dropped
}

// Close shuts the broker down, closing every subscriber channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, s := range b.streams {
		for ch := range s.subs {
			close(ch)
		}
		delete(b.streams, id)
	}
}

func (b *Broker) closeStream(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[id]
	if !ok {
		return
	}
	for ch := range s.subs {
		close(ch)
	}
	delete(b.streams, id)
}
