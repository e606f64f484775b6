// Package bus is the post office: a broadcast publish/subscribe hub that
// decouples the audio engine from its observers.
//
// Every subscriber owns a bounded queue. Publish never blocks: when a
// queue is full the oldest undelivered message is dropped and counted.
// The subscriber list is an immutable slice replaced on subscribe and
// unsubscribe, so publishers never take a lock.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultQueueSize is the per-subscriber queue bound.
const DefaultQueueSize = 64

// Channel selects a class of messages. Channels combine as a bit mask.
type Channel uint8

const (
	Commands Channel = 1 << iota
	Notifications
	// Frequent carries high-rate messages such as waveform frames.
	Frequent
)

const (
	// DefaultChannels is what a subscriber receives unless it asks.
	DefaultChannels = Commands | Notifications
	// AllChannels selects everything.
	AllChannels = Commands | Notifications | Frequent
)

// Message is anything the bus can carry.
type Message interface {
	Channel() Channel
}

// Handle identifies a subscriber. It confers no ownership.
type Handle struct {
	id uuid.UUID
}

func (h Handle) String() string { return h.id.String() }

// Subscription is the receiving side of a subscriber. C is never closed;
// Done closes on unsubscribe or when the bus closes.
type Subscription[M Message] struct {
	C    <-chan M
	Done <-chan struct{}
}

type subscriber[M Message] struct {
	handle  Handle
	mask    Channel
	ch      chan M
	done    chan struct{}
	dropped atomic.Uint64
	once    sync.Once
}

func (s *subscriber[M]) close() {
	s.once.Do(func() { close(s.done) })
}

// Bus broadcasts messages of type M.
type Bus[M Message] struct {
	queueSize int
	log       zerolog.Logger

	subs    atomic.Pointer[[]*subscriber[M]]
	mu      sync.Mutex // serializes list replacement
	closed  atomic.Bool
	dropped atomic.Uint64
}

// Option configures a Bus.
type Option func(*config)

type config struct {
	queueSize int
	log       zerolog.Logger
}

// WithQueueSize sets the default per-subscriber queue bound.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithLogger sets the logger used for drop diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) { c.log = log }
}

// New creates a bus.
func New[M Message](opts ...Option) *Bus[M] {
	c := config{queueSize: DefaultQueueSize, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&c)
	}
	b := &Bus[M]{queueSize: c.queueSize, log: c.log}
	b.subs.Store(&[]*subscriber[M]{})
	return b
}

// SubscribeOption configures one subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	mask      Channel
	queueSize int
}

// WithChannels selects the channels delivered to the subscriber.
func WithChannels(mask Channel) SubscribeOption {
	return func(c *subscribeConfig) { c.mask = mask }
}

// WithBuffer overrides the queue bound for one subscriber.
func WithBuffer(n int) SubscribeOption {
	return func(c *subscribeConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// Subscribe registers a subscriber. It receives every matching message
// published after Subscribe returns, in publish order. Subscribing to a
// closed bus yields a subscription whose Done is already closed.
func (b *Bus[M]) Subscribe(opts ...SubscribeOption) (Handle, *Subscription[M]) {
	c := subscribeConfig{mask: DefaultChannels, queueSize: b.queueSize}
	for _, opt := range opts {
		opt(&c)
	}
	s := &subscriber[M]{
		handle: Handle{id: uuid.New()},
		mask:   c.mask,
		ch:     make(chan M, c.queueSize),
		done:   make(chan struct{}),
	}
	sub := &Subscription[M]{C: s.ch, Done: s.done}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		s.close()
		return s.handle, sub
	}
	cur := *b.subs.Load()
	next := make([]*subscriber[M], len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, s)
	b.subs.Store(&next)
	return s.handle, sub
}

// Unsubscribe removes a subscriber and closes its Done channel. Unknown
// handles are ignored.
func (b *Bus[M]) Unsubscribe(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := *b.subs.Load()
	for i, s := range cur {
		if s.handle != h {
			continue
		}
		next := make([]*subscriber[M], 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		b.subs.Store(&next)
		s.close()
		return
	}
}

// Publish delivers m to every subscriber listening on its channel. It
// never blocks.
func (b *Bus[M]) Publish(m M) {
	if b.closed.Load() {
		return
	}
	ch := m.Channel()
	for _, s := range *b.subs.Load() {
		if s.mask&ch == 0 {
			continue
		}
		b.deliver(s, m)
	}
}

func (b *Bus[M]) deliver(s *subscriber[M], m M) {
	for {
		select {
		case s.ch <- m:
			return
		default:
		}
		select {
		case <-s.ch:
			n := s.dropped.Add(1)
			b.dropped.Add(1)
			b.log.Debug().
				Stringer("subscriber", s.handle).
				Uint64("dropped", n).
				Msg("queue full, dropped oldest")
		default:
		}
	}
}

// Dropped returns how many messages were dropped for one subscriber.
func (b *Bus[M]) Dropped(h Handle) uint64 {
	for _, s := range *b.subs.Load() {
		if s.handle == h {
			return s.dropped.Load()
		}
	}
	return 0
}

// TotalDropped returns drops across all subscribers, past and present.
func (b *Bus[M]) TotalDropped() uint64 { return b.dropped.Load() }

// Len returns the number of subscribers.
func (b *Bus[M]) Len() int { return len(*b.subs.Load()) }

// Close detaches every subscriber and turns Publish into a no-op.
func (b *Bus[M]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Swap(true) {
		return
	}
	for _, s := range *b.subs.Load() {
		s.close()
	}
	b.subs.Store(&[]*subscriber[M]{})
}
