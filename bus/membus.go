package bus

import (
	"sync"
	"sync/atomic"

	"github.com/mbshop/storefront/session"
)

const defaultSubscriberBuffer = 256

// allSessions keys subscribers registered through SubscribeAll.
const allSessions = ""

// MemBusConfig configures an in-memory event bus.
type MemBusConfig struct {
	// SubscriberBufferSize is the channel buffer size per subscriber (default: 256).
	SubscriberBufferSize int
}

// MemBus fans store events out to in-process subscribers. Publishing never
// blocks the dispatching goroutine: a subscriber whose buffer is full misses
// the event and its Dropped count grows.
type MemBus struct {
	mu      sync.RWMutex
	subs    map[string]map[*memSub]struct{}
	bufSize int
	closed  bool
}

// NewMemBus creates a new in-memory event bus with the given configuration.
func NewMemBus(config MemBusConfig) *MemBus {
	bufSize := config.SubscriberBufferSize
	if bufSize <= 0 {
		bufSize = defaultSubscriberBuffer
	}
	return &MemBus{
		subs:    make(map[string]map[*memSub]struct{}),
		bufSize: bufSize,
	}
}

// Publish delivers event to the subscribers of its session and to every
// SubscribeAll subscriber.
func (b *MemBus) Publish(event session.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	kind := session.KindOf(event.Action)
	for sub := range b.subs[event.SessionID] {
		sub.offer(kind, event)
	}
	if event.SessionID == allSessions {
		return
	}
	for sub := range b.subs[allSessions] {
		sub.offer(kind, event)
	}
}

// Handle publishes e so the bus can be registered as a session.Store
// handler.
func (b *MemBus) Handle(e session.Event) {
	b.Publish(e)
}

// Subscribe registers a subscriber for one session.
func (b *MemBus) Subscribe(sessionID string, kinds ...session.ActionKind) Subscription {
	return b.add(sessionID, kinds)
}

// SubscribeAll registers a subscriber for every session.
func (b *MemBus) SubscribeAll(kinds ...session.ActionKind) Subscription {
	return b.add(allSessions, kinds)
}

func (b *MemBus) add(key string, kinds []session.ActionKind) *memSub {
	sub := &memSub{
		bus: b,
		key: key,
		ch:  make(chan session.Event, b.bufSize),
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[session.ActionKind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.shut()
		return sub
	}
	set, ok := b.subs[key]
	if !ok {
		set = make(map[*memSub]struct{})
		b.subs[key] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (b *MemBus) remove(sub *memSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[sub.key]
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.key)
	}
}

// Close shuts down the bus and closes every subscription channel.
func (b *MemBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, set := range b.subs {
		for sub := range set {
			sub.shut()
		}
	}
	b.subs = nil
	return nil
}

type memSub struct {
	bus     *MemBus
	key     string
	kinds   map[session.ActionKind]bool
	ch      chan session.Event
	dropped atomic.Uint64

	mu     sync.Mutex
	closed bool
}

func (s *memSub) Events() <-chan session.Event {
	return s.ch
}

func (s *memSub) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *memSub) Close() error {
	s.bus.remove(s)
	s.shut()
	return nil
}

func (s *memSub) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *memSub) offer(kind session.ActionKind, event session.Event) {
	if s.kinds != nil && !s.kinds[kind] {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- event:
	default:
		s.dropped.Add(1)
	}
}

var (
	_ EventBus     = (*MemBus)(nil)
	_ Subscription = (*memSub)(nil)
)
