package bus

import (
	"sync"
	"time"

	"github.com/mbshop/storefront/session"
)

// ThrottleConfig controls the behavior of ThrottledHandler.
type ThrottleConfig struct {
	// CoalesceInterval is how often to flush coalesced cart events.
	// Default: 100ms
	CoalesceInterval time.Duration
}

// ThrottledHandler wraps a session.EventHandler and coalesces bursts of
// cart item changes, such as a cart refresh touching every line. Other
// events pass through immediately. Only the latest cart event per session
// is kept within each interval; a background ticker flushes them.
type ThrottledHandler struct {
	next     session.EventHandler
	interval time.Duration

	mu      sync.Mutex
	pending map[string]session.Event // sessionID -> latest cart event
	closed  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewThrottledHandler creates a ThrottledHandler forwarding to next.
func NewThrottledHandler(next session.EventHandler, cfg ThrottleConfig) *ThrottledHandler {
	interval := cfg.CoalesceInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	th := &ThrottledHandler{
		next:     next,
		interval: interval,
		pending:  make(map[string]session.Event),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go th.run()
	return th
}

func isCartItemEvent(e session.Event) bool {
	switch e.Action.(type) {
	case session.CartAddItem, session.CartRemoveItem:
		return e.Changed()
	default:
		return false
	}
}

// Handle forwards e, or holds it for coalescing when it is a cart item
// change.
func (th *ThrottledHandler) Handle(e session.Event) {
	if !isCartItemEvent(e) {
		th.next(e)
		return
	}

	th.mu.Lock()
	defer th.mu.Unlock()
	if th.closed {
		return
	}
	if prev, ok := th.pending[e.SessionID]; ok {
		// Keep the state before the burst so the flushed event spans it.
		e.Prev = prev.Prev
	}
	th.pending[e.SessionID] = e
}

// Close flushes pending events and stops the ticker. It is safe to call
// Close multiple times.
func (th *ThrottledHandler) Close() {
	th.mu.Lock()
	if th.closed {
		th.mu.Unlock()
		return
	}
	th.closed = true
	th.mu.Unlock()

	close(th.stopCh)
	<-th.doneCh
}

func (th *ThrottledHandler) run() {
	defer close(th.doneCh)

	ticker := time.NewTicker(th.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			th.flush()
		case <-th.stopCh:
			th.flush()
			return
		}
	}
}

func (th *ThrottledHandler) flush() {
	th.mu.Lock()
	if len(th.pending) == 0 {
		th.mu.Unlock()
		return
	}
	toFlush := th.pending
	th.pending = make(map[string]session.Event)
	th.mu.Unlock()

	for _, e := range toFlush {
		th.next(e)
	}
}
