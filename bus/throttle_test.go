package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/mbshop/storefront/session"
)

type recorder struct {
	mu     sync.Mutex
	events []session.Event
}

func (r *recorder) handle(e session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []session.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Event, len(r.events))
	copy(out, r.events)
	return out
}

func addEvent(sessionID string, qty int) session.Event {
	item := session.CartItem{ID: "p1", Price: 100, CountInStock: 10, Quantity: qty}
	e := session.NewEvent(session.EventStateChanged, sessionID, session.CartAddItem{Item: item})
	e.Next.Cart.CartItems = []session.CartItem{item}
	if qty > 1 {
		e.Prev.Cart.CartItems = []session.CartItem{item.WithQuantity(qty - 1)}
	}
	return e
}

func TestThrottle_OtherEventsPassThrough(t *testing.T) {
	var rec recorder
	th := NewThrottledHandler(rec.handle, ThrottleConfig{CoalesceInterval: 50 * time.Millisecond})
	defer th.Close()

	th.Handle(session.NewEvent(session.EventStateChanged, "s-1", session.SwitchMode{}))
	th.Handle(session.NewEvent(session.EventStateUnchanged, "s-1", session.CartAddItem{}))
	th.Handle(session.NewEvent(session.EventStateChanged, "s-1", session.UserSignout{}))

	got := rec.snapshot()
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if session.KindOf(got[2].Action) != session.ActionUserSignout {
		t.Errorf("event 2: got %v", session.KindOf(got[2].Action))
	}
}

func TestThrottle_CartCoalescing(t *testing.T) {
	var rec recorder
	th := NewThrottledHandler(rec.handle, ThrottleConfig{CoalesceInterval: 100 * time.Millisecond})

	for qty := 1; qty <= 5; qty++ {
		th.Handle(addEvent("s-1", qty))
	}

	time.Sleep(30 * time.Millisecond)
	if n := len(rec.snapshot()); n != 0 {
		t.Errorf("expected 0 events before flush, got %d", n)
	}

	time.Sleep(150 * time.Millisecond)
	got := rec.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected 1 coalesced event, got %d", len(got))
	}
	if q := got[0].Next.Cart.CartItems[0].Quantity; q != 5 {
		t.Errorf("flushed quantity = %d, want 5", q)
	}
	if len(got[0].Prev.Cart.CartItems) != 0 {
		t.Errorf("flushed Prev = %+v, want the state before the burst", got[0].Prev.Cart)
	}
	th.Close()
}

func TestThrottle_PerSession(t *testing.T) {
	var rec recorder
	th := NewThrottledHandler(rec.handle, ThrottleConfig{CoalesceInterval: time.Hour})

	th.Handle(addEvent("s-1", 1))
	th.Handle(addEvent("s-2", 1))
	th.Handle(addEvent("s-1", 2))
	th.Close()

	if n := len(rec.snapshot()); n != 2 {
		t.Errorf("expected one flushed event per session, got %d", n)
	}
}

func TestThrottle_CloseIdempotent(t *testing.T) {
	var rec recorder
	th := NewThrottledHandler(rec.handle, ThrottleConfig{})
	th.Close()
	th.Close()

	th.Handle(addEvent("s-1", 1))
	time.Sleep(20 * time.Millisecond)
	if n := len(rec.snapshot()); n != 0 {
		t.Errorf("handler after Close forwarded %d events", n)
	}
}

func TestThrottle_DefaultCoalesceInterval(t *testing.T) {
	th := NewThrottledHandler(func(session.Event) {}, ThrottleConfig{})
	defer th.Close()
	if th.interval != 100*time.Millisecond {
		t.Errorf("interval = %v, want 100ms", th.interval)
	}
}
