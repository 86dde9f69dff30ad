package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StoreConfig configures a Store.
type StoreConfig struct {
	// Initial is the hydrated starting state. A zero value starts from
	// DefaultState(ModeLight).
	Initial State

	// SessionID identifies this store in emitted events (default: random uuid).
	SessionID string

	// Handlers are subscribed before the first dispatch, in order.
	Handlers []EventHandler

	// Now overrides the event clock (default: time.Now).
	Now func() time.Time

	// Logger is used for debug tracing of dispatches (default: slog.Default()).
	Logger *slog.Logger
}

// Store is the single session state container. It is passed explicitly to
// every consumer; there is no package-level instance.
//
// Dispatch calls are serialised: actions apply in the order Dispatch is
// entered and handlers observe every event in that same order. Handlers run
// synchronously while the dispatch lock is held, so they must not call
// Dispatch themselves.
type Store struct {
	dispatchMu sync.Mutex
	seq        uint64

	stateMu sync.RWMutex
	state   State

	handlersMu sync.Mutex
	handlers   []subscription
	nextSubID  int

	sessionID string
	now       func() time.Time
	logger    *slog.Logger
}

type subscription struct {
	id int
	fn EventHandler
}

// NewStore creates a Store holding cfg.Initial.
func NewStore(cfg StoreConfig) *Store {
	initial := cfg.Initial
	if !initial.Mode.Valid() {
		initial.Mode = ModeLight
	}
	if initial.Cart.CartItems == nil {
		initial.Cart.CartItems = []CartItem{}
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Store{
		state:     initial.Clone(),
		sessionID: cfg.SessionID,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
	for _, h := range cfg.Handlers {
		s.Subscribe(h)
	}
	return s
}

// SessionID returns the id stamped on this store's events.
func (s *Store) SessionID() string {
	return s.sessionID
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state.Clone()
}

// Dispatch applies action through Reduce, commits the result, and notifies
// handlers. It returns the emitted event.
func (s *Store) Dispatch(action Action) Event {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.stateMu.RLock()
	prev := s.state
	s.stateMu.RUnlock()

	next := Reduce(prev, action)

	s.stateMu.Lock()
	s.state = next
	s.stateMu.Unlock()

	kind := EventStateUnchanged
	if !prev.Equal(next) {
		kind = EventStateChanged
	}

	s.seq++
	event := NewEvent(kind, s.sessionID, action)
	event.Seq = s.seq
	event.Time = s.now()
	event.Prev = prev
	event.Next = next.Clone()

	s.logger.Debug("session dispatch",
		"session_id", s.sessionID,
		"seq", event.Seq,
		"action", KindOf(action),
		"kind", kind,
	)

	for _, h := range s.snapshotHandlers() {
		h(event)
	}
	return event
}

// Subscribe registers h for every subsequent dispatch. The returned
// function removes the subscription.
func (s *Store) Subscribe(h EventHandler) (unsubscribe func()) {
	if h == nil {
		return func() {}
	}
	s.handlersMu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.handlers = append(s.handlers, subscription{id: id, fn: h})
	s.handlersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.handlersMu.Lock()
			defer s.handlersMu.Unlock()
			for i, sub := range s.handlers {
				if sub.id == id {
					s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) snapshotHandlers() []EventHandler {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	out := make([]EventHandler, len(s.handlers))
	for i, sub := range s.handlers {
		out[i] = sub.fn
	}
	return out
}
