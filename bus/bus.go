// Package bus distributes session events to asynchronous observers and
// journals dispatched actions. It decouples the session store from
// consumers such as the cart watcher, metrics, and the history command.
package bus

import "github.com/mbshop/storefront/session"

// EventBus distributes session events to subscribers.
type EventBus interface {
	// Publish delivers an event to every subscriber whose filter matches.
	Publish(event session.Event)

	// Subscribe registers a subscriber for one session. When kinds is
	// non-empty only events for those action kinds are delivered.
	Subscribe(sessionID string, kinds ...session.ActionKind) Subscription

	// SubscribeAll registers a subscriber for every session.
	SubscribeAll(kinds ...session.ActionKind) Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription receives events.
type Subscription interface {
	// Events is closed when the subscription or the bus closes.
	Events() <-chan session.Event

	// Dropped reports how many events were discarded because the
	// subscriber fell behind.
	Dropped() uint64

	// Close unsubscribes. It is safe to call more than once.
	Close() error
}
