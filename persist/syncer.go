package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mbshop/storefront/session"
)

const defaultSyncTimeout = 2 * time.Second

// SyncerConfig configures a Syncer.
type SyncerConfig struct {
	KV KV

	// Timeout bounds each write batch (default 2s).
	Timeout time.Duration

	// Logger receives persistence failures (default: slog.Default()).
	Logger *slog.Logger
}

// Syncer mirrors durable session slices into a KV after every change. Its
// Handle method is a session.EventHandler.
//
// A failed write degrades the syncer to in-memory only for the rest of the
// session: later changes are not written, but the sign-out purge is still
// attempted so credentials do not outlive the session.
type Syncer struct {
	kv       KV
	timeout  time.Duration
	logger   *slog.Logger
	degraded atomic.Bool
}

// NewSyncer creates a Syncer writing to cfg.KV.
func NewSyncer(cfg SyncerConfig) *Syncer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSyncTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Syncer{
		kv:      cfg.KV,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

// Degraded reports whether a write failed earlier in this session.
func (s *Syncer) Degraded() bool {
	return s.degraded.Load()
}

// Handle persists the slices changed by e. It never returns an error and
// never panics on storage failures.
func (s *Syncer) Handle(e session.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, ok := e.Action.(session.UserSignout); ok {
		if err := s.Purge(ctx); err != nil {
			s.logger.Warn("session purge incomplete", "error", err)
		}
		return
	}
	if !e.Changed() || s.Degraded() {
		return
	}

	if err := s.write(ctx, e.Prev, e.Next); err != nil {
		s.degraded.Store(true)
		s.logger.Warn("persistence disabled for this session",
			"session_id", e.SessionID,
			"seq", e.Seq,
			"error", err,
		)
	}
}

func (s *Syncer) write(ctx context.Context, prev, next session.State) error {
	if next.UserInfo != nil && !sameUser(prev.UserInfo, next.UserInfo) {
		if err := UserInfoCodec.Save(ctx, s.kv, *next.UserInfo); err != nil {
			return err
		}
	}
	if !session.EqualItems(prev.Cart.CartItems, next.Cart.CartItems) {
		if err := CartItemsCodec.Save(ctx, s.kv, next.Cart.CartItems); err != nil {
			return err
		}
	}
	addr := next.Cart.ShippingAddress
	if addr != nil && !session.EqualAddress(prev.Cart.ShippingAddress, addr) {
		if err := ShippingAddressCodec.Save(ctx, s.kv, *addr); err != nil {
			return err
		}
	}
	method := next.Cart.PaymentMethod
	if method != "" && method != prev.Cart.PaymentMethod {
		if err := PaymentMethodCodec.Save(ctx, s.kv, method); err != nil {
			return err
		}
	}
	return nil
}

// Purge removes every session key. It attempts all keys and joins the
// failures.
func (s *Syncer) Purge(ctx context.Context) error {
	var errs []error
	for _, key := range SessionKeys() {
		if err := s.kv.Remove(ctx, key); err != nil {
			errs = append(errs, &Error{Op: "remove", Key: key, Err: err})
		}
	}
	return errors.Join(errs...)
}

func sameUser(a, b *session.UserRecord) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
