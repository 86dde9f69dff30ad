// Package otel provides OpenTelemetry integration for storefront sessions.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mbshop/storefront/session"
)

// TracingHandler translates session store events into OpenTelemetry spans.
// Each session gets a root span; every dispatched action becomes a short
// child span under it.
type TracingHandler struct {
	tracer trace.Tracer

	mu           sync.RWMutex
	sessionSpans map[string]trace.Span      // sessionID -> span
	sessionCtxs  map[string]context.Context // sessionID -> context (for child spans)
}

// NewTracingHandler creates a new TracingHandler that uses the given tracer
// to create spans from store events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:       tracer,
		sessionSpans: make(map[string]trace.Span),
		sessionCtxs:  make(map[string]context.Context),
	}
}

// Start opens the root span for a session and returns a context carrying it.
// Outbound calls made with that context (API requests) nest under the
// session. Calling Start twice for the same session returns the existing
// context.
func (h *TracingHandler) Start(ctx context.Context, sessionID string) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.sessionCtxs[sessionID]; ok {
		return existing
	}

	ctx, span := h.tracer.Start(ctx, "session:"+sessionID,
		trace.WithAttributes(attribute.String("storefront.session_id", sessionID)),
	)
	h.sessionSpans[sessionID] = span
	h.sessionCtxs[sessionID] = ctx
	return ctx
}

// Handle records one dispatched action as a span. It is a
// session.EventHandler.
func (h *TracingHandler) Handle(e session.Event) {
	h.mu.RLock()
	parentCtx, ok := h.sessionCtxs[e.SessionID]
	h.mu.RUnlock()

	if !ok {
		parentCtx = context.Background()
	}

	kind := session.KindOf(e.Action)
	_, span := h.tracer.Start(parentCtx, "action:"+kind.String(),
		trace.WithAttributes(
			attribute.String("storefront.session_id", e.SessionID),
			attribute.Int64("storefront.seq", int64(e.Seq)),
			attribute.String("storefront.action", kind.String()),
			attribute.Bool("storefront.changed", e.Changed()),
		),
		trace.WithTimestamp(e.Time),
	)

	if e.Changed() {
		span.SetAttributes(
			attribute.Int("storefront.cart.items", e.Next.Cart.ItemCount()),
			attribute.Bool("storefront.authenticated", e.Next.Authenticated()),
		)
	} else {
		span.AddEvent("state unchanged")
	}
	span.End(trace.WithTimestamp(e.Time))
}

// End closes the session span. A non-nil err marks it failed.
func (h *TracingHandler) End(sessionID string, err error) {
	h.mu.Lock()
	span, ok := h.sessionSpans[sessionID]
	delete(h.sessionSpans, sessionID)
	delete(h.sessionCtxs, sessionID)
	h.mu.Unlock()

	if !ok {
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// ActiveSpanContext returns the span context for an open session span.
func (h *TracingHandler) ActiveSpanContext(sessionID string) (trace.SpanContext, bool) {
	h.mu.RLock()
	span, ok := h.sessionSpans[sessionID]
	h.mu.RUnlock()
	if !ok {
		return trace.SpanContext{}, false
	}
	return span.SpanContext(), true
}
