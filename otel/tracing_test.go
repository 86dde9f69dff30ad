package otel_test

import (
	"context"
	"errors"
	"testing"

	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	storeotel "github.com/mbshop/storefront/otel"
	"github.com/mbshop/storefront/session"
)

// newTestTracer returns a tracer backed by an in-memory span exporter.
func newTestTracer() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	return exporter, tp
}

func spanAttr(s tracetest.SpanStub, key string) (string, bool) {
	for _, attr := range s.Attributes {
		if string(attr.Key) == key {
			return attr.Value.Emit(), true
		}
	}
	return "", false
}

func TestTracingHandler_ActionSpansNestUnderSession(t *testing.T) {
	exporter, tp := newTestTracer()
	h := storeotel.NewTracingHandler(tp.Tracer("test"))

	ctx := h.Start(context.Background(), "s-1")
	if again := h.Start(context.Background(), "s-1"); again != ctx {
		t.Error("second Start should return the existing session context")
	}
	sc, ok := h.ActiveSpanContext("s-1")
	if !ok || !sc.IsValid() {
		t.Fatal("expected a valid session span context after Start")
	}
	if got := trace.SpanContextFromContext(ctx); got.SpanID() != sc.SpanID() {
		t.Error("Start context should carry the session span")
	}

	store := session.NewStore(session.StoreConfig{
		SessionID: "s-1",
		Handlers:  []session.EventHandler{h.Handle},
	})
	store.Dispatch(session.CartAddItem{Item: validItem("p1", 1000, 1)})
	store.Dispatch(session.CartRemoveItem{Item: session.CartItem{ID: "missing"}})
	h.End("s-1", nil)

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}

	add, remove, root := spans[0], spans[1], spans[2]
	if root.Name != "session:s-1" {
		t.Errorf("root span name = %q", root.Name)
	}
	if root.Status.Code != otelcodes.Ok {
		t.Errorf("root status = %v, want Ok", root.Status.Code)
	}
	if add.Name != "action:CART_ADD_ITEM" {
		t.Errorf("first action span name = %q", add.Name)
	}
	if add.Parent.SpanID() != sc.SpanID() {
		t.Error("action span should be a child of the session span")
	}
	if v, _ := spanAttr(add, "storefront.seq"); v != "1" {
		t.Errorf("seq attribute = %q, want 1", v)
	}
	if v, _ := spanAttr(add, "storefront.cart.items"); v != "1" {
		t.Errorf("cart.items attribute = %q, want 1", v)
	}
	if v, _ := spanAttr(remove, "storefront.changed"); v != "false" {
		t.Errorf("changed attribute = %q, want false", v)
	}
	if len(remove.Events) != 1 || remove.Events[0].Name != "state unchanged" {
		t.Errorf("unchanged action events = %+v", remove.Events)
	}

	if _, ok := h.ActiveSpanContext("s-1"); ok {
		t.Error("session span should be gone after End")
	}
}

func TestTracingHandler_EndWithError(t *testing.T) {
	exporter, tp := newTestTracer()
	h := storeotel.NewTracingHandler(tp.Tracer("test"))

	h.Start(context.Background(), "s-1")
	h.End("s-1", errors.New("order failed"))
	h.End("s-1", nil)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != otelcodes.Error || spans[0].Status.Description != "order failed" {
		t.Errorf("status = %+v", spans[0].Status)
	}
}

func TestTracingHandler_WithoutSessionSpan(t *testing.T) {
	exporter, tp := newTestTracer()
	h := storeotel.NewTracingHandler(tp.Tracer("test"))

	store := session.NewStore(session.StoreConfig{Handlers: []session.EventHandler{h.Handle}})
	store.Dispatch(session.SwitchMode{})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Parent.IsValid() {
		t.Error("action span without a session should be a root span")
	}
}

func TestNewTracerProvider(t *testing.T) {
	tp, err := storeotel.NewTracerProvider(context.Background(), storeotel.ProviderConfig{})
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "probe")
	if !span.SpanContext().IsValid() {
		t.Error("expected a recording span")
	}
	span.End()

	tp2, err := storeotel.NewTracerProvider(context.Background(), storeotel.ProviderConfig{
		Endpoint:    "http://127.0.0.1:4318/v1/traces",
		ServiceName: "storefront-test",
	})
	if err != nil {
		t.Fatalf("NewTracerProvider with endpoint: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = tp2.Shutdown(ctx)
}
