package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mbshop/storefront/session"
)

func newTestClient(t *testing.T, h http.Handler, cfg ...HTTPClientConfig) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	var c HTTPClientConfig
	if len(cfg) > 0 {
		c = cfg[0]
	}
	c.BaseURL = srv.URL
	client, err := NewHTTPClient(c)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// --- Signin / Signup ---

func TestHTTPClient_Signin(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/users/signin" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req SigninRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Email != "ada@example.com" || req.Password != "secret" {
			t.Errorf("body = %+v", req)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"_id": "u1", "name": "Ada", "email": "ada@example.com", "token": "tok", "isAdmin": false,
		})
	}))

	user, err := client.Signin(context.Background(), SigninRequest{Email: "ada@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Signin: %v", err)
	}
	if user.ID != "u1" || user.Token != "tok" {
		t.Errorf("user = %+v", user)
	}
}

func TestHTTPClient_SigninServerMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
	}))

	_, err := client.Signin(context.Background(), SigninRequest{Email: "a", Password: "b"})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *api.Error", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d", apiErr.Status)
	}
	if got := Message(err); got != "Invalid email or password" {
		t.Errorf("Message = %q", got)
	}
}

func TestHTTPClient_SignupDoesNotSendConfirmation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["ConfirmPassword"]; ok {
			t.Error("confirmation was sent")
		}
		writeJSON(w, http.StatusOK, map[string]any{"_id": "u2", "email": "b@example.com", "token": "t2"})
	}))

	user, err := client.Signup(context.Background(), SignupRequest{
		Name: "B", Email: "b@example.com", Password: "p", ConfirmPassword: "p",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if user.ID != "u2" {
		t.Errorf("user = %+v", user)
	}
}

func TestHTTPClient_SigninRejectsIncompleteUser(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"_id": "u1"})
	}))
	if _, err := client.Signin(context.Background(), SigninRequest{}); err == nil {
		t.Fatal("expected error for user without token")
	}
}

// --- FetchProduct ---

func TestHTTPClient_FetchProduct(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/products/slug/nike-slim-shirt" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_id":"p1","name":"Nike Slim Shirt","slug":"nike-slim-shirt","price":120.5,"countInStock":3}`))
	}))

	p, err := client.FetchProduct(context.Background(), "nike-slim-shirt")
	if err != nil {
		t.Fatalf("FetchProduct: %v", err)
	}
	if p.Price != session.Cents(12050) || p.CountInStock != 3 {
		t.Errorf("product = %+v", p)
	}
	item := p.CartItem(2)
	if item.ID != "p1" || item.Quantity != 2 || item.Slug != "nike-slim-shirt" {
		t.Errorf("cart item = %+v", item)
	}
}

func TestHTTPClient_FetchProductRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "busy"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"_id": "p1", "slug": "s", "price": 1, "countInStock": 1})
	}), HTTPClientConfig{Retry: RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}})

	if _, err := client.FetchProduct(context.Background(), "s"); err != nil {
		t.Fatalf("FetchProduct: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestHTTPClient_FetchProductNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product Not Found"})
	}), HTTPClientConfig{Retry: RetryPolicy{MaxAttempts: 3}})

	_, err := client.FetchProduct(context.Background(), "missing")
	if Message(err) != "Product Not Found" {
		t.Errorf("Message = %q", Message(err))
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), HTTPClientConfig{Timeout: 20 * time.Millisecond})
	defer close(release)

	_, err := client.FetchProduct(context.Background(), "slow")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if got := Message(err); got != MsgTimeout {
		t.Errorf("Message = %q, want %q", got, MsgTimeout)
	}
}

// --- PlaceOrder ---

func TestHTTPClient_PlaceOrder(t *testing.T) {
	keys := make(map[string]bool)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		key := r.Header.Get("Idempotency-Key")
		if key == "" || keys[key] {
			t.Errorf("Idempotency-Key %q missing or reused", key)
		}
		keys[key] = true

		var req PlaceOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(req.OrderItems) != 1 || req.TotalPrice != session.Cents(2300) {
			t.Errorf("request = %+v", req)
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "New Order Created",
			"order":   map[string]any{"_id": "o1", "totalPrice": 23},
		})
	}))

	req := PlaceOrderRequest{
		OrderItems: []session.CartItem{{ID: "p1", Price: 1000, CountInStock: 1, Quantity: 1}},
		TotalPrice: 2300,
	}
	for i := 0; i < 2; i++ {
		order, err := client.PlaceOrder(context.Background(), "tok", req)
		if err != nil {
			t.Fatalf("PlaceOrder: %v", err)
		}
		if order.ID != "o1" {
			t.Errorf("order = %+v", order)
		}
	}
}

func TestHTTPClient_PlaceOrderWithoutID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"message": "ok"})
	}))
	_, err := client.PlaceOrder(context.Background(), "tok", PlaceOrderRequest{})
	if err == nil {
		t.Fatal("expected error for missing order id")
	}
	if Message(err) != MsgGeneric {
		t.Errorf("Message = %q", Message(err))
	}
}

// --- tracing ---

func TestHTTPClient_RecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "down"})
	}), HTTPClientConfig{Tracer: tp.Tracer("test")})

	_, _ = client.FetchProduct(context.Background(), "s")

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "api fetch product" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if spans[0].Status.Code.String() != "Error" {
		t.Errorf("span status = %v, want Error", spans[0].Status.Code)
	}
}

// --- construction and messages ---

func TestNewHTTPClient_InvalidBaseURL(t *testing.T) {
	if _, err := NewHTTPClient(HTTPClientConfig{BaseURL: "not a url"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"server message", &Error{Op: "x", Status: 400, Message: "Bad"}, "Bad"},
		{"status only", &Error{Op: "x", Status: 500}, MsgGeneric},
		{"deadline", &Error{Op: "x", Err: context.DeadlineExceeded}, MsgTimeout},
		{"plain", errors.New("boom"), MsgGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); got != tt.want {
				t.Errorf("Message = %q, want %q", got, tt.want)
			}
		})
	}
}
