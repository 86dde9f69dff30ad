package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mbshop/storefront/session"
)

const (
	defaultBaseURL     = "http://localhost:4000"
	defaultTimeout     = 10 * time.Second
	maxErrorBodyBytes  = 64 << 10
	instrumentationLib = "github.com/mbshop/storefront/api"
)

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	// BaseURL is the backend origin (default http://localhost:4000).
	BaseURL string

	// Timeout bounds each attempt (default 10s).
	Timeout time.Duration

	// Retry applies to idempotent GET requests only.
	Retry RetryPolicy

	// HTTPClient overrides the transport (default: a new http.Client).
	HTTPClient *http.Client

	// Tracer creates a span per request (default: the global tracer provider).
	Tracer trace.Tracer

	Logger *slog.Logger
}

// HTTPClient talks JSON to the storefront backend.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	retry   RetryPolicy
	http    *http.Client
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewHTTPClient creates an HTTPClient.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(instrumentationLib)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: base,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		http:    cfg.HTTPClient,
		tracer:  cfg.Tracer,
		logger:  cfg.Logger,
	}, nil
}

// Signin exchanges credentials for a user record.
func (c *HTTPClient) Signin(ctx context.Context, req SigninRequest) (session.UserRecord, error) {
	var user session.UserRecord
	err := c.do(ctx, "signin", http.MethodPost, "/api/users/signin", nil, req, &user)
	if err != nil {
		return session.UserRecord{}, err
	}
	if err := user.Validate(); err != nil {
		return session.UserRecord{}, &Error{Op: "signin", Err: fmt.Errorf("invalid user record: %w", err)}
	}
	return user, nil
}

// Signup creates an account and returns the signed-in user record.
func (c *HTTPClient) Signup(ctx context.Context, req SignupRequest) (session.UserRecord, error) {
	var user session.UserRecord
	err := c.do(ctx, "signup", http.MethodPost, "/api/users/signup", nil, req, &user)
	if err != nil {
		return session.UserRecord{}, err
	}
	if err := user.Validate(); err != nil {
		return session.UserRecord{}, &Error{Op: "signup", Err: fmt.Errorf("invalid user record: %w", err)}
	}
	return user, nil
}

// FetchProduct loads a product by slug, retrying transient failures.
func (c *HTTPClient) FetchProduct(ctx context.Context, slug string) (Product, error) {
	if strings.TrimSpace(slug) == "" {
		return Product{}, &Error{Op: "fetch product", Err: errors.New("slug is required")}
	}
	var product Product
	path := "/api/products/slug/" + url.PathEscape(slug)
	err := withRetry(ctx, c.retry, c.logger, "fetch product", func(ctx context.Context, attempt int) error {
		product = Product{}
		return c.do(ctx, "fetch product", http.MethodGet, path, nil, nil, &product)
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

type placeOrderResponse struct {
	Message string `json:"message"`
	Order   Order  `json:"order"`
}

// PlaceOrder submits an order on behalf of the token's user. Each call
// carries a fresh Idempotency-Key.
func (c *HTTPClient) PlaceOrder(ctx context.Context, token string, req PlaceOrderRequest) (Order, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)
	headers.Set("Idempotency-Key", uuid.NewString())

	var resp placeOrderResponse
	if err := c.do(ctx, "place order", http.MethodPost, "/api/orders", headers, req, &resp); err != nil {
		return Order{}, err
	}
	if resp.Order.ID == "" {
		return Order{}, &Error{Op: "place order", Err: errors.New("response has no order id")}
	}
	return resp.Order, nil
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, headers http.Header, body, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "api "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Op: op, Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Message = strings.TrimSpace(eb.Message)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)
