package remote

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront.dev/internal/audit"
	"storefront.dev/internal/auth"
	"storefront.dev/internal/catalog"
	"storefront.dev/internal/obs"
)

const (
	DefaultTimeout = 5 * time.Second
	DefaultRetry   = 2
)

// StatusError carries a downstream status the order service passes on
// unchanged, such as 401 or 403.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("product service returned %d: %s", e.Code, e.Message)
}

// Client calls the product service over HTTP. It forwards the caller's
// token cookie so the product service authorizes the original user.
type Client struct {
	http       *resty.Client
	cookieName string
}

var _ catalog.Reader = (*Client)(nil)

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

func WithRetryCount(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.http.SetRetryCount(n)
		}
	}
}

func WithCookieName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.cookieName = name
		}
	}
}

// New builds a client for the product service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(DefaultTimeout).
			SetRetryCount(DefaultRetry).
			SetRetryWaitTime(50 * time.Millisecond).
			SetRetryMaxWaitTime(500 * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
			}).
			SetHeader("Accept", "application/json"),
		cookieName: auth.DefaultCookieName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope[T any] struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Body    T      `json:"body"`
}

func (c *Client) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	var env envelope[catalog.Product]
	err := c.get(ctx, "catalog.GetProduct", "/product/{id}", &env, func(r *resty.Request) {
		r.SetPathParam("id", strconv.FormatInt(id, 10))
	})
	if err != nil {
		return catalog.Product{}, err
	}
	return env.Body, nil
}

func (c *Client) ProductsByCategory(ctx context.Context, category string) ([]catalog.Product, error) {
	var env envelope[[]catalog.Product]
	err := c.get(ctx, "catalog.ProductsByCategory", "/product/category", &env, func(r *resty.Request) {
		r.SetQueryParam("category", category)
	})
	if err != nil {
		return nil, err
	}
	return env.Body, nil
}

func (c *Client) get(ctx context.Context, spanName, path string, result any, build func(*resty.Request)) error {
	ctx, span := obs.StartSpan(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", http.MethodGet),
			attribute.String("http.route", path),
		))
	defer span.End()

	req := c.http.R().SetContext(ctx).SetResult(result).SetError(result)
	build(req)
	if token, ok := auth.TokenFromContext(ctx); ok {
		req.SetCookie(&http.Cookie{Name: c.cookieName, Value: token})
	}
	if rid := audit.RequestIDFromContext(ctx); rid != "" {
		req.SetHeader("X-Request-ID", rid)
	}
	otel.GetTextMapPropagator().Inject(ctx, &headerCarrier{request: req})

	resp, err := req.Get(path)
	recordSpan(span, resp, err)
	return mapResponse(resp, err)
}

func mapResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
	}
	if !resp.IsError() {
		return nil
	}
	msg := resp.Status()
	if env, ok := resp.Error().(interface{ message() string }); ok && env.message() != "" {
		msg = env.message()
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", catalog.ErrNotFound, msg)
	case code == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", catalog.ErrInvalidInput, msg)
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: product service returned %d", catalog.ErrUnavailable, code)
	default:
		return &StatusError{Code: code, Message: msg}
	}
}

func (e *envelope[T]) message() string { return e.Message }

func recordSpan(span trace.Span, resp *resty.Response, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if resp == nil {
		return
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if resp.IsError() {
		span.SetStatus(codes.Error, resp.Status())
		return
	}
	span.SetStatus(codes.Ok, "")
}

type headerCarrier struct {
	request *resty.Request
}

func (c *headerCarrier) Get(key string) string { return c.request.Header.Get(key) }

func (c *headerCarrier) Set(key, value string) { c.request.SetHeader(key, value) }

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.request.Header))
	for k := range c.request.Header {
		keys = append(keys, k)
	}
	return keys
}
