package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/time/rate"
)

// Request is a single outbound call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte

	// Timeout bounds this request only. Zero means the transport default.
	Timeout time.Duration
}

// Response carries the full body; export payloads are read into memory
// before decoding anyway.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Transport issues requests. Implementations must be safe for concurrent
// use by independent exports.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a plain function to Transport.
type Func func(ctx context.Context, req *Request) (*Response, error)

func (f Func) Do(ctx context.Context, req *Request) (*Response, error) { return f(ctx, req) }

// Options configures the HTTP transport.
type Options struct {
	// Timeout applied when a Request carries none. Default: 120s
	Timeout time.Duration

	// RateLimit caps outbound requests per second. Zero disables pacing.
	RateLimit float64

	// Burst is the limiter bucket size. Default: 1
	Burst int
}

// DefaultOptions returns the timeouts the job used historically.
func DefaultOptions() Options {
	return Options{
		Timeout: 120 * time.Second,
		Burst:   1,
	}
}

// HTTP is the production Transport.
type HTTP struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
}

// NewHTTP builds a pooled client. Redirects are followed; net/http drops
// the Authorization header when a redirect leaves the original host.
func NewHTTP(opts Options) *HTTP {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	h := &HTTP{
		client: cleanhttp.DefaultPooledClient(),
		opts:   opts,
	}
	if opts.RateLimit > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst)
	}
	return h
}

// Do performs the request and reads the whole body.
func (h *HTTP) Do(ctx context.Context, r *Request) (*Response, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = h.opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
