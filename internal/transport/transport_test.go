package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTP_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{}`, string(body))

		w.Header().Set("Operation-Location", "https://example/op/1")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("accepted"))
	}))
	defer srv.Close()

	h := NewHTTP(DefaultOptions())
	resp, err := h.Do(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Header: http.Header{"Authorization": {"Bearer abc"}},
		Body:   []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, resp.OK())
	assert.Equal(t, "https://example/op/1", resp.Header.Get("Operation-Location"))
	assert.Equal(t, "accepted", string(resp.Body))
}

func TestHTTP_DefaultMethodIsGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := NewHTTP(DefaultOptions()).Do(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTP(DefaultOptions()).Do(context.Background(), &Request{
		URL:     srv.URL,
		Timeout: 50 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestHTTP_RateLimitHonoursContext(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	h := NewHTTP(Options{RateLimit: 0.001, Burst: 1})
	_, err := h.Do(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.Do(ctx, &Request{URL: srv.URL})
	assert.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFunc(t *testing.T) {
	var tr Transport = Func(func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{StatusCode: 204}, nil
	})
	resp, err := tr.Do(context.Background(), &Request{})
	require.NoError(t, err)
	assert.True(t, resp.OK())
}
