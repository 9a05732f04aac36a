package export

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/transport"
)

func newTestTransport() transport.Transport {
	return transport.NewHTTP(transport.DefaultOptions())
}

func TestHTTPSubmitter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Operation-Location", "/v3.0/operations/42")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)

	s := &HTTPSubmitter{Transport: newTestTransport(), Base: base}
	h, err := s.Submit(context.Background(), Request{
		Endpoint: srv.URL + "/beta/asrm/vulnerableDevices/export",
		Header:   http.Header{"Authorization": {"Bearer tok"}},
		Body:     []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, Handle(srv.URL+"/v3.0/operations/42"), h)
}

func TestHTTPSubmitterFallsBackToLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "https://api.example.test/operations/7")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	h, err := (&HTTPSubmitter{Transport: newTestTransport()}).Submit(context.Background(), Request{Endpoint: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, Handle("https://api.example.test/operations/7"), h)
}

func TestHTTPSubmitterErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
	}{
		{
			name: "rejected",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":{"code":"AccessDenied"}}`))
			},
			status: http.StatusForbidden,
		},
		{
			name: "no handle",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			},
			status: http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := (&HTTPSubmitter{Transport: newTestTransport()}).Submit(context.Background(), Request{Endpoint: srv.URL})
			assert.ErrorIs(t, err, ErrSubmission)

			var se *SubmissionError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
		})
	}
}

func TestHTTPPoller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"status":"succeeded","percentage":100,"resourceLocation":"/files/out.zip"}`))
	}))
	defer srv.Close()

	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)

	p := &HTTPPoller{Transport: newTestTransport(), Base: base}
	snap, err := p.Poll(context.Background(), Handle(srv.URL+"/operations/1"))
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, srv.URL+"/files/out.zip", snap.DownloadLocation)
}

func TestHTTPPollerErrors(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
		"not json":     func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("<html>")) },
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			_, err := (&HTTPPoller{Transport: newTestTransport()}).Poll(context.Background(), Handle(srv.URL))
			assert.ErrorIs(t, err, ErrPoll)
		})
	}
}

func TestHTTPResolverAuthorization(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte("PK"))
	}))
	defer srv.Close()

	r := &HTTPResolver{Transport: newTestTransport(), Token: "tok"}

	data, err := r.Resolve(context.Background(), srv.URL+"/file.zip")
	require.NoError(t, err)
	assert.Equal(t, []byte("PK"), data)
	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Equal(t, "application/zip,application/json", got.Get("Accept"))

	_, err = r.Resolve(context.Background(), srv.URL+"/file.zip?X-Amz-Signature=abc&X-Amz-Expires=60")
	require.NoError(t, err)
	assert.Empty(t, got.Get("Authorization"))
}

func TestHTTPResolverError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := (&HTTPResolver{Transport: newTestTransport()}).Resolve(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrDownload)
}

func TestIsSigned(t *testing.T) {
	tests := map[string]bool{
		"https://s3.example.test/a.zip?X-Amz-Credential=x": true,
		"https://gcs.example.test/a.zip?x-goog-signature=y": true,
		"https://api.example.test/a.zip?token=z":            false,
		"https://api.example.test/a.zip":                    false,
	}
	for raw, want := range tests {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, IsSigned(u, DefaultSignedMarkers), raw)
	}
}
