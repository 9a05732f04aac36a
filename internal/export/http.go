package export

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/transport"
)

// Submitter starts one export attempt. It never retries.
type Submitter interface {
	Submit(ctx context.Context, req Request) (Handle, error)
}

// Poller fetches one status snapshot.
type Poller interface {
	Poll(ctx context.Context, h Handle) (StatusSnapshot, error)
}

// Resolver fetches the finished payload.
type Resolver interface {
	Resolve(ctx context.Context, location string) ([]byte, error)
}

// HTTPSubmitter posts Request.Body to Request.Endpoint and reads the
// operation handle from the response headers.
type HTTPSubmitter struct {
	Transport transport.Transport

	// Base resolves relative handles. Optional.
	Base *url.URL
}

func (s *HTTPSubmitter) Submit(ctx context.Context, req Request) (Handle, error) {
	resp, err := s.Transport.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    req.Endpoint,
		Header: req.Header,
		Body:   req.Body,
	})
	if err != nil {
		return "", &SubmissionError{Endpoint: req.Endpoint, Err: err}
	}
	if !resp.OK() {
		return "", &SubmissionError{Endpoint: req.Endpoint, StatusCode: resp.StatusCode, Body: truncate(resp.Body)}
	}

	op := resp.Header.Get("Operation-Location")
	if op == "" {
		op = resp.Header.Get("Location")
	}
	if op == "" {
		return "", &SubmissionError{
			Endpoint:   req.Endpoint,
			StatusCode: resp.StatusCode,
			Err:        errors.New("response has no Operation-Location header"),
		}
	}

	resolved, err := ResolveReference(s.Base, op)
	if err != nil {
		return "", &SubmissionError{Endpoint: req.Endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	return Handle(resolved), nil
}

// HTTPPoller GETs the handle and parses the vendor status document.
type HTTPPoller struct {
	Transport transport.Transport
	Header    http.Header

	// Base resolves a relative download location. Optional.
	Base *url.URL
}

func (p *HTTPPoller) Poll(ctx context.Context, h Handle) (StatusSnapshot, error) {
	resp, err := p.Transport.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    string(h),
		Header: p.Header,
	})
	if err != nil {
		return StatusSnapshot{}, &PollError{Handle: h, Err: err}
	}
	if !resp.OK() {
		return StatusSnapshot{}, &PollError{Handle: h, StatusCode: resp.StatusCode, Body: truncate(resp.Body)}
	}

	snap, ok := ParseStatus(resp.Body)
	if !ok {
		return StatusSnapshot{}, &PollError{
			Handle:     h,
			StatusCode: resp.StatusCode,
			Err:        errors.New("status body is not a JSON object: " + truncate(resp.Body)),
		}
	}
	if snap.DownloadLocation != "" {
		loc, err := ResolveReference(p.Base, snap.DownloadLocation)
		if err != nil {
			return StatusSnapshot{}, &PollError{Handle: h, StatusCode: resp.StatusCode, Err: err}
		}
		snap.DownloadLocation = loc
	}
	return snap, nil
}

// DefaultSignedMarkers are query-key prefixes of self-authenticating
// (pre-signed) object store URLs.
var DefaultSignedMarkers = []string{"x-amz-", "x-goog-"}

// HTTPResolver downloads the payload, sending the bearer token only to
// locations that are not pre-signed.
type HTTPResolver struct {
	Transport transport.Transport
	Token     string

	// SignedMarkers overrides DefaultSignedMarkers when non-empty.
	SignedMarkers []string
}

func (r *HTTPResolver) Resolve(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, &DownloadError{URL: location, Err: err}
	}

	header := http.Header{"Accept": {"application/zip,application/json"}}
	if !IsSigned(u, r.markers()) {
		header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := r.Transport.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    location,
		Header: header,
	})
	if err != nil {
		return nil, &DownloadError{URL: location, Err: err}
	}
	if !resp.OK() {
		return nil, &DownloadError{URL: location, StatusCode: resp.StatusCode, Body: truncate(resp.Body)}
	}
	return resp.Body, nil
}

func (r *HTTPResolver) markers() []string {
	if len(r.SignedMarkers) > 0 {
		return r.SignedMarkers
	}
	return DefaultSignedMarkers
}

// IsSigned reports whether any query key of u starts with one of the
// markers, compared case-insensitively.
func IsSigned(u *url.URL, markers []string) bool {
	for key := range u.Query() {
		k := strings.ToLower(key)
		for _, m := range markers {
			if strings.HasPrefix(k, strings.ToLower(m)) {
				return true
			}
		}
	}
	return false
}

// ResolveReference resolves ref against base. Absolute refs and a nil
// base return ref unchanged.
func ResolveReference(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if u.IsAbs() || base == nil {
		return ref, nil
	}
	return base.ResolveReference(u).String(), nil
}
