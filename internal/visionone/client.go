// Package visionone is the Trend Micro Vision One API surface used by
// the monthly report.
package visionone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/export"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/transport"
)

const (
	EndpointInventoryExport = "v3.0/endpointSecurity/endpoints/export"
	VulnerableDevicesExport = "beta/asrm/vulnerableDevices/export"
	WorkbenchAlerts         = "beta/xdr/workbench/alerts"
)

// maxPages bounds nextLink chains.
const maxPages = 10000

type Client struct {
	base      *url.URL
	token     string
	transport transport.Transport
}

// New validates the regional base URL and normalises it to end in a
// slash so endpoint paths resolve beneath it.
func New(baseURL, token string, t transport.Transport) (*Client, error) {
	if token == "" {
		return nil, errors.New("visionone: token is required")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("visionone: parse base url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("visionone: base url %q is not absolute", baseURL)
	}
	return &Client{base: u, token: token, transport: t}, nil
}

func (c *Client) Base() *url.URL { return c.base }

// URL resolves an endpoint path against the base.
func (c *Client) URL(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}

// Header returns the headers every API call carries.
func (c *Client) Header() http.Header {
	return http.Header{
		"Authorization": {"Bearer " + c.token},
		"Content-Type":  {"application/json;charset=utf-8"},
	}
}

// ExportRequest describes an export job posted with an empty body.
func (c *Client) ExportRequest(name, path string, p export.Policy) export.Request {
	return export.Request{
		Name:     name,
		Endpoint: c.URL(path),
		Header:   c.Header(),
		Body:     []byte(`{}`),
		Policy:   p,
	}
}

// Orchestrator wires the HTTP submitter, poller and resolver for this
// tenant.
func (c *Client) Orchestrator(opts ...export.Option) *export.Orchestrator {
	return export.New(
		&export.HTTPSubmitter{Transport: c.transport, Base: c.base},
		&export.HTTPPoller{Transport: c.transport, Header: c.Header(), Base: c.base},
		&export.HTTPResolver{Transport: c.transport, Token: c.token},
		opts...,
	)
}

// PageError reports a failed page of a paginated listing.
type PageError struct {
	Page       int
	StatusCode int
	Body       string
	Err        error
}

func (e *PageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("visionone: page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("visionone: page %d: HTTP %d: %s", e.Page, e.StatusCode, e.Body)
}

func (e *PageError) Unwrap() error { return e.Err }

// Alerts lists workbench alerts created in [from, to], following
// nextLink. The window is sent on the first request only; nextLink
// carries it afterwards. On a failed page the alerts collected so far
// are returned together with a *PageError.
func (c *Client) Alerts(ctx context.Context, from, to time.Time) ([]gjson.Result, error) {
	q := url.Values{}
	q.Set("startDateTime", from.UTC().Format(time.RFC3339))
	q.Set("endDateTime", to.UTC().Format(time.RFC3339))
	next := c.URL(WorkbenchAlerts) + "?" + q.Encode()

	var items []gjson.Result
	seen := map[string]bool{}
	for page := 1; next != "" && page <= maxPages; page++ {
		if seen[next] {
			break
		}
		seen[next] = true

		resp, err := c.transport.Do(ctx, &transport.Request{
			Method: http.MethodGet,
			URL:    next,
			Header: http.Header{"Authorization": {"Bearer " + c.token}},
		})
		if err != nil {
			return items, &PageError{Page: page, Err: err}
		}
		if resp.StatusCode != http.StatusOK {
			return items, &PageError{Page: page, StatusCode: resp.StatusCode, Body: string(resp.Body)}
		}

		doc := gjson.ParseBytes(resp.Body)
		batch := doc.Get("items").Array()
		items = append(items, batch...)
		slog.DebugContext(ctx, "vision_report.workbench.page",
			slog.Int("page", page), slog.Int("items", len(batch)), slog.Int("total", len(items)))

		next = doc.Get("nextLink").String()
		if next != "" {
			if next, err = export.ResolveReference(c.base, next); err != nil {
				return items, &PageError{Page: page + 1, Err: err}
			}
		}
	}
	return items, nil
}
