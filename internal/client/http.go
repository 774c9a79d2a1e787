// Package client provides the single outbound HTTP policy shared by every
// probe: one timeout, one User-Agent, a global concurrency cap, and typed
// status outcomes instead of errors for non-2xx responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultBodyCap  = 512 << 10 // bytes read from any response
	defaultOutbound = 6
	maxRedirects    = 5
)

// Outcome reports how a request ended. Non-2xx statuses are data, not
// errors: probes branch on them (404 means "not registered", 429 means
// "back off"), so only transport failures surface as Go errors.
type Outcome struct {
	StatusCode int
	Header     http.Header
}

// OK reports a 2xx status.
func (o *Outcome) OK() bool { return o.StatusCode >= 200 && o.StatusCode < 300 }

// Options tune a single request.
type Options struct {
	Timeout     time.Duration // overrides the client default when > 0
	BearerToken string
	Headers     map[string]string
}

// Client is the shared outbound HTTP client. All probes go through it so
// the engine has one place to cap concurrency and identify itself.
type Client struct {
	http      *http.Client
	userAgent string
	timeout   time.Duration
	bodyCap   int64
	outbound  *semaphore.Weighted
}

// New builds the shared client. limit caps in-flight outbound requests
// across every probe in a scan.
func New(userAgent string, limit int64) *Client {
	if limit <= 0 {
		limit = defaultOutbound
	}
	return &Client{
		http: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: userAgent,
		timeout:   defaultTimeout,
		bodyCap:   defaultBodyCap,
		outbound:  semaphore.NewWeighted(limit),
	}
}

// GetJSON fetches rawURL and decodes a 2xx body into out (out may be nil to
// discard). The body is ignored for non-2xx statuses.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any, opts *Options) (*Outcome, error) {
	outcome, body, err := c.do(ctx, http.MethodGet, rawURL, "", nil, opts)
	if err != nil {
		return nil, err
	}
	if out != nil && outcome.OK() {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("client.GetJSON %s: decode: %w", hostOf(rawURL), err)
		}
	}
	return outcome, nil
}

// PostJSON sends payload as a JSON body and decodes a 2xx response into out.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload, out any, opts *Options) (*Outcome, error) {
	enc, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("client.PostJSON %s: encode: %w", hostOf(rawURL), err)
	}
	outcome, body, err := c.do(ctx, http.MethodPost, rawURL, "application/json", enc, opts)
	if err != nil {
		return nil, err
	}
	if out != nil && outcome.OK() {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("client.PostJSON %s: decode: %w", hostOf(rawURL), err)
		}
	}
	return outcome, nil
}

// PostForm sends a urlencoded form and returns the raw body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, opts *Options) (*Outcome, []byte, error) {
	return c.do(ctx, http.MethodPost, rawURL, "application/x-www-form-urlencoded", []byte(form.Encode()), opts)
}

// GetBody fetches rawURL and returns the raw body, capped at the client
// body limit so a hostile endpoint cannot balloon memory.
func (c *Client) GetBody(ctx context.Context, rawURL string, opts *Options) (*Outcome, []byte, error) {
	return c.do(ctx, http.MethodGet, rawURL, "", nil, opts)
}

func (c *Client) do(ctx context.Context, method, rawURL, contentType string, body []byte, opts *Options) (*Outcome, []byte, error) {
	timeout := c.timeout
	if opts != nil && opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.outbound.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("client.do %s: %w", hostOf(rawURL), err)
	}
	defer c.outbound.Release(1)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("client.do %s: %w", hostOf(rawURL), err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if opts != nil {
		if opts.BearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+opts.BearerToken)
		}
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("client.do %s: %w", hostOf(rawURL), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.bodyCap))
	if err != nil {
		return nil, nil, fmt.Errorf("client.do %s: read body: %w", hostOf(rawURL), err)
	}
	return &Outcome{StatusCode: resp.StatusCode, Header: resp.Header}, data, nil
}

// hostOf keeps error messages free of query strings, which can carry the
// scanned address.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	return u.Host
}
