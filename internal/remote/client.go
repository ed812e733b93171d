// Package remote issues authenticated HTTP calls against the task API.
//
// Every call resolves its path against the API origin, carries the session's
// bearer token, and unwraps the API's error conventions into typed errors.
package remote

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
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"geotask/internal/session"
)

// DefaultTimeout is used when no timeout option is given.
const DefaultTimeout = 15 * time.Second

// Sessions is the view of the session store the client needs.
type Sessions interface {
	oauth2.TokenSource
	Clear() error
}

// Navigator redirects the user interface to the login entry point.
type Navigator interface {
	ToLogin()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

func (f NavigatorFunc) ToLogin() { f() }

// Options describe one request.
type Options struct {
	Method      string
	Body        io.Reader
	ContentType string
	Header      http.Header

	// SkipAuthRedirect turns a 401 into a plain *RequestError and leaves the session alone.
	SkipAuthRedirect bool
}

// Client performs requests against one API origin.
type Client struct {
	base     *url.URL
	http     *http.Client
	sessions Sessions
	nav      Navigator
	timeout  time.Duration
	log      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped to add the bearer token.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithNavigator sets the navigator signalled on session expiry.
func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.nav = n }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for apiURL.
func New(apiURL string, sessions Sessions, opts ...Option) (*Client, error) {
	base, err := url.Parse(apiURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API URL: %q", apiURL)
	}
	if sessions == nil {
		sessions = anonymous{}
	}
	c := &Client{
		base:     base,
		http:     http.DefaultClient,
		sessions: sessions,
		nav:      NavigatorFunc(func() {}),
		timeout:  DefaultTimeout,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.http
	hc.Transport = &bearerTransport{source: sessions, base: c.http.Transport}
	c.http = &hc
	return c, nil
}

// Origin returns the API origin URL.
func (c *Client) Origin() *url.URL {
	u := *c.base
	return &u
}

// ResolveURL makes ref absolute against the API origin.
// Protocol-relative references get the https scheme.
func (c *Client) ResolveURL(ref string) string {
	if absoluteURL.MatchString(ref) {
		if strings.HasPrefix(ref, "//") {
			return "https:" + ref
		}
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.base.ResolveReference(u).String()
}

var absoluteURL = regexp.MustCompile(`(?i)^(https?:)?//`)

// Request performs one call and returns the decoded body.
// JSON bodies decode to map[string]any, []any or scalars (numbers as json.Number);
// other bodies are returned as a string. An empty successful body yields an empty object.
func (c *Client) Request(ctx context.Context, path string, opts Options) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ResolveURL(path), opts.Body)
	if err != nil {
		return nil, err
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s", ErrRequestTimedOut, method, path)
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s", ErrRequestTimedOut, method, path)
		}
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	c.log.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized && !opts.SkipAuthRedirect {
		if err := c.sessions.Clear(); err != nil {
			c.log.Warn("clear expired session", "err", err)
		}
		c.nav.ToLogin()
		msg := ""
		if m, ok := body.(map[string]any); ok {
			msg, _ = m["message"].(string)
		}
		return nil, &SessionExpiredError{Message: msg}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rerr := &RequestError{
			Status:  resp.StatusCode,
			Path:    path,
			Message: errorMessage(body, resp),
			Header:  resp.Header.Clone(),
		}
		if _, ok := body.(string); !ok {
			rerr.Data = body
		}
		return nil, rerr
	}

	if body == nil || body == "" {
		return map[string]any{}, nil
	}
	return body, nil
}

// JSON sends payload as a JSON body.
func (c *Client) JSON(ctx context.Context, method, path string, payload any) (any, error) {
	return c.JSONWith(ctx, method, path, payload, Options{})
}

// JSONWith is JSON with extra request options. Method, Body and ContentType in opts are replaced.
func (c *Client) JSONWith(ctx context.Context, method, path string, payload any, opts Options) (any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	opts.Method = method
	opts.Body = bytes.NewReader(data)
	opts.ContentType = "application/json"
	return c.Request(ctx, path, opts)
}

// decodeBody parses JSON when the response declares it, otherwise returns text.
// A malformed JSON body decodes to nil.
func decodeBody(resp *http.Response) (any, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return string(data), nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, nil
	}
	return v, nil
}

// errorMessage picks error.message, then message, then the status line.
func errorMessage(body any, resp *http.Response) string {
	statusLine := fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	switch b := body.(type) {
	case string:
		if strings.TrimSpace(b) != "" {
			return b
		}
	case map[string]any:
		if e, ok := b["error"].(map[string]any); ok {
			if msg, ok := e["message"].(string); ok && msg != "" {
				return msg
			}
		}
		if msg, ok := b["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return statusLine
}

// anonymous is used when the client is created without a session store.
type anonymous struct{}

func (anonymous) Token() (*oauth2.Token, error) { return nil, session.ErrNoSession }
func (anonymous) Clear() error                  { return nil }

// bearerTransport sets the Authorization header from the session, when there is one.
type bearerTransport struct {
	source oauth2.TokenSource
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	tok, err := t.source.Token()
	if errors.Is(err, session.ErrNoSession) {
		return base.RoundTrip(req)
	}
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}
	r := req.Clone(req.Context())
	tok.SetAuthHeader(r)
	return base.RoundTrip(r)
}
