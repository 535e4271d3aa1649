package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Rajchodisetti/nse-proxy/internal/observ"
)

// DefaultBaseURL is the NSE website the proxy fronts
const DefaultBaseURL = "https://www.nseindia.com"

// NiftyIndex is the index queried by Index
const NiftyIndex = "NIFTY 50"

const maxBodyBytes = 10 << 20

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// setBrowserHeaders applies the header set NSE expects from a browser
func setBrowserHeaders(req *http.Request, baseURL string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", baseURL+"/")
	req.Header.Set("Connection", "keep-alive")
}

// Options configures New
type Options struct {
	BaseURL     string
	MinInterval time.Duration
	Timeout     time.Duration
	Retry       RetryPolicy
	ProxyURL    string // empty means use the environment
	Clock       Clock
}

// Client fetches NSE market data through the shared throttle, attaching the
// current session cookie to each request
type Client struct {
	baseURL  string
	http     *http.Client
	throttle *Throttle
	session  *SessionManager
}

// New wires a throttle, session manager and HTTP client from opts
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyURL != "" {
		proxy, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	httpClient := &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}
	throttle := NewThrottle(opts.MinInterval, opts.Clock)
	session := NewSessionManager(opts.BaseURL, httpClient, throttle, opts.Retry, opts.Clock)
	return NewClient(opts.BaseURL, httpClient, throttle, session), nil
}

// NewClient assembles a client from existing parts. The throttle must be the
// one the session manager uses so handshakes and data fetches share a gate.
func NewClient(baseURL string, httpClient *http.Client, throttle *Throttle, session *SessionManager) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		throttle: throttle,
		session:  session,
	}
}

// Session exposes the session manager
func (c *Client) Session() *SessionManager {
	return c.session
}

// EnsureSession makes sure a session cookie is held before data fetches
func (c *Client) EnsureSession(ctx context.Context) error {
	return c.session.EnsureSession(ctx)
}

// Index fetches the NIFTY 50 index snapshot
func (c *Client) Index(ctx context.Context) (json.RawMessage, error) {
	q := url.Values{"index": {NiftyIndex}}
	return c.Fetch(ctx, "index", "/api/equity-stockIndices?"+q.Encode())
}

// Quote fetches the equity quote for symbol
func (c *Client) Quote(ctx context.Context, symbol string) (json.RawMessage, error) {
	q := url.Values{"symbol": {symbol}}
	return c.Fetch(ctx, "quote", "/api/quote-equity?"+q.Encode())
}

// TradeInfo fetches the trade_info section of the equity quote for symbol
func (c *Client) TradeInfo(ctx context.Context, symbol string) (json.RawMessage, error) {
	q := url.Values{"symbol": {symbol}}
	return c.Fetch(ctx, "trade_info", "/api/quote-equity?"+q.Encode()+"&section=trade_info")
}

// Fetch performs one throttled GET of path against the base URL and returns
// the JSON body. A 401/403 clears the session before the error is returned.
// Nothing is retried here.
func (c *Client) Fetch(ctx context.Context, endpoint, path string) (json.RawMessage, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, c.fail(endpoint, newFetchError(endpoint, "throttle wait cancelled", 0, err))
	}

	start := time.Now()
	body, err := c.do(ctx, endpoint, path)
	observ.RecordDuration("upstream_latency", time.Since(start), map[string]string{"endpoint": endpoint})
	if err != nil {
		return nil, c.fail(endpoint, err)
	}

	observ.IncCounter("upstream_requests_total", map[string]string{
		"endpoint": endpoint,
		"result":   "success",
	})
	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, newFetchError(endpoint, "failed to create request", 0, err)
	}
	setBrowserHeaders(req, c.baseURL)
	if token := c.session.Token(); token != "" {
		req.Header.Set("Cookie", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newFetchError(endpoint, "request failed", 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		c.session.Invalidate(endpoint + "_forbidden")
		return nil, newForbiddenError(endpoint, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, newFetchError(endpoint, "unexpected status", resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, newFetchError(endpoint, "failed to read body", resp.StatusCode, err)
	}
	if !json.Valid(body) {
		return nil, newFetchError(endpoint, "response is not JSON", resp.StatusCode, nil)
	}
	return json.RawMessage(body), nil
}

func (c *Client) fail(endpoint string, err error) error {
	observ.IncCounter("upstream_requests_total", map[string]string{
		"endpoint": endpoint,
		"result":   string(KindOf(err)),
	})
	observ.Warn("upstream_fetch_failed", map[string]any{
		"endpoint": endpoint,
		"kind":     string(KindOf(err)),
		"error":    err.Error(),
	})
	return err
}
