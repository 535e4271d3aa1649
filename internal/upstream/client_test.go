package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/nse-proxy/internal/stubs"
)

func newTestClient(t *testing.T, handler http.Handler, interval time.Duration) (*Client, *fakeClock) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	clock := newFakeClock()
	th := NewThrottle(interval, clock)
	sm := NewSessionManager(srv.URL, srv.Client(), th, testPolicy, clock)
	return NewClient(srv.URL, srv.Client(), th, sm), clock
}

// cookieThenStatus sets a cookie on the handshake and answers every API
// call with status and body
func cookieThenStatus(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.SetCookie(w, &http.Cookie{Name: "a", Value: "1"})
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func TestFetch_SendsSessionCookie(t *testing.T) {
	nse := stubs.NewNSE()
	nse.SetCookie("a", "1")
	c, _ := newTestClient(t, nse, 0)
	ctx := context.Background()

	require.NoError(t, c.EnsureSession(ctx))
	body, err := c.Quote(ctx, "TCS")
	require.NoError(t, err)

	reqs := nse.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "a=1", reqs[0].Cookie)

	var quote stubs.QuotePayload
	require.NoError(t, json.Unmarshal(body, &quote))
	assert.Equal(t, "TCS", quote.Info.Symbol)
}

func TestFetch_WithoutSessionSendsNoCookie(t *testing.T) {
	nse := stubs.NewNSE()
	c, _ := newTestClient(t, nse, 0)

	_, err := c.Index(context.Background())

	assert.True(t, IsForbidden(err))
	reqs := nse.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Cookie)
}

func TestFetch_ForbiddenClearsToken(t *testing.T) {
	nse := stubs.NewNSE()
	c, _ := newTestClient(t, nse, 0)
	ctx := context.Background()

	require.NoError(t, c.EnsureSession(ctx))
	require.NotEmpty(t, c.Session().Token())

	nse.ForbidNext(1)
	_, err := c.Index(ctx)

	require.Error(t, err)
	assert.True(t, IsForbidden(err))
	assert.Empty(t, c.Session().Token())

	// the next caller re-handshakes and succeeds
	require.NoError(t, c.EnsureSession(ctx))
	_, err = c.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, nse.Handshakes())
}

func TestFetch_UnauthorizedAlsoClearsToken(t *testing.T) {
	c, _ := newTestClient(t, cookieThenStatus(http.StatusUnauthorized, `{}`), 0)
	ctx := context.Background()

	require.NoError(t, c.EnsureSession(ctx))
	_, err := c.Index(ctx)

	assert.True(t, IsForbidden(err))
	assert.Empty(t, c.Session().Token())
}

func TestFetch_ServerErrorKeepsToken(t *testing.T) {
	c, _ := newTestClient(t, cookieThenStatus(http.StatusInternalServerError, `{"error":"boom"}`), 0)
	ctx := context.Background()

	require.NoError(t, c.EnsureSession(ctx))
	_, err := c.Index(ctx)

	require.Error(t, err)
	assert.Equal(t, KindFetch, KindOf(err))
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusInternalServerError, fe.Status)
	assert.Equal(t, "index", fe.Endpoint)
	assert.Equal(t, "a=1", c.Session().Token())
}

func TestFetch_NonJSONBodyIsFetchError(t *testing.T) {
	c, _ := newTestClient(t, cookieThenStatus(http.StatusOK, "<html>captcha</html>"), 0)
	ctx := context.Background()

	require.NoError(t, c.EnsureSession(ctx))
	_, err := c.Quote(ctx, "TCS")

	assert.Equal(t, KindFetch, KindOf(err))
	assert.Contains(t, err.Error(), "not JSON")
}

func TestFetch_TimeoutIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.SetCookie(w, &http.Cookie{Name: "a", Value: "1"})
			return
		}
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	clock := newFakeClock()
	th := NewThrottle(0, clock)
	hc := &http.Client{Timeout: 50 * time.Millisecond}
	sm := NewSessionManager(srv.URL, hc, th, testPolicy, clock)
	c := NewClient(srv.URL, hc, th, sm)
	ctx := context.Background()

	require.NoError(t, c.EnsureSession(ctx))
	_, err := c.Index(ctx)

	require.Error(t, err)
	assert.Equal(t, KindFetch, KindOf(err))
	assert.Equal(t, "a=1", sm.Token())
}

func TestQuote_EscapesSymbol(t *testing.T) {
	nse := stubs.NewNSE()
	c, _ := newTestClient(t, nse, 0)
	ctx := context.Background()

	require.NoError(t, c.EnsureSession(ctx))
	_, err := c.Quote(ctx, "M&M")
	require.NoError(t, err)

	reqs := nse.Requests()
	require.Len(t, reqs, 1)
	q, err := url.ParseQuery(reqs[0].Query)
	require.NoError(t, err)
	assert.Equal(t, "M&M", q.Get("symbol"))
	assert.Empty(t, q.Get("section"))
}

func TestTradeInfo_RequestsTradeInfoSection(t *testing.T) {
	nse := stubs.NewNSE()
	c, _ := newTestClient(t, nse, 0)
	ctx := context.Background()

	require.NoError(t, c.EnsureSession(ctx))
	body, err := c.TradeInfo(ctx, "INFY")
	require.NoError(t, err)

	reqs := nse.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/quote-equity", reqs[0].Path)
	q, _ := url.ParseQuery(reqs[0].Query)
	assert.Equal(t, "INFY", q.Get("symbol"))
	assert.Equal(t, "trade_info", q.Get("section"))

	var ti stubs.TradeInfoPayload
	require.NoError(t, json.Unmarshal(body, &ti))
	assert.Positive(t, ti.MarketDeptOrderBook.TradeInfo.TotalTradedVolume)
}

func TestIndex_RequestsNifty50(t *testing.T) {
	nse := stubs.NewNSE()
	c, _ := newTestClient(t, nse, 0)
	ctx := context.Background()

	require.NoError(t, c.EnsureSession(ctx))
	body, err := c.Index(ctx)
	require.NoError(t, err)

	q, _ := url.ParseQuery(nse.Requests()[0].Query)
	assert.Equal(t, NiftyIndex, q.Get("index"))

	var idx stubs.IndexPayload
	require.NoError(t, json.Unmarshal(body, &idx))
	assert.Equal(t, NiftyIndex, idx.Name)
	assert.NotEmpty(t, idx.Data)
}

func TestFetch_SharesThrottleWithHandshake(t *testing.T) {
	nse := stubs.NewNSE()
	c, clock := newTestClient(t, nse, time.Second)
	ctx := context.Background()

	require.NoError(t, c.EnsureSession(ctx))
	assert.Empty(t, clock.Sleeps())

	_, err := c.Index(ctx)
	require.NoError(t, err)
	_, err = c.Quote(ctx, "TCS")
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.Sleeps())
}

func TestNew_ProxyURL(t *testing.T) {
	_, err := New(Options{ProxyURL: "http://proxy.internal:3128"})
	assert.NoError(t, err)

	_, err = New(Options{ProxyURL: "://bad"})
	assert.Error(t, err)
}
