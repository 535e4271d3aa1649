package stubs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Request records one data call received by the stub
type Request struct {
	Path   string
	Query  string
	Cookie string
	At     time.Time
}

// NSE is a fake of the NSE website: the root page hands out a session
// cookie and the API endpoints reject calls that do not present the latest
// one. Failure knobs let tests script handshake and session errors.
type NSE struct {
	mu sync.Mutex

	cookieName  string
	cookieValue string // fixed value; empty means a fresh value per handshake

	issued  int
	current string // Cookie header the API currently accepts

	failHandshakes int
	omitCookie     bool
	forbidNext     int

	handshakes int
	requests   []Request
}

// NewNSE creates a stub that issues "nsit" cookies
func NewNSE() *NSE {
	return &NSE{cookieName: "nsit"}
}

// SetCookie makes every handshake set exactly name=value
func (n *NSE) SetCookie(name, value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cookieName = name
	n.cookieValue = value
}

// FailHandshakes makes the next k handshakes answer 503
func (n *NSE) FailHandshakes(k int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failHandshakes = k
}

// OmitCookie makes handshakes succeed without setting a cookie
func (n *NSE) OmitCookie(omit bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.omitCookie = omit
}

// ForbidNext makes the next k data calls answer 403 and drops the session
func (n *NSE) ForbidNext(k int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.forbidNext = k
}

// Handshakes returns how many root page requests were served
func (n *NSE) Handshakes() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.handshakes
}

// Requests returns a copy of the recorded data calls
func (n *NSE) Requests() []Request {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Request, len(n.requests))
	copy(out, n.requests)
	return out
}

func (n *NSE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/":
		n.handshake(w)
	case "/api/equity-stockIndices":
		n.serveData(w, r, func() any {
			return IndexFixture(r.URL.Query().Get("index"), time.Now())
		})
	case "/api/quote-equity":
		symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
		if symbol == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol required"})
			return
		}
		n.serveData(w, r, func() any {
			if r.URL.Query().Get("section") == "trade_info" {
				return TradeInfoFixture(symbol)
			}
			return QuoteFixture(symbol)
		})
	default:
		http.NotFound(w, r)
	}
}

func (n *NSE) handshake(w http.ResponseWriter) {
	n.mu.Lock()
	n.handshakes++
	if n.failHandshakes > 0 {
		n.failHandshakes--
		n.mu.Unlock()
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if n.omitCookie {
		n.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		return
	}

	n.issued++
	value := n.cookieValue
	if value == "" {
		value = fmt.Sprintf("session-%d", n.issued)
	}
	cookie := &http.Cookie{Name: n.cookieName, Value: value, Path: "/", HttpOnly: true}
	n.current = n.cookieName + "=" + value
	n.mu.Unlock()

	http.SetCookie(w, cookie)
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<html><body>nse stub</body></html>"))
}

func (n *NSE) serveData(w http.ResponseWriter, r *http.Request, payload func() any) {
	cookie := r.Header.Get("Cookie")

	n.mu.Lock()
	n.requests = append(n.requests, Request{
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Cookie: cookie,
		At:     time.Now(),
	})
	forbidden := n.current == "" || cookie != n.current
	if n.forbidNext > 0 {
		n.forbidNext--
		n.current = ""
		forbidden = true
	}
	n.mu.Unlock()

	if forbidden {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "session expired"})
		return
	}
	writeJSON(w, http.StatusOK, payload())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
