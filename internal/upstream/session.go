package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/Rajchodisetti/nse-proxy/internal/observ"
)

// SessionManager owns the upstream session cookie. The token is fetched
// lazily by a handshake against the site root and cleared when a data fetch
// is rejected; there is no background refresh.
type SessionManager struct {
	baseURL  string
	client   *http.Client
	throttle *Throttle
	policy   RetryPolicy
	clock    Clock

	mu    sync.RWMutex
	token string

	// refreshMu serializes handshakes so concurrent callers share one refresh
	refreshMu sync.Mutex
}

// NewSessionManager creates a session manager. The handshake client is a
// copy of httpClient that does not follow redirects, since the cookie may
// be set on the redirect response itself.
func NewSessionManager(baseURL string, httpClient *http.Client, throttle *Throttle, policy RetryPolicy, clock Clock) *SessionManager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if clock == nil {
		clock = SystemClock
	}
	hc := *httpClient
	hc.Jar = nil
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &SessionManager{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &hc,
		throttle: throttle,
		policy:   policy,
		clock:    clock,
	}
}

// Token returns the current header-ready cookie string, possibly empty
func (s *SessionManager) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *SessionManager) setToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	active := 0.0
	if token != "" {
		active = 1
	}
	observ.SetGauge("session_active", active, nil)
}

// Invalidate clears the token so the next EnsureSession performs a handshake
func (s *SessionManager) Invalidate(reason string) {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.mu.Unlock()

	observ.SetGauge("session_active", 0, nil)
	observ.IncCounter("session_invalidations_total", map[string]string{"reason": reason})
	observ.Log("session_invalidated", map[string]any{
		"reason":    reason,
		"had_token": had,
	})
}

// EnsureSession returns immediately when a token is held. Otherwise it runs
// the handshake under the retry policy. Callers that queued behind another
// caller's refresh reuse its result instead of handshaking again.
func (s *SessionManager) EnsureSession(ctx context.Context) error {
	if s.Token() != "" {
		return nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.Token() != "" {
		return nil
	}

	attempts := s.policy.attempts()
	err := Retry(ctx, s.policy, s.clock, func(attempt int) error {
		err := s.handshake(ctx)
		if err == nil {
			observ.IncCounter("session_handshakes_total", map[string]string{"result": "success"})
			return nil
		}

		observ.IncCounter("session_handshakes_total", map[string]string{"result": "failure"})
		kv := map[string]any{
			"attempt":      attempt + 1,
			"max_attempts": attempts,
			"error":        err.Error(),
		}
		if attempt+1 < attempts {
			kv["backoff_ms"] = s.policy.Backoff(attempt).Milliseconds()
		}
		observ.Warn("session_handshake_failed", kv)
		return err
	})
	if err != nil {
		observ.Error("session_refresh_failed", err, map[string]any{"attempts": attempts})
		return newRefreshError(attempts, err)
	}

	observ.Log("session_refreshed", map[string]any{
		"cookies": strings.Count(s.Token(), ";") + 1,
	})
	return nil
}

// handshake performs one throttled request against the site root and stores
// the cookies it sets
func (s *SessionManager) handshake(ctx context.Context) error {
	if err := s.throttle.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create handshake request: %w", err)
	}
	setBrowserHeaders(req, s.baseURL)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("handshake request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("handshake returned HTTP %d", resp.StatusCode)
	}

	token := joinCookies(resp.Cookies())
	if token == "" {
		return errors.New("handshake response set no cookie")
	}

	s.setToken(token)
	return nil
}

// joinCookies renders cookies as a single Cookie header value
func joinCookies(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
