package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/Rajchodisetti/nse-proxy/internal/observ"
	"github.com/Rajchodisetti/nse-proxy/internal/upstream"
)

// unavailableMessage is returned for every upstream failure; the failure
// kind only shows up in logs and metrics
const unavailableMessage = "Upstream market data is temporarily unavailable, please retry shortly"

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type stockResponse struct {
	Quote     json.RawMessage `json:"quote"`
	TradeInfo json.RawMessage `json:"tradeInfo"`
}

func (s *Server) handleNifty50(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.data.EnsureSession(ctx); err != nil {
		s.unavailable(w, r, "Failed to fetch NIFTY 50 data", err)
		return
	}

	body, err := s.data.Index(ctx)
	if err != nil {
		s.unavailable(w, r, "Failed to fetch NIFTY 50 data", err)
		return
	}

	writeRaw(w, http.StatusOK, body)
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	symbol := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["symbol"]))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "Bad Request", "symbol is required")
		return
	}
	failure := "Failed to fetch stock data for " + symbol

	if err := s.data.EnsureSession(ctx); err != nil {
		s.unavailable(w, r, failure, err)
		return
	}

	// Both fetches still pass the shared upstream throttle one at a time
	var (
		wg                 sync.WaitGroup
		quote, tradeInfo   json.RawMessage
		quoteErr, tradeErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		quote, quoteErr = s.data.Quote(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		tradeInfo, tradeErr = s.data.TradeInfo(ctx, symbol)
	}()
	wg.Wait()

	if err := firstErr(quoteErr, tradeErr); err != nil {
		s.unavailable(w, r, failure, err)
		return
	}

	writeJSON(w, http.StatusOK, stockResponse{Quote: quote, TradeInfo: tradeInfo})
}

func (s *Server) unavailable(w http.ResponseWriter, r *http.Request, failure string, err error) {
	kind := upstream.KindOf(err)
	observ.IncCounter("api_upstream_failures_total", map[string]string{
		"route": routeName(r),
		"kind":  string(kind),
	})
	observ.Warn("api_upstream_failure", map[string]any{
		"route":      routeName(r),
		"kind":       string(kind),
		"error":      err.Error(),
		"request_id": requestID(r.Context()),
	})
	writeError(w, http.StatusServiceUnavailable, failure, unavailableMessage)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "failed to encode response")
		return
	}
	writeRaw(w, status, b)
}

func writeError(w http.ResponseWriter, status int, errMsg, message string) {
	b, _ := json.Marshal(errorEnvelope{Error: errMsg, Message: message})
	writeRaw(w, status, b)
}
