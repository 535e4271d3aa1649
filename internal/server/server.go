package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/nse-proxy/internal/config"
	"github.com/Rajchodisetti/nse-proxy/internal/observ"
)

// MarketData is the upstream surface the handlers depend on.
// *upstream.Client implements it.
type MarketData interface {
	EnsureSession(ctx context.Context) error
	Index(ctx context.Context) (json.RawMessage, error)
	Quote(ctx context.Context, symbol string) (json.RawMessage, error)
	TradeInfo(ctx context.Context, symbol string) (json.RawMessage, error)
}

// Server routes inbound API calls to the upstream client
type Server struct {
	router  *mux.Router
	data    MarketData
	limiter *rate.Limiter // nil when inbound limiting is disabled
	origins map[string]struct{}
}

// New builds the router and middleware chain
func New(data MarketData, cfg config.Server) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		data:    data,
		origins: make(map[string]struct{}, len(cfg.AllowedOrigins)),
	}
	for _, o := range cfg.AllowedOrigins {
		s.origins[o] = struct{}{}
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	s.router.Use(s.recoverMiddleware, s.requestIDMiddleware, s.loggingMiddleware)

	s.router.Handle("/health", observ.Health()).Methods(http.MethodGet)
	s.router.Handle("/metrics", observ.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.corsMiddleware, s.limitMiddleware)
	api.HandleFunc("/nifty50", s.handleNifty50).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/stock/{symbol}", s.handleStock).Methods(http.MethodGet, http.MethodOptions)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
