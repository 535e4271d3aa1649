package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/Rajchodisetti/nse-proxy/internal/stubs"
)

// ---- helpers ----

func health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// logged prints one line per stub request so proxy traffic is easy to eyeball
func logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s cookie=%q (%s)", r.Method, r.URL.RequestURI(), r.Header.Get("Cookie"), time.Since(start))
	})
}

func main() {
	port := flag.String("port", "8090", "listen port")
	failHandshakes := flag.Int("fail-handshakes", 0, "answer the first N handshakes with 503")
	cookie := flag.String("cookie", "", "fixed cookie value for every handshake (default: fresh per handshake)")
	flag.Parse()

	nse := stubs.NewNSE()
	if *cookie != "" {
		nse.SetCookie("nsit", *cookie)
	}
	nse.FailHandshakes(*failHandshakes)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", health)
	mux.Handle("/", logged(nse))

	addr := ":" + *port
	log.Printf("nse stub listening on %s (point NSE_BASE_URL at http://localhost%s)", addr, addr)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server %s error: %v", *port, err)
	}
}
