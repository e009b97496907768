// Package healthsrv is the minimal /health HTTP endpoint every daemon
// binary exposes, grounded on services/worker/cmd/worker/main.go's
// startHealthServer, generalized into a reusable helper so
// notifyd/statusd/retryd/gatewayd don't each hand-roll the same
// http.Server setup.
package healthsrv

import (
	"context"
	"net/http"
	"time"
)

// Handler builds the /health mux: 200 with a healthy body when healthy
// reports true, 503 with an unhealthy body otherwise. Split out from
// Start so it can be exercised directly against an httptest.Recorder
// without binding a real port.
func Handler(healthy func() bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if healthy() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
	})
	return mux
}

// Start launches a background HTTP server on addr whose /health handler
// calls healthy to decide 200 vs 503. Returns the *http.Server so the
// caller can Shutdown it as part of its own graceful-shutdown sequence.
func Start(addr string, healthy func() bool) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(healthy),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = server.ListenAndServe()
	}()
	return server
}

// Shutdown stops server with a bounded grace period.
func Shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}
