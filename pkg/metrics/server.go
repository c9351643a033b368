package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// newServer builds the scrape server: /metrics plus a plain-text index at /.
func newServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "internship recommender: scrape /metrics")
	})
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// StartServer listens on port in the background. The returned function
// stops the listener.
func StartServer(port int) (shutdown func(context.Context) error) {
	srv := newServer(port)
	logger := slog.Default().With("component", "metrics-server", "addr", srv.Addr)
	go func() {
		logger.Info("serving prometheus metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener stopped", "error", err)
		}
	}()
	return srv.Shutdown
}
