// Package opsserver exposes the operational HTTP surface: Prometheus
// metrics and a health endpoint.
package opsserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glacierwatch/glacierwatch/internal/log"
)

// Server is the metrics/health HTTP listener.
type Server struct {
	srv *http.Server
}

// New builds the ops server on the given listen address.
func New(listenAddr string) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	return &Server{
		srv: &http.Server{
			Addr:         listenAddr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Start serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) {
	go func() {
		log.Infof("ops server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("ops server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("ops server shutdown: %v", err)
		}
	}()
}
