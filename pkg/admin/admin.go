// Package admin implements C12: the HTTP surface that exposes /healthz and
// /metrics alongside the gateway's primary gRPC stream, following the
// teacher's REST API server shape (gorilla/mux router plus an *http.Server
// managed by Start/Stop).
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dialogiot/foshgw/pkg/logger"
)

// HealthProvider reports the information /healthz renders. *scanner.Registry
// and *streamsvc.BroadcastSubscriberSet each provide one of its methods; the
// supervisor composes them into one HealthProvider for Server.
type HealthProvider interface {
	ListenersActive() int
	SubscribersConnected() int
}

// Server serves /healthz and /metrics.
type Server struct {
	port   int
	health HealthProvider
	srv    *http.Server
	log    *logger.Logger
}

// NewServer creates a Server bound to port, reporting health from health.
func NewServer(port int, health HealthProvider, log *logger.Logger) *Server {
	return &Server{port: port, health: health, log: log.Component("admin")}
}

// Start builds the router and begins serving in the background.
func (s *Server) Start() error {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: r,
	}

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Warn("admin server stopped", "error", err)
		}
	}()

	s.log.Info("admin server listening", "port", s.port)
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

type healthzResponse struct {
	Status               string `json:"status"`
	ListenersActive      int    `json:"listeners_active"`
	SubscribersConnected int    `json:"subscribers_connected"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthzResponse{
		Status:               "ok",
		ListenersActive:      s.health.ListenersActive(),
		SubscribersConnected: s.health.SubscribersConnected(),
	})
}
