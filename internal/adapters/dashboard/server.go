package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes the dashboard endpoints: the websocket push stream plus a
// plain snapshot endpoint for polling clients and health checks.
type Server struct {
	log         *slog.Logger
	hub         *Hub
	broadcaster *Broadcaster
	srv         *http.Server
}

func NewServer(log *slog.Logger, addr string, hub *Hub, b *Broadcaster) *Server {
	s := &Server{log: log, hub: hub, broadcaster: b}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		ServeWS(hub, log, w, req)
	})
	r.Get("/api/state", s.handleState)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.broadcaster.Snapshot(r.Context())
	if err != nil {
		http.Error(w, "snapshot unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Message{Type: MessageTypeState, State: &st, Timestamp: time.Now()})
}

func (s *Server) Start() error {
	s.log.Info("dashboard_server_listening", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
