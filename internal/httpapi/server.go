// Package httpapi exposes the read-only REST surface and the websocket
// endpoint that starts a conversation session.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/pulu-ai/pulu/internal/buildinfo"
	"github.com/pulu-ai/pulu/internal/relay"
	"github.com/pulu-ai/pulu/internal/store"
)

// Server is the HTTP front door.
type Server struct {
	addr     string
	store    *store.Store
	relay    *relay.Relay
	registry *relay.Registry
	userID   string
	logger   *slog.Logger
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New creates the server and wires its routes.
func New(logger *slog.Logger, addr string, st *store.Store, rl *relay.Relay, reg *relay.Registry, userID string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:     addr,
		store:    st,
		relay:    rl,
		registry: reg,
		userID:   userID,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from a separate frontend origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/profile", s.handleProfile)
	r.Get("/alarms", s.handleAlarms)
	r.Get("/timers", s.handleTimers)
	r.Get("/ws/audio", s.handleAudio)

	s.httpSrv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errc <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write JSON response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"status": "ok",
		"build":  buildinfo.Current(),
	})
}

// handleProfile returns the profile with memory facts flattened into
// top-level keys, the shape the frontend renders directly.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(s.userID)
	if err != nil {
		http.Error(w, "profile unavailable", http.StatusInternalServerError)
		return
	}

	flat := map[string]any{
		"id":       user.ID,
		"name":     user.Name,
		"city":     user.City,
		"timezone": user.Timezone,
		"gender":   user.Gender,
	}

	mems, err := s.store.ListMemories(s.userID)
	if err != nil {
		s.logger.Error("list memories", "error", err)
	}
	for _, m := range mems {
		flat[m.Label] = m.Value
	}

	s.writeJSON(w, flat)
}

func (s *Server) handleAlarms(w http.ResponseWriter, r *http.Request) {
	alarms, err := s.store.ListAlarms(store.StatusActive, store.StatusRinging)
	if err != nil {
		http.Error(w, "alarms unavailable", http.StatusInternalServerError)
		return
	}
	if alarms == nil {
		alarms = []*store.Alarm{}
	}
	s.writeJSON(w, alarms)
}

func (s *Server) handleTimers(w http.ResponseWriter, r *http.Request) {
	timers, err := s.store.ListTimers(store.StatusActive, store.StatusRinging)
	if err != nil {
		http.Error(w, "timers unavailable", http.StatusInternalServerError)
		return
	}
	if timers == nil {
		timers = []*store.Timer{}
	}
	s.writeJSON(w, timers)
}

// handleAudio upgrades the connection and runs one conversation session.
// The transport is registered for notification fan-out for exactly as
// long as the session runs.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := relay.NewClientConn(ws)
	s.registry.Register(client)
	defer s.registry.Deregister(client)
	defer client.Close()

	s.logger.Info("client connected", "remote", r.RemoteAddr)

	session, err := s.relay.Open(r.Context(), client)
	if err != nil {
		s.logger.Error("open session failed", "error", err)
		return
	}

	if err := session.Run(r.Context()); err != nil {
		s.logger.Error("session error", "error", err)
	}
	s.logger.Info("client disconnected", "remote", r.RemoteAddr)
}
