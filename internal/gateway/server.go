// Package gateway serves the conversation over HTTP for web front
// ends: a JSON state/message API, a WebSocket feed of streaming
// progress, and Prometheus metrics.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dhruvdaberao/CROCO/internal/chat"
	"github.com/dhruvdaberao/CROCO/internal/logging"
)

// Conversation is the orchestrator surface the gateway consumes.
// *chat.Orchestrator implements it.
type Conversation interface {
	Turns() []chat.Turn
	Loading() bool
	Err() string
	UserName() string
	Avatar() string
	SendMessage(ctx context.Context, text, image string)
	UpdateAvatar(image string)
}

// State is the snapshot handed to clients.
type State struct {
	Turns    []chat.Turn `json:"turns"`
	Loading  bool        `json:"loading"`
	Error    string      `json:"error,omitempty"`
	UserName string      `json:"userName,omitempty"`
	Avatar   string      `json:"avatar,omitempty"`
}

// MessageRequest is an inbound user submission.
type MessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// Server exposes a Conversation over HTTP. SendMessage is not
// reentrant, so the server serializes submissions with a mutex: the
// loading gate the TUI provides interactively is enforced here
// structurally.
type Server struct {
	conv   Conversation
	router chi.Router

	sendMu sync.Mutex
}

// New builds the gateway around conv.
func New(conv Conversation) *Server {
	s := &Server{conv: conv}

	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Get("/api/state", s.handleState)
	r.Post("/api/message", s.handleMessage)
	r.Post("/api/avatar", s.handleAvatar)
	r.Get("/api/ws", s.handleWS)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Get(logging.CategoryGateway).Infof("gateway listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) snapshot() State {
	return State{
		Turns:    s.conv.Turns(),
		Loading:  s.conv.Loading(),
		Error:    s.conv.Err(),
		UserName: s.conv.UserName(),
		Avatar:   s.conv.Avatar(),
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	messagesTotal.Inc()

	s.sendMu.Lock()
	s.conv.SendMessage(r.Context(), req.Text, req.Image)
	s.sendMu.Unlock()

	if s.conv.Err() != "" {
		sendFailuresTotal.Inc()
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Image == "" {
		http.Error(w, "image required", http.StatusBadRequest)
		return
	}

	avatarUpdatesTotal.Inc()
	s.conv.UpdateAvatar(req.Image)
	writeJSON(w, http.StatusOK, s.snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Get(logging.CategoryGateway).Warnf("response encode failed: %v", err)
	}
}
