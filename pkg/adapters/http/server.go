package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/onramp/internal/inbox"
	"github.com/aretw0/onramp/internal/logging"
	"github.com/aretw0/onramp/internal/sanitize"
	"github.com/aretw0/onramp/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Engine defines the subset of the onramp engine the server needs.
type Engine interface {
	Advance(ctx context.Context, platformUserID, command string) (*domain.ResponsePayload, error)
	Reset(ctx context.Context, platformUserID string) error
	Session(ctx context.Context, platformUserID string) (*domain.Session, error)
	Steps() []domain.StepDefinition
}

// Inbox accepts free-text messages.
type Inbox interface {
	Submit(ctx context.Context, msg inbox.Message) (inbox.Receipt, error)
}

// Server exposes the engine over REST.
type Server struct {
	Engine  Engine
	Inbox   Inbox
	Streams *StreamManager

	metrics http.Handler
	limiter *RateLimiter
	version string
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithInbox enables POST /sessions/{userID}/messages.
func WithInbox(ib Inbox) Option {
	return func(s *Server) {
		s.Inbox = ib
	}
}

// WithMetricsHandler mounts GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithRateLimiter limits requests per platform user.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) {
		s.limiter = rl
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.Health)
	r.Get("/steps", s.ListSteps)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/sessions/{userID}", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Get("/", s.GetSession)
		r.Delete("/", s.ResetSession)
		r.Post("/advance", s.Advance)
		r.Post("/messages", s.PostMessage)
		r.Get("/events", s.SubscribeEvents)
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if s.version != "" {
		resp["version"] = s.version
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSteps handles GET /steps.
func (s *Server) ListSteps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Steps())
}

// AdvanceRequest is the body of POST /sessions/{userID}/advance.
type AdvanceRequest struct {
	Command string `json:"command"`
}

// ErrorResponse is returned for failed requests. User-facing failures also
// carry the payload to render.
type ErrorResponse struct {
	Error   string                  `json:"error"`
	Payload *domain.ResponsePayload `json:"payload,omitempty"`
}

// Advance handles POST /sessions/{userID}/advance.
func (s *Server) Advance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var body AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		s.log(r).Warn("Advance: Invalid request body", "err", err)
		return
	}
	if body.Command == "" {
		body.Command = domain.CommandNext
	}

	payload, err := s.Engine.Advance(r.Context(), userID, body.Command)
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			s.log(r).Error("Advance failed", "user_id", userID, "err", err)
		}
		writeError(w, status, err.Error(), payload)
		return
	}

	if data, err := json.Marshal(payload); err == nil {
		// Key streams by the id the engine accepted.
		s.Streams.Broadcast(payload.UserID, string(data))
	}
	writeJSON(w, http.StatusOK, payload)
}

// GetSession handles GET /sessions/{userID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.Engine.Session(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, StatusFor(err), err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ResetSession handles DELETE /sessions/{userID}.
func (s *Server) ResetSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Reset(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeError(w, StatusFor(err), err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MessageRequest is the body of POST /sessions/{userID}/messages.
type MessageRequest struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

// PostMessage handles POST /sessions/{userID}/messages.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	if s.Inbox == nil {
		writeError(w, http.StatusNotFound, "inbox is disabled", nil)
		return
	}

	var body MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	receipt, err := s.Inbox.Submit(r.Context(), inbox.Message{
		ID:       RequestIDFrom(r.Context()),
		UserID:   chi.URLParam(r, "userID"),
		Username: body.Username,
		Text:     body.Text,
	})
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			s.log(r).Error("Message submit failed", "err", err)
		}
		writeError(w, status, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

// StatusFor maps engine errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownStep), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStepLocked):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) log(r *http.Request) *slog.Logger {
	return s.logger.With("request_id", RequestIDFrom(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, payload *domain.ResponsePayload) {
	writeJSON(w, status, ErrorResponse{Error: msg, Payload: payload})
}

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // UserID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(userID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[userID]; !ok {
		sm.subscribers[userID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[userID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[userID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, userID)
			}
		}
	}
}

// Subscribers returns the number of open streams for the user.
func (sm *StreamManager) Subscribers(userID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[userID])
}

func (sm *StreamManager) Broadcast(userID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[userID] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "user_id", userID)
		}
	}
}

// SubscribeEvents handles GET /sessions/{userID}/events (SSE). Every
// successful advance for the user is pushed as a JSON payload.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	userID, err := sanitize.ID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	ch, cancel := s.Streams.Subscribe(userID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.log(r).Debug("SSE client disconnected", "user_id", userID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: advance\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
