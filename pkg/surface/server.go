// Package surface hosts live classifiers behind a websocket endpoint. Clients
// stream touch events in and receive state changes and recognised taps back.
package surface

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/offlinefirst/tiptap/pkg/gesture"
	"github.com/offlinefirst/tiptap/pkg/metrics"
)

// Options configures the websocket host.
type Options struct {
	Gesture gesture.Options
	// AutoReset returns a session's classifier to Possible once its gesture is
	// terminal and every touch has lifted.
	AutoReset bool
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
	// OriginPatterns lists the hosts allowed to open a websocket from a browser.
	// Empty means same-origin only.
	OriginPatterns []string
	// EventsPerSecond throttles how fast a session's events are dispatched.
	// Zero disables throttling.
	EventsPerSecond float64
}

// Server routes health, metrics and websocket traffic.
type Server struct {
	opts     Options
	logger   *slog.Logger
	router   chi.Router
	sessions atomic.Int64
}

// New validates opts and builds the router.
func New(opts Options) (*Server, error) {
	if err := opts.Gesture.Validate(); err != nil {
		return nil, err
	}
	if opts.Metrics == nil {
		return nil, errors.New("metrics recorder must be provided")
	}
	if opts.EventsPerSecond < 0 {
		return nil, errors.New("events per second must not be negative")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{opts: opts, logger: logger}
	router := chi.NewRouter()
	router.Get("/healthz", s.handleHealth)
	router.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	router.Get("/ws", s.handleWebSocket)
	s.router = router
	return s, nil
}

// Handler exposes the router for an http.Server.
func (s *Server) Handler() http.Handler { return s.router }

// Sessions reports the number of open websocket sessions.
func (s *Server) Sessions() int { return int(s.sessions.Load()) }

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Sessions: s.Sessions()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
