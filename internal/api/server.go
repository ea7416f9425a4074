package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/webshot/internal/capture"
	"github.com/JakeFAU/webshot/internal/config"
	"github.com/JakeFAU/webshot/internal/metrics"
)

const (
	missingURLsMessage = "Missing 'urls' in request body"
	urlsNotListMessage = "'urls' must be a list of strings"

	maxBodyBytes  = 1 << 20
	readyzTimeout = 2 * time.Second
)

// Screenshotter runs one batch and returns one result per input URL, in order.
type Screenshotter interface {
	Run(ctx context.Context, rawURLs []string) []capture.Result
}

// RequestIDGenerator issues IDs used to correlate request logs.
type RequestIDGenerator interface {
	NewRequestID() string
}

// ReadinessCheck reports whether an optional downstream is reachable.
type ReadinessCheck struct {
	Name  string
	Check func(context.Context) error
}

// Server wires HTTP handlers to the screenshot pipeline.
type Server struct {
	router         chi.Router
	pipeline       Screenshotter
	idGen          RequestIDGenerator
	requestTimeout time.Duration
	checks         []ReadinessCheck
	logger         *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	pipeline Screenshotter,
	idGen RequestIDGenerator,
	cfg config.Config,
	logger *zap.Logger,
	checks ...ReadinessCheck,
) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if idGen == nil {
		return nil, fmt.Errorf("request id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	index, err := newIndexHandler()
	if err != nil {
		return nil, err
	}

	s := &Server{
		pipeline:       pipeline,
		idGen:          idGen,
		requestTimeout: cfg.RequestTimeout(),
		checks:         checks,
		logger:         logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware(idGen))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/", index)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	prefix := strings.TrimRight(cfg.Screenshot.URLPrefix, "/")
	r.Method(http.MethodGet, prefix+"/*", http.StripPrefix(prefix, screenshotFiles(cfg.Screenshot.Dir)))

	r.Post("/screenshot", s.screenshot)

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
	defer cancel()
	failures := map[string]string{}
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			failures[c.Name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failures": failures})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) screenshot(w http.ResponseWriter, r *http.Request) {
	urls, msg := decodeScreenshotRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if len(urls) == 0 {
		writeJSON(w, http.StatusOK, []capture.Result{})
		return
	}

	// The batch runs to completion even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	s.logger.Info("screenshot request received",
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.Int("urls", len(urls)),
	)
	writeJSON(w, http.StatusOK, s.pipeline.Run(ctx, urls))
}

// decodeScreenshotRequest returns the URL list, or a client-facing error message.
// A null or empty list is valid and yields no URLs; null elements are rejected.
func decodeScreenshotRequest(body io.Reader) ([]string, string) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&fields); err != nil || len(fields) == 0 {
		return nil, missingURLsMessage
	}
	raw, ok := fields["urls"]
	if !ok {
		return nil, missingURLsMessage
	}
	var items []*string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, urlsNotListMessage
	}
	urls := make([]string, len(items))
	for i, item := range items {
		if item == nil {
			return nil, urlsNotListMessage
		}
		urls[i] = *item
	}
	return urls, ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
