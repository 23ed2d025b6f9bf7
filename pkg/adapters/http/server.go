// Package http exposes ticketflow over HTTP: ticket intake, instance
// inspection, graph rendering and Prometheus metrics.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service is the workflow facade served by the handler.
type Service interface {
	Handle(ctx context.Context, ticket domain.Ticket) (*domain.State, error)
	Inspect(ctx context.Context, instanceID string) (*domain.State, error)
	Instances(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, instanceID string) error
	// Graph renders the workflow graph, overlaid with an instance when
	// instanceID is not empty.
	Graph(ctx context.Context, instanceID string) (string, error)
}

// TaskRequest is the ticketing system's table API envelope.
type TaskRequest struct {
	Result []map[string]any `json:"result"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type server struct {
	service     Service
	logger      *slog.Logger
	maxTextSize int
	maxBodySize int64
}

type options struct {
	logger      *slog.Logger
	gatherer    prometheus.Gatherer
	secret      []byte
	timeout     time.Duration
	maxTextSize int
	maxBodySize int64
}

// Option configures the handler.
type Option func(*options)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics serves gatherer on GET /metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(o *options) {
		o.gatherer = gatherer
	}
}

// WithAuth requires an HS256 bearer token signed with secret on /api routes.
func WithAuth(secret []byte) Option {
	return func(o *options) {
		o.secret = secret
	}
}

// WithRequestTimeout bounds every request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithMaxTextSize bounds the ticket description fields accepted on
// POST /api/task. Values below 1 keep DefaultMaxTextSize.
func WithMaxTextSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTextSize = n
		}
	}
}

// WithMaxBodySize bounds the request body of POST /api/task. Values below 1
// keep DefaultMaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodySize = n
		}
	}
}

// NewHandler creates a new HTTP handler for the service.
func NewHandler(service Service, opts ...Option) http.Handler {
	o := options{logger: slog.Default(), maxTextSize: DefaultMaxTextSize, maxBodySize: DefaultMaxBodySize}
	for _, opt := range opts {
		opt(&o)
	}
	s := &server{service: service, logger: o.logger, maxTextSize: o.maxTextSize, maxBodySize: o.maxBodySize}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if o.timeout > 0 {
		r.Use(middleware.Timeout(o.timeout))
	}

	r.Get("/", s.root)
	r.Get("/health", s.health)
	if o.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		if len(o.secret) > 0 {
			r.Use(RequireBearer(o.secret))
		}
		r.Post("/task", s.executeFlow)
		r.Get("/graph", s.graph)
		r.Get("/instances", s.listInstances)
		r.Get("/instances/{id}", s.getInstance)
		r.Delete("/instances/{id}", s.deleteInstance)
		r.Get("/instances/{id}/graph", s.graph)
	})

	return r
}

func (s *server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "ticketflow is running"})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// executeFlow handles POST /api/task. It runs (or resumes) the instance of
// the first ticket record and returns the final snapshot.
func (s *server) executeFlow(w http.ResponseWriter, r *http.Request) {
	var body TaskRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("execute flow: invalid request body", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Result) == 0 {
		writeError(w, http.StatusBadRequest, "result must contain at least one ticket record")
		return
	}

	ticket, err := domain.TicketFromRecord(body.Result[0])
	if err == nil {
		err = sanitizeTicket(&ticket, s.maxTextSize)
	}
	if err != nil {
		s.logger.Warn("execute flow: ticket rejected", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := s.service.Handle(r.Context(), ticket)
	if err != nil {
		s.logger.Error("Error executing flow", "ticket", ticket.Number, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) listInstances(w http.ResponseWriter, r *http.Request) {
	ids, err := s.service.Instances(r.Context())
	if err != nil {
		s.logger.Error("list instances failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"instances": ids})
}

func (s *server) getInstance(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.Inspect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) deleteInstance(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// graph serves the Mermaid source of the workflow graph, overlaid with the
// instance named in the path if any.
func (s *server) graph(w http.ResponseWriter, r *http.Request) {
	out, err := s.service.Graph(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, out)
}

func (s *server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInstanceNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
