package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyleftdev/mathtools/internal/config"
	apperrors "github.com/copyleftdev/mathtools/internal/errors"
	"github.com/copyleftdev/mathtools/internal/logging"
	"github.com/copyleftdev/mathtools/internal/metrics"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server implements the HTTP and JSON-RPC endpoints of the numeric service.
// Every request runs its procedure to completion before responding; nothing
// is shared between requests except the metrics collectors.
type Server struct {
	cfg     *config.Config
	logger  Logger
	numeric *zap.Logger
	metrics *metrics.Recorder
}

// NewServer creates a new server instance with the given config and logger.
// rec may be nil to disable metrics.
func NewServer(cfg *config.Config, logger Logger, rec *metrics.Recorder) *Server {
	numeric := zap.NewNop()
	if l, ok := logger.(*logging.Logger); ok {
		numeric = logging.NewZapLogger(l)
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		numeric: numeric,
		metrics: rec,
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/approx/fit", s.handleFit)
		r.Post("/optimize/grid", s.handleGrid)
		r.Post("/optimize/refine", s.handleRefine)
		r.Post("/integrate", s.handleIntegrate)
		r.Get("/functions", s.handleFunctions)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	var req FitRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, "approx.fit")(s.fit(req))
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	var req GridRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, "optimize.grid")(s.grid(r.Context(), req))
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req RefineRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, "optimize.refine")(s.refine(r.Context(), req))
}

func (s *Server) handleIntegrate(w http.ResponseWriter, r *http.Request) {
	var req IntegrateRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, "integrate")(s.integrate(req))
}

func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.functions())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		apperrors.WriteJSON(w, apperrors.Wrap(err, "invalid request body").WithKind(apperrors.InvalidArgument))
		return false
	}
	return true
}

// respond returns a sink for an operation's (result, error) pair.
func (s *Server) respond(w http.ResponseWriter, method string) func(interface{}, error) {
	return func(result interface{}, err error) {
		if err != nil {
			s.logger.Debug("Operation rejected", map[string]interface{}{
				"method": method,
				"error":  err.Error(),
				"kind":   string(apperrors.KindOf(err)),
			})
			apperrors.WriteJSON(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
