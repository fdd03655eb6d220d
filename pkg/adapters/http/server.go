package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/presentation/graph"
	"github.com/aretw0/chatflow/internal/validator"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/flowstore"
	"github.com/aretw0/chatflow/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// Sessions is the visitor-facing conversation API. *chatflow.Engine satisfies it.
type Sessions interface {
	StartSession(ctx context.Context) (*chatflow.Session, error)
	Advance(ctx context.Context, token, optionID string) (*chatflow.Session, error)
}

// AdvanceRequest is the body of POST /sessions/advance.
type AdvanceRequest struct {
	Token    string `json:"token"`
	OptionID string `json:"optionId"`
}

// ValidationReport is the body of POST /flows/{id}/validate.
type ValidationReport struct {
	FlowID     string             `json:"flowId"`
	Valid      bool               `json:"valid"`
	Violations []domain.Violation `json:"violations"`
}

// Server serves the chat widget and the flow admin API.
type Server struct {
	Sessions Sessions
	Flows    *flowstore.Service
	Streams  *StreamManager

	logger  *slog.Logger
	metrics http.Handler
	version string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts h (usually promhttp) on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates the HTTP handler. Requests are validated against the
// embedded OpenAPI document before they reach a route.
func NewHandler(sessions Sessions, flows *flowstore.Service, opts ...Option) (http.Handler, error) {
	server := &Server{
		Sessions: sessions,
		Flows:    flows,
		Streams:  NewStreamManager(),
		logger:   logging.NewNop(),
		version:  "unknown",
	}
	for _, opt := range opts {
		opt(server)
	}
	server.Streams.logger = server.logger

	doc, err := Spec()
	if err != nil {
		return nil, err
	}
	if doc.Info != nil {
		server.version = doc.Info.Version
	}
	router, err := newRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build OpenAPI router: %w", err)
	}

	r := chi.NewRouter()
	r.Use(validateRequests(router, server.logger))

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if server.metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.metrics)
	}

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/events", server.SubscribeEvents)

	r.Post("/sessions", server.StartSession)
	r.Post("/sessions/advance", server.AdvanceSession)

	r.Get("/active-flow", server.GetActiveFlow)
	r.Route("/flows", func(r chi.Router) {
		r.Get("/", server.ListFlows)
		r.Post("/", server.CreateFlow)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", server.GetFlow)
			r.Put("/", server.ImportFlow)
			r.Patch("/", server.UpdateFlow)
			r.Delete("/", server.DeleteFlow)
			r.Post("/activate", server.ActivateFlow)
			r.Post("/validate", server.ValidateFlow)
			r.Get("/graph", server.GetFlowGraph)
		})
	})

	return enableCORS(r), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Chatflow API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"app":         "chatflow-http",
		"version":     strings.TrimSpace(chatflow.Version),
		"api_version": s.version,
	})
}

// StartSession handles the POST /sessions request.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.Sessions.StartSession(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusCreated, session)
}

// AdvanceSession handles the POST /sessions/advance request.
func (s *Server) AdvanceSession(w http.ResponseWriter, r *http.Request) {
	var body AdvanceRequest
	if !s.decode(w, r, &body) {
		return
	}

	optionID, err := runner.SanitizeOptionID(body.OptionID)
	if err != nil {
		writeJSON(w, s.logger, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}

	session, err := s.Sessions.Advance(r.Context(), body.Token, optionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, session)
}

// ListFlows handles the GET /flows request.
func (s *Server) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.Flows.GetAllFlows(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if flows == nil {
		flows = []*domain.Flow{}
	}
	writeJSON(w, s.logger, http.StatusOK, flows)
}

// CreateFlow handles the POST /flows request.
func (s *Server) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var flow domain.Flow
	if !s.decode(w, r, &flow) {
		return
	}
	saved, err := s.Flows.SaveFlow(r.Context(), &flow)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Streams.Broadcast(Event{Type: EventFlowSaved, FlowID: saved.ID, Version: saved.Version})
	writeJSON(w, s.logger, http.StatusCreated, saved)
}

// GetActiveFlow handles the GET /active-flow request.
func (s *Server) GetActiveFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := s.Flows.GetActiveFlow(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if flow == nil {
		s.writeError(w, r, fmt.Errorf("no active flow: %w", domain.ErrNotFound))
		return
	}
	writeJSON(w, s.logger, http.StatusOK, flow)
}

// GetFlow handles the GET /flows/{id} request.
func (s *Server) GetFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.flowID(w, r)
	if !ok {
		return
	}
	flow, err := s.Flows.GetFlowByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, flow)
}

// ImportFlow handles the PUT /flows/{id} request. The path id wins over the body.
func (s *Server) ImportFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.flowID(w, r)
	if !ok {
		return
	}
	var flow domain.Flow
	if !s.decode(w, r, &flow) {
		return
	}
	flow.ID = id

	saved, err := s.Flows.ImportFlow(r.Context(), &flow)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Streams.Broadcast(Event{Type: EventFlowSaved, FlowID: saved.ID, Version: saved.Version})
	writeJSON(w, s.logger, http.StatusOK, saved)
}

// UpdateFlow handles the PATCH /flows/{id} request.
func (s *Server) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.flowID(w, r)
	if !ok {
		return
	}
	var patch flowstore.FlowPatch
	if !s.decode(w, r, &patch) {
		return
	}

	updated, err := s.Flows.UpdateFlow(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Streams.Broadcast(Event{Type: EventFlowSaved, FlowID: updated.ID, Version: updated.Version})
	writeJSON(w, s.logger, http.StatusOK, updated)
}

// DeleteFlow handles the DELETE /flows/{id} request.
func (s *Server) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.flowID(w, r)
	if !ok {
		return
	}
	if err := s.Flows.DeleteFlow(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Streams.Broadcast(Event{Type: EventFlowDeleted, FlowID: id})
	w.WriteHeader(http.StatusNoContent)
}

// ActivateFlow handles the POST /flows/{id}/activate request.
func (s *Server) ActivateFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.flowID(w, r)
	if !ok {
		return
	}
	if err := s.Flows.SetActiveFlow(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	flow, err := s.Flows.GetFlowByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Streams.Broadcast(Event{Type: EventFlowActivated, FlowID: flow.ID, Version: flow.Version})
	writeJSON(w, s.logger, http.StatusOK, flow)
}

// ValidateFlow handles the POST /flows/{id}/validate request.
// It reports every violation, warnings included, and never fails on them.
func (s *Server) ValidateFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.flowID(w, r)
	if !ok {
		return
	}
	flow, err := s.Flows.GetFlowByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report := validator.Validate(flow)
	violations := report.Violations
	if violations == nil {
		violations = []domain.Violation{}
	}
	writeJSON(w, s.logger, http.StatusOK, ValidationReport{
		FlowID:     flow.ID,
		Valid:      report.Valid(),
		Violations: violations,
	})
}

// GetFlowGraph handles the GET /flows/{id}/graph request.
func (s *Server) GetFlowGraph(w http.ResponseWriter, r *http.Request) {
	id, ok := s.flowID(w, r)
	if !ok {
		return
	}
	flow, err := s.Flows.GetFlowByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(graph.GenerateMermaid(flow, nil)))
}

// -- Helpers --

func (s *Server) flowID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		writeJSON(w, s.logger, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid flow id: %v", err), Code: "bad_request"})
		return "", false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, s.logger, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "bad_request"})
		s.logger.Debug("invalid request body", "path", r.URL.Path, "err", err)
		return false
	}
	return true
}
