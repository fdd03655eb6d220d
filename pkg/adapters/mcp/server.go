package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/presentation/graph"
	"github.com/aretw0/chatflow/internal/validator"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const activeFlowURI = "chatflow://active-flow"

// SessionResult aligns with the HTTP Session body.
type SessionResult struct {
	Token     string            `json:"token" jsonschema_description:"Opaque cursor to pass to advance"`
	Cursor    domain.Cursor     `json:"cursor" jsonschema_description:"Flow and node the session is on"`
	Payload   *domain.Payload   `json:"payload,omitempty" jsonschema_description:"Text and options to show"`
	Directive *domain.Directive `json:"directive,omitempty" jsonschema_description:"Side effect requested by the node"`
	Ended     bool              `json:"ended" jsonschema_description:"Indicates the session is concluded"`
}

// AdvanceArgs are the arguments of the advance tool.
type AdvanceArgs struct {
	Token    string `json:"token"`
	OptionID string `json:"option_id"`
}

// FlowArgs names a stored flow.
type FlowArgs struct {
	FlowID string `json:"flow_id"`
}

// FlowSummary is one entry of list_flows.
type FlowSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	IsActive bool   `json:"isActive"`
	Nodes    int    `json:"nodes"`
}

// FlowList is the result of list_flows.
type FlowList struct {
	Flows []FlowSummary `json:"flows"`
}

// ValidationResult is the result of validate_flow.
type ValidationResult struct {
	FlowID     string             `json:"flowId"`
	Valid      bool               `json:"valid"`
	Violations []domain.Violation `json:"violations"`
}

// Sessions is the conversation API. *chatflow.Engine satisfies it.
type Sessions interface {
	StartSession(ctx context.Context) (*chatflow.Session, error)
	Advance(ctx context.Context, token, optionID string) (*chatflow.Session, error)
}

// Flows is the read side of the Flow Store. *flowstore.Service satisfies it.
type Flows interface {
	GetActiveFlow(ctx context.Context) (*domain.Flow, error)
	GetFlowByID(ctx context.Context, id string) (*domain.Flow, error)
	GetAllFlows(ctx context.Context) ([]*domain.Flow, error)
}

// Server exposes the engine and the flow store as an MCP Server.
type Server struct {
	sessions  Sessions
	flows     Flows
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions Sessions, flows Flows, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		flows:     flows,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("chatflow-mcp", strings.TrimSpace(chatflow.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a conversation on the active flow and return the first turn."),
		mcp.WithOutputSchema[SessionResult](),
	), mcp.NewStructuredToolHandler(s.handleStartSession))

	s.mcpServer.AddTool(mcp.NewTool("advance",
		mcp.WithDescription("Select an option on the current node and return the next turn."),
		mcp.WithString("token", mcp.Required(), mcp.Description("Token returned by the previous turn")),
		mcp.WithString("option_id", mcp.Required(), mcp.Description("Id of the chosen option")),
		mcp.WithOutputSchema[SessionResult](),
	), mcp.NewStructuredToolHandler(s.handleAdvance))

	s.mcpServer.AddTool(mcp.NewTool("validate_flow",
		mcp.WithDescription("Run every structural check on a stored flow and list the violations."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Flow id")),
		mcp.WithOutputSchema[ValidationResult](),
	), mcp.NewStructuredToolHandler(s.handleValidateFlow))

	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List stored flows, oldest first."),
		mcp.WithOutputSchema[FlowList](),
	), mcp.NewStructuredToolHandler(s.handleListFlows))

	s.mcpServer.AddTool(mcp.NewTool("get_flow_graph",
		mcp.WithDescription("Render a stored flow as a Mermaid flowchart."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Flow id")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		flow, err := s.flows.GetFlowByID(ctx, request.GetString("flow_id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(graph.GenerateMermaid(flow, nil)), nil
	})
}

func (s *Server) handleStartSession(ctx context.Context, request mcp.CallToolRequest, _ struct{}) (SessionResult, error) {
	session, err := s.sessions.StartSession(ctx)
	if err != nil {
		return SessionResult{}, fmt.Errorf("start failed: %w", err)
	}
	return toResult(session), nil
}

func (s *Server) handleAdvance(ctx context.Context, request mcp.CallToolRequest, args AdvanceArgs) (SessionResult, error) {
	clean, err := runner.SanitizeOptionID(args.OptionID)
	if err != nil {
		s.logger.Warn("MCP advance: input rejected", "err", err, "size", len(args.OptionID))
		return SessionResult{}, fmt.Errorf("input rejected: %w", err)
	}

	session, err := s.sessions.Advance(ctx, args.Token, clean)
	if err != nil {
		return SessionResult{}, fmt.Errorf("advance failed: %w", err)
	}
	return toResult(session), nil
}

func (s *Server) handleValidateFlow(ctx context.Context, request mcp.CallToolRequest, args FlowArgs) (ValidationResult, error) {
	flow, err := s.flows.GetFlowByID(ctx, args.FlowID)
	if err != nil {
		return ValidationResult{}, err
	}
	report := validator.Validate(flow)
	violations := report.Violations
	if violations == nil {
		violations = []domain.Violation{}
	}
	return ValidationResult{FlowID: flow.ID, Valid: report.Valid(), Violations: violations}, nil
}

func (s *Server) handleListFlows(ctx context.Context, request mcp.CallToolRequest, _ struct{}) (FlowList, error) {
	flows, err := s.flows.GetAllFlows(ctx)
	if err != nil {
		return FlowList{}, err
	}
	list := FlowList{Flows: make([]FlowSummary, 0, len(flows))}
	for _, f := range flows {
		list.Flows = append(list.Flows, FlowSummary{
			ID:       f.ID,
			Name:     f.Name,
			Version:  f.Version,
			IsActive: f.IsActive,
			Nodes:    len(f.Nodes),
		})
	}
	return list, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(activeFlowURI, "Active Flow Definition",
		mcp.WithMIMEType("application/json"),
	), s.readActiveFlow)
}

func (s *Server) readActiveFlow(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	flow, err := s.flows.GetActiveFlow(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active flow: %w", err)
	}
	if flow == nil {
		return nil, fmt.Errorf("no active flow: %w", domain.ErrNotFound)
	}
	jsonBytes, err := json.Marshal(flow)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      activeFlowURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

func toResult(s *chatflow.Session) SessionResult {
	return SessionResult{
		Token:     s.Token,
		Cursor:    s.Cursor,
		Payload:   s.Payload,
		Directive: s.Directive,
		Ended:     s.Ended(),
	}
}
