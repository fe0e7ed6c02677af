package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/onramp/internal/logging"
	"github.com/aretw0/onramp/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StepsURI is the resource exposing the protocol definition.
const StepsURI = "onramp://steps"

// AdvanceResult is the structured output of the advance tool. Locked and
// unknown steps are reported in Error alongside the payload.
type AdvanceResult struct {
	Payload *domain.ResponsePayload `json:"payload,omitempty" jsonschema_description:"What to show the user"`
	Error   string                  `json:"error,omitempty" jsonschema_description:"Why the command was refused, if it was"`
}

// SessionResult is the structured output of get_session.
type SessionResult struct {
	Found   bool            `json:"found" jsonschema_description:"Whether the user has a stored session"`
	Session *domain.Session `json:"session,omitempty" jsonschema_description:"The stored session"`
}

// ResetResult is the structured output of reset.
type ResetResult struct {
	UserID string `json:"user_id"`
	Reset  bool   `json:"reset"`
}

// Engine defines the interface required by the MCP server.
type Engine interface {
	Advance(ctx context.Context, platformUserID, command string) (*domain.ResponsePayload, error)
	Reset(ctx context.Context, platformUserID string) error
	Session(ctx context.Context, platformUserID string) (*domain.Session, error)
	Steps() []domain.StepDefinition
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("onramp-mcp", version),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
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
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
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

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
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
	// TOOL: advance
	advanceTool := mcp.NewTool("advance",
		mcp.WithDescription("Execute an onboarding step for a user. Use command \"next\" to continue, or a step id."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Platform user id")),
		mcp.WithString("command", mcp.Description("Step id or \"next\" (default)")),
		mcp.WithOutputSchema[AdvanceResult](),
	)
	s.mcpServer.AddTool(advanceTool, mcp.NewStructuredToolHandler(s.handleAdvance))

	// TOOL: get_session
	sessionTool := mcp.NewTool("get_session",
		mcp.WithDescription("Read a user's onboarding progress."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Platform user id")),
		mcp.WithOutputSchema[SessionResult](),
	)
	s.mcpServer.AddTool(sessionTool, mcp.NewStructuredToolHandler(s.handleGetSession))

	// TOOL: reset
	resetTool := mcp.NewTool("reset",
		mcp.WithDescription("Delete a user's progress so onboarding starts over."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Platform user id")),
		mcp.WithOutputSchema[ResetResult](),
	)
	s.mcpServer.AddTool(resetTool, mcp.NewStructuredToolHandler(s.handleReset))
}

func (s *Server) handleAdvance(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (AdvanceResult, error) {
	userID, _ := args["user_id"].(string)
	command, _ := args["command"].(string)
	if command == "" {
		command = domain.CommandNext
	}

	payload, err := s.engine.Advance(ctx, userID, command)
	if err != nil {
		if domain.IsUserFacing(err) && payload != nil {
			return AdvanceResult{Payload: payload, Error: err.Error()}, nil
		}
		s.logger.Error("MCP advance failed", "user_id", userID, "err", err)
		return AdvanceResult{}, fmt.Errorf("advance failed: %w", err)
	}
	return AdvanceResult{Payload: payload}, nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResult, error) {
	userID, _ := args["user_id"].(string)

	session, err := s.engine.Session(ctx, userID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return SessionResult{Found: false}, nil
	}
	if err != nil {
		return SessionResult{}, fmt.Errorf("get session failed: %w", err)
	}
	return SessionResult{Found: true, Session: session}, nil
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ResetResult, error) {
	userID, _ := args["user_id"].(string)
	if err := s.engine.Reset(ctx, userID); err != nil {
		return ResetResult{}, fmt.Errorf("reset failed: %w", err)
	}
	return ResetResult{UserID: userID, Reset: true}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: onramp://steps
	s.mcpServer.AddResource(mcp.NewResource(StepsURI, "Onboarding protocol",
		mcp.WithMIMEType("application/json"),
	), s.readSteps)
}

func (s *Server) readSteps(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(s.engine.Steps())
	if err != nil {
		return nil, fmt.Errorf("failed to encode steps: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      StepsURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
