package mcp

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/hybridindex/internal/indexer"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "hybridindex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"

	// StatusNotification is sent to clients on every index status transition
	// of the default workspace
	StatusNotification = "notifications/index_status"
)

// Workspaces resolves a workspace root to its index service
type Workspaces interface {
	Service(rootPath string) (indexer.Service, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp         *server.MCPServer
	workspaces  Workspaces
	defaultRoot string
	logger      *slog.Logger
}

type toolEntry struct {
	tool    mcp.Tool
	handler server.ToolHandlerFunc
}

// NewServer creates a new MCP server. Tools without a path argument act on
// defaultRoot.
func NewServer(workspaces Workspaces, defaultRoot string, logger *slog.Logger) *Server {
	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		workspaces:  workspaces,
		defaultRoot: defaultRoot,
		logger:      logging.OrDefault(logger),
	}
	s.registerTools()
	return s
}

// Serve runs the MCP protocol over in and out until ctx is done or in is
// closed. Status transitions of the default workspace are pushed to clients
// as notifications.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	if svc, err := s.workspaces.Service(s.defaultRoot); err == nil {
		unsubscribe := svc.Subscribe(s.notifyStatus)
		defer unsubscribe()
	} else {
		s.logger.Warn("default workspace unavailable", slog.String("root", s.defaultRoot), slog.String("error", err.Error()))
	}

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("MCP server started", slog.String("root", s.defaultRoot))
	return stdio.Listen(ctx, in, out)
}

func (s *Server) notifyStatus(st types.IndexStatus) {
	s.mcp.SendNotificationToAllClients(StatusNotification, map[string]any{
		"state":        string(st.State),
		"totalFiles":   st.TotalFiles,
		"indexedFiles": st.IndexedFiles,
		"paused":       st.Paused,
		"backend":      string(st.Backend),
		"lastError":    st.LastError,
	})
}

// tools lists every tool with its handler
func (s *Server) tools() []toolEntry {
	return []toolEntry{
		{indexWorkspaceTool(), s.handleIndexWorkspace},
		{refreshPathsTool(), s.handleRefreshPaths},
		{indexStatusTool(), s.handleIndexStatus},
		{pauseIndexTool(), s.handlePauseIndex},
		{resumeIndexTool(), s.handleResumeIndex},
		{rebuildIndexTool(), s.handleRebuildIndex},
		{deleteIndexTool(), s.handleDeleteIndex},
		{indexDiagnosticsTool(), s.handleIndexDiagnostics},
		{searchCodeTool(), s.handleSearchCode},
		{getContextTool(), s.handleGetContext},
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	for _, t := range s.tools() {
		s.mcp.AddTool(t.tool, t.handler)
	}
}
