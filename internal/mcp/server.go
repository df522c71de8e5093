package mcp

import (
	"context"
	"net/http"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/takeshy/gitlabuploader/internal/gitlab"
	"github.com/takeshy/gitlabuploader/internal/history"
	"github.com/takeshy/gitlabuploader/internal/logging"
	"github.com/takeshy/gitlabuploader/internal/session"
	"github.com/takeshy/gitlabuploader/internal/settings"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	BaseURL  string // default GitLab URL when a tool call omits it
	Settings *settings.Manager
	Sessions *session.Manager
	History  *history.Store // optional
	Logger   *logging.Logger
}

// Server wraps the MCP server with uploader-specific functionality
type Server struct {
	mcpServer *mcp.Server
	config    ServerConfig

	mu      sync.Mutex
	tracker *tracker
}

// NewServer creates a new MCP server
func NewServer(config ServerConfig, version string) (*Server, error) {
	if config.BaseURL == "" {
		config.BaseURL = gitlab.DefaultBaseURL
	}
	if config.Logger == nil {
		config.Logger = logging.Nop()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "gitlabuploader",
		Version: version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		config:    config,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "start_upload",
		Description: "Upload every file under a local directory to a GitLab repository, one commit per file on the main branch. Stops any upload already running. Missing token and project ID are taken from the saved settings.",
	}, s.handleStartUpload)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "upload_status",
		Description: "Show the log lines and progress percentage of the current or last upload.",
	}, s.handleUploadStatus)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "stop_upload",
		Description: "Stop the running upload. Files already committed stay in the repository.",
	}, s.handleStopUpload)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_settings",
		Description: "Show the saved project ID and a masked access token.",
	}, s.handleGetSettings)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "clear_settings",
		Description: "Delete the saved access token and project ID.",
	}, s.handleClearSettings)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_history",
		Description: "List recent upload sessions.",
	}, s.handleListHistory)
}

// RunStdio runs the server using stdio transport
func (s *Server) RunStdio(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// NewHTTPHandler creates an HTTP handler for SSE transport
func (s *Server) NewHTTPHandler() http.Handler {
	return mcp.NewSSEHandler(func(req *http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

// NewStreamableHTTPHandler creates a streamable HTTP handler
func (s *Server) NewStreamableHTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

// Shutdown stops a running upload
func (s *Server) Shutdown() {
	s.config.Sessions.Stop()
}

// tracker buffers the events of one session for status polling
type tracker struct {
	session *session.Session

	mu      sync.Mutex
	logs    []LogEntry
	percent int
	done    bool
}

func track(sess *session.Session) *tracker {
	t := &tracker{session: sess}
	go func() {
		session.Drain(sess, func(ev session.Event) {
			t.mu.Lock()
			defer t.mu.Unlock()
			if ev.IsProgress {
				t.percent = ev.Percent
				return
			}
			t.logs = append(t.logs, LogEntry{
				Tag:     ev.Log.Tag.String(),
				Message: ev.Log.Message,
				Time:    ev.Log.Time.Format("15:04:05"),
			})
		})
		<-sess.Done()
		t.mu.Lock()
		t.done = true
		t.mu.Unlock()
	}()
	return t
}

func (t *tracker) snapshot() (logs []LogEntry, percent int, done bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	logs = make([]LogEntry, len(t.logs))
	copy(logs, t.logs)
	return logs, t.percent, t.done
}
