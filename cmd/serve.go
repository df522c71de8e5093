package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/takeshy/gitlabuploader/internal/events"
	"github.com/takeshy/gitlabuploader/internal/gitlab"
	"github.com/takeshy/gitlabuploader/internal/history"
	"github.com/takeshy/gitlabuploader/internal/logging"
	mcpserver "github.com/takeshy/gitlabuploader/internal/mcp"
	"github.com/takeshy/gitlabuploader/internal/session"
)

var (
	serveTransport string
	servePort      int
	serveAPIKey    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server for AI assistant integration",
	Long: `Start a Model Context Protocol (MCP) server that lets AI assistants
start, watch and stop directory uploads to GitLab.

Transport options:
  stdio: Standard input/output (default, for local CLI integration)
  sse:   Server-Sent Events over HTTP (for remote connections, requires API key)
  http:  Streamable HTTP (for bidirectional HTTP communication, requires API key)

Examples:
  # Start stdio server (for Claude Desktop config)
  gitlabuploader serve

  # Start HTTP server on port 8080 (API key required)
  gitlabuploader serve --transport http --port 8080 --serve-api-key mysecretkey

  # Or use environment variable for API key
  export GITLABUPLOADER_SERVE_API_KEY=mysecretkey
  gitlabuploader serve --transport sse --port 8080

Claude Desktop Configuration (~/.config/claude/claude_desktop_config.json):
  {
    "mcpServers": {
      "gitlabuploader": {
        "command": "/path/to/gitlabuploader",
        "args": ["serve"],
        "env": {
          "GITLAB_URL": "https://gitlab.example.com"
        }
      }
    }
  }`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", "stdio", "Transport type: stdio, sse, or http")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port for HTTP/SSE server")
	serveCmd.Flags().StringVar(&serveAPIKey, "serve-api-key", "", "API key for HTTP authentication (or GITLABUPLOADER_SERVE_API_KEY env var)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.NewDefault()

	sm, err := newSettingsManager()
	if err != nil {
		return err
	}

	// History is optional for the server
	store, err := history.Open(filepath.Join(sm.Dir(), history.FileName), log)
	if err != nil {
		log.Warn().Err(err).Msg("upload history is disabled")
	} else {
		defer store.Close()
		if err := store.Subscribe(events.GlobalBus); err != nil {
			return fmt.Errorf("failed to subscribe history: %w", err)
		}
		defer store.Unsubscribe(events.GlobalBus)
	}

	config := mcpserver.ServerConfig{
		BaseURL:  gitlabURL,
		Settings: sm,
		Sessions: session.NewManager(gitlab.NewUploader(nil), events.GlobalBus, log),
		History:  store,
		Logger:   log,
	}

	server, err := mcpserver.NewServer(config, Version)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	switch serveTransport {
	case "stdio":
		go func() {
			<-sigChan
			cancel()
		}()
		fmt.Fprintln(os.Stderr, "Starting MCP server on stdio...")
		return server.RunStdio(ctx)

	case "sse":
		return runHTTPServerWithShutdown(server.NewHTTPHandler(), "SSE", sigChan, log)

	case "http":
		return runHTTPServerWithShutdown(server.NewStreamableHTTPHandler(), "HTTP", sigChan, log)

	default:
		return fmt.Errorf("unknown transport: %s (must be stdio, sse, or http)", serveTransport)
	}
}

func runHTTPServerWithShutdown(handler http.Handler, transportName string, sigChan chan os.Signal, log *logging.Logger) error {
	httpAPIKey := serveAPIKey
	if httpAPIKey == "" {
		httpAPIKey = os.Getenv("GITLABUPLOADER_SERVE_API_KEY")
	}

	// The server can push GitLab tokens around, so HTTP is never open
	if httpAPIKey == "" {
		return fmt.Errorf("API key required for HTTP server. Use --serve-api-key or set GITLABUPLOADER_SERVE_API_KEY environment variable")
	}

	handler = mcpserver.APIKeyMiddleware(httpAPIKey, log, handler)

	addr := fmt.Sprintf(":%d", servePort)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on signal
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	fmt.Fprintf(os.Stderr, "Starting MCP %s server on http://localhost%s (API key authentication enabled)\n", transportName, addr)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
