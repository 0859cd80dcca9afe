package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/cascadelab/internal/config"
	"github.com/nvandessel/cascadelab/internal/logging"
	"github.com/nvandessel/cascadelab/internal/ratelimit"
	"github.com/nvandessel/cascadelab/internal/store"
)

// Server wraps the MCP SDK server and provides cascadelab tools.
type Server struct {
	server       *sdk.Server
	settings     *config.CascadelabConfig
	store        store.ResultStore
	toolLimiters *ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	exportDir    string
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "cascadelab")
	Version string // Server version

	// Settings supplies defaults for omitted tool parameters and the work
	// budget. Nil means config.Default().
	Settings *config.CascadelabConfig

	// Store receives experiments saved with cascade_run and backs the
	// experiment resources. Nil disables both.
	Store store.ResultStore

	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string

	// ExportDir confines Arrow files requested by tools. Empty disables
	// Arrow export.
	ExportDir string

	Logger *slog.Logger
}

// NewServer creates a new MCP server with cascadelab tools. The server
// takes ownership of cfg.Store and closes it on Close.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		settings:     settings,
		store:        cfg.Store,
		toolLimiters: ratelimit.NewToolLimiters(settings.Limits.WorkPerSecond, settings.Limits.WorkBurst),
		exportDir:    cfg.ExportDir,
		logger:       logger,
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Close releases the store and audit log. It is safe to call twice.
func (s *Server) Close() error {
	var firstErr error
	if s.store != nil {
		firstErr = s.store.Close()
		s.store = nil
	}
	if err := s.auditLogger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.auditLogger = nil
	return firstErr
}
