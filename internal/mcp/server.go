package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/domain/assignment"
	"github.com/rpggio/annotask/internal/domain/catalog"
)

// Engine defines the assignment operations needed by MCP.
type Engine interface {
	NextRecord(ctx context.Context, userID string) (*assignment.NextResult, error)
	AssignBatch(ctx context.Context, req assignment.AssignRequest) ([]string, error)
	Submit(ctx context.Context, req assignment.SubmitRequest) (*assignment.SubmitResult, error)
	AnnotationCount(ctx context.Context, userID string) (int, error)
	AllUsersProgress(ctx context.Context, totalRecords int) (map[string]annotation.Progress, error)
	BatchSize(ctx context.Context) (int, error)
}

// Catalog defines the record lookups needed by MCP.
type Catalog interface {
	Len() int
	IDs() []string
	Record(id string) (catalog.Record, bool)
}

// Config contains server configuration.
type Config struct {
	Engine  Engine
	Catalog Catalog
	Logger  *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "annotask",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(usernameMiddleware())
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, &tools{engine: cfg.Engine, catalog: cfg.Catalog, logger: cfg.Logger})

	return server
}
