package mcpapi

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"
	"github.com/zulandar/planyard/internal/config"
	store "github.com/zulandar/planyard/internal/db"
	"gorm.io/gorm"
)

// Options configures the MCP server.
type Options struct {
	DB      *gorm.DB
	Timeout time.Duration
	Log     *log.Logger
	Version string
}

// deps is shared by every tool.
type deps struct {
	db      *gorm.DB
	timeout time.Duration
	log     *log.Logger
}

func (d deps) scoped(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	return store.Scoped(ctx, d.db, d.timeout)
}

// New creates the MCP server with every planning tool registered.
func New(opts Options) *server.MCPServer {
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultStatementTimeout
	}
	if opts.Log == nil {
		opts.Log = log.New(io.Discard)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	d := deps{db: opts.DB, timeout: opts.Timeout, log: opts.Log}

	s := server.NewMCPServer(
		"planyard",
		opts.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	planGet := &PlanGetTool{deps: d}
	s.AddTool(planGet.Definition(), planGet.Handle)

	commit := &CommitDraftTool{deps: d}
	s.AddTool(commit.Definition(), commit.Handle)

	shift := &ShiftTool{deps: d}
	s.AddTool(shift.Definition(), shift.Handle)

	bump := &BumpTool{deps: d}
	s.AddTool(bump.Definition(), bump.Handle)

	baseline := &BaselineTool{deps: d}
	s.AddTool(baseline.Definition(), baseline.Handle)

	bulk := &BulkFilterTool{deps: d}
	s.AddTool(bulk.Definition(), bulk.Handle)

	return s
}

// ServeStdio runs the server on stdin/stdout until the input closes.
func ServeStdio(opts Options) error {
	return server.ServeStdio(New(opts))
}
