package mcp

import (
	"database/sql"
	"log"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/texclean/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     func() mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"tree_plan": {
		def:     planToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePlan },
	},
	"tree_clean": {
		def:     cleanToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClean },
	},
	"tree_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
}

// AllToolNames returns a sorted list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the texclean tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
// db may be nil, in which case runs are not recorded and tree_history
// reports that the manifest is disabled.
func NewServer(db *sql.DB, cfg *config.Config, version string, logger *log.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"texclean",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, logger)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def(), entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, version string, logger *log.Logger) error {
	s := NewServer(db, cfg, version, logger)
	return server.ServeStdio(s)
}
