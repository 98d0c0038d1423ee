package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"log"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/texclean/internal/config"
	"github.com/hpungsan/texclean/internal/errors"
	"github.com/hpungsan/texclean/internal/ops"
	"github.com/hpungsan/texclean/internal/texdoc"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	cache  *texdoc.StripCache
	logger *log.Logger
}

// NewHandlers creates a new Handlers instance. db and logger may be nil.
func NewHandlers(db *sql.DB, cfg *config.Config, logger *log.Logger) *Handlers {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cache, err := texdoc.NewStripCache(texdoc.DefaultCacheSize)
	if err != nil {
		cache = nil
	}
	return &Handlers{db: db, cfg: cfg, cache: cache, logger: logger}
}

// TreeRequest represents the arguments for tree_plan and tree_clean.
type TreeRequest struct {
	InputDir         string   `json:"input_dir"`
	OutputDir        string   `json:"output_dir,omitempty"`
	Flatten          *bool    `json:"flatten,omitempty"`
	KeepComments     *bool    `json:"keep_comments,omitempty"`
	KeepPrefixes     []string `json:"keep_prefixes,omitempty"`
	KeepExtensions   []string `json:"keep_extensions,omitempty"`
	MarkupExtensions []string `json:"markup_extensions,omitempty"`
	Exclude          []string `json:"exclude,omitempty"`
	DecodeErrors     string   `json:"decode_errors,omitempty"`
}

// HistoryRequest represents the arguments for tree_history.
type HistoryRequest struct {
	InputDir string `json:"input_dir,omitempty"`
	RunID    string `json:"run_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// HandlePlan handles the tree_plan tool call.
func (h *Handlers) HandlePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, opts, err := h.treeInput(req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Plan(ctx, opts, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleClean handles the tree_clean tool call.
func (h *Handlers) HandleClean(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, opts, err := h.treeInput(req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Clean(ctx, opts, input)
	if err != nil {
		return errorResult(err), nil
	}

	if h.db != nil {
		if err := ops.Record(ctx, h.db, result); err != nil {
			// The tree is already written; report the run anyway.
			if h.logger != nil {
				h.logger.Printf("record run %s: %v", result.RunID, err)
			}
		}
	}
	return successResult(result)
}

// HandleHistory handles the tree_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.db == nil {
		return errorResult(errors.NewInvalidRequest("run manifest is disabled (set manifest_path)")), nil
	}
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.History(ctx, h.db, ops.HistoryInput{
		InputDir: input.InputDir,
		RunID:    input.RunID,
		Limit:    input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// treeInput decodes a tree request and layers its overrides over the
// server configuration.
func (h *Handlers) treeInput(req mcp.CallToolRequest) (ops.CleanInput, ops.Options, error) {
	input, err := decode[TreeRequest](req)
	if err != nil {
		return ops.CleanInput{}, ops.Options{}, errors.NewInvalidRequest(err.Error())
	}
	if input.InputDir == "" {
		return ops.CleanInput{}, ops.Options{}, errors.NewInvalidRequest("input_dir is required")
	}

	cfg := *h.cfg
	if input.Flatten != nil {
		cfg.Flatten = *input.Flatten
	}
	if input.KeepComments != nil {
		cfg.KeepComments = *input.KeepComments
	}
	if input.KeepPrefixes != nil {
		cfg.KeepPrefixes = input.KeepPrefixes
	}
	if input.KeepExtensions != nil {
		cfg.KeepExtensions = input.KeepExtensions
	}
	if input.MarkupExtensions != nil {
		cfg.MarkupExtensions = input.MarkupExtensions
	}
	if len(input.Exclude) > 0 {
		cfg.Exclude = append(append([]string(nil), h.cfg.Exclude...), input.Exclude...)
	}
	if input.DecodeErrors != "" {
		cfg.DecodeErrors = input.DecodeErrors
	}

	opts, err := ops.NewOptions(&cfg)
	if err != nil {
		return ops.CleanInput{}, ops.Options{}, err
	}
	return ops.CleanInput{
		InputDir:  input.InputDir,
		OutputDir: input.OutputDir,
		Cache:     h.cache,
		Logger:    h.logger,
	}, opts, nil
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var cleanErr *errors.CleanError
	if stderrors.As(err, &cleanErr) {
		// Wrapped errors keep their context in the message
		message := cleanErr.Message
		if err != error(cleanErr) {
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    cleanErr.Code,
			"message": message,
			"status":  cleanErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like SQL errors
		if cleanErr.Code != errors.ErrInternal && cleanErr.Details != nil {
			errorObj["details"] = cleanErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
