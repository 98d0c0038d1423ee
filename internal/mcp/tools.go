package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// treeOptions are the per-call overrides shared by tree_plan and tree_clean.
func treeOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("input_dir",
			mcp.Required(),
			mcp.Description("Root directory of the document source tree."),
		),
		mcp.WithString("output_dir",
			mcp.Description("Output directory. Defaults to the input directory plus the configured suffix. It is erased and rebuilt on every clean."),
		),
		mcp.WithBoolean("flatten",
			mcp.Description("Collapse the output into one directory and rewrite references in markup files."),
		),
		mcp.WithBoolean("keep_comments",
			mcp.Description("Emit markup files without stripping comments."),
		),
		mcp.WithArray("keep_prefixes",
			mcp.Description("Keep other files whose path (without extension) starts with one of these prefixes."),
			mcp.WithStringItems(),
		),
		mcp.WithArray("keep_extensions",
			mcp.Description("Keep other files whose extension ends with one of these. Replaces the configured list."),
			mcp.WithStringItems(),
		),
		mcp.WithArray("markup_extensions",
			mcp.Description("Extensions of markup files. Replaces the configured list."),
			mcp.WithStringItems(),
		),
		mcp.WithArray("exclude",
			mcp.Description("Glob patterns (relative to input_dir, ** allowed) to skip during discovery. Added to the configured list."),
			mcp.WithStringItems(),
		),
		mcp.WithString("decode_errors",
			mcp.Description("Handling of invalid UTF-8 in markup files."),
			mcp.Enum("strict", "replace", "ignore", "latin1"),
		),
	}
}

func planToolDef() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Preview a clean: list markup files and which other files are used or unused, without writing anything."),
		mcp.WithReadOnlyHintAnnotation(true),
	}
	return mcp.NewTool("tree_plan", append(opts, treeOptions()...)...)
}

func cleanToolDef() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Clean a document source tree: strip comments from markup files, drop unused files and write the result to the output directory."),
		mcp.WithDestructiveHintAnnotation(true),
	}
	return mcp.NewTool("tree_clean", append(opts, treeOptions()...)...)
}

func historyToolDef() mcp.Tool {
	return mcp.NewTool("tree_history",
		mcp.WithDescription("List recorded cleans, newest first, or show the file decisions of one run."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("input_dir",
			mcp.Description("Only list runs of this input directory."),
		),
		mcp.WithString("run_id",
			mcp.Description("Show one run with its per-file decisions."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs (default 20)."),
		),
	)
}
