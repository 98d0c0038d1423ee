package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/hpungsan/texclean/internal/config"
	"github.com/hpungsan/texclean/internal/db"
	"github.com/hpungsan/texclean/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"clean": true, "plan": true, "watch": true,
	"history": true, "serve": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _            _
  | |_ _____ _| |___ __ _ _ _
  |  _/ -_) \ / / -_) _' | ' \
   \__\___/_\_\_\___\__,_|_||_|

  Prune a LaTeX source tree down to what it uses

  Usage: texclean <command> [options]
         texclean --help

  MCP server mode requires piped input.`)
}

// globalDir returns the per-user directory holding config.json and the
// default manifest. TEXCLEAN_HOME overrides ~/.texclean.
func globalDir() (string, error) {
	if dir := os.Getenv("TEXCLEAN_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".texclean"), nil
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	logger := log.New(os.Stderr, "texclean: ", 0)

	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	baseDir, err := globalDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	// CLI mode: known subcommand. Config is loaded per command because the
	// repo config is found relative to the input directory.
	if isCLIMode(os.Args) {
		app := newCLIApp(&appEnv{globalDir: baseDir, logger: logger})
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'texclean --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := runMCP(baseDir, "", logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runMCP serves the MCP tools over stdio. The manifest is opened when
// manifestPath or the config names one; without it tree_history reports
// an error and cleans are not recorded.
func runMCP(baseDir, manifestPath string, logger *log.Logger) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if manifestPath == "" {
		manifestPath = cfg.ManifestPath
	}
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Printf("warning: unknown disabled_tools: %v", unknown)
	}

	if manifestPath != "" {
		database, err := db.Init(manifestPath)
		if err != nil {
			return fmt.Errorf("failed to initialize manifest: %w", err)
		}
		defer database.Close()
		return mcp.Run(database, cfg, Version, logger)
	}
	return mcp.Run(nil, cfg, Version, logger)
}
