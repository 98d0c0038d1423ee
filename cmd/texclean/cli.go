package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/texclean/internal/config"
	"github.com/hpungsan/texclean/internal/db"
	"github.com/hpungsan/texclean/internal/errors"
	"github.com/hpungsan/texclean/internal/ops"
	"github.com/hpungsan/texclean/internal/report"
	"github.com/hpungsan/texclean/internal/texdoc"
	"github.com/hpungsan/texclean/internal/watch"
	"github.com/hpungsan/texclean/internal/web"
)

// appEnv carries what every command needs besides its flags.
type appEnv struct {
	globalDir string
	logger    *log.Logger
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:      "texclean",
		Usage:     "Prune a LaTeX source tree down to the files it uses",
		UsageText: "texclean <command> [options] <input_dir>",
		Version:   Version,
		Commands: []*cli.Command{
			cleanCmd(env),
			planCmd(env),
			watchCmd(env),
			historyCmd(env),
			serveCmd(env),
			mcpCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// treeFlags are shared by clean, plan and watch.
func treeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory (default: <input_dir><suffix>)", EnvVars: []string{"TEXCLEAN_OUTPUT"}},
		&cli.StringFlag{Name: "suffix", Usage: "Suffix for the default output directory", EnvVars: []string{"TEXCLEAN_SUFFIX"}},
		&cli.StringSliceFlag{Name: "keep-prefix", Aliases: []string{"k"}, Usage: "Always keep files whose stem starts with this (repeatable)", EnvVars: []string{"TEXCLEAN_KEEP_PREFIXES"}},
		&cli.StringSliceFlag{Name: "keep-ext", Aliases: []string{"e"}, Usage: "Always keep files whose extension ends with this (repeatable)", EnvVars: []string{"TEXCLEAN_KEEP_EXTENSIONS"}},
		&cli.StringSliceFlag{Name: "markup-ext", Usage: "Extensions treated as markup (repeatable)", EnvVars: []string{"TEXCLEAN_MARKUP_EXTENSIONS"}},
		&cli.StringSliceFlag{Name: "exclude", Usage: "Glob of paths to skip, added to the configured ones (repeatable)", EnvVars: []string{"TEXCLEAN_EXCLUDE"}},
		&cli.BoolFlag{Name: "keep-comments", Usage: "Emit markup files without stripping comments", EnvVars: []string{"TEXCLEAN_KEEP_COMMENTS"}},
		&cli.BoolFlag{Name: "flatten", Usage: "Put every output file in one directory and rewrite references", EnvVars: []string{"TEXCLEAN_FLATTEN"}},
		&cli.StringFlag{Name: "separator", Usage: "Replacement for '/' in flattened names", EnvVars: []string{"TEXCLEAN_SEPARATOR"}},
		&cli.StringFlag{Name: "comment-marker", Usage: "Line comment marker", EnvVars: []string{"TEXCLEAN_COMMENT_MARKER"}},
		&cli.StringFlag{Name: "errors", Usage: "Decoding policy: strict|replace|ignore|latin1", EnvVars: []string{"TEXCLEAN_DECODE_ERRORS"}},
		&cli.StringFlag{Name: "collision", Usage: "Flatten collision policy: warn|error", EnvVars: []string{"TEXCLEAN_COLLISION_POLICY"}},
		&cli.IntFlag{Name: "workers", Usage: "Parallel markup readers (0 = GOMAXPROCS)", EnvVars: []string{"TEXCLEAN_WORKERS"}},
		&cli.BoolFlag{Name: "json", Usage: "Print the run as JSON instead of a summary"},
		&cli.StringFlag{Name: "report-md", Usage: "Write a Markdown report to this path"},
		&cli.StringFlag{Name: "report-html", Usage: "Write an HTML report to this path"},
	}
}

func manifestFlag() cli.Flag {
	return &cli.StringFlag{Name: "manifest", Usage: "SQLite manifest recording every run", EnvVars: []string{"TEXCLEAN_MANIFEST"}}
}

// cleanCmd creates the clean command.
func cleanCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "clean",
		Usage:     "Write a cleaned copy of a LaTeX source tree",
		ArgsUsage: "<input_dir>",
		Flags:     append(treeFlags(), manifestFlag()),
		Action: func(c *cli.Context) error {
			inputDir, cfg, opts, err := prepare(env, c)
			if err != nil {
				return outputError(err)
			}

			database, err := openManifest(c, cfg)
			if err != nil {
				return outputError(err)
			}
			if database != nil {
				defer database.Close()
			}

			output, err := ops.Clean(c.Context, opts, ops.CleanInput{
				InputDir:  inputDir,
				OutputDir: c.String("output"),
				Logger:    env.logger,
			})
			if err != nil {
				return outputError(err)
			}
			if database != nil {
				if err := ops.Record(c.Context, database, output); err != nil {
					return outputError(err)
				}
			}

			return finish(c, output)
		},
	}
}

// planCmd creates the plan command.
func planCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Show what clean would keep and drop without writing anything",
		ArgsUsage: "<input_dir>",
		Flags:     treeFlags(),
		Action: func(c *cli.Context) error {
			inputDir, _, opts, err := prepare(env, c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Plan(c.Context, opts, ops.CleanInput{
				InputDir:  inputDir,
				OutputDir: c.String("output"),
				Logger:    env.logger,
			})
			if err != nil {
				return outputError(err)
			}

			return finish(c, output)
		},
	}
}

// watchCmd creates the watch command.
func watchCmd(env *appEnv) *cli.Command {
	flags := append(treeFlags(), manifestFlag(),
		&cli.DurationFlag{Name: "debounce", Value: watch.DefaultDebounce, Usage: "Quiet period before re-running"},
	)
	return &cli.Command{
		Name:      "watch",
		Usage:     "Clean, then clean again whenever the input tree changes",
		ArgsUsage: "<input_dir>",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			inputDir, cfg, opts, err := prepare(env, c)
			if err != nil {
				return outputError(err)
			}

			outputDir := c.String("output")
			if outputDir == "" {
				outputDir, err = ops.DefaultOutputDir(inputDir, opts.OutputSuffix)
				if err != nil {
					return outputError(err)
				}
			}
			if outputDir, err = filepath.Abs(outputDir); err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			database, err := openManifest(c, cfg)
			if err != nil {
				return outputError(err)
			}
			if database != nil {
				defer database.Close()
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			cache, err := texdoc.NewStripCache(texdoc.DefaultCacheSize)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			run := func(ctx context.Context) error {
				output, err := ops.Clean(ctx, opts, ops.CleanInput{
					InputDir:  inputDir,
					OutputDir: outputDir,
					Cache:     cache,
					Logger:    env.logger,
				})
				if err != nil {
					return err
				}
				if database != nil {
					if err := ops.Record(ctx, database, output); err != nil {
						return err
					}
				}
				return finish(c, output)
			}

			if err := run(ctx); err != nil {
				return outputError(err)
			}

			w, err := watch.New(inputDir, watch.Options{
				Debounce: c.Duration("debounce"),
				SkipDirs: []string{outputDir},
				Logger:   env.logger,
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer w.Close()

			env.logger.Printf("watching %s (ctrl-c to stop)", inputDir)
			return w.Run(ctx, run)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List runs recorded in the manifest",
		ArgsUsage: "[run_id]",
		Flags: []cli.Flag{
			manifestFlag(),
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Only runs of this input directory"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Maximum runs to list"},
		},
		Action: func(c *cli.Context) error {
			cwd, err := os.Getwd()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			cfg, err := loadConfig(env, cwd)
			if err != nil {
				return outputError(err)
			}

			database, err := openManifest(c, cfg)
			if err != nil {
				return outputError(err)
			}
			if database == nil {
				return outputError(errors.NewInvalidRequest("no manifest configured (use --manifest or manifest_path)"))
			}
			defer database.Close()

			input := ops.HistoryInput{
				InputDir: c.String("input"),
				Limit:    c.Int("limit"),
			}
			if c.NArg() > 0 {
				input.RunID = c.Args().First()
			}

			output, err := ops.History(c.Context, database, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Browse recorded runs in a local web UI",
		Flags: []cli.Flag{
			manifestFlag(),
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind", EnvVars: []string{"TEXCLEAN_BIND"}},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8765, Usage: "Port to listen on", EnvVars: []string{"TEXCLEAN_PORT"}},
		},
		Action: func(c *cli.Context) error {
			cwd, err := os.Getwd()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			cfg, err := loadConfig(env, cwd)
			if err != nil {
				return outputError(err)
			}

			database, err := openManifest(c, cfg)
			if err != nil {
				return outputError(err)
			}
			if database == nil {
				return outputError(errors.NewInvalidRequest("no manifest configured (use --manifest or manifest_path)"))
			}
			defer database.Close()

			srv, err := web.NewServer(database, Version, c.String("bind"), c.Int("port"), env.logger)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return web.Run(ctx, srv, env.logger)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the texclean tools over MCP (stdio)",
		Flags: []cli.Flag{manifestFlag()},
		Action: func(c *cli.Context) error {
			return runMCP(env.globalDir, c.String("manifest"), env.logger)
		},
	}
}

// prepare resolves the input directory argument, loads the config found
// from it and applies the command-line overrides.
func prepare(env *appEnv, c *cli.Context) (string, *config.Config, ops.Options, error) {
	if c.NArg() != 1 {
		return "", nil, ops.Options{}, errors.NewInvalidRequest("exactly one input directory is required")
	}
	inputDir := c.Args().First()

	cfg, err := loadConfig(env, inputDir)
	if err != nil {
		return "", nil, ops.Options{}, err
	}
	applyFlags(c, cfg)

	opts, err := ops.NewOptions(cfg)
	if err != nil {
		return "", nil, ops.Options{}, err
	}
	return inputDir, cfg, opts, nil
}

func loadConfig(env *appEnv, startDir string) (*config.Config, error) {
	cfg, err := config.LoadWithRepo(env.globalDir, startDir)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg, nil
}

// applyFlags overrides cfg with every flag given explicitly. List flags
// replace the configured list, except exclude which adds to it.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("suffix") {
		cfg.OutputSuffix = c.String("suffix")
	}
	if c.IsSet("keep-prefix") {
		cfg.KeepPrefixes = c.StringSlice("keep-prefix")
	}
	if c.IsSet("keep-ext") {
		cfg.KeepExtensions = c.StringSlice("keep-ext")
	}
	if c.IsSet("markup-ext") {
		cfg.MarkupExtensions = c.StringSlice("markup-ext")
	}
	if c.IsSet("exclude") {
		cfg.Exclude = append(append([]string(nil), cfg.Exclude...), c.StringSlice("exclude")...)
	}
	if c.IsSet("keep-comments") {
		cfg.KeepComments = c.Bool("keep-comments")
	}
	if c.IsSet("flatten") {
		cfg.Flatten = c.Bool("flatten")
	}
	if c.IsSet("separator") {
		cfg.FlattenSeparator = c.String("separator")
	}
	if c.IsSet("comment-marker") {
		cfg.CommentMarker = c.String("comment-marker")
	}
	if c.IsSet("errors") {
		cfg.DecodeErrors = c.String("errors")
	}
	if c.IsSet("collision") {
		cfg.CollisionPolicy = c.String("collision")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
}

// openManifest opens the manifest named by --manifest or the config.
// It returns nil when neither names one.
func openManifest(c *cli.Context, cfg *config.Config) (*sql.DB, error) {
	path := cfg.ManifestPath
	if c.IsSet("manifest") {
		path = c.String("manifest")
	}
	if path == "" {
		return nil, nil
	}
	database, err := db.Init(path)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return database, nil
}

// finish writes the requested reports and prints the run.
func finish(c *cli.Context, output *ops.CleanOutput) error {
	if path := c.String("report-md"); path != "" {
		if err := report.WriteFile(path, []byte(report.Markdown(output))); err != nil {
			return outputError(err)
		}
	}
	if path := c.String("report-html"); path != "" {
		page, err := report.HTML(output)
		if err != nil {
			return outputError(errors.NewInternal(err))
		}
		if err := report.WriteFile(path, page); err != nil {
			return outputError(err)
		}
	}

	if c.Bool("json") {
		return outputJSON(c.App.Writer, output)
	}
	return report.Text(c.App.Writer, output)
}

// outputJSON writes v as indented JSON to w.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats an error for CLI output.
func outputError(err error) error {
	var exitErr cli.ExitCoder
	if stderrors.As(err, &exitErr) {
		return err
	}
	var cleanErr *errors.CleanError
	if stderrors.As(err, &cleanErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", cleanErr.Code, cleanErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
