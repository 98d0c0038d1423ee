package ops

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/texclean/internal/config"
	"github.com/hpungsan/texclean/internal/errors"
	"github.com/hpungsan/texclean/internal/texdoc"
	"github.com/hpungsan/texclean/internal/tree"
)

// CleanInput contains parameters for the Plan and Clean operations.
type CleanInput struct {
	InputDir  string // required
	OutputDir string // optional, default: <abs input dir><suffix>
	DryRun    bool   // Clean stops after planning

	// Cache memoizes comment stripping across runs. Optional.
	Cache *texdoc.StripCache

	// Logger receives progress and warnings. Nil disables logging.
	Logger *log.Logger
}

// EmitItem is one file of the output tree.
type EmitItem struct {
	Source   string `json:"source"`
	Dest     string `json:"dest"`
	Category string `json:"category"`

	// Content holds the bytes of a markup file. Nil means copy Source as is.
	Content []byte      `json:"-"`
	Mode    fs.FileMode `json:"-"`
}

// CleanOutput contains the result of Plan or Clean.
type CleanOutput struct {
	RunID        string             `json:"run_id"`
	InputDir     string             `json:"input_dir"`
	OutputDir    string             `json:"output_dir"`
	Flatten      bool               `json:"flatten"`
	KeepComments bool               `json:"keep_comments"`
	DryRun       bool               `json:"dry_run"`
	Markup       []texdoc.Rename    `json:"markup"`
	Used         []texdoc.Decision  `json:"used"`
	Unused       []texdoc.Decision  `json:"unused"`
	Collisions   []texdoc.Collision `json:"collisions,omitempty"`
	FilesWritten int                `json:"files_written"`
	StartedAt    int64              `json:"started_at"`
	DurationMS   int64              `json:"duration_ms"`

	items []EmitItem
}

// Items returns the planned output files in write order: markup files first,
// then used other files, each in discovery order.
func (o *CleanOutput) Items() []EmitItem {
	return append([]EmitItem(nil), o.items...)
}

// document is one markup file after reading.
type document struct {
	text    string // searchable text: decoded, stripped, rewritten
	content []byte // bytes to write
	mode    fs.FileMode
}

// Plan runs discovery, comment stripping, path planning and usage resolution
// without touching the output directory.
func Plan(ctx context.Context, opts Options, input CleanInput) (*CleanOutput, error) {
	started := time.Now()

	outputDir := input.OutputDir
	if outputDir == "" {
		var err error
		outputDir, err = DefaultOutputDir(input.InputDir, opts.OutputSuffix)
		if err != nil {
			return nil, err
		}
	}
	dirs, err := ValidateDirs(input.InputDir, outputDir)
	if err != nil {
		return nil, err
	}

	codec, err := texdoc.NewCodec(opts.DecodeErrors)
	if err != nil {
		return nil, err
	}

	discoverOpts := tree.Options{Exclude: opts.Exclude, Logger: input.Logger}
	if dirs.Nested {
		discoverOpts.SkipDirs = []string{dirs.Output}
	}
	paths, err := tree.Discover(dirs.Input, discoverOpts)
	if err != nil {
		return nil, errors.NewUnreadable(input.InputDir, err)
	}
	classified := tree.Classify(paths, opts.MarkupExtensions)
	logf(input.Logger, "found %d markup and %d other files in %s", len(classified.Markup), len(classified.Other), dirs.Input)

	markupRenames := texdoc.PlanRenames(classified.Markup, opts.Flatten, opts.FlattenSeparator)
	otherRenames := texdoc.PlanRenames(classified.Other, opts.Flatten, opts.FlattenSeparator)

	var rewriter *texdoc.Rewriter
	if opts.Flatten {
		rewriter = texdoc.NewRewriter(append(append([]texdoc.Rename(nil), markupRenames...), otherRenames...))
	}

	docs, err := readDocuments(ctx, opts, dirs.Input, classified.Markup, codec, rewriter, input.Cache)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.text
	}
	used, unused := texdoc.Resolve(opts.rules(), otherRenames, texts)

	emitted := append([]texdoc.Rename(nil), markupRenames...)
	for _, d := range used {
		emitted = append(emitted, texdoc.Rename{Old: d.Path, New: d.OutPath})
	}
	collisions := texdoc.FindCollisions(emitted)
	if len(collisions) > 0 {
		if opts.CollisionPolicy == config.CollisionError {
			c := collisions[0]
			return nil, errors.NewNameCollision(c.Target, c.Sources)
		}
		for _, c := range collisions {
			logf(input.Logger, "warning: %v map to %s; last one wins", c.Sources, c.Target)
		}
	}

	items := make([]EmitItem, 0, len(markupRenames)+len(used))
	for i, r := range markupRenames {
		items = append(items, EmitItem{
			Source:   r.Old,
			Dest:     r.New,
			Category: tree.Markup.String(),
			Content:  docs[i].content,
			Mode:     docs[i].mode,
		})
	}
	for _, d := range used {
		items = append(items, EmitItem{
			Source:   d.Path,
			Dest:     d.OutPath,
			Category: tree.Other.String(),
		})
	}

	runID, err := newRunID(started)
	if err != nil {
		return nil, err
	}

	return &CleanOutput{
		RunID:        runID,
		InputDir:     dirs.Input,
		OutputDir:    dirs.Output,
		Flatten:      opts.Flatten,
		KeepComments: opts.KeepComments,
		DryRun:       true,
		Markup:       markupRenames,
		Used:         used,
		Unused:       unused,
		Collisions:   collisions,
		StartedAt:    started.Unix(),
		DurationMS:   time.Since(started).Milliseconds(),
		items:        items,
	}, nil
}

// Clean plans the run and, unless DryRun is set, recreates the output
// directory and writes every planned file into it.
func Clean(ctx context.Context, opts Options, input CleanInput) (*CleanOutput, error) {
	started := time.Now()

	out, err := Plan(ctx, opts, input)
	if err != nil {
		return nil, err
	}
	if input.DryRun {
		return out, nil
	}

	if err := Emit(ctx, out, input.Logger); err != nil {
		return nil, err
	}
	out.DryRun = false
	out.DurationMS = time.Since(started).Milliseconds()
	logf(input.Logger, "wrote %d files to %s (%d unused)", out.FilesWritten, out.OutputDir, len(out.Unused))
	return out, nil
}

// readDocuments reads, decodes and cleans every markup file with up to
// opts.Workers goroutines. The result keeps the order of files.
func readDocuments(ctx context.Context, opts Options, root string, files []tree.SourceFile, codec texdoc.Codec, rewriter *texdoc.Rewriter, cache *texdoc.StripCache) ([]document, error) {
	docs := make([]document, len(files))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}

	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := readDocument(root, f.Path, opts, codec, rewriter, cache)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}

	// The group keeps the first error; a failed read cancels gctx before any
	// sibling can report a context error.
	if err := g.Wait(); err != nil {
		if isCleanError(err) {
			return nil, err
		}
		return nil, errors.NewCancelled("clean")
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("clean")
	}
	return docs, nil
}

func readDocument(root, rel string, opts Options, codec texdoc.Codec, rewriter *texdoc.Rewriter, cache *texdoc.StripCache) (document, error) {
	path := filepath.Join(root, filepath.FromSlash(rel))

	info, err := os.Stat(path)
	if err != nil {
		return document{}, errors.NewUnreadable(rel, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return document{}, errors.NewUnreadable(rel, err)
	}

	text, err := codec.Decode(rel, raw)
	if err != nil {
		return document{}, err
	}

	doc := document{mode: info.Mode().Perm()}
	if opts.KeepComments && rewriter == nil {
		doc.text = text
		doc.content = raw
		return doc, nil
	}

	if !opts.KeepComments {
		text = cache.Strip(text, opts.CommentMarker)
	}
	text = rewriter.Rewrite(text)

	content, err := codec.Encode(text)
	if err != nil {
		return document{}, err
	}
	doc.text = text
	doc.content = content
	return doc, nil
}

// newRunID returns a time-ordered ULID for the run.
func newRunID(t time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to generate run ID: %w", err))
	}
	return id.String(), nil
}

func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}

// isCleanError reports whether err already carries a code.
func isCleanError(err error) bool {
	var ce *errors.CleanError
	return stderrors.As(err, &ce)
}
