// Package watch re-runs a callback whenever a directory tree changes.
package watch

import (
	"context"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the tree must stay quiet before a re-run.
const DefaultDebounce = 300 * time.Millisecond

// Options controls a Watcher.
type Options struct {
	// Debounce coalesces bursts of events (editors often write a file
	// several times per save). Zero means DefaultDebounce.
	Debounce time.Duration

	// SkipDirs lists absolute directories whose events are ignored, such as
	// an output directory inside the watched tree.
	SkipDirs []string

	// Logger receives watch events and callback errors. Nil disables logging.
	Logger *log.Logger
}

// Watcher monitors every directory below a root. fsnotify watches are not
// recursive, so directories created later are added as they appear.
type Watcher struct {
	watcher *fsnotify.Watcher
	root    string
	opts    Options
	skip    map[string]bool
}

// New creates a watcher for root and all its subdirectories. Hidden
// directories (".git", ".texclean", ...) and SkipDirs are not watched.
func New(root string, opts Options) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		root:    absRoot,
		opts:    opts,
		skip:    make(map[string]bool, len(opts.SkipDirs)),
	}
	for _, d := range opts.SkipDirs {
		if abs, err := filepath.Abs(d); err == nil {
			w.skip[filepath.Clean(abs)] = true
		}
	}

	if err := w.addTree(absRoot); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Run calls onChange after every quiet period that follows a change, until
// ctx is done. Errors from onChange are logged and watching continues.
// Run returns nil when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context) error) error {
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logf("change %s %s", event.Op, w.rel(event.Name))
			if event.Has(fsnotify.Create) {
				if err := w.addTree(event.Name); err != nil {
					w.logf("watch %s: %v", w.rel(event.Name), err)
				}
			}
			timer.Reset(w.opts.Debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logf("watch error: %v", err)

		case <-timer.C:
			if err := onChange(ctx); err != nil {
				w.logf("re-run failed: %v", err)
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// relevant drops chmod-only events and events under skipped directories.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	return !w.skipped(event.Name)
}

func (w *Watcher) skipped(path string) bool {
	rel, err := filepath.Rel(w.root, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	if rel == "." {
		return false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	dir := w.root
	for i, part := range parts {
		dir = filepath.Join(dir, part)
		if w.skip[dir] {
			return true
		}
		// Hidden files are fine (".latexmkrc"); hidden directories are not.
		if i < len(parts)-1 && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// addTree watches dir and every non-skipped directory below it. Paths that
// are not directories are ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == w.root {
				return err
			}
			// The entry may be gone already; a later event will retry.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && (w.skip[filepath.Clean(path)] || strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) rel(path string) string {
	if rel, err := filepath.Rel(w.root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

func (w *Watcher) logf(format string, args ...any) {
	if w.opts.Logger != nil {
		w.opts.Logger.Printf(format, args...)
	}
}
