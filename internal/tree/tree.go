// Package tree discovers the files of a document source tree and splits them
// into markup files and auxiliary ("other") files.
package tree

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Category partitions discovered files.
type Category int

const (
	Markup Category = iota // comment-stripped and always emitted
	Other                  // subject to a usage decision
)

// String returns the lowercase category name used in reports.
func (c Category) String() string {
	if c == Markup {
		return "markup"
	}
	return "other"
}

// SourceFile is one file of the input tree. Path is relative to the input
// root, uses forward slashes and never starts with "./".
type SourceFile struct {
	Path     string   `json:"path"`
	Category Category `json:"-"`
}

// Options controls discovery.
type Options struct {
	// Exclude holds doublestar patterns matched against root-relative paths.
	// A pattern ending in "/**" also prunes the directory itself.
	Exclude []string

	// SkipDirs lists absolute directories that are never descended into
	// (e.g. an output directory nested inside the input tree).
	SkipDirs []string

	// Logger receives one line per skipped entry. Nil disables logging.
	Logger *log.Logger
}

// ValidatePatterns returns an error naming the first malformed exclude pattern.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return nil
}

// Discover walks root and returns the root-relative, forward-slash path of
// every regular file in traversal order. filepath.WalkDir visits entries in
// lexical order, so the result is stable for identical trees.
//
// Symlinked files are listed (their content is read through the link);
// symlinked directories are not descended into, and dangling links are skipped.
func Discover(root string, opts Options) ([]string, error) {
	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		if abs, err := filepath.Abs(d); err == nil {
			skip[filepath.Clean(abs)] = true
		}
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == absRoot {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skip[filepath.Clean(path)] || excludedDir(rel, opts.Exclude) {
				logf(opts.Logger, "skip dir %s", rel)
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				logf(opts.Logger, "skip dangling symlink %s", rel)
				return nil
			}
			if info.IsDir() {
				logf(opts.Logger, "skip symlinked dir %s", rel)
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		if excluded(rel, opts.Exclude) {
			logf(opts.Logger, "skip excluded %s", rel)
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Classified is the result of Classify. Both slices keep discovery order.
type Classified struct {
	Markup []SourceFile
	Other  []SourceFile
}

// Classify partitions paths by extension. A path is markup iff its
// lowercased extension is one of markupExts (compared with a leading dot).
func Classify(paths []string, markupExts []string) Classified {
	allowed := make(map[string]struct{}, len(markupExts))
	for _, ext := range markupExts {
		if ext = NormalizeExt(ext); ext != "" {
			allowed[ext] = struct{}{}
		}
	}

	var out Classified
	for _, p := range paths {
		p = CleanRel(p)
		_, ext := SplitExt(p)
		if _, ok := allowed[strings.ToLower(ext)]; ok && ext != "" {
			out.Markup = append(out.Markup, SourceFile{Path: p, Category: Markup})
			continue
		}
		out.Other = append(out.Other, SourceFile{Path: p, Category: Other})
	}
	return out
}

// NormalizeExt lowercases ext and adds a leading dot. Blank input yields "".
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// CleanRel converts p to a forward-slash relative path without a leading "./".
func CleanRel(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

// SplitExt splits p into stem and extension. The extension starts at the last
// dot of the final path element; leading dots of that element do not count,
// so ".latexmkrc" has no extension and "fig/.hidden.png" has ".png".
func SplitExt(p string) (stem, ext string) {
	base := p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		base = p[i+1:]
	}
	dot := strings.LastIndex(base, ".")
	if dot <= 0 || strings.Trim(base[:dot], ".") == "" {
		return p, ""
	}
	cut := len(p) - len(base) + dot
	return p[:cut], p[cut:]
}

func excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func excludedDir(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		if prefix, found := strings.CutSuffix(pattern, "/**"); found {
			if ok, err := doublestar.Match(prefix, rel); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
