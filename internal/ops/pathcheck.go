package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/texclean/internal/errors"
)

// Dirs holds the validated, absolute input and output directories of a run.
type Dirs struct {
	Input  string
	Output string

	// Nested is true when Output lies inside Input. Discovery then skips it so
	// a previous run's output is never treated as source.
	Nested bool
}

// DefaultOutputDir derives the output directory from the input directory:
// the absolute input path with trailing separators removed, plus suffix.
func DefaultOutputDir(inputDir, suffix string) (string, error) {
	abs, err := filepath.Abs(strings.TrimRight(inputDir, `/\`))
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid input path: %v", err))
	}
	return filepath.Clean(abs) + suffix, nil
}

// ValidateDirs checks the input and output directories before anything is
// read or erased. It checks:
// 1. the input exists and is a directory;
// 2. the output is not the input and does not contain it (the output is
//    erased at the start of every run);
// 3. the output is not a symlink and not a regular file.
//
// Both paths are compared after resolving symlinks where they exist.
func ValidateDirs(inputDir, outputDir string) (*Dirs, error) {
	if strings.TrimSpace(inputDir) == "" {
		return nil, errors.NewInvalidRequest("input directory is required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return nil, errors.NewInvalidRequest("output directory is required")
	}

	inAbs, err := filepath.Abs(inputDir)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid input path: %v", err))
	}
	info, err := os.Stat(inAbs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(inputDir)
		}
		return nil, errors.NewUnreadable(inputDir, err)
	}
	if !info.IsDir() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("input is not a directory: %s", inputDir))
	}
	inReal, err := filepath.EvalSymlinks(inAbs)
	if err != nil {
		return nil, errors.NewUnreadable(inputDir, err)
	}

	outAbs, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid output path: %v", err))
	}
	if info, err := os.Lstat(outAbs); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return nil, errors.NewUnsafeOutput(outputDir, "output directory must not be a symlink")
		}
		if !info.IsDir() {
			return nil, errors.NewUnsafeOutput(outputDir, "output path exists and is not a directory")
		}
	}
	outReal := resolveExisting(outAbs)

	if outReal == inReal {
		return nil, errors.NewUnsafeOutput(outputDir, "output directory equals the input directory")
	}
	if isWithin(outReal, inReal) {
		return nil, errors.NewUnsafeOutput(outputDir, "output directory contains the input directory")
	}

	return &Dirs{
		Input:  inAbs,
		Output: outAbs,
		Nested: isWithin(inReal, outReal),
	}, nil
}

// resolveExisting resolves symlinks in the longest existing prefix of p and
// re-appends the missing tail.
func resolveExisting(p string) string {
	p = filepath.Clean(p)
	var tail []string
	for {
		if real, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(append([]string{real}, tail...)...)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return filepath.Join(append([]string{p}, tail...)...)
		}
		tail = append([]string{filepath.Base(p)}, tail...)
		p = parent
	}
}

// isWithin reports whether child is strictly inside parent.
func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// outputPath joins a forward-slash relative path onto the output directory,
// rejecting anything that would escape it.
func outputPath(outputDir, rel string) (string, error) {
	p := filepath.Join(outputDir, filepath.FromSlash(rel))
	if !isWithin(outputDir, p) {
		return "", errors.NewUnsafeOutput(rel, "path escapes the output directory")
	}
	return p, nil
}

// absDir returns the cleaned absolute form of dir, the key runs are stored under.
func absDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	return abs, nil
}
