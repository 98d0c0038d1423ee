package report

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hpungsan/texclean/internal/errors"
)

// WriteFile writes data to path through a temp file in the same directory
// and an atomic rename, so an existing report survives a failed write.
func WriteFile(path string, data []byte) error {
	if path == "" {
		return errors.NewInvalidRequest("report path is required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create report directory: %w", err))
	}

	// Check if destination is a symlink (os.Rename would replace the link, not its target)
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewUnsafeOutput(path, "report path is a symlink")
	}

	file, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create report file: %w", err))
	}
	tempPath := file.Name()

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close report file: %w", err))
	}
	file = nil

	if err := os.Chmod(tempPath, 0644); err != nil {
		return errors.NewInternal(err)
	}

	// On Windows, os.Rename fails if the destination exists; fail safely
	// instead of a non-atomic delete+rename.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("report destination already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize report: %w", err))
	}

	success = true
	return nil
}
