package ops

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/hpungsan/texclean/internal/errors"
)

// Emit recreates out.OutputDir empty and writes every planned item into it.
// Markup files get their cleaned content and the source file's permissions;
// other files are copied byte for byte with permissions and mtime preserved.
//
// When two items share a destination the later one overwrites the earlier.
func Emit(ctx context.Context, out *CleanOutput, logger *log.Logger) error {
	if out == nil {
		return errors.NewInvalidRequest("nothing to emit")
	}

	// Re-check right before erasing: the tree may have changed since Plan.
	if _, err := ValidateDirs(out.InputDir, out.OutputDir); err != nil {
		return err
	}
	if err := os.RemoveAll(out.OutputDir); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to clear output directory: %w", err))
	}
	if err := os.MkdirAll(out.OutputDir, 0755); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create output directory: %w", err))
	}

	written := 0
	for _, item := range out.items {
		select {
		case <-ctx.Done():
			return errors.NewCancelled("emit")
		default:
		}

		dest, err := outputPath(out.OutputDir, item.Dest)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return errors.NewInternal(fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err))
		}

		src := filepath.Join(out.InputDir, filepath.FromSlash(item.Source))
		if item.Content != nil {
			err = writeFile(dest, item.Content, item.Mode)
		} else {
			err = copyFile(src, dest)
		}
		if err != nil {
			return err
		}
		written++
	}

	out.FilesWritten = written
	logf(logger, "emitted %d files", written)
	return nil
}

func writeFile(dest string, content []byte, mode os.FileMode) error {
	if mode == 0 {
		mode = 0644
	}
	file, err := openFileNoFollow(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		if errors.Is(err, errors.ErrUnsafeOutput) {
			return err
		}
		return errors.NewInternal(fmt.Errorf("failed to create %s: %w", dest, err))
	}
	if _, err := file.Write(content); err != nil {
		file.Close()
		return errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(err)
	}
	// O_CREATE applies the umask and ignores mode for existing files.
	if err := os.Chmod(dest, mode); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.NewUnreadable(src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.NewUnreadable(src, err)
	}

	file, err := openFileNoFollow(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, errors.ErrUnsafeOutput) {
			return err
		}
		return errors.NewInternal(fmt.Errorf("failed to create %s: %w", dest, err))
	}
	if _, err := io.Copy(file, in); err != nil {
		file.Close()
		return errors.NewInternal(fmt.Errorf("failed to copy %s: %w", src, err))
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(err)
	}

	if err := os.Chmod(dest, info.Mode().Perm()); err != nil {
		return errors.NewInternal(err)
	}
	if err := os.Chtimes(dest, info.ModTime(), info.ModTime()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
