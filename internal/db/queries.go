package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/hpungsan/texclean/internal/errors"
)

// Run is one recorded clean.
type Run struct {
	ID             string `json:"id"`
	InputDir       string `json:"input_dir"`
	OutputDir      string `json:"output_dir"`
	Flatten        bool   `json:"flatten"`
	KeepComments   bool   `json:"keep_comments"`
	MarkupCount    int    `json:"markup_count"`
	UsedCount      int    `json:"used_count"`
	UnusedCount    int    `json:"unused_count"`
	CollisionCount int    `json:"collision_count"`
	FilesWritten   int    `json:"files_written"`
	StartedAt      int64  `json:"started_at"`
	DurationMS     int64  `json:"duration_ms"`
}

// FileRecord is the decision recorded for one input file of a run.
type FileRecord struct {
	RunID    string `json:"run_id"`
	Path     string `json:"path"`
	OutPath  string `json:"out_path"`
	Category string `json:"category"`
	Used     bool   `json:"used"`
	Reason   string `json:"reason"`
}

// InsertRun stores a run and its files in one transaction.
func InsertRun(ctx context.Context, db *sql.DB, run Run, files []FileRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, input_dir, output_dir, flatten, keep_comments,
			markup_count, used_count, unused_count, collision_count,
			files_written, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.InputDir, run.OutputDir, boolToInt(run.Flatten), boolToInt(run.KeepComments),
		run.MarkupCount, run.UsedCount, run.UnusedCount, run.CollisionCount,
		run.FilesWritten, run.StartedAt, run.DurationMS,
	)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to insert run: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files (run_id, path, out_path, category, used, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	for _, f := range files {
		if _, err := stmt.ExecContext(ctx, run.ID, f.Path, f.OutPath, f.Category, boolToInt(f.Used), f.Reason); err != nil {
			return errors.NewInternal(fmt.Errorf("failed to insert file %s: %w", f.Path, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

const runColumns = `
	id, input_dir, output_dir, flatten, keep_comments,
	markup_count, used_count, unused_count, collision_count,
	files_written, started_at, duration_ms
`

// GetRun retrieves a run by ID.
func GetRun(ctx context.Context, db *sql.DB, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound(id)
		}
		return nil, errors.NewInternal(err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. An empty inputDir lists runs
// for every input directory. limit <= 0 means no limit.
func ListRuns(ctx context.Context, db *sql.DB, inputDir string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if inputDir != "" {
		query += ` WHERE input_dir = ?`
		args = append(args, inputDir)
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return runs, nil
}

// ListFiles returns the recorded files of a run ordered by category then path.
func ListFiles(ctx context.Context, db *sql.DB, runID string) ([]FileRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, path, out_path, category, used, reason
		FROM files WHERE run_id = ?
		ORDER BY category, path
	`, runID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	files := []FileRecord{}
	for rows.Next() {
		var f FileRecord
		var used int
		if err := rows.Scan(&f.RunID, &f.Path, &f.OutPath, &f.Category, &used, &f.Reason); err != nil {
			return nil, errors.NewInternal(err)
		}
		f.Used = used != 0
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return files, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var flatten, keepComments int
	err := s.Scan(
		&r.ID, &r.InputDir, &r.OutputDir, &flatten, &keepComments,
		&r.MarkupCount, &r.UsedCount, &r.UnusedCount, &r.CollisionCount,
		&r.FilesWritten, &r.StartedAt, &r.DurationMS,
	)
	if err != nil {
		return nil, err
	}
	r.Flatten = flatten != 0
	r.KeepComments = keepComments != 0
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// DeleteRun removes a run; its files go with it (ON DELETE CASCADE).
func DeleteRun(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}
