package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/texclean/internal/db"
	"github.com/hpungsan/texclean/internal/errors"
	"github.com/hpungsan/texclean/internal/texdoc"
	"github.com/hpungsan/texclean/internal/tree"
)

// reasonMarkup marks markup files in the manifest; they are always kept.
const reasonMarkup = "markup"

// Record stores a finished clean in the manifest. Dry runs are not recorded.
func Record(ctx context.Context, database *sql.DB, out *CleanOutput) error {
	if out == nil {
		return errors.NewInvalidRequest("nothing to record")
	}
	if out.DryRun {
		return nil
	}

	run := db.Run{
		ID:             out.RunID,
		InputDir:       out.InputDir,
		OutputDir:      out.OutputDir,
		Flatten:        out.Flatten,
		KeepComments:   out.KeepComments,
		MarkupCount:    len(out.Markup),
		UsedCount:      len(out.Used),
		UnusedCount:    len(out.Unused),
		CollisionCount: len(out.Collisions),
		FilesWritten:   out.FilesWritten,
		StartedAt:      out.StartedAt,
		DurationMS:     out.DurationMS,
	}

	files := make([]db.FileRecord, 0, len(out.Markup)+len(out.Used)+len(out.Unused))
	for _, r := range out.Markup {
		files = append(files, db.FileRecord{
			Path:     r.Old,
			OutPath:  r.New,
			Category: tree.Markup.String(),
			Used:     true,
			Reason:   reasonMarkup,
		})
	}
	for _, group := range [][]texdoc.Decision{out.Used, out.Unused} {
		for _, d := range group {
			files = append(files, db.FileRecord{
				Path:     d.Path,
				OutPath:  d.OutPath,
				Category: tree.Other.String(),
				Used:     d.Used,
				Reason:   string(d.Reason),
			})
		}
	}

	return db.InsertRun(ctx, database, run, files)
}

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	InputDir string // optional; resolved to an absolute path
	RunID    string // optional; when set, the run's files are returned too
	Limit    int    // optional, default: 20
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Runs  []db.Run        `json:"runs"`
	Files []db.FileRecord `json:"files,omitempty"`
}

// DefaultHistoryLimit is the number of runs History returns by default.
const DefaultHistoryLimit = 20

// History lists recorded runs, newest first.
func History(ctx context.Context, database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	if input.RunID != "" {
		run, err := db.GetRun(ctx, database, input.RunID)
		if err != nil {
			return nil, err
		}
		files, err := db.ListFiles(ctx, database, run.ID)
		if err != nil {
			return nil, err
		}
		return &HistoryOutput{Runs: []db.Run{*run}, Files: files}, nil
	}

	inputDir := ""
	if input.InputDir != "" {
		abs, err := absDir(input.InputDir)
		if err != nil {
			return nil, err
		}
		inputDir = abs
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	runs, err := db.ListRuns(ctx, database, inputDir, limit)
	if err != nil {
		return nil, err
	}
	return &HistoryOutput{Runs: runs}, nil
}

// Forget deletes a recorded run and its file decisions.
func Forget(ctx context.Context, database *sql.DB, runID string) error {
	if runID == "" {
		return errors.NewInvalidRequest("run_id is required")
	}
	return db.DeleteRun(ctx, database, runID)
}
