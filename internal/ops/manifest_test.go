package ops

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/texclean/internal/config"
	"github.com/hpungsan/texclean/internal/db"
	"github.com/hpungsan/texclean/internal/errors"
)

// TestManifestWorkflow exercises clean → record → history → run detail.
func TestManifestWorkflow(t *testing.T) {
	database, err := db.Init(filepath.Join(t.TempDir(), db.DefaultFileName))
	require.NoError(t, err)
	defer database.Close()

	ctx := context.Background()
	root := scenarioTree(t)
	opts := mustOptions(t, func(c *config.Config) { c.Flatten = true })

	// 1. Clean and record twice
	var ids []string
	for i := 0; i < 2; i++ {
		out, err := Clean(ctx, opts, CleanInput{InputDir: root})
		require.NoError(t, err)
		require.NoError(t, Record(ctx, database, out))
		ids = append(ids, out.RunID)
	}

	// 2. Dry runs are not recorded
	dry, err := Clean(ctx, opts, CleanInput{InputDir: root, DryRun: true})
	require.NoError(t, err)
	require.NoError(t, Record(ctx, database, dry))

	// 3. History lists newest first
	hist, err := History(ctx, database, HistoryInput{InputDir: root})
	require.NoError(t, err)
	require.Len(t, hist.Runs, 2)
	require.ElementsMatch(t, ids, []string{hist.Runs[0].ID, hist.Runs[1].ID})
	require.Equal(t, root, hist.Runs[0].InputDir)
	require.True(t, hist.Runs[0].Flatten)
	require.Equal(t, 1, hist.Runs[0].MarkupCount)
	require.Equal(t, 2, hist.Runs[0].UsedCount)
	require.Equal(t, 1, hist.Runs[0].UnusedCount)
	require.Equal(t, 3, hist.Runs[0].FilesWritten)
	require.Empty(t, hist.Files)

	// 4. Run detail includes every file decision
	detail, err := History(ctx, database, HistoryInput{RunID: ids[0]})
	require.NoError(t, err)
	require.Len(t, detail.Runs, 1)
	require.Len(t, detail.Files, 4)

	byPath := map[string]db.FileRecord{}
	for _, f := range detail.Files {
		byPath[f.Path] = f
	}
	require.Equal(t, "markup", byPath["doc.tex"].Reason)
	require.Equal(t, "fig_plot.png", byPath["fig/plot.png"].OutPath)
	require.Equal(t, "reference", byPath["fig/plot.png"].Reason)
	require.Equal(t, "extension", byPath["style.sty"].Reason)
	require.False(t, byPath["fig/unused.png"].Used)

	// 5. Other inputs are filtered out
	other, err := History(ctx, database, HistoryInput{InputDir: t.TempDir()})
	require.NoError(t, err)
	require.Empty(t, other.Runs)

	// 6. Forget drops the run and its files
	require.NoError(t, Forget(ctx, database, ids[0]))
	_, err = History(ctx, database, HistoryInput{RunID: ids[0]})
	require.True(t, errors.Is(err, errors.ErrNotFound))
	require.True(t, errors.Is(Forget(ctx, database, ids[0]), errors.ErrNotFound))
	require.True(t, errors.Is(Forget(ctx, database, ""), errors.ErrInvalidRequest))
}

func TestHistory_UnknownRun(t *testing.T) {
	database, err := db.Init(filepath.Join(t.TempDir(), db.DefaultFileName))
	require.NoError(t, err)
	defer database.Close()

	_, err = History(context.Background(), database, HistoryInput{RunID: "01NOPE"})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRecord_Nil(t *testing.T) {
	require.True(t, errors.Is(Record(context.Background(), nil, nil), errors.ErrInvalidRequest))
}
