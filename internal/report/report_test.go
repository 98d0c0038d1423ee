package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/texclean/internal/errors"
	"github.com/hpungsan/texclean/internal/ops"
	"github.com/hpungsan/texclean/internal/texdoc"
)

func sampleOutput() *ops.CleanOutput {
	return &ops.CleanOutput{
		RunID:     "01HZX3K8Q7RUN",
		InputDir:  "/papers/icml",
		OutputDir: "/papers/icml_cleaned",
		Flatten:   true,
		Markup:    []texdoc.Rename{{Old: "doc.tex", New: "doc.tex"}},
		Used: []texdoc.Decision{
			{Path: "fig/plot.png", OutPath: "fig_plot.png", Used: true, Reason: texdoc.ReasonReference},
			{Path: "style.sty", OutPath: "style.sty", Used: true, Reason: texdoc.ReasonExtension},
		},
		Unused: []texdoc.Decision{
			{Path: "fig/unused.png", OutPath: "fig_unused.png", Reason: texdoc.ReasonNone},
		},
		Collisions: []texdoc.Collision{
			{Target: "fig_a.png", Sources: []string{"fig/a.png", "fig_a.png"}},
		},
		FilesWritten: 3,
		StartedAt:    1700000000,
		DurationMS:   7,
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, sampleOutput()))

	text := buf.String()
	for _, want := range []string{
		"01HZX3K8Q7RUN",
		"/papers/icml_cleaned",
		"comments stripped, flattened",
		"Markup (1)",
		"Used (2)",
		"fig/plot.png -> fig_plot.png",
		"reference",
		"Unused (1)",
		"fig/unused.png",
		"Collisions (1)",
		"fig/a.png, fig_a.png",
		"3 files written",
	} {
		require.Contains(t, text, want)
	}
}

func TestText_DryRun(t *testing.T) {
	out := sampleOutput()
	out.DryRun = true
	out.Collisions = nil

	var buf bytes.Buffer
	require.NoError(t, Text(&buf, out))
	require.Contains(t, buf.String(), "(dry run)")
	require.NotContains(t, buf.String(), "files written")
	require.NotContains(t, buf.String(), "Collisions")
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleOutput())

	require.True(t, strings.HasPrefix(md, "# Run 01HZX3K8Q7RUN\n"))
	require.Contains(t, md, "- **Started:** 2023-11-14 22:13\n")
	require.Contains(t, md, "| `fig/plot.png` | `fig_plot.png` | referenced |\n")
	require.Contains(t, md, "| `style.sty` | `style.sty` | keep extension |\n")
	require.Contains(t, md, "## Unused (1)\n\n- `fig/unused.png`\n")
	require.Contains(t, md, "- `fig_a.png` from `fig/a.png`, `fig_a.png`\n")
}

func TestCode_Escapes(t *testing.T) {
	require.Equal(t, "`a.png`", code("a.png"))
	require.Equal(t, "`a\\|b.png`", code("a|b.png"))
	require.Equal(t, "`` we`ird.png ``", code("we`ird.png"))
}

func TestHTML(t *testing.T) {
	page, err := HTML(sampleOutput())
	require.NoError(t, err)

	html := string(page)
	require.Contains(t, html, "<title>texclean run 01HZX3K8Q7RUN</title>")
	require.Contains(t, html, "<h1>Run 01HZX3K8Q7RUN</h1>")
	require.Contains(t, html, "<table>")
	require.Contains(t, html, "<code>fig_plot.png</code>")
}

func TestRenderMarkdown_NoRawHTML(t *testing.T) {
	out, err := RenderMarkdown("<script>alert(1)</script>\n")
	require.NoError(t, err)
	require.NotContains(t, string(out), "<script>")
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports", "run.html")

	require.NoError(t, WriteFile(path, []byte("first")))
	require.NoError(t, WriteFile(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteFile_RejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.html")
	require.NoError(t, os.WriteFile(target, []byte("keep"), 0644))
	link := filepath.Join(dir, "link.html")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	err := WriteFile(link, []byte("new"))
	require.True(t, errors.Is(err, errors.ErrUnsafeOutput), "got %v", err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "keep", string(data))
}

func TestWriteFile_EmptyPath(t *testing.T) {
	require.True(t, errors.Is(WriteFile("", nil), errors.ErrInvalidRequest))
}
