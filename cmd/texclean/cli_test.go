package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/texclean/internal/ops"
)

const paperDoc = "\\input{sections/intro}\n\\includegraphics{fig/plot}\n% drafts\nbody\n"

// setupPaper writes a small LaTeX project and returns its directory.
func setupPaper(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "paper")
	files := map[string]string{
		"main.tex":           paperDoc,
		"sections/intro.tex": "intro % todo\n",
		"fig/plot.pdf":       "plot",
		"fig/old.pdf":        "old",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	return root
}

// runApp runs the CLI with args and returns what it printed.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	env := &appEnv{
		globalDir: t.TempDir(),
		logger:    log.New(io.Discard, "", 0),
	}
	app := newCLIApp(env)
	var buf bytes.Buffer
	app.Writer = &buf
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"texclean"}, args...))
	return buf.String(), err
}

func decodeRun(t *testing.T, out string) ops.CleanOutput {
	t.Helper()
	var run ops.CleanOutput
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	return run
}

func TestCLIClean(t *testing.T) {
	input := setupPaper(t)

	out, err := runApp(t, "clean", "--json", input)
	if err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	run := decodeRun(t, out)

	if run.DryRun {
		t.Error("expected dry_run=false")
	}
	if run.OutputDir != input+"_cleaned" {
		t.Errorf("output_dir = %q, want %q", run.OutputDir, input+"_cleaned")
	}
	if len(run.Used) != 1 || run.Used[0].Path != "fig/plot.pdf" {
		t.Errorf("used = %+v, want fig/plot.pdf", run.Used)
	}
	if len(run.Unused) != 1 || run.Unused[0].Path != "fig/old.pdf" {
		t.Errorf("unused = %+v, want fig/old.pdf", run.Unused)
	}
	if run.FilesWritten != 3 {
		t.Errorf("files_written = %d, want 3", run.FilesWritten)
	}

	data, err := os.ReadFile(filepath.Join(run.OutputDir, "main.tex"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(data), "drafts") {
		t.Errorf("comment not stripped: %q", data)
	}
	if _, err := os.Stat(filepath.Join(run.OutputDir, "fig", "old.pdf")); !os.IsNotExist(err) {
		t.Errorf("unused file was emitted (err = %v)", err)
	}
}

func TestCLIClean_Flags(t *testing.T) {
	input := setupPaper(t)
	output := filepath.Join(t.TempDir(), "flat")

	out, err := runApp(t, "clean", "--json", "--flatten", "-k", "fig/old", "-o", output, input)
	if err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	run := decodeRun(t, out)

	if !run.Flatten {
		t.Error("expected flatten=true")
	}
	if len(run.Unused) != 0 {
		t.Errorf("unused = %+v, want none", run.Unused)
	}
	for _, name := range []string{"main.tex", "sections_intro.tex", "fig_plot.pdf", "fig_old.pdf"} {
		if _, err := os.Stat(filepath.Join(output, name)); err != nil {
			t.Errorf("expected %s in output: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(output, "main.tex"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "\\includegraphics{fig_plot}") {
		t.Errorf("reference not rewritten: %q", data)
	}
}

func TestCLIClean_RepoConfig(t *testing.T) {
	input := setupPaper(t)
	configDir := filepath.Join(filepath.Dir(input), ".texclean")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	cfg := `{"keep_comments": true, "output_suffix": "_arxiv"}`
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte(cfg), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out, err := runApp(t, "clean", "--json", input)
	if err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	run := decodeRun(t, out)

	if !run.KeepComments {
		t.Error("expected keep_comments from repo config")
	}
	if run.OutputDir != input+"_arxiv" {
		t.Errorf("output_dir = %q, want %q", run.OutputDir, input+"_arxiv")
	}
	data, err := os.ReadFile(filepath.Join(run.OutputDir, "main.tex"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != paperDoc {
		t.Errorf("main.tex = %q, want verbatim copy", data)
	}
}

func TestCLIPlan(t *testing.T) {
	input := setupPaper(t)

	out, err := runApp(t, "plan", input)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	for _, want := range []string{"(dry run)", "Used (1)", "fig/plot.pdf", "Unused (1)", "fig/old.pdf"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "files written") {
		t.Errorf("dry run should not report written files:\n%s", out)
	}
	if _, err := os.Stat(input + "_cleaned"); !os.IsNotExist(err) {
		t.Errorf("plan created the output directory (err = %v)", err)
	}
}

func TestCLIReports(t *testing.T) {
	input := setupPaper(t)
	reports := t.TempDir()
	mdPath := filepath.Join(reports, "run.md")
	htmlPath := filepath.Join(reports, "html", "run.html")

	if _, err := runApp(t, "plan", "--report-md", mdPath, "--report-html", htmlPath, input); err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("markdown report missing: %v", err)
	}
	if !strings.Contains(string(md), "fig/old.pdf") {
		t.Errorf("markdown report missing unused file:\n%s", md)
	}

	page, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("html report missing: %v", err)
	}
	if !strings.Contains(string(page), "<table>") {
		t.Errorf("html report has no table:\n%s", page)
	}
}

func TestCLIManifestHistory(t *testing.T) {
	input := setupPaper(t)
	manifest := filepath.Join(t.TempDir(), "manifest.db")

	out, err := runApp(t, "clean", "--json", "--manifest", manifest, input)
	if err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	run := decodeRun(t, out)

	out, err = runApp(t, "history", "--manifest", manifest)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var history ops.HistoryOutput
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(history.Runs) != 1 || history.Runs[0].ID != run.RunID {
		t.Fatalf("runs = %+v, want only %s", history.Runs, run.RunID)
	}
	if len(history.Files) != 0 {
		t.Errorf("files listed without a run id: %+v", history.Files)
	}

	out, err = runApp(t, "history", "--manifest", manifest, run.RunID)
	if err != nil {
		t.Fatalf("history <run_id> failed: %v", err)
	}
	history = ops.HistoryOutput{}
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(history.Files) != 4 {
		t.Errorf("files = %d, want 4", len(history.Files))
	}
}

func TestCLIErrorHandling(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{
			name:    "no input dir",
			args:    []string{"clean"},
			wantMsg: "[INVALID_REQUEST]",
		},
		{
			name:    "missing input dir",
			args:    []string{"clean", missing},
			wantMsg: "[NOT_FOUND]",
		},
		{
			name:    "bad decode policy",
			args:    []string{"plan", "--errors", "loose", setupPaper(t)},
			wantMsg: "[INVALID_REQUEST]",
		},
		{
			name:    "history without manifest",
			args:    []string{"history"},
			wantMsg: "no manifest configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestCLIClean_UnsafeOutput(t *testing.T) {
	input := setupPaper(t)

	_, err := runApp(t, "clean", "-o", filepath.Dir(input), input)
	if err == nil {
		t.Fatal("expected error for an output directory containing the input")
	}
	if !strings.Contains(err.Error(), "[UNSAFE_OUTPUT]") {
		t.Errorf("error = %q, want UNSAFE_OUTPUT", err.Error())
	}
	if _, err := os.Stat(filepath.Join(input, "main.tex")); err != nil {
		t.Errorf("input tree was touched: %v", err)
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{
			name:     "no args",
			args:     []string{"texclean"},
			expected: false,
		},
		{
			name:     "clean command",
			args:     []string{"texclean", "clean"},
			expected: true,
		},
		{
			name:     "mcp command",
			args:     []string{"texclean", "mcp"},
			expected: true,
		},
		{
			name:     "help flag",
			args:     []string{"texclean", "--help"},
			expected: true,
		},
		{
			name:     "short version flag",
			args:     []string{"texclean", "-v"},
			expected: true,
		},
		{
			name:     "unknown arg defaults to MCP",
			args:     []string{"texclean", "--unknown"},
			expected: false,
		},
		{
			name:     "bare directory is not a command",
			args:     []string{"texclean", "paper"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCLIMode(tt.args); got != tt.expected {
				t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.expected)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		args     []string
		expected bool
	}{
		{[]string{"texclean"}, false},
		{[]string{"texclean", "help"}, true},
		{[]string{"texclean", "-h"}, true},
		{[]string{"texclean", "--version"}, true},
		{[]string{"texclean", "clean"}, false},
	}

	for _, tt := range tests {
		if got := isHelpOrVersion(tt.args); got != tt.expected {
			t.Errorf("isHelpOrVersion(%v) = %v, want %v", tt.args, got, tt.expected)
		}
	}
}
