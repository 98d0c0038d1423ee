package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.OutputSuffix != "_cleaned" {
		t.Errorf("OutputSuffix = %q, want _cleaned", cfg.OutputSuffix)
	}
	if len(cfg.MarkupExtensions) != 1 || cfg.MarkupExtensions[0] != ".tex" {
		t.Errorf("MarkupExtensions = %v, want [.tex]", cfg.MarkupExtensions)
	}
	want := []string{".tex", ".sty", ".fd", ".bbx", ".cls", ".dtx", ".bst"}
	if len(cfg.KeepExtensions) != len(want) {
		t.Fatalf("KeepExtensions = %v, want %v", cfg.KeepExtensions, want)
	}
	for i := range want {
		if cfg.KeepExtensions[i] != want[i] {
			t.Errorf("KeepExtensions[%d] = %q, want %q", i, cfg.KeepExtensions[i], want[i])
		}
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CommentMarker != DefaultConfig().CommentMarker {
		t.Fatalf("CommentMarker = %q, want %q", cfg.CommentMarker, DefaultConfig().CommentMarker)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"output_suffix": "_arxiv", "flatten": true, "workers": 2}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OutputSuffix != "_arxiv" {
		t.Errorf("OutputSuffix = %q, want _arxiv", cfg.OutputSuffix)
	}
	if !cfg.Flatten {
		t.Error("Flatten should be true")
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if cfg.FlattenSeparator != "_" {
		t.Errorf("FlattenSeparator = %q, want default _", cfg.FlattenSeparator)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{not json}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_KeepPrefixes(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"keep_prefixes": ["fig/keep_", "data/"]}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.KeepPrefixes) != 2 {
		t.Fatalf("KeepPrefixes length = %d, want 2", len(cfg.KeepPrefixes))
	}
	if cfg.KeepPrefixes[0] != "fig/keep_" {
		t.Errorf("KeepPrefixes[0] = %q, want %q", cfg.KeepPrefixes[0], "fig/keep_")
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	writeConfig(t, globalDir, `{"output_suffix": "_global", "keep_prefixes": ["logos/"]}`)
	writeConfig(t, filepath.Join(repoRoot, ".texclean"), `{"output_suffix": "_repo", "keep_prefixes": ["data/"]}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.OutputSuffix != "_repo" {
		t.Errorf("OutputSuffix = %q, want _repo (repo override)", cfg.OutputSuffix)
	}
	if len(cfg.KeepPrefixes) != 2 {
		t.Errorf("KeepPrefixes = %v, want 2 merged entries", cfg.KeepPrefixes)
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.DecodeErrors != DecodeStrict {
		t.Errorf("DecodeErrors = %q, want strict", cfg.DecodeErrors)
	}
	if len(cfg.KeepPrefixes) != 0 {
		t.Errorf("KeepPrefixes = %v, want empty", cfg.KeepPrefixes)
	}
}

func TestLoadWithRepo_WalksUpward(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, filepath.Join(tmpDir, ".texclean"), `{"decode_errors": "latin1"}`)

	paper := filepath.Join(tmpDir, "papers", "icml")
	if err := os.MkdirAll(paper, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(t.TempDir(), paper)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.DecodeErrors != DecodeLatin1 {
		t.Errorf("DecodeErrors = %q, want latin1", cfg.DecodeErrors)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{OutputSuffix: "_cleaned", Workers: 4}
	overlay := &Config{OutputSuffix: "_submit"}

	result := Merge(base, overlay)

	if result.OutputSuffix != "_submit" {
		t.Errorf("OutputSuffix = %q, want _submit (overlay)", result.OutputSuffix)
	}
	if result.Workers != 4 {
		t.Errorf("Workers = %d, want 4 (base, overlay is zero)", result.Workers)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	result := Merge(&Config{Flatten: true}, &Config{KeepComments: true})

	if !result.Flatten {
		t.Error("Flatten should be true (base OR overlay)")
	}
	if !result.KeepComments {
		t.Error("KeepComments should be true (base OR overlay)")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{KeepExtensions: []string{".sty", ".cls"}}
	overlay := &Config{KeepExtensions: []string{" .cls ", ".bib"}}

	result := Merge(base, overlay)

	want := []string{".sty", ".cls", ".bib"}
	if len(result.KeepExtensions) != len(want) {
		t.Fatalf("KeepExtensions = %v, want %v", result.KeepExtensions, want)
	}
	for i := range want {
		if result.KeepExtensions[i] != want[i] {
			t.Errorf("KeepExtensions[%d] = %q, want %q", i, result.KeepExtensions[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"replace policy", func(c *Config) { c.DecodeErrors = DecodeReplace }, false},
		{"unknown policy", func(c *Config) { c.DecodeErrors = "surrogateescape" }, true},
		{"unknown collision policy", func(c *Config) { c.CollisionPolicy = "rename" }, true},
		{"separator with slash", func(c *Config) { c.FlattenSeparator = "/" }, true},
		{"separator with backslash", func(c *Config) { c.FlattenSeparator = `\` }, true},
		{"dash separator", func(c *Config) { c.FlattenSeparator = "-" }, false},
		{"empty marker", func(c *Config) { c.CommentMarker = "" }, true},
		{"multi-line marker", func(c *Config) { c.CommentMarker = "%\n" }, true},
		{"no markup extensions", func(c *Config) { c.MarkupExtensions = nil }, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFindRepoConfig_InParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, filepath.Join(tmpDir, ".texclean"), `{}`)
	configPath := filepath.Join(tmpDir, ".texclean", "config.json")

	subdir := filepath.Join(tmpDir, "chapters", "appendix")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	found := FindRepoConfig(subdir)
	if found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if found := FindRepoConfig(t.TempDir()); found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
	if found := FindRepoConfig(""); found != "" {
		t.Errorf("FindRepoConfig(\"\") = %q, want empty string", found)
	}
}
