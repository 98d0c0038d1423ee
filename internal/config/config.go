package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Decoding error policies for markup files.
const (
	DecodeStrict  = "strict"
	DecodeReplace = "replace"
	DecodeIgnore  = "ignore"
	DecodeLatin1  = "latin1"
)

// Collision policies for flattened output names.
const (
	CollisionWarn  = "warn"
	CollisionError = "error"
)

// Config holds application configuration.
type Config struct {
	// OutputSuffix is appended to the input directory to form the default output directory.
	OutputSuffix string `json:"output_suffix,omitempty"`

	// KeepPrefixes forces retention of files whose path stem starts with any entry.
	// Prefixes include the directory name (e.g. "fig/keep_").
	KeepPrefixes []string `json:"keep_prefixes,omitempty"`

	// KeepExtensions forces retention of files whose extension ends with any entry.
	KeepExtensions []string `json:"keep_extensions,omitempty"`

	// MarkupExtensions lists the extensions that are comment-stripped and always kept.
	MarkupExtensions []string `json:"markup_extensions,omitempty"`

	// KeepComments emits markup files verbatim.
	KeepComments bool `json:"keep_comments,omitempty"`

	// Flatten collapses the output into a single directory.
	Flatten bool `json:"flatten,omitempty"`

	// FlattenSeparator replaces "/" in flattened names.
	FlattenSeparator string `json:"flatten_separator,omitempty"`

	// CommentMarker starts a line comment in markup files.
	CommentMarker string `json:"comment_marker,omitempty"`

	// DecodeErrors selects how invalid UTF-8 in markup files is handled:
	// strict (fail), replace (U+FFFD), ignore (drop bytes) or latin1 (decode as ISO-8859-1).
	DecodeErrors string `json:"decode_errors,omitempty"`

	// Exclude lists doublestar glob patterns (relative to the input directory)
	// that are skipped during discovery.
	Exclude []string `json:"exclude,omitempty"`

	// Workers bounds parallel markup reading. 0 means GOMAXPROCS.
	Workers int `json:"workers,omitempty"`

	// CollisionPolicy decides what happens when two files flatten to one name:
	// warn (log, last write wins) or error (abort before writing).
	CollisionPolicy string `json:"collision_policy,omitempty"`

	// ManifestPath, when set, records every run in a SQLite audit manifest.
	ManifestPath string `json:"manifest_path,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		OutputSuffix:     "_cleaned",
		KeepExtensions:   []string{".tex", ".sty", ".fd", ".bbx", ".cls", ".dtx", ".bst"},
		MarkupExtensions: []string{".tex"},
		FlattenSeparator: "_",
		CommentMarker:    "%",
		DecodeErrors:     DecodeStrict,
		Exclude:          []string{".git/**", ".hg/**", ".svn/**"},
		CollisionPolicy:  CollisionWarn,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.texclean.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.texclean) and project (.texclean) directories.
// Project config is found by walking upward from startDir (usually the input directory)
// to the nearest .texclean/config.json.
// Project config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .texclean/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(dir, ".texclean", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.OutputSuffix = firstNonEmpty(overlay.OutputSuffix, base.OutputSuffix)
	result.FlattenSeparator = firstNonEmpty(overlay.FlattenSeparator, base.FlattenSeparator)
	result.CommentMarker = firstNonEmpty(overlay.CommentMarker, base.CommentMarker)
	result.DecodeErrors = firstNonEmpty(overlay.DecodeErrors, base.DecodeErrors)
	result.CollisionPolicy = firstNonEmpty(overlay.CollisionPolicy, base.CollisionPolicy)
	result.ManifestPath = firstNonEmpty(overlay.ManifestPath, base.ManifestPath)

	result.Workers = overlay.Workers
	if result.Workers == 0 {
		result.Workers = base.Workers
	}

	// Booleans: overlay wins if true, else base
	result.KeepComments = base.KeepComments || overlay.KeepComments
	result.Flatten = base.Flatten || overlay.Flatten

	// Arrays: merge and deduplicate
	result.KeepPrefixes = mergeStringSlice(base.KeepPrefixes, overlay.KeepPrefixes)
	result.KeepExtensions = mergeStringSlice(base.KeepExtensions, overlay.KeepExtensions)
	result.MarkupExtensions = mergeStringSlice(base.MarkupExtensions, overlay.MarkupExtensions)
	result.Exclude = mergeStringSlice(base.Exclude, overlay.Exclude)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.DecodeErrors {
	case DecodeStrict, DecodeReplace, DecodeIgnore, DecodeLatin1:
	default:
		return fmt.Errorf("decode_errors must be one of strict|replace|ignore|latin1, got %q", c.DecodeErrors)
	}
	switch c.CollisionPolicy {
	case CollisionWarn, CollisionError:
	default:
		return fmt.Errorf("collision_policy must be warn or error, got %q", c.CollisionPolicy)
	}
	if c.FlattenSeparator == "" || strings.ContainsAny(c.FlattenSeparator, `/\`) {
		return fmt.Errorf("flatten_separator must be non-empty and must not contain a path separator, got %q", c.FlattenSeparator)
	}
	if c.CommentMarker == "" || strings.ContainsAny(c.CommentMarker, "\r\n") {
		return fmt.Errorf("comment_marker must be a non-empty single-line string")
	}
	if len(c.MarkupExtensions) == 0 {
		return fmt.Errorf("markup_extensions must not be empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
