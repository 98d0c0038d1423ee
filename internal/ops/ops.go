package ops

import (
	"runtime"
	"slices"

	"github.com/hpungsan/texclean/internal/config"
	"github.com/hpungsan/texclean/internal/errors"
	"github.com/hpungsan/texclean/internal/texdoc"
	"github.com/hpungsan/texclean/internal/tree"
)

// Options is the immutable run configuration handed to every stage of a
// clean. Build it once with NewOptions; slices are copied so later changes
// to the source Config do not leak into a running clean.
type Options struct {
	OutputSuffix     string
	KeepPrefixes     []string
	KeepExtensions   []string
	MarkupExtensions []string
	KeepComments     bool
	Flatten          bool
	FlattenSeparator string
	CommentMarker    string
	DecodeErrors     string
	Exclude          []string
	Workers          int
	CollisionPolicy  string
}

// NewOptions validates cfg and snapshots it into Options.
func NewOptions(cfg *config.Config) (Options, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return Options{}, errors.NewInvalidRequest(err.Error())
	}
	if err := tree.ValidatePatterns(cfg.Exclude); err != nil {
		return Options{}, errors.NewInvalidRequest(err.Error())
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return Options{
		OutputSuffix:     cfg.OutputSuffix,
		KeepPrefixes:     slices.Clone(cfg.KeepPrefixes),
		KeepExtensions:   slices.Clone(cfg.KeepExtensions),
		MarkupExtensions: slices.Clone(cfg.MarkupExtensions),
		KeepComments:     cfg.KeepComments,
		Flatten:          cfg.Flatten,
		FlattenSeparator: cfg.FlattenSeparator,
		CommentMarker:    cfg.CommentMarker,
		DecodeErrors:     cfg.DecodeErrors,
		Exclude:          slices.Clone(cfg.Exclude),
		Workers:          workers,
		CollisionPolicy:  cfg.CollisionPolicy,
	}, nil
}

// rules returns the resolver overrides.
func (o Options) rules() texdoc.Rules {
	return texdoc.Rules{
		KeepPrefixes:   o.KeepPrefixes,
		KeepExtensions: o.KeepExtensions,
	}
}
