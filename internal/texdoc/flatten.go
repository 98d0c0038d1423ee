package texdoc

import (
	"sort"
	"strings"

	"github.com/hpungsan/texclean/internal/tree"
)

// DefaultSeparator replaces "/" in flattened names.
const DefaultSeparator = "_"

// Rename maps a file's input-relative path to its output-relative path.
type Rename struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Changed reports whether the file moves.
func (r Rename) Changed() bool {
	return r.Old != r.New
}

// FlattenPath replaces every "/" in p with sep. Root-level paths are unchanged.
func FlattenPath(p, sep string) string {
	if sep == "" {
		sep = DefaultSeparator
	}
	return strings.ReplaceAll(p, "/", sep)
}

// PlanRenames returns one Rename per file, in order. Without flatten every
// path maps to itself.
func PlanRenames(files []tree.SourceFile, flatten bool, sep string) []Rename {
	out := make([]Rename, len(files))
	for i, f := range files {
		out[i] = Rename{Old: f.Path, New: f.Path}
		if flatten {
			out[i].New = FlattenPath(f.Path, sep)
		}
	}
	return out
}

// Collision lists the input files that map to one output path.
type Collision struct {
	Target  string   `json:"target"`
	Sources []string `json:"sources"`
}

// FindCollisions returns every output path claimed by more than one input
// file, ordered by the first claimant's position in renames.
func FindCollisions(renames []Rename) []Collision {
	byTarget := make(map[string][]string, len(renames))
	var order []string
	for _, r := range renames {
		if _, seen := byTarget[r.New]; !seen {
			order = append(order, r.New)
		}
		byTarget[r.New] = append(byTarget[r.New], r.Old)
	}

	var out []Collision
	for _, target := range order {
		if sources := byTarget[target]; len(sources) > 1 {
			out = append(out, Collision{Target: target, Sources: sources})
		}
	}
	return out
}

// Rewriter replaces old path stems with new ones inside document text.
type Rewriter struct {
	pairs    []Rename
	replacer *strings.Replacer
}

// NewRewriter builds a rewriter for the stems of every changed rename.
//
// Stems are ordered longest first (ties broken lexicographically) and applied
// in one left-to-right pass: at any position the longest matching stem wins
// and replaced text is never rescanned. This keeps "img/a" from clobbering
// the "img/a" inside "img/a2".
func NewRewriter(renames []Rename) *Rewriter {
	seen := make(map[string]bool, len(renames))
	var pairs []Rename
	for _, r := range renames {
		oldStem, _ := tree.SplitExt(r.Old)
		newStem, _ := tree.SplitExt(r.New)
		if oldStem == newStem || oldStem == "" || seen[oldStem] {
			continue
		}
		seen[oldStem] = true
		pairs = append(pairs, Rename{Old: oldStem, New: newStem})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		if len(pairs[i].Old) != len(pairs[j].Old) {
			return len(pairs[i].Old) > len(pairs[j].Old)
		}
		return pairs[i].Old < pairs[j].Old
	})

	w := &Rewriter{pairs: pairs}
	if len(pairs) > 0 {
		args := make([]string, 0, 2*len(pairs))
		for _, p := range pairs {
			args = append(args, p.Old, p.New)
		}
		w.replacer = strings.NewReplacer(args...)
	}
	return w
}

// Rewrite returns text with every old stem replaced by its new stem.
func (w *Rewriter) Rewrite(text string) string {
	if w == nil || w.replacer == nil {
		return text
	}
	return w.replacer.Replace(text)
}

// Stems returns the stem pairs in application order.
func (w *Rewriter) Stems() []Rename {
	if w == nil {
		return nil
	}
	return append([]Rename(nil), w.pairs...)
}
