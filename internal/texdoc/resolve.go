package texdoc

import (
	"strings"

	"github.com/hpungsan/texclean/internal/tree"
)

// Reason records which rule decided a file's usage.
type Reason string

const (
	ReasonPrefix    Reason = "prefix"    // stem starts with a keep prefix
	ReasonExtension Reason = "extension" // extension ends with a keep extension
	ReasonReference Reason = "reference" // stem found in a cleaned document
	ReasonNone      Reason = "none"      // unused
)

// Rules are the keep overrides applied before reference search.
type Rules struct {
	KeepPrefixes   []string
	KeepExtensions []string
}

// Decision is the usage verdict for one other file.
type Decision struct {
	Path    string `json:"path"`
	OutPath string `json:"out_path"`
	Used    bool   `json:"used"`
	Reason  Reason `json:"reason"`
}

// Decide resolves a single file. path is the input-relative path and outPath
// its (possibly flattened) output path; docs are the cleaned documents in
// the same path space as outPath.
//
// The first rule that holds wins:
//  1. the stem starts with a keep prefix (checked against both the input and
//     the output stem, so "fig/" keeps working when flattening);
//  2. the lowercased extension ends with a lowercased keep extension;
//  3. the output stem occurs verbatim in at least one document.
func (r Rules) Decide(path, outPath string, docs []string) Decision {
	if outPath == "" {
		outPath = path
	}
	d := Decision{Path: path, OutPath: outPath, Used: true}

	stem, ext := tree.SplitExt(path)
	outStem, _ := tree.SplitExt(outPath)

	for _, prefix := range r.KeepPrefixes {
		if strings.HasPrefix(stem, prefix) || strings.HasPrefix(outStem, prefix) {
			d.Reason = ReasonPrefix
			return d
		}
	}

	lowerExt := strings.ToLower(ext)
	for _, keep := range r.KeepExtensions {
		if keep == "" {
			continue
		}
		if strings.HasSuffix(lowerExt, strings.ToLower(keep)) {
			d.Reason = ReasonExtension
			return d
		}
	}

	for _, doc := range docs {
		if strings.Contains(doc, outStem) {
			d.Reason = ReasonReference
			return d
		}
	}

	d.Used = false
	d.Reason = ReasonNone
	return d
}

// Resolve decides every file in order and partitions the decisions into used
// and unused, each keeping the input order.
func Resolve(rules Rules, files []Rename, docs []string) (used, unused []Decision) {
	for _, f := range files {
		d := rules.Decide(f.Old, f.New, docs)
		if d.Used {
			used = append(used, d)
		} else {
			unused = append(unused, d)
		}
	}
	return used, unused
}
