package texdoc

import "strings"

// DefaultMarker starts a LaTeX line comment.
const DefaultMarker = "%"

// StripComments removes line comments from text.
//
// Lines are processed with their terminators attached:
//   - a whitespace-only line is copied verbatim (an intentional blank line);
//   - otherwise everything from the first marker to the end of the line is
//     replaced by a single "\n";
//   - a line left whitespace-only by that replacement is dropped, so a pure
//     comment line does not turn into a spurious blank line.
//
// Marker detection is naive: an escaped marker such as `\%` still starts a
// comment. Existing users rely on that output, so it is kept as is.
func StripComments(text, marker string) string {
	if marker == "" {
		marker = DefaultMarker
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		if isBlank(line) {
			b.WriteString(line)
			continue
		}
		if i := strings.Index(line, marker); i >= 0 {
			line = line[:i] + "\n"
		}
		if isBlank(line) {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}

// isBlank reports whether line is non-empty and made only of whitespace.
func isBlank(line string) bool {
	return line != "" && strings.TrimSpace(line) == ""
}
