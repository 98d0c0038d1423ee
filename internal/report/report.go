// Package report renders the outcome of a clean for people: a styled console
// summary, a Markdown document and its HTML rendering.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hpungsan/texclean/internal/ops"
	"github.com/hpungsan/texclean/internal/texdoc"
)

// styles are bound to one renderer so colors follow the destination writer
// (none when it is not a terminal or NO_COLOR is set).
type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	section lipgloss.Style
	used    lipgloss.Style
	unused  lipgloss.Style
	reason  lipgloss.Style
	warning lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		label:   r.NewStyle().Foreground(lipgloss.Color("240")),
		section: r.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		used:    r.NewStyle().Foreground(lipgloss.Color("42")),
		unused:  r.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true),
		reason:  r.NewStyle().Foreground(lipgloss.Color("238")),
		warning: r.NewStyle().Foreground(lipgloss.Color("208")),
	}
}

// Text writes the console summary of out to w.
func Text(w io.Writer, out *ops.CleanOutput) error {
	s := newStyles(w)
	var b strings.Builder

	title := "texclean " + out.RunID
	if out.DryRun {
		title += " (dry run)"
	}
	b.WriteString(s.title.Render(title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("input: "), out.InputDir)
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("output:"), out.OutputDir)
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("mode:  "), modeLine(out))

	fmt.Fprintf(&b, "\n%s\n", s.section.Render(fmt.Sprintf("Markup (%d)", len(out.Markup))))
	for _, r := range out.Markup {
		fmt.Fprintf(&b, "  %s\n", s.used.Render(renameLabel(r.Old, r.New)))
	}

	fmt.Fprintf(&b, "\n%s\n", s.section.Render(fmt.Sprintf("Used (%d)", len(out.Used))))
	for _, d := range out.Used {
		fmt.Fprintf(&b, "  %s %s\n", s.used.Render(renameLabel(d.Path, d.OutPath)), s.reason.Render(string(d.Reason)))
	}

	fmt.Fprintf(&b, "\n%s\n", s.section.Render(fmt.Sprintf("Unused (%d)", len(out.Unused))))
	for _, d := range out.Unused {
		fmt.Fprintf(&b, "  %s\n", s.unused.Render(d.Path))
	}

	if len(out.Collisions) > 0 {
		fmt.Fprintf(&b, "\n%s\n", s.warning.Render(fmt.Sprintf("Collisions (%d)", len(out.Collisions))))
		for _, c := range out.Collisions {
			fmt.Fprintf(&b, "  %s <- %s\n", s.warning.Render(c.Target), strings.Join(c.Sources, ", "))
		}
	}

	if !out.DryRun {
		fmt.Fprintf(&b, "\n%d files written in %dms\n", out.FilesWritten, out.DurationMS)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func modeLine(out *ops.CleanOutput) string {
	parts := []string{"comments stripped"}
	if out.KeepComments {
		parts[0] = "comments kept"
	}
	if out.Flatten {
		parts = append(parts, "flattened")
	}
	return strings.Join(parts, ", ")
}

func renameLabel(oldPath, newPath string) string {
	if oldPath == newPath || newPath == "" {
		return oldPath
	}
	return oldPath + " -> " + newPath
}

// reasonText describes why a file was kept or dropped.
func reasonText(r texdoc.Reason) string {
	switch r {
	case texdoc.ReasonPrefix:
		return "keep prefix"
	case texdoc.ReasonExtension:
		return "keep extension"
	case texdoc.ReasonReference:
		return "referenced"
	default:
		return "not referenced"
	}
}
