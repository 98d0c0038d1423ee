package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/texclean/internal/ops"
)

// Markdown returns a Markdown document describing out.
func Markdown(out *ops.CleanOutput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run %s\n\n", out.RunID)
	fmt.Fprintf(&b, "- **Input:** `%s`\n", out.InputDir)
	fmt.Fprintf(&b, "- **Output:** `%s`\n", out.OutputDir)
	fmt.Fprintf(&b, "- **Started:** %s\n", formatTime(out.StartedAt))
	fmt.Fprintf(&b, "- **Mode:** %s\n", modeLine(out))
	if out.DryRun {
		b.WriteString("- **Dry run:** nothing was written\n")
	} else {
		fmt.Fprintf(&b, "- **Files written:** %d\n", out.FilesWritten)
	}

	fmt.Fprintf(&b, "\n## Markup (%d)\n\n", len(out.Markup))
	if len(out.Markup) > 0 {
		b.WriteString("| Source | Output |\n|---|---|\n")
		for _, r := range out.Markup {
			fmt.Fprintf(&b, "| %s | %s |\n", code(r.Old), code(r.New))
		}
	}

	fmt.Fprintf(&b, "\n## Used (%d)\n\n", len(out.Used))
	if len(out.Used) > 0 {
		b.WriteString("| Source | Output | Reason |\n|---|---|---|\n")
		for _, d := range out.Used {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", code(d.Path), code(d.OutPath), reasonText(d.Reason))
		}
	}

	fmt.Fprintf(&b, "\n## Unused (%d)\n\n", len(out.Unused))
	for _, d := range out.Unused {
		fmt.Fprintf(&b, "- %s\n", code(d.Path))
	}

	if len(out.Collisions) > 0 {
		fmt.Fprintf(&b, "\n## Collisions (%d)\n\n", len(out.Collisions))
		for _, c := range out.Collisions {
			sources := make([]string, len(c.Sources))
			for i, s := range c.Sources {
				sources[i] = code(s)
			}
			fmt.Fprintf(&b, "- %s from %s\n", code(c.Target), strings.Join(sources, ", "))
		}
	}

	return b.String()
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// RenderMarkdown converts Markdown to an HTML fragment. Raw HTML in the
// input is not passed through.
func RenderMarkdown(md string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 60rem; margin: 2rem auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.2rem 0.6rem; text-align: left; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML returns a standalone HTML page for out.
func HTML(out *ops.CleanOutput) ([]byte, error) {
	body, err := RenderMarkdown(Markdown(out))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{
		Title: "texclean run " + out.RunID,
		Body:  body,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// code formats s as inline code, escaping characters that would end the
// span or break a table cell.
func code(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	if strings.Contains(s, "`") {
		return "`` " + s + " ``"
	}
	return "`" + s + "`"
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}
