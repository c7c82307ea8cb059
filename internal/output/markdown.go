package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/twiced-technology-gmbh/taskwatch/internal/taskfile"
)

// defaultWrap is the word wrap width of rendered markdown.
const defaultWrap = 80

// TaskMarkdown describes a task as markdown. details may be the zero value
// when the Taskfile could not be parsed.
func TaskMarkdown(v TaskView, details taskfile.Details) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", v.Name)
	if details.Desc != "" {
		fmt.Fprintf(&b, "%s\n\n", details.Desc)
	}
	fmt.Fprintf(&b, "- **Taskfile:** `%s`\n", location(v.Taskfile, v.Line))
	fmt.Fprintf(&b, "- **State:** %s\n", state(v.Running))
	if v.Group != "" {
		fmt.Fprintf(&b, "- **Group:** %s\n", v.Group)
	}
	if len(details.Deps) > 0 {
		fmt.Fprintf(&b, "- **Depends on:** %s\n", strings.Join(details.Deps, ", "))
	}
	if details.Summary != "" {
		fmt.Fprintf(&b, "\n## Summary\n\n%s\n", strings.TrimRight(details.Summary, "\n"))
	}
	if len(details.Cmds) > 0 {
		b.WriteString("\n## Commands\n\n```sh\n")
		for _, c := range details.Cmds {
			b.WriteString(c + "\n")
		}
		b.WriteString("```\n")
	}
	return b.String()
}

// RenderMarkdown renders md for the terminal. width <= 0 uses a default
// wrap width. Without color the plain "notty" style is used.
func RenderMarkdown(md string, width int) (string, error) {
	if width <= 0 {
		width = defaultWrap
	}
	style := glamour.WithAutoStyle()
	if colorDisabled {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return out, nil
}

// Markdown writes md rendered for the terminal to w.
func Markdown(w io.Writer, md string, width int) error {
	out, err := RenderMarkdown(md, width)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
