// Package view renders task list refreshes to the terminal.
package view

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tasklist/storage"
	"tasklist/tasklist"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#89B4FA"))

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086")).
			Strikethrough(true)

	highPriorityStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F38BA8"))

	mediumPriorityStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FAB387"))

	lowPriorityStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#A6E3A1"))

	emptyStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#6C7086"))

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9399B2"))
)

// Terminal implements tasklist.Observer by printing to stdout.
// Output goes to os.Stdout at call time unless Out is set, so redirected
// stdout (as the command layer does for tool calls) captures it.
type Terminal struct {
	Out io.Writer
}

func (t *Terminal) writer() io.Writer {
	if t.Out != nil {
		return t.Out
	}
	return os.Stdout
}

// RenderTasks prints the visible tasks or the empty state
func (t *Terminal) RenderTasks(v tasklist.View) {
	fmt.Fprint(t.writer(), FormatView(v))
}

// UpdateStats prints the counts line
func (t *Terminal) UpdateStats(s tasklist.Stats) {
	fmt.Fprintln(t.writer(), FormatStats(s))
}

// FormatView renders a view as lines of text
func FormatView(v tasklist.View) string {
	var b strings.Builder

	header := "Tasks"
	if v.Filter != "" && v.Filter != tasklist.FilterAll {
		header += " (" + string(v.Filter) + ")"
	}
	if v.Search != "" {
		header += fmt.Sprintf(" matching %q", v.Search)
	}
	b.WriteString(headerStyle.Render(header + ":"))
	b.WriteString("\n")

	if v.Empty != tasklist.EmptyNone {
		b.WriteString("  " + emptyStyle.Render("No tasks found. "+v.Empty.Message()))
		b.WriteString("\n")
		return b.String()
	}

	for _, task := range v.Tasks {
		b.WriteString("  " + FormatTask(task))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatTask renders one task line: status, id, text and priority
func FormatTask(task storage.Task) string {
	status := "[ ]"
	text := task.Text
	if task.Completed {
		status = "[✓]"
		text = completedStyle.Render(text)
	}
	return fmt.Sprintf("%s [%d] %s %s", status, task.ID, text, priorityStyle(task.Priority).Render(string(task.Priority)))
}

// FormatStats renders the counts line
func FormatStats(s tasklist.Stats) string {
	return statsStyle.Render(fmt.Sprintf("Total: %d | Completed: %d | Pending: %d", s.Total, s.Completed, s.Pending))
}

func priorityStyle(p storage.Priority) lipgloss.Style {
	switch p {
	case storage.PriorityHigh:
		return highPriorityStyle
	case storage.PriorityMedium:
		return mediumPriorityStyle
	default:
		return lowPriorityStyle
	}
}
