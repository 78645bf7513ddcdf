// Package ui renders results for the terminal: success/failure lines,
// tables and progress bars. All functions are pure string transforms; no
// interactive state.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/taskforge/taskforge/internal/task"
)

// Styles holds the lipgloss styles used by the formatter.
type Styles struct {
	Title     lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Failure   lipgloss.Style
	Running   lipgloss.Style
	Warning   lipgloss.Style
	TableHead lipgloss.Style
}

func newStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#888"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	green := lipgloss.AdaptiveColor{Light: "#22863a", Dark: "#3fb950"}
	yellow := lipgloss.AdaptiveColor{Light: "#b08800", Dark: "#d29922"}
	red := lipgloss.AdaptiveColor{Light: "#cb2431", Dark: "#f85149"}
	blue := lipgloss.AdaptiveColor{Light: "#0366d6", Dark: "#58a6ff"}

	return &Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(highlight),
		Label:     lipgloss.NewStyle().Foreground(subtle),
		Value:     lipgloss.NewStyle().Bold(true),
		Muted:     lipgloss.NewStyle().Foreground(subtle),
		Success:   lipgloss.NewStyle().Foreground(green).Bold(true),
		Failure:   lipgloss.NewStyle().Foreground(red).Bold(true),
		Running:   lipgloss.NewStyle().Foreground(blue).Bold(true),
		Warning:   lipgloss.NewStyle().Foreground(yellow).Bold(true),
		TableHead: lipgloss.NewStyle().Bold(true).Foreground(subtle),
	}
}

// Formatter renders engine results as terminal text.
type Formatter struct {
	styles *Styles
}

// NewFormatter creates a formatter with the default style set.
func NewFormatter() *Formatter {
	return &Formatter{styles: newStyles()}
}

// Success renders a success line with an optional result value.
func (f *Formatter) Success(msg string, result any) string {
	line := f.styles.Success.Render("ok") + " " + msg
	if result != nil {
		line += "\n" + f.styles.Muted.Render(fmt.Sprintf("%v", result))
	}
	return line
}

// Failure renders a failure line carrying the error text.
func (f *Formatter) Failure(msg string, err error) string {
	line := f.styles.Failure.Render("failed") + " " + msg
	if err != nil {
		line += "\n" + f.styles.Muted.Render(err.Error())
	}
	return line
}

// StatusLine renders a task id with its colored status.
func (f *Formatter) StatusLine(id string, st task.Status) string {
	var style lipgloss.Style
	switch st {
	case task.StatusCompleted:
		style = f.styles.Success
	case task.StatusFailed, task.StatusCancelled:
		style = f.styles.Failure
	case task.StatusRunning, task.StatusRetrying:
		style = f.styles.Running
	case task.StatusPaused:
		style = f.styles.Warning
	default:
		style = f.styles.Muted
	}
	return fmt.Sprintf("%s  %s", style.Render(fmt.Sprintf("%-9s", string(st))), id)
}

// Table renders rows under a header, columns padded to the widest cell.
func (f *Formatter) Table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for i, h := range header {
		b.WriteString(f.styles.TableHead.Render(pad(h, widths[i])))
		if i < len(header)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			b.WriteString(pad(cell, widths[i]))
			if i < len(row)-1 && i < len(widths)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// pad right-fills to the rendered width, so styled and multi-byte cells
// line up.
func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// ProgressBar renders a bar for a 0..1 progress value. The color shifts
// from blue to green as the value approaches completion.
func (f *Formatter) ProgressBar(progress float64, width int) string {
	if width < 10 {
		width = 10
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filled := int(float64(width) * progress)
	bar := strings.Repeat("=", filled) + strings.Repeat("-", width-filled)

	style := f.styles.Running
	if progress >= 1 {
		style = f.styles.Success
	}
	return fmt.Sprintf("[%s] %3.0f%%", style.Render(bar), progress*100)
}

// Metrics renders a task metrics snapshot as label/value lines.
func (f *Formatter) Metrics(m task.Metrics) string {
	var b strings.Builder
	b.WriteString(f.styles.Label.Render("Attempts: "))
	b.WriteString(f.styles.Value.Render(fmt.Sprintf("%d", m.Attempts)))
	b.WriteString("\n")
	b.WriteString(f.styles.Label.Render("Duration: "))
	if m.Duration > 0 {
		b.WriteString(f.styles.Value.Render(formatDuration(m.Duration)))
	} else {
		b.WriteString(f.styles.Muted.Render("n/a"))
	}
	return b.String()
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}
