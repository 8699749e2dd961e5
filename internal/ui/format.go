package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/javiermolinar/cadence/internal/dateutil"
	"github.com/javiermolinar/cadence/internal/task"
	"github.com/javiermolinar/cadence/internal/timing"
)

// formatTime formats an instant in the configured zone and layout.
func (a *App) formatTime(t time.Time) string {
	return t.In(a.location()).Format(a.config.UI.TimeFormat)
}

func (a *App) formatOptTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return a.formatTime(*t)
}

// printWindow prints the resolved window of a task.
func (a *App) printWindow(w io.Writer, win timing.Window) {
	fmt.Fprintf(w, "  %-9s %s\n", "start", a.formatTime(win.Start))
	fmt.Fprintf(w, "  %-9s %s\n", "end", a.formatTime(win.End))
	fmt.Fprintf(w, "  %-9s %s\n", "deadline", a.formatOptTime(win.Deadline))
	fmt.Fprintf(w, "  %-9s %s\n", "span", dateutil.FormatSpan(win.Span()))
}

// printWarnings prints the non-blocking notices of a resolution.
func printWarnings(w io.Writer, res timing.Resolution) {
	warnings := res.Warnings()
	if len(warnings) == 0 {
		return
	}

	lines := make([]string, len(warnings))
	for i, msg := range warnings {
		lines[i] = "warning: " + msg
	}
	fmt.Fprintln(w, warningBoxStyle.Render(warningStyle.Render(strings.Join(lines, "\n"))))
}

// printTaskDetail prints every field of a task. preds maps predecessor IDs
// to tasks and may be missing entries.
func (a *App) printTaskDetail(w io.Writer, t *task.Task, preds map[string]*task.Task) {
	fmt.Fprintf(w, "%s %s %s\n", statusSymbol(t.Status), formatHeader(t.Title), formatMuted("("+t.ID+")"))
	if t.Description != "" {
		fmt.Fprintf(w, "  %s\n", t.Description)
	}
	fmt.Fprintf(w, "  %-9s %s\n", "status", t.Status)
	fmt.Fprintf(w, "  %-9s %s\n", "duration", formatDays(t.Duration))
	if t.ParentID != nil {
		fmt.Fprintf(w, "  %-9s %s\n", "parent", formatID(*t.ParentID))
	}
	a.printWindow(w, t.Window())
	if t.IsOverdue(a.now()) {
		fmt.Fprintf(w, "  %s\n", formatAlert("overdue"))
	}

	if len(t.Dependencies) == 0 {
		return
	}
	fmt.Fprintln(w, "  depends on:")
	for _, d := range t.Dependencies {
		name := d.PredecessorID
		if p, ok := preds[d.PredecessorID]; ok {
			name = p.Title + " " + formatMuted("("+p.ID+")")
		}
		fmt.Fprintf(w, "    %s %s%s\n", d.Type, name, formatLag(d.LagHours))
	}
}

func formatDays(days float64) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%g days", days)
}

func formatLag(hours float64) string {
	if hours == 0 {
		return ""
	}
	return " " + dateutil.FormatHours(hours)
}

type taskRow struct {
	task  *task.Task
	depth int
}

// treeOrder lists top-level tasks in the given order, each followed by its
// subtasks. Tasks whose parent is not in the list are treated as top-level.
func treeOrder(tasks []*task.Task) []taskRow {
	present := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		present[t.ID] = true
	}

	children := make(map[string][]*task.Task)
	var roots []*task.Task
	for _, t := range tasks {
		if t.ParentID != nil && present[*t.ParentID] && *t.ParentID != t.ID {
			children[*t.ParentID] = append(children[*t.ParentID], t)
			continue
		}
		roots = append(roots, t)
	}

	out := make([]taskRow, 0, len(tasks))
	visited := make(map[string]bool, len(tasks))
	var walk func(t *task.Task, depth int)
	walk = func(t *task.Task, depth int) {
		if visited[t.ID] {
			return
		}
		visited[t.ID] = true
		out = append(out, taskRow{task: t, depth: depth})
		for _, c := range children[t.ID] {
			walk(c, depth+1)
		}
	}
	for _, t := range roots {
		walk(t, 0)
	}
	return out
}

// renderTaskTable renders the tasks of a project as a table.
func (a *App) renderTaskTable(tasks []*task.Task) string {
	titles := make(map[string]string, len(tasks))
	for _, t := range tasks {
		titles[t.ID] = t.Title
	}

	titleWidth := termWidth() - 110
	if titleWidth < 24 {
		titleWidth = 24
	}

	now := a.now()
	rows := treeOrder(tasks)
	data := make([][]string, 0, len(rows))
	overdue := make(map[int]bool)
	for i, r := range rows {
		t := r.task
		title := strings.Repeat("  ", r.depth)
		if r.depth > 0 {
			title += "↳ "
		}
		title += truncate(t.Title, titleWidth)

		if t.IsOverdue(now) {
			overdue[i] = true
		}

		data = append(data, []string{
			statusSymbol(t.Status),
			t.ID,
			title,
			a.formatTime(t.PlannedStart),
			a.formatTime(t.PlannedEnd),
			a.formatOptTime(t.Deadline),
			dateutil.FormatSpan(t.Window().Span()),
			formatDependencies(t.Dependencies, titles),
		})
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		BorderRow(false).
		Headers("", "ID", "TITLE", "START", "END", "DEADLINE", "SPAN", "AFTER").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if overdue[row] && col == 5 {
				return tableCellStyle.Foreground(lipgloss.Color("1"))
			}
			return tableCellStyle
		})

	return tbl.Render()
}

// formatDependencies renders dependencies as "FS Design +24h", using titles
// where known.
func formatDependencies(deps []task.Dependency, titles map[string]string) string {
	if len(deps) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(deps))
	for _, d := range deps {
		name, ok := titles[d.PredecessorID]
		if !ok {
			name = d.PredecessorID
		}
		parts = append(parts, fmt.Sprintf("%s %s%s", d.Type, truncate(name, 20), formatLag(d.LagHours)))
	}
	return strings.Join(parts, ", ")
}

// truncate shortens s to max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// progressBar renders done out of total as a bar of the given width.
func progressBar(done, total, width int) string {
	if total == 0 {
		return "[" + strings.Repeat("░", width) + "] (0% done)"
	}

	pct := (done * 100) / total
	filled := (done * width) / total

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s] %s", formatOK(bar), formatMuted(fmt.Sprintf("(%d%% done)", pct)))
}
