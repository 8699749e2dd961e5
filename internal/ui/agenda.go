package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/cadence/internal/dateutil"
	"github.com/javiermolinar/cadence/internal/task"
)

func (a *App) agendaCmd() *cobra.Command {
	var week string

	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Show the tasks of every project for one week",
		Long: `Display the tasks of all projects whose window overlaps one ISO week,
Monday through Sunday in the configured timezone.

Tasks are grouped by the day they start on. Tasks that started before
the week are listed under Monday.`,
		Example: `  cadence agenda
  cadence agenda --week=next-monday
  cadence agenda --week=2024-01-08`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ensureRepo(); err != nil {
				return err
			}

			ref := a.now().In(a.location())
			if week != "" {
				t, err := a.parseTimeFlag("week", week)
				if err != nil {
					return err
				}
				ref = t.In(a.location())
			}
			monday, nextMonday := dateutil.WeekRange(ref)

			ctx := context.Background()
			tasks, err := a.repo.ListTasksBetween(ctx, monday, nextMonday)
			if err != nil {
				return fmt.Errorf("fetching tasks: %w", err)
			}

			out := cmd.OutOrStdout()
			header := fmt.Sprintf("WEEK: %s - %s", monday.Format("Mon Jan 2"), nextMonday.AddDate(0, 0, -1).Format("Mon Jan 2, 2006"))
			fmt.Fprintf(out, "\n  %s\n", formatHeader(header))
			fmt.Fprintln(out, strings.Repeat("─", 74))

			if len(tasks) == 0 {
				fmt.Fprintln(out, "  No tasks planned for this week.")
				return nil
			}

			projects, err := a.repo.ListProjects(ctx)
			if err != nil {
				return fmt.Errorf("listing projects: %w", err)
			}
			names := make(map[string]string, len(projects))
			for _, p := range projects {
				names[p.ID] = p.Title
			}

			a.printAgenda(out, tasks, names, monday)
			return nil
		},
	}

	cmd.Flags().StringVar(&week, "week", "", "Any instant inside the week to show (default: this week)")
	return cmd
}

// printAgenda prints tasks grouped by start day. Tasks are expected in
// planned start order; those starting before monday are shown under it.
func (a *App) printAgenda(w io.Writer, tasks []*task.Task, projects map[string]string, monday time.Time) {
	maxTitle := termWidth() - 50
	if maxTitle < 20 {
		maxTitle = 20
	}

	var currentDay string
	for _, t := range tasks {
		start := t.PlannedStart.In(a.location())
		if start.Before(monday) {
			start = monday
		}

		day := start.Format("2006-01-02")
		if day != currentDay {
			if currentDay != "" {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "  %s\n", formatHeader(start.Format("Mon Jan 2")))
			currentDay = day
		}

		title := truncate(t.Title, maxTitle)
		if t.IsOverdue(a.now()) {
			title = formatAlert(title)
		}
		fmt.Fprintf(w, "    %s %s → %s  %s  %s\n",
			statusSymbol(t.Status),
			a.formatTime(t.PlannedStart),
			a.formatTime(t.PlannedEnd),
			title,
			formatMuted(projects[t.ProjectID]+" "+t.ID[:8]))
	}
}
