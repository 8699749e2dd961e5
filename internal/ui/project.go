package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/cadence/internal/dateutil"
	"github.com/javiermolinar/cadence/internal/summary"
	"github.com/javiermolinar/cadence/internal/task"
)

func (a *App) projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(a.projectAddCmd())
	cmd.AddCommand(a.projectListCmd())
	cmd.AddCommand(a.projectShowCmd())
	return cmd
}

func (a *App) projectAddCmd() *cobra.Command {
	var deadline string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a project",
		Long: `Create a project.

The project deadline is where tasks without dates are placed, and the
limit that tasks are pulled back under when dependencies allow it.`,
		Example: `  cadence project add "Website relaunch" --deadline=2025-03-01`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureRepo(); err != nil {
				return err
			}

			d, err := a.parseTimeFlag("deadline", deadline)
			if err != nil {
				return err
			}

			p, err := task.NewProject(args[0], d)
			if err != nil {
				return err
			}
			if err := a.repo.CreateProject(context.Background(), p); err != nil {
				return fmt.Errorf("creating project: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s project %s: %s\n", formatOK("Created"), formatID(p.ID), p.Title)
			if p.Deadline != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  deadline  %s\n", a.formatTime(*p.Deadline))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&deadline, "deadline", "", "Project deadline")
	return cmd
}

func (a *App) projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ensureRepo(); err != nil {
				return err
			}

			projects, err := a.repo.ListProjects(context.Background())
			if err != nil {
				return fmt.Errorf("listing projects: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(projects) == 0 {
				fmt.Fprintln(out, "No projects yet. Create one with 'cadence project add'.")
				return nil
			}

			for _, p := range projects {
				fmt.Fprintf(out, "%s  %s", formatID(p.ID), p.Title)
				if p.Deadline != nil {
					fmt.Fprintf(out, "  %s", formatMuted("due "+a.formatTime(*p.Deadline)))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func (a *App) projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show <project-id>",
		Short:   "Show project progress and how the plan fits the deadline",
		Example: `  cadence project show <id>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureRepo(); err != nil {
				return err
			}

			sum, err := summary.Build(context.Background(), a.repo, args[0], a.now())
			if err != nil {
				return err
			}

			a.printProjectSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}
}

func (a *App) printProjectSummary(w io.Writer, sum *summary.ProjectSummary) {
	p, st := sum.Project, sum.Stats

	fmt.Fprintf(w, "=== %s ===\n", formatHeader(p.Title))
	fmt.Fprintf(w, "  %-9s %s\n", "id", formatID(p.ID))
	fmt.Fprintf(w, "  %-9s %s\n", "deadline", a.formatOptTime(p.Deadline))

	if st.Total == 0 {
		fmt.Fprintln(w, "No tasks planned yet.")
		return
	}

	if !sum.End.IsZero() {
		fmt.Fprintf(w, "  %-9s %s\n", "start", a.formatTime(sum.Start))
		fmt.Fprintf(w, "  %-9s %s\n", "end", a.formatTime(sum.End))
		fmt.Fprintf(w, "  %-9s %s\n", "span", dateutil.FormatSpan(sum.Span()))
	}
	if slack, ok := sum.Slack(); ok {
		if slack < 0 {
			fmt.Fprintf(w, "  %-9s %s\n", "slack", formatAlert("late by "+dateutil.FormatSpan(-slack)))
		} else {
			fmt.Fprintf(w, "  %-9s %s\n", "slack", dateutil.FormatSpan(slack))
		}
	}

	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "  Tasks: %d (%d subtasks)  |  Planned work: %s\n", st.Total, st.Subtasks, formatDays(st.PlannedDays))
	fmt.Fprintf(w, "  %s %d  %s %d  %s %d  %s %d  %s %d\n",
		statusSymbol(task.StatusPlanned), st.Planned,
		statusSymbol(task.StatusInProgress), st.InProgress,
		statusSymbol(task.StatusDone), st.Done,
		statusSymbol(task.StatusBlocked), st.Blocked,
		statusSymbol(task.StatusCancelled), st.Cancelled)
	fmt.Fprintf(w, "  Progress: %s\n", progressBar(st.Done, st.Active(), 20))

	if st.Overdue > 0 {
		fmt.Fprintf(w, "  %s\n", formatAlert(fmt.Sprintf("Overdue: %d", st.Overdue)))
	}
	if st.PastDeadline > 0 {
		fmt.Fprintf(w, "  %s\n", formatAlert(fmt.Sprintf("Ending after the project deadline: %d", st.PastDeadline)))
	}
}
