package ui

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/cadence/internal/dateutil"
	"github.com/javiermolinar/cadence/internal/scheduler"
	"github.com/javiermolinar/cadence/internal/task"
)

func (a *App) taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Plan and manage tasks",
	}
	cmd.AddCommand(a.taskAddCmd())
	cmd.AddCommand(a.taskEditCmd())
	cmd.AddCommand(a.taskListCmd())
	cmd.AddCommand(a.taskShowCmd())
	cmd.AddCommand(a.taskShiftCmd())
	cmd.AddCommand(a.taskStatusCmd())
	cmd.AddCommand(a.taskRemoveCmd())
	return cmd
}

func (a *App) taskAddCmd() *cobra.Command {
	var (
		projectID   string
		parentID    string
		description string
		start       string
		end         string
		deadline    string
		duration    float64
		deps        []string
		preview     bool
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Plan a new task",
		Long: `Plan a new task from any mix of dates, duration and dependencies.

Dates accept RFC 3339, YYYY-MM-DDTHH:MM, YYYY-MM-DD HH:MM, YYYY-MM-DD and
keywords such as tomorrow or next-friday. Dates without a zone are read
in the configured timezone.

Dependencies are PREDECESSOR_ID:TYPE[:LAG_HOURS] where TYPE is one of
FS (finish-to-start, default), SS, FF or SF. Negative lag is lead time.`,
		Example: `  cadence task add "Design" --project=<id> --start=2025-01-08 --duration=2
  cadence task add "Build" --project=<id> --duration=2 --dep=<design-id>:FS:24
  cadence task add "Review" --project=<id> --parent=<build-id> --duration=0.5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}

			d := scheduler.Draft{
				ProjectID:    projectID,
				ParentID:     parentID,
				Title:        args[0],
				Description:  description,
				DurationDays: duration,
			}
			if !cmd.Flags().Changed("duration") {
				d.DurationDays = a.config.Schedule.DefaultDurationDays
			}
			if d.Start, err = a.parseTimeFlag("start", start); err != nil {
				return err
			}
			if d.End, err = a.parseTimeFlag("end", end); err != nil {
				return err
			}
			if d.Deadline, err = a.parseTimeFlag("deadline", deadline); err != nil {
				return err
			}
			if d.Dependencies, err = parseDependencies(deps); err != nil {
				return err
			}

			ctx := context.Background()
			out := cmd.OutOrStdout()

			if preview {
				res, err := svc.Preview(ctx, d)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s\n", formatHeader("Preview:"), d.Title)
				a.printWindow(out, res.Window)
				printWarnings(out, res)
				return nil
			}

			t, res, err := svc.PlanTask(ctx, d)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s task %s: %s\n", formatOK("Created"), formatID(t.ID), t.Title)
			a.printWindow(out, t.Window())
			printWarnings(out, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	cmd.Flags().StringVar(&parentID, "parent", "", "Parent task ID")
	cmd.Flags().StringVar(&description, "description", "", "Task description")
	cmd.Flags().StringVar(&start, "start", "", "Planned start")
	cmd.Flags().StringVar(&end, "end", "", "Planned end")
	cmd.Flags().StringVar(&deadline, "deadline", "", "Deadline (defaults to the planned end)")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Duration in days, fractions allowed (default from config)")
	cmd.Flags().StringArrayVar(&deps, "dep", nil, "Dependency PREDECESSOR_ID:TYPE[:LAG_HOURS] (repeatable)")
	cmd.Flags().BoolVar(&preview, "preview", false, "Resolve and print the window without saving")

	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func (a *App) taskEditCmd() *cobra.Command {
	var (
		title         string
		description   string
		start         string
		end           string
		deadline      string
		clearDeadline bool
		duration      float64
		deps          []string
		clearDeps     bool
		status        string
	)

	cmd := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Edit a task and plan it again",
		Long: `Edit a task and resolve its window again.

Without --start or --end the current start is kept, and so is the
current end unless --duration changes. Tasks that depend on this one
are not moved.`,
		Example: `  cadence task edit <id> --duration=3
  cadence task edit <id> --dep=<pred-id>:SS:-12
  cadence task edit <id> --clear-deadline`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			var e scheduler.Edit
			if flags.Changed("title") {
				e.Title = &title
			}
			if flags.Changed("description") {
				e.Description = &description
			}
			if flags.Changed("duration") {
				e.DurationDays = &duration
			}
			if flags.Changed("status") {
				st, err := task.ParseStatus(status)
				if err != nil {
					return err
				}
				e.Status = &st
			}
			if e.Start, err = a.parseTimeFlag("start", start); err != nil {
				return err
			}
			if e.End, err = a.parseTimeFlag("end", end); err != nil {
				return err
			}
			if e.Deadline, err = a.parseTimeFlag("deadline", deadline); err != nil {
				return err
			}
			e.ClearDeadline = clearDeadline
			switch {
			case clearDeps:
				empty := []task.Dependency{}
				e.Dependencies = &empty
			case flags.Changed("dep"):
				parsed, err := parseDependencies(deps)
				if err != nil {
					return err
				}
				e.Dependencies = &parsed
			}

			t, res, err := svc.ReplanTask(context.Background(), args[0], e)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s task %s: %s\n", formatOK("Updated"), formatID(t.ID), t.Title)
			a.printWindow(out, t.Window())
			printWarnings(out, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&start, "start", "", "New planned start")
	cmd.Flags().StringVar(&end, "end", "", "New planned end")
	cmd.Flags().StringVar(&deadline, "deadline", "", "New deadline")
	cmd.Flags().BoolVar(&clearDeadline, "clear-deadline", false, "Remove the deadline so it follows the end")
	cmd.Flags().Float64Var(&duration, "duration", 0, "New duration in days")
	cmd.Flags().StringArrayVar(&deps, "dep", nil, "Replace dependencies with PREDECESSOR_ID:TYPE[:LAG_HOURS] (repeatable)")
	cmd.Flags().BoolVar(&clearDeps, "clear-deps", false, "Remove all dependencies")
	cmd.Flags().StringVar(&status, "status", "", "New status: Planned, InProgress, Done, Blocked, Cancelled")

	cmd.MarkFlagsMutuallyExclusive("deadline", "clear-deadline")
	cmd.MarkFlagsMutuallyExclusive("dep", "clear-deps")

	return cmd
}

func (a *App) taskListCmd() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List the tasks of a project",
		Example: `  cadence task list --project=<id>`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ensureRepo(); err != nil {
				return err
			}

			ctx := context.Background()
			p, err := a.repo.GetProject(ctx, projectID)
			if err != nil {
				return err
			}
			tasks, err := a.repo.ListProjectTasks(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("listing tasks: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "=== %s ===\n", formatHeader(p.Title))
			if p.Deadline != nil {
				fmt.Fprintf(out, "%s\n", formatMuted("due "+a.formatTime(*p.Deadline)))
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks planned yet.")
				return nil
			}
			fmt.Fprintln(out, a.renderTaskTable(tasks))
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func (a *App) taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task and its dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureRepo(); err != nil {
				return err
			}

			ctx := context.Background()
			t, err := a.repo.GetTask(ctx, args[0])
			if err != nil {
				return err
			}

			preds := map[string]*task.Task{}
			if len(t.Dependencies) > 0 {
				ids := make([]string, 0, len(t.Dependencies))
				for _, d := range t.Dependencies {
					ids = append(ids, d.PredecessorID)
				}
				if preds, err = a.repo.GetTasks(ctx, ids); err != nil {
					return fmt.Errorf("loading predecessors: %w", err)
				}
			}

			a.printTaskDetail(cmd.OutOrStdout(), t, preds)
			return nil
		},
	}
}

func (a *App) taskShiftCmd() *cobra.Command {
	var hours float64

	cmd := &cobra.Command{
		Use:   "shift <task-id>",
		Short: "Move a task by a number of hours",
		Long: `Move a task's start, end and deadline by the same number of hours.

The window keeps its length. Constraints are not checked again and tasks
that depend on this one are not moved.`,
		Example: `  cadence task shift <id> --hours=24
  cadence task shift <id> --hours=-2.5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}

			t, err := svc.ShiftTask(context.Background(), args[0], hours)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s task %s by %s: %s\n", formatOK("Shifted"), formatID(t.ID), dateutil.FormatHours(hours), t.Title)
			a.printWindow(out, t.Window())
			return nil
		},
	}

	cmd.Flags().Float64Var(&hours, "hours", 0, "Hours to move by, negative moves earlier (required)")
	_ = cmd.MarkFlagRequired("hours")

	return cmd
}

func (a *App) taskStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status <task-id> <status>",
		Short:   "Set the status of a task",
		Long:    `Set the status of a task to Planned, InProgress, Done, Blocked or Cancelled.`,
		Example: `  cadence task status <id> done`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureRepo(); err != nil {
				return err
			}

			st, err := task.ParseStatus(args[1])
			if err != nil {
				return err
			}
			if err := a.repo.SetTaskStatus(context.Background(), args[0], st); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s task %s %s\n", statusSymbol(st), formatID(args[0]), st)
			return nil
		},
	}
}

func (a *App) taskRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <task-id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a task, its subtasks and its dependency links",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureRepo(); err != nil {
				return err
			}

			if err := a.repo.DeleteTask(context.Background(), args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s task %s\n", formatOK("Deleted"), formatID(args[0]))
			return nil
		},
	}
}
