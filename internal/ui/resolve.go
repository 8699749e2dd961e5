package ui

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/cadence/internal/timing"
)

var errParentPair = errors.New("--parent-start and --parent-end must be given together")

func (a *App) resolveCmd() *cobra.Command {
	var (
		start           string
		end             string
		deadline        string
		duration        float64
		parentStart     string
		parentEnd       string
		projectDeadline string
		preds           []string
		deps            []string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a window without touching the database",
		Long: `Resolve a task window from explicit input only.

Predecessors are named windows given with --pred NAME=START,END and
referenced from --dep NAME[:TYPE[:LAG_HOURS]]. Nothing is read from or
written to the database.`,
		Example: `  cadence resolve --duration=2 --pred=design=2024-01-08,2024-01-10 --dep=design:FS:24
  cadence resolve --duration=10 --parent-start=2024-01-01 --parent-end=2024-01-05
  cadence resolve --project-deadline=2024-02-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				in  = timing.Input{DurationDays: duration}
				b   timing.Bounds
				err error
			)
			if in.PlannedStart, err = a.parseTimeFlag("start", start); err != nil {
				return err
			}
			if in.PlannedEnd, err = a.parseTimeFlag("end", end); err != nil {
				return err
			}
			if in.Deadline, err = a.parseTimeFlag("deadline", deadline); err != nil {
				return err
			}
			if b.ProjectDeadline, err = a.parseTimeFlag("project-deadline", projectDeadline); err != nil {
				return err
			}

			ps, err := a.parseTimeFlag("parent-start", parentStart)
			if err != nil {
				return err
			}
			pe, err := a.parseTimeFlag("parent-end", parentEnd)
			if err != nil {
				return err
			}
			switch {
			case ps != nil && pe != nil:
				b.Parent = &timing.Window{Start: *ps, End: *pe}
			case ps != nil || pe != nil:
				return errParentPair
			}

			windows := make(map[string]timing.Window, len(preds))
			for _, v := range preds {
				name, w, err := a.parsePredecessor(v)
				if err != nil {
					return err
				}
				windows[name] = w
			}
			for _, v := range deps {
				c, err := parseConstraint(v, windows)
				if err != nil {
					return fmt.Errorf("--dep: %w", err)
				}
				in.Dependencies = append(in.Dependencies, c)
			}

			res, err := a.resolver().Resolve(in, b)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, formatHeader("Resolved window:"))
			a.printWindow(out, res.Window)
			printWarnings(out, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Planned start")
	cmd.Flags().StringVar(&end, "end", "", "Planned end")
	cmd.Flags().StringVar(&deadline, "deadline", "", "Task deadline")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Duration in days")
	cmd.Flags().StringVar(&parentStart, "parent-start", "", "Parent window start")
	cmd.Flags().StringVar(&parentEnd, "parent-end", "", "Parent window end")
	cmd.Flags().StringVar(&projectDeadline, "project-deadline", "", "Project deadline")
	cmd.Flags().StringArrayVar(&preds, "pred", nil, "Named predecessor window NAME=START,END (repeatable)")
	cmd.Flags().StringArrayVar(&deps, "dep", nil, "Dependency NAME[:TYPE[:LAG_HOURS]] on a named predecessor (repeatable)")

	return cmd
}
