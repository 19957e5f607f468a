package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/balkashynov/punch/internal/models"
	"github.com/balkashynov/punch/internal/parser"
	"github.com/balkashynov/punch/internal/tracker"
	"github.com/balkashynov/punch/internal/tui"
)

var startCmd = &cobra.Command{
	Use:   "start [description]",
	Short: "Start a work session",
	Long: `Start a work session. Opens the interactive timer by default, use --no-ui for a plain start.

The description supports #tags and @project:
  punch start "Review PR #review @acme"
  punch start --at 08:45 --no-ui`,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		parsed := parser.ParseDescription(strings.Join(args, " "))

		project, _ := cmd.Flags().GetString("project")
		if project == "" {
			project = parsed.Project
		}
		comment, _ := cmd.Flags().GetString("comment")
		if comment == "" {
			comment = parsed.Comment
		}
		tags, _ := cmd.Flags().GetStringSlice("tag")

		at, err := a.optionalInstant(cmd, "at")
		if err != nil {
			return err
		}

		session, err := a.tracker.Start(ctx, tracker.StartRequest{
			Project:   project,
			Tags:      parser.MergeTags(parsed.Tags, tags...),
			Comment:   comment,
			StartTime: at,
		})
		if err != nil {
			return err
		}

		s, err := a.snapshot(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		noUI, _ := cmd.Flags().GetBool("no-ui")
		if noUI {
			fmt.Fprintf(out, "⏱️  Started session #%d %s\n", session.ID, labels(session.Project, session.Tags))
			fmt.Fprintf(out, "Started at: %s\n", session.StartTime.In(s.Loc()).Format("15:04:05"))
			return nil
		}

		result, err := tui.RunTimerTUI(session, tui.TimerActions{
			Toggle: func() (*models.WorkSession, error) {
				updated, _, err := a.tracker.PauseOrResume(ctx)
				return updated, err
			},
			Stop: func() (*models.WorkSession, error) {
				return a.tracker.Stop(ctx, nil)
			},
		}, s.Loc())
		if err != nil {
			return err
		}
		if result.Stopped {
			fmt.Fprintf(out, "⏹️  Stopped session #%d\n", result.Session.ID)
			fmt.Fprintf(out, "📊 Worked %s\n", parser.FormatSeconds(result.Session.WorkedSeconds()))
			return nil
		}
		fmt.Fprintf(out, "\n💡 Session #%d is still %s.\n", result.Session.ID, result.Session.Status)
		fmt.Fprintln(out, "   Use 'punch status' to check it or 'punch stop' to stop it.")
		return nil
	}),
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause or resume the open session",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		session, transition, err := a.tracker.PauseOrResume(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if transition == tracker.TransitionPaused {
			fmt.Fprintf(out, "⏸️  Paused session #%d\n", session.ID)
			return nil
		}
		fmt.Fprintf(out, "▶️  Resumed session #%d (paused %s so far)\n", session.ID, parser.FormatSeconds(session.PausedDuration))
		return nil
	}),
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the open session",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		var comment *string
		if cmd.Flags().Changed("comment") {
			c, _ := cmd.Flags().GetString("comment")
			comment = &c
		}
		session, err := a.tracker.Stop(cmd.Context(), comment)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "⏹️  Stopped session #%d\n", session.ID)
		fmt.Fprintf(out, "Session duration: %s (paused %s)\n",
			parser.FormatSeconds(session.WorkedSeconds()), parser.FormatSeconds(session.PausedDuration))
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the open session and today's total",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		s, err := a.snapshot(ctx)
		if err != nil {
			return err
		}
		loc := s.Loc()
		now := a.clock.Now()
		out := cmd.OutOrStdout()

		session, err := a.tracker.Active(ctx)
		if err != nil {
			return err
		}
		running := 0
		if session == nil {
			fmt.Fprintln(out, "No open session")
		} else {
			running = session.ElapsedSeconds(now)
			icon := "⏱️ "
			if session.Status == models.StatusPaused {
				icon = "⏸️ "
			}
			fmt.Fprintf(out, "%s Session #%d is %s %s\n", icon, session.ID, session.Status, labels(session.Project, session.Tags))
			if session.Comment != "" {
				fmt.Fprintf(out, "Comment: %s\n", session.Comment)
			}
			fmt.Fprintf(out, "Started at: %s\n", session.StartTime.In(loc).Format("15:04:05"))
			fmt.Fprintf(out, "Elapsed time: %s (paused %s)\n", parser.FormatSeconds(running), parser.FormatSeconds(session.PausedDuration))
		}

		today, err := a.today(ctx)
		if err != nil {
			return err
		}
		summary, err := a.aggregate.DayOverview(ctx, today)
		if err != nil {
			return err
		}
		worked := summary.WorkSeconds + running
		fmt.Fprintf(out, "Today: %s of %s expected\n", parser.FormatSeconds(worked), parser.FormatSeconds(summary.ExpectedSeconds))
		return nil
	}),
}

var manualCmd = &cobra.Command{
	Use:   "manual [description]",
	Short: "Record a finished session",
	Long: `Record a finished session between --from and --to.

Example:
  punch manual --from "2024-03-01 09:00" --to "2024-03-01 12:30" "Workshop #training @acme"`,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		parsed := parser.ParseDescription(strings.Join(args, " "))

		fromValue, _ := cmd.Flags().GetString("from")
		toValue, _ := cmd.Flags().GetString("to")
		from, err := a.instant(ctx, fromValue)
		if err != nil {
			return err
		}
		to, err := a.instant(ctx, toValue)
		if err != nil {
			return err
		}

		project, _ := cmd.Flags().GetString("project")
		if project == "" {
			project = parsed.Project
		}
		comment, _ := cmd.Flags().GetString("comment")
		if comment == "" {
			comment = parsed.Comment
		}
		tags, _ := cmd.Flags().GetStringSlice("tag")

		session, err := a.tracker.CreateManual(ctx, tracker.ManualRequest{
			Start:   from,
			Stop:    to,
			Project: project,
			Tags:    parser.MergeTags(parsed.Tags, tags...),
			Comment: comment,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Recorded session #%d: %s\n", session.ID, parser.FormatSeconds(session.WorkedSeconds()))
		return nil
	}),
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a stopped session",
	Long: `Edit a stopped session. Only the given flags change.

Example:
  punch edit 12 --start 08:30 --tag review,backend`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		var changes tracker.SessionChanges
		if changes.Start, err = a.optionalInstant(cmd, "start"); err != nil {
			return err
		}
		if changes.Stop, err = a.optionalInstant(cmd, "stop"); err != nil {
			return err
		}
		if cmd.Flags().Changed("project") {
			project, _ := cmd.Flags().GetString("project")
			changes.Project = &project
		}
		if cmd.Flags().Changed("tag") {
			tags, _ := cmd.Flags().GetStringSlice("tag")
			tags = parser.MergeTags(tags)
			changes.Tags = &tags
		}
		if cmd.Flags().Changed("comment") {
			comment, _ := cmd.Flags().GetString("comment")
			changes.Comment = &comment
		}

		session, err := a.tracker.Edit(cmd.Context(), id, changes)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Updated session #%d: %s\n", session.ID, parser.FormatSeconds(session.WorkedSeconds()))
		return nil
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := a.tracker.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Deleted session #%d\n", id)
		return nil
	}),
}

func init() {
	for _, c := range []*cobra.Command{startCmd, manualCmd, editCmd} {
		c.Flags().StringP("project", "p", "", "Project name")
		c.Flags().StringSliceP("tag", "t", nil, "Tags (comma-separated or repeated)")
		c.Flags().StringP("comment", "c", "", "Comment")
	}
	startCmd.Flags().String("at", "", "Start time (hh:mm, yyyy-mm-dd hh:mm, -15m)")
	startCmd.Flags().Bool("no-ui", false, "Start without the interactive timer")

	stopCmd.Flags().StringP("comment", "c", "", "Replace the session comment")

	manualCmd.Flags().String("from", "", "Start time")
	manualCmd.Flags().String("to", "", "Stop time")
	_ = manualCmd.MarkFlagRequired("from")
	_ = manualCmd.MarkFlagRequired("to")

	editCmd.Flags().String("start", "", "New start time")
	editCmd.Flags().String("stop", "", "New stop time")
}
