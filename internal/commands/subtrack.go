package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/punch/internal/linker"
	"github.com/balkashynov/punch/internal/models"
	"github.com/balkashynov/punch/internal/parser"
)

var subtrackCmd = &cobra.Command{
	Use:   "subtrack",
	Short: "Plan and log named work blocks",
	Long: `Subtracks are named blocks of a day. A subtrack with both a start and an
end gets a generated work session, which follows it on every change.`,
}

var subtrackAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a subtrack",
	Long: `Add a subtrack. Times without a date land on --day.

Example:
  punch subtrack add "Sprint planning #meeting @acme" --day 2024-03-04 --start 10:00 --end 11:30`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		parsed := parser.ParseDescription(strings.Join(args, " "))

		in := linker.SubtrackInput{Title: parsed.Comment}
		ref := a.clock.Now()
		day, err := a.optionalDate(cmd, "day")
		if err != nil {
			return err
		}
		if day != nil {
			s, err := a.snapshot(ctx)
			if err != nil {
				return err
			}
			in.Day = *day
			ref = day.In(s.Loc()).Add(12 * time.Hour)
		}
		for name, target := range map[string]**time.Time{"start": &in.Start, "end": &in.End} {
			if !cmd.Flags().Changed(name) {
				continue
			}
			value, _ := cmd.Flags().GetString(name)
			t, err := a.instantAt(ctx, value, ref)
			if err != nil {
				return err
			}
			*target = &t
		}
		if in.Day.IsZero() && in.Start == nil {
			if in.Day, err = a.today(ctx); err != nil {
				return err
			}
		}

		in.Project, _ = cmd.Flags().GetString("project")
		if in.Project == "" {
			in.Project = parsed.Project
		}
		tags, _ := cmd.Flags().GetStringSlice("tag")
		in.Tags = parser.MergeTags(parsed.Tags, tags...)
		in.Note, _ = cmd.Flags().GetString("note")

		st, err := a.linker.CreateSubtrack(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Added subtrack #%d \"%s\"\n", st.ID, st.Title)
		return nil
	}),
}

var subtrackEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a subtrack",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		var changes linker.SubtrackChanges
		if cmd.Flags().Changed("title") {
			title, _ := cmd.Flags().GetString("title")
			changes.Title = &title
		}
		if changes.Start, err = a.optionalInstant(cmd, "start"); err != nil {
			return err
		}
		if changes.End, err = a.optionalInstant(cmd, "end"); err != nil {
			return err
		}
		changes.ClearTimes, _ = cmd.Flags().GetBool("clear-times")
		if cmd.Flags().Changed("project") {
			project, _ := cmd.Flags().GetString("project")
			changes.Project = &project
		}
		if cmd.Flags().Changed("tag") {
			tags, _ := cmd.Flags().GetStringSlice("tag")
			tags = parser.MergeTags(tags)
			changes.Tags = &tags
		}
		if cmd.Flags().Changed("note") {
			note, _ := cmd.Flags().GetString("note")
			changes.Note = &note
		}

		st, err := a.linker.UpdateSubtrack(ctx, id, changes)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Updated subtrack #%d \"%s\"\n", st.ID, st.Title)
		return nil
	}),
}

var subtrackRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a subtrack and its generated session",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := a.linker.DeleteSubtrack(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Deleted subtrack #%d\n", id)
		return nil
	}),
}

var subtrackLsCmd = &cobra.Command{
	Use:   "ls [date]",
	Short: "List the subtracks of a day",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		value := ""
		if len(args) == 1 {
			value = args[0]
		}
		day, err := a.date(ctx, value)
		if err != nil {
			return err
		}
		subtracks, err := a.linker.ListSubtracks(ctx, day)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(out, subtracks)
		}
		if len(subtracks) == 0 {
			fmt.Fprintf(out, "No subtracks on %s.\n", day)
			return nil
		}
		s, err := a.snapshot(ctx)
		if err != nil {
			return err
		}
		for i := range subtracks {
			printSubtrackLine(out, &subtracks[i], s.Loc())
		}
		return nil
	}),
}

func printSubtrackLine(w io.Writer, st *models.WorkSubtrack, loc *time.Location) {
	when := "unscheduled"
	if st.StartTime != nil {
		when = span(*st.StartTime, st.EndTime, loc)
		if st.EndTime == nil {
			when = st.StartTime.In(loc).Format("15:04") + "–?"
		}
	}
	source := ""
	if st.CalendarEventID != nil {
		source = fmt.Sprintf("(event #%d)", *st.CalendarEventID)
	}
	fmt.Fprintf(w, "%-5d %-13s %-30s %-24s %s\n", st.ID, when, st.Title, labels(st.Project, st.Tags), source)
}

func init() {
	for _, c := range []*cobra.Command{subtrackAddCmd, subtrackEditCmd} {
		c.Flags().String("start", "", "Start time")
		c.Flags().String("end", "", "End time")
		c.Flags().StringP("project", "p", "", "Project name")
		c.Flags().StringSliceP("tag", "t", nil, "Tags")
		c.Flags().String("note", "", "Note")
	}
	subtrackAddCmd.Flags().String("day", "", "Day of the subtrack (default: day of --start, else today)")
	subtrackEditCmd.Flags().String("title", "", "New title")
	subtrackEditCmd.Flags().Bool("clear-times", false, "Remove start and end, dropping the generated session")
	subtrackLsCmd.Flags().Bool("json", false, "JSON output")

	subtrackCmd.AddCommand(subtrackAddCmd, subtrackEditCmd, subtrackRmCmd, subtrackLsCmd)
}
