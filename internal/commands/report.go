package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/models"
	"github.com/balkashynov/punch/internal/parser"
	"github.com/balkashynov/punch/internal/tui"
)

var dayCmd = &cobra.Command{
	Use:   "day [date]",
	Short: "Show the sessions, subtracks and summary of a day",
	Long: `Show one day. The date defaults to today and accepts yyyy-mm-dd,
dd/mm/yyyy, yesterday or -Nd.`,
	Args: cobra.MaximumNArgs(1),
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

		summary, err := a.aggregate.DayOverview(ctx, day)
		if err != nil {
			return err
		}
		sessions, err := a.tracker.ListDay(ctx, day)
		if err != nil {
			return err
		}
		subtracks, err := a.linker.ListSubtracks(ctx, day)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(out, map[string]any{
				"summary":   summary,
				"sessions":  sessions,
				"subtracks": subtracks,
			})
		}

		s, err := a.snapshot(ctx)
		if err != nil {
			return err
		}
		loc := s.Loc()
		now := a.clock.Now()

		fmt.Fprintf(out, "📅 %s (%s)\n\n", day, day.Weekday())
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No sessions.")
		} else {
			fmt.Fprintf(out, "%-5s %s %-13s %-8s %-9s %-24s %s\n", "ID", " ", "TIME", "WORKED", "STATUS", "LABELS", "COMMENT")
			for i := range sessions {
				printSessionLine(out, &sessions[i], now, loc)
			}
		}

		if len(subtracks) > 0 {
			fmt.Fprintln(out, "\nSubtracks:")
			for i := range subtracks {
				printSubtrackLine(out, &subtracks[i], loc)
			}
		}

		fmt.Fprintln(out)
		printSummary(out, summary)
		return nil
	}),
}

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Summarize a range of days",
	Long: `Summarize every day between --from and --to (inclusive). The range
defaults to the current month up to today.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		today, err := a.today(ctx)
		if err != nil {
			return err
		}
		from := clock.NewDate(today.Year, today.Month, 1)
		to := today
		if d, err := a.optionalDate(cmd, "from"); err != nil {
			return err
		} else if d != nil {
			from = *d
		}
		if d, err := a.optionalDate(cmd, "to"); err != nil {
			return err
		} else if d != nil {
			to = *d
		}

		days, err := a.aggregate.RangeOverview(ctx, from, to)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		title := fmt.Sprintf("%s – %s", from, to)
		if ui, _ := cmd.Flags().GetBool("ui"); ui {
			return tui.RunOverviewTUI(title, days)
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(out, map[string]any{
				"from":   from.String(),
				"to":     to.String(),
				"days":   days,
				"totals": tui.SumDays(days),
			})
		}

		fmt.Fprintf(out, "📊 %s\n\n", title)
		row := "%-10s %-3s %-8s %-8s %-8s %-8s %-8s %-9s %s\n"
		header := make([]any, len(tui.OverviewColumns))
		for i, c := range tui.OverviewColumns {
			header[i] = strings.ToUpper(c)
		}
		fmt.Fprintf(out, row, header...)
		for _, r := range tui.OverviewRows(days) {
			values := make([]any, len(r))
			for i, v := range r {
				values[i] = v
			}
			fmt.Fprintf(out, row, values...)
		}

		t := tui.SumDays(days)
		fmt.Fprintf(out, "\nTotal: worked %s of %s expected, vacation %s, sick %s, overtime %s\n",
			parser.FormatSeconds(t.Work), parser.FormatSeconds(t.Expected),
			parser.FormatSeconds(t.Vacation), parser.FormatSeconds(t.Sick), parser.FormatSeconds(t.Overtime))
		return nil
	}),
}

func printSummary(w io.Writer, d *models.DaySummary) {
	fmt.Fprintf(w, "Worked:   %s (paused %s)\n", parser.FormatSeconds(d.WorkSeconds), parser.FormatSeconds(d.PauseSeconds))
	fmt.Fprintf(w, "Expected: %s\n", parser.FormatSeconds(d.ExpectedSeconds))
	if d.VacationSeconds > 0 {
		fmt.Fprintf(w, "Vacation: %s\n", parser.FormatSeconds(d.VacationSeconds))
	}
	if d.SickSeconds > 0 {
		fmt.Fprintf(w, "Sick:     %s\n", parser.FormatSeconds(d.SickSeconds))
	}
	fmt.Fprintf(w, "Overtime: %s\n", parser.FormatSeconds(d.OvertimeSeconds))
	if notes := tui.DayNotes(*d); notes != "" {
		fmt.Fprintf(w, "Notes:    %s\n", notes)
	}
}

func init() {
	dayCmd.Flags().Bool("json", false, "JSON output")

	overviewCmd.Flags().String("from", "", "First day (default: first of this month)")
	overviewCmd.Flags().String("to", "", "Last day (default: today)")
	overviewCmd.Flags().Bool("ui", false, "Interactive table")
	overviewCmd.Flags().Bool("json", false, "JSON output")
}
