package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/leave"
	"github.com/balkashynov/punch/internal/models"
)

var leaveCmd = &cobra.Command{
	Use:   "leave",
	Short: "Record vacation, sick days and other leave",
}

var leaveAddCmd = &cobra.Command{
	Use:   "add <type>",
	Short: "Add a leave range",
	Long: `Add a leave range. Types vacation and sick count toward the day's
accounting, other types are recorded as-is.

Example:
  punch leave add vacation --from 2024-08-05 --to 2024-08-16 --approved`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		fromValue, _ := cmd.Flags().GetString("from")
		from, err := a.date(ctx, fromValue)
		if err != nil {
			return err
		}
		to := from
		if d, err := a.optionalDate(cmd, "to"); err != nil {
			return err
		} else if d != nil {
			to = *d
		}
		comment, _ := cmd.Flags().GetString("comment")
		approved, _ := cmd.Flags().GetBool("approved")

		entry, err := a.leave.CreateLeave(ctx, leave.Input{
			Start:    from,
			End:      to,
			Type:     args[0],
			Comment:  comment,
			Approved: approved,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Added %s #%d: %s – %s\n", entry.Type, entry.ID,
			clock.DateOf(entry.StartDate), clock.DateOf(entry.EndDate))
		return nil
	}),
}

var leaveLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List leave entries",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		from, err := a.optionalDate(cmd, "from")
		if err != nil {
			return err
		}
		to, err := a.optionalDate(cmd, "to")
		if err != nil {
			return err
		}
		typ, _ := cmd.Flags().GetString("type")

		entries, err := a.leave.ListLeaves(cmd.Context(), from, to, typ)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(out, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "No leave entries.")
			return nil
		}
		fmt.Fprintf(out, "%-5s %-10s %-10s %-10s %-5s %-8s %s\n", "ID", "TYPE", "FROM", "TO", "DAYS", "APPROVED", "COMMENT")
		for _, e := range entries {
			approved := "no"
			if e.Approved {
				approved = "yes"
			}
			fmt.Fprintf(out, "%-5d %-10s %-10s %-10s %-5d %-8s %s\n", e.ID, e.Type,
				clock.DateOf(e.StartDate), clock.DateOf(e.EndDate), e.Days, approved, e.Comment)
		}
		return nil
	}),
}

var leaveRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a leave entry",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := a.leave.DeleteLeave(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Deleted leave #%d\n", id)
		return nil
	}),
}

var leaveBalanceCmd = &cobra.Command{
	Use:   "balance [year]",
	Short: "Show the vacation balance of a year",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		today, err := a.today(ctx)
		if err != nil {
			return err
		}
		year := today.Year
		if len(args) == 1 {
			if year, err = strconv.Atoi(args[0]); err != nil || year < 1970 || year > 9999 {
				return apperr.Invalid("leave balance", "invalid year '%s'", args[0])
			}
		}

		balance, err := a.aggregate.VacationBalance(ctx, year)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(out, balance)
		}
		fmt.Fprintf(out, "🌴 Vacation %d\n", balance.Year)
		fmt.Fprintf(out, "Entitlement: %g days\n", balance.Entitlement)
		fmt.Fprintf(out, "Used:        %d days\n", balance.Used)
		fmt.Fprintf(out, "Remaining:   %g days\n", balance.Remaining)
		return nil
	}),
}

var holidayCmd = &cobra.Command{
	Use:   "holiday",
	Short: "Manage public holidays",
}

var holidayAddCmd = &cobra.Command{
	Use:   "add <date> <name>",
	Short: "Add or rename a holiday",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		day, err := a.date(ctx, args[0])
		if err != nil {
			return err
		}
		h, err := a.leave.AddHoliday(ctx, day, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Holiday %s: %s\n", day, h.Name)
		return nil
	}),
}

var holidayLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List holidays (default: this year)",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		today, err := a.today(ctx)
		if err != nil {
			return err
		}
		from := clock.NewDate(today.Year, time.January, 1)
		to := clock.NewDate(today.Year, time.December, 31)
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

		holidays, err := a.leave.ListHolidays(ctx, from, to)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(out, holidays)
		}
		if len(holidays) == 0 {
			fmt.Fprintf(out, "No holidays between %s and %s.\n", from, to)
			return nil
		}
		for _, h := range holidays {
			printHolidayLine(out, h)
		}
		return nil
	}),
}

func printHolidayLine(w io.Writer, h models.Holiday) {
	d := clock.DateOf(h.Day)
	fmt.Fprintf(w, "%s %s  %-30s %s\n", d, d.Weekday().String()[:3], h.Name, h.Source)
}

var holidayRmCmd = &cobra.Command{
	Use:   "rm <date>",
	Short: "Delete the holiday on a date",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		day, err := a.date(ctx, args[0])
		if err != nil {
			return err
		}
		if err := a.leave.DeleteHoliday(ctx, day); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Deleted holiday on %s\n", day)
		return nil
	}),
}

var holidayImportCmd = &cobra.Command{
	Use:   "import <file.ics>",
	Short: "Import holidays from an iCalendar file",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		f, err := os.Open(args[0])
		if err != nil {
			return apperr.Invalid("import holidays", "cannot open %s: %v", args[0], err)
		}
		defer f.Close()

		n, err := a.leave.ImportHolidays(cmd.Context(), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Imported %d holidays from %s\n", n, args[0])
		return nil
	}),
}

func init() {
	leaveAddCmd.Flags().String("from", "", "First day (default: today)")
	leaveAddCmd.Flags().String("to", "", "Last day (default: --from)")
	leaveAddCmd.Flags().String("comment", "", "Comment")
	leaveAddCmd.Flags().Bool("approved", false, "Mark as approved")

	leaveLsCmd.Flags().String("from", "", "Entries ending on or after this day")
	leaveLsCmd.Flags().String("to", "", "Entries starting on or before this day")
	leaveLsCmd.Flags().String("type", "", "Filter by type")
	leaveLsCmd.Flags().Bool("json", false, "JSON output")
	leaveBalanceCmd.Flags().Bool("json", false, "JSON output")

	holidayLsCmd.Flags().String("from", "", "First day")
	holidayLsCmd.Flags().String("to", "", "Last day")
	holidayLsCmd.Flags().Bool("json", false, "JSON output")

	leaveCmd.AddCommand(leaveAddCmd, leaveLsCmd, leaveRmCmd, leaveBalanceCmd)
	holidayCmd.AddCommand(holidayAddCmd, holidayLsCmd, holidayRmCmd, holidayImportCmd)
}
