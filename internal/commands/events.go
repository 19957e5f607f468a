package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/calendar"
	"github.com/balkashynov/punch/internal/calendar/google"
	"github.com/balkashynov/punch/internal/linker"
	"github.com/balkashynov/punch/internal/models"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List meetings and record whether you attended",
}

var eventsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "Sync the selected calendars and list events",
	Long: `Reconcile the selected remote calendars for the range, then list all
events in it. The range defaults to today and the following 30 days.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		from, err := a.optionalDate(cmd, "from")
		if err != nil {
			return err
		}
		to, err := a.optionalDate(cmd, "to")
		if err != nil {
			return err
		}

		events, err := a.calendar.ListEvents(ctx, from, to)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(out, events)
		}
		if len(events) == 0 {
			fmt.Fprintln(out, "No events.")
			return nil
		}
		s, err := a.snapshot(ctx)
		if err != nil {
			return err
		}
		for i := range events {
			printEventLine(out, &events[i], s.Loc())
		}
		return nil
	}),
}

var eventsAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a meeting by hand",
	Long: `Add a meeting by hand. An attended meeting gets its subtrack and
generated session right away.

Example:
  punch events add "1:1 with Sam" --start "2024-03-04 15:00" --end "2024-03-04 15:30" --status attended`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		startValue, _ := cmd.Flags().GetString("start")
		start, err := a.instant(ctx, startValue)
		if err != nil {
			return err
		}
		end := start.Add(calendar.DefaultDuration)
		if t, err := a.optionalInstant(cmd, "end"); err != nil {
			return err
		} else if t != nil {
			end = *t
		}
		location, _ := cmd.Flags().GetString("location")
		description, _ := cmd.Flags().GetString("description")
		status, _ := cmd.Flags().GetString("status")

		ev, err := a.linker.CreateEvent(ctx, linker.ManualEvent{
			Title:       strings.Join(args, " "),
			Start:       start,
			End:         end,
			Location:    location,
			Description: description,
			Status:      status,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Added event #%d \"%s\" (%s)\n", ev.ID, ev.Title, ev.Status)
		return nil
	}),
}

// participationCmd builds the command that sets one participation status
func participationCmd(use, status, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ev, err := a.linker.SetParticipation(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Event #%d \"%s\" is now %s\n", ev.ID, ev.Title, ev.Status)
			return nil
		}),
	}
}

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List the remote calendars of the configured account",
	Long: `List the remote calendars. Selected calendars are marked with *.
Select calendars with: punch settings set calendars "Work,Team"`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		calendars, err := a.calendar.ListCalendars(ctx, true)
		if err != nil {
			return err
		}
		s, err := a.snapshot(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(out, calendars)
		}
		selected := map[string]bool{}
		for _, cal := range calendar.Select(calendars, s.SelectedCalendars) {
			selected[cal.ID] = true
		}
		for _, cal := range calendars {
			mark := " "
			if selected[cal.ID] {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %-30s %s\n", mark, cal.Name, cal.ID)
		}
		return nil
	}),
}

var calendarsAuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize access to Google Calendar",
	Long: `Open the printed URL, grant read access, and paste the code back.
The token is stored in the configured google.token_file.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		s, err := a.snapshot(ctx)
		if err != nil {
			return err
		}
		if s.GoogleCredentialsFile == "" {
			return apperr.Invalid("calendars auth", "google.credentials_file is not configured")
		}
		oauthCfg, err := google.OAuthConfig(s.GoogleCredentialsFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		code, _ := cmd.Flags().GetString("code")
		if code == "" {
			fmt.Fprintf(out, "Open this link in your browser, then paste the authorization code:\n\n%s\n\nCode: ", google.AuthURL(oauthCfg))
			if code, err = readLine(cmd.InOrStdin()); err != nil {
				return err
			}
		}
		if code == "" {
			return apperr.Invalid("calendars auth", "no authorization code given")
		}
		if err := google.Exchange(ctx, oauthCfg, code, s.GoogleTokenFile); err != nil {
			return err
		}
		fmt.Fprintf(out, "✅ Token saved to %s\n", s.GoogleTokenFile)
		return nil
	}),
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the selected calendars",
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
		res, err := a.calendar.Sync(cmd.Context(), from, to)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.Calendars == 0 {
			fmt.Fprintln(out, "Nothing synced: no account configured or no selected calendar found.")
			return nil
		}
		fmt.Fprintf(out, "🔄 Synced %d calendars: %d created, %d updated, %d deleted, %d unchanged\n",
			res.Calendars, res.Created, res.Updated, res.Deleted, res.Unchanged)
		return nil
	}),
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printEventLine(w io.Writer, ev *models.CalendarEvent, loc *time.Location) {
	end := ev.EndTime
	source := ev.Source
	if source != models.SourceManual {
		source = "remote"
	}
	fmt.Fprintf(w, "%-5d %s %-13s %-10s %-7s %s\n", ev.ID,
		ev.StartTime.In(loc).Format("2006-01-02"), span(ev.StartTime, &end, loc),
		ev.Status, source, ev.Title)
}

func init() {
	for _, c := range []*cobra.Command{eventsLsCmd, syncCmd} {
		c.Flags().String("from", "", "First day (default: today)")
		c.Flags().String("to", "", "Last day (default: 30 days after --from)")
	}
	eventsLsCmd.Flags().Bool("json", false, "JSON output")

	eventsAddCmd.Flags().String("start", "", "Start time")
	eventsAddCmd.Flags().String("end", "", "End time (default: one hour after start)")
	eventsAddCmd.Flags().String("location", "", "Location")
	eventsAddCmd.Flags().String("description", "", "Description")
	eventsAddCmd.Flags().String("status", models.EventPending, "pending|attended|absent|cancelled")
	_ = eventsAddCmd.MarkFlagRequired("start")

	eventsCmd.AddCommand(eventsLsCmd, eventsAddCmd,
		participationCmd("attend", models.EventAttended, "Mark an event attended and log its time"),
		participationCmd("absent", models.EventAbsent, "Mark an event missed"),
		participationCmd("cancel", models.EventCancelled, "Mark an event cancelled"),
		participationCmd("reset", models.EventPending, "Reset an event to pending"),
	)

	calendarsCmd.Flags().Bool("json", false, "JSON output")
	calendarsAuthCmd.Flags().String("code", "", "Authorization code (prompted when empty)")
	calendarsCmd.AddCommand(calendarsAuthCmd)
}
