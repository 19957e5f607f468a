package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var helpCmd = &cobra.Command{
	Use:   "help [command]",
	Short: "Show comprehensive help for punch",
	Long:  `Display detailed help for all punch commands, or cobra help for one command.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) > 0 {
			if target, _, err := rootCmd.Find(args); err == nil && target != rootCmd {
				_ = target.Help()
				return
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), customHelp)
	},
}

const customHelp = `
██████╗ ██╗   ██╗███╗   ██╗ ██████╗██╗  ██╗
██╔══██╗██║   ██║████╗  ██║██╔════╝██║  ██║
██████╔╝██║   ██║██╔██╗ ██║██║     ███████║
██╔═══╝ ██║   ██║██║╚██╗██║██║     ██╔══██║
██║     ╚██████╔╝██║ ╚████║╚██████╗██║  ██║
╚═╝      ╚═════╝ ╚═╝  ╚═══╝ ╚═════╝╚═╝  ╚═╝

punch - work time accounting

SESSIONS:

  start [description]     Start a work session (opens the live timer)
    -p, --project         Project name
    -t, --tag             Tags (comma-separated)
    -c, --comment         Comment
    --at                  Start time (09:15, "2024-03-01 09:15", -20m)
    --no-ui               Skip the interactive timer

    Smart syntax:
      #tags         Add tags
      @project      Set project

    Example:
      punch start "Code review #review @acme"

    Timer keys:
      p             Pause/resume
      s             Stop & save
      esc/q         Leave the timer, session keeps running

  pause                   Pause the open session, or resume it
  stop                    Stop the open session
    -c, --comment         Replace the comment
  status                  Show the open session and today's total
  manual [description]    Record a finished session
    --from, --to          Start and stop time (required)
  edit <id>               Edit a stopped session
    --start, --stop, --project, --tag, --comment
  delete <id>             Delete a session

REPORTS:

  day [date]              Sessions, subtracks and summary of a day
  overview                Expected hours and overtime per day
    --from, --to          Range (default: this month)
    --ui                  Interactive table
    --json                JSON output

SUBTRACKS:

  subtrack add <title>    Named block; with --start and --end it logs time
  subtrack edit <id>      Change it; --clear-times removes the logged time
  subtrack rm <id>        Delete it and its logged time
  subtrack ls [date]      List a day's subtracks

LEAVE & HOLIDAYS:

  leave add <type>        vacation, sick or any other type
    --from, --to          Inclusive range
    --approved            Mark approved
  leave ls                List entries with effective days
  leave rm <id>           Delete an entry
  leave balance [year]    Vacation entitlement, used and remaining days

  holiday add <date> <name>
  holiday ls              This year's holidays
  holiday rm <date>
  holiday import <file.ics>

CALENDARS:

  calendars               List remote calendars (* = selected)
  calendars auth          Authorize Google Calendar access
  sync                    Mirror the selected calendars (--from, --to)
  events ls               Sync, then list events (default: next 30 days)
  events add <title>      Add a meeting by hand (--start, --end, --status)
  events attend <id>      Attended: logs the meeting as work
  events absent <id>      Missed: removes logged time
  events cancel <id>      Cancelled
  events reset <id>       Back to pending

SETTINGS:

  settings show           Effective settings
  settings set <name> <value>
  settings unset <name>
  settings init           Write a commented config file

  Global flags:
    --config              Config file (default: $XDG_CONFIG_HOME/punch/config.toml)
    --db                  Database path
    --log-level           debug|info|warn|error

EXIT CODES:

  0 ok · 1 error · 2 invalid input · 3 conflict · 4 not found · 5 calendar unavailable
`
