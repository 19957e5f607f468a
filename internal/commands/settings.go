package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/config"
	"github.com/balkashynov/punch/internal/parser"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		s, err := a.snapshot(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		password := ""
		if s.CalDAVPassword != "" {
			password = "********"
		}
		hours := func(h *float64) string {
			if h == nil {
				return "unset"
			}
			return strconv.FormatFloat(*h, 'f', -1, 64)
		}

		rows := [][2]string{
			{"config file", configPath},
			{"database", a.cfg.DatabasePath},
			{"timezone", s.Loc().String()},
			{"expected daily hours", hours(s.ExpectedDailyHours)},
			{"expected weekly hours", hours(s.ExpectedWeeklyHours)},
			{"daily baseline", parser.FormatSeconds(s.ExpectedDailySeconds())},
			{"vacation days per year", strconv.FormatFloat(s.VacationDaysPerYear, 'f', -1, 64)},
			{"vacation carryover", strconv.FormatFloat(s.VacationDaysCarryover, 'f', -1, 64)},
			{"calendar provider", s.Provider},
			{"selected calendars", strings.Join(s.SelectedCalendars, ", ")},
			{"calendar timeout", s.Timeout.String()},
			{"caldav url", s.CalDAVURL},
			{"caldav user", s.CalDAVUser},
			{"caldav password", password},
			{"google credentials", s.GoogleCredentialsFile},
			{"google token", s.GoogleTokenFile},
			{"metrics textfile", a.cfg.MetricsTextfile},
		}
		for _, r := range rows {
			fmt.Fprintf(out, "%-24s %s\n", r[0]+":", r[1])
		}
		return nil
	}),
}

// settingKeys maps CLI names to stored override keys
var settingKeys = map[string]string{
	"expected-daily-hours":  config.KeyExpectedDailyHours,
	"expected-weekly-hours": config.KeyExpectedWeeklyHours,
	"vacation-days":         config.KeyVacationDaysPerYear,
	"vacation-carryover":    config.KeyVacationDaysCarryover,
	"calendars":             config.KeySelectedCalendars,
	"caldav-url":            config.KeyCalDAVURL,
	"caldav-user":           config.KeyCalDAVUser,
	"caldav-password":       config.KeyCalDAVPassword,
}

func settingNames() string {
	names := make([]string, 0, len(settingKeys))
	for name := range settingKeys {
		names = append(names, name)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}

// parseSetting turns a CLI name and value into an override
func parseSetting(name, value string) (config.Updates, error) {
	var u config.Updates
	key, ok := settingKeys[name]
	if !ok {
		return u, apperr.Invalid("settings", "unknown setting %q, use one of: %s", name, settingNames())
	}

	number := func() (*float64, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, apperr.Invalid("settings", "%s must be a number", name)
		}
		return &f, nil
	}
	var err error
	switch key {
	case config.KeyExpectedDailyHours:
		u.ExpectedDailyHours, err = number()
	case config.KeyExpectedWeeklyHours:
		u.ExpectedWeeklyHours, err = number()
	case config.KeyVacationDaysPerYear:
		u.VacationDaysPerYear, err = number()
	case config.KeyVacationDaysCarryover:
		u.VacationDaysCarryover, err = number()
	case config.KeySelectedCalendars:
		list := config.SplitList(value)
		u.SelectedCalendars = &list
	case config.KeyCalDAVURL:
		u.CalDAVURL = &value
	case config.KeyCalDAVUser:
		u.CalDAVUser = &value
	case config.KeyCalDAVPassword:
		u.CalDAVPassword = &value
	}
	return u, err
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Store a runtime override",
	Long: `Store a runtime override in the database. It takes precedence over the
config file and environment.

Example:
  punch settings set expected-daily-hours 7.5
  punch settings set calendars "Work,https://dav.example.com/calendars/me/team"`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		u, err := parseSetting(args[0], args[1])
		if err != nil {
			return err
		}
		if err := a.settings.Update(cmd.Context(), u); err != nil {
			return apperr.Invalid("settings", "%v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s updated\n", args[0])
		return nil
	}),
}

var settingsUnsetCmd = &cobra.Command{
	Use:   "unset <name>",
	Short: "Remove a runtime override",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		key, ok := settingKeys[args[0]]
		if !ok {
			return apperr.Invalid("settings", "unknown setting %q, use one of: %s", args[0], settingNames())
		}
		if err := a.settings.Update(cmd.Context(), config.Updates{Clear: []string{key}}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s reset\n", args[0])
		return nil
	}),
}

var settingsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return apperr.Conflict("settings init", "%s already exists", configPath)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(config.DefaultTemplate()), 0o600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Wrote %s\n", configPath)
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsUnsetCmd, settingsInitCmd)
}
