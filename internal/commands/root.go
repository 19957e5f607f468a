package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/balkashynov/punch/internal/aggregate"
	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/calendar"
	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/config"
	"github.com/balkashynov/punch/internal/db"
	"github.com/balkashynov/punch/internal/leave"
	"github.com/balkashynov/punch/internal/linker"
	"github.com/balkashynov/punch/internal/logging"
	"github.com/balkashynov/punch/internal/metrics"
	"github.com/balkashynov/punch/internal/tracker"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	configPath string
	dbPath     string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "punch",
	Short: "Work time accounting from the terminal",
	Long: `punch tracks work sessions, meetings, leave and holidays and turns them
into daily and period overviews with expected hours and overtime.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// app holds the services of one command invocation
type app struct {
	cfg      config.Config
	log      *logrus.Logger
	db       *gorm.DB
	clock    clock.Clock
	settings *config.Store
	metrics  *metrics.Sync

	tracker   *tracker.Tracker
	linker    *linker.Linker
	leave     *leave.Service
	aggregate *aggregate.Aggregator
	calendar  *calendar.Service
}

// openApp loads the configuration, opens the database and wires the services
func openApp(stderr io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	gdb, err := db.Open(cfg.DatabasePath, db.Options{Verbose: cfg.LogLevel == "debug"})
	if err != nil {
		return nil, err
	}
	log.WithField("path", cfg.DatabasePath).Debug("database opened")

	a := &app{
		cfg:      cfg,
		log:      log,
		db:       gdb,
		clock:    clock.System{},
		settings: config.NewStore(gdb, cfg),
		metrics:  metrics.NewSync(),
	}
	a.tracker = tracker.New(gdb, a.clock, a.settings, log.WithField("component", "tracker"))
	a.linker = linker.New(gdb, a.settings, log.WithField("component", "linker"))
	a.leave = leave.New(gdb, a.settings, log.WithField("component", "leave"))
	a.aggregate = aggregate.New(gdb, a.settings)

	reconciler := calendar.NewReconciler(gdb, clientFactory, log.WithField("component", "calendar"),
		calendar.WithHooks(calendar.Hooks{
			AfterUpdate:  linker.SyncAttendedEvent,
			BeforeDelete: linker.DetachEvent,
		}),
		calendar.WithRecorder(a.metrics),
	)
	a.calendar = calendar.NewService(gdb, a.settings, a.clock, clientFactory, reconciler, log.WithField("component", "calendar"))
	return a, nil
}

// close flushes metrics and releases the database
func (a *app) close() {
	if a.cfg.MetricsTextfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
			a.log.WithError(err).Warn("failed to write metrics textfile")
		}
	}
	if err := db.Close(a.db); err != nil {
		a.log.WithError(err).Warn("failed to close database")
	}
}

// snapshot returns the settings of the current invocation
func (a *app) snapshot(ctx context.Context) (config.Settings, error) {
	return a.settings.Snapshot(ctx)
}

// today is the current date in the reporting timezone
func (a *app) today(ctx context.Context) (clock.Date, error) {
	s, err := a.snapshot(ctx)
	if err != nil {
		return clock.Date{}, err
	}
	return clock.Today(a.clock, s.Loc()), nil
}

// withApp wraps a command function to open the services first
func withApp(fn func(*cobra.Command, []string, *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, args, a)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "punch %s (commit %s, built %s)\n", version, commit, date)
	},
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// Exit codes by error kind
const (
	ExitOK           = 0
	ExitError        = 1
	ExitInvalidInput = 2
	ExitConflict     = 3
	ExitNotFound     = 4
	ExitUpstream     = 5
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		return ExitInvalidInput
	case apperr.KindConflict:
		return ExitConflict
	case apperr.KindNotFound:
		return ExitNotFound
	case apperr.KindUpstream:
		return ExitUpstream
	}
	return ExitError
}

// Fail prints err and exits with its code.
func Fail(err error) {
	if apperr.IsRetryable(err) {
		fmt.Fprintf(os.Stderr, "❌ %v (try again later)\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	}
	os.Exit(ExitCode(err))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "Config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(manualCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(dayCmd)
	rootCmd.AddCommand(overviewCmd)
	rootCmd.AddCommand(leaveCmd)
	rootCmd.AddCommand(holidayCmd)
	rootCmd.AddCommand(subtrackCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(calendarsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.SetHelpCommand(helpCmd)
	rootCmd.AddCommand(versionCmd)
}
