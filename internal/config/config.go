// Package config resolves punch configuration from the TOML file, .env,
// PUNCH_* environment variables and runtime overrides stored in the database.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultTimezone       = "Europe/Berlin"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultProvider       = "caldav"
	DefaultVacationDays   = 30.0
	DefaultTimeoutSeconds = 20
)

// Config is the fully resolved static configuration.
type Config struct {
	DatabasePath string `validate:"required"`
	LogLevel     string `validate:"oneof=debug info warn error"`
	LogFormat    string `validate:"oneof=text json"`
	Timezone     string `validate:"required,timezone"`

	ExpectedDailyHours    *float64 `validate:"omitempty,gte=0,lte=24"`
	ExpectedWeeklyHours   *float64 `validate:"omitempty,gte=0,lte=168"`
	VacationDaysPerYear   float64  `validate:"gte=0"`
	VacationDaysCarryover float64

	CalendarProvider  string `validate:"oneof=caldav google"`
	SelectedCalendars []string
	TimeoutSeconds    int `validate:"gte=1,lte=300"`

	CalDAVURL      string `validate:"omitempty,url"`
	CalDAVUser     string
	CalDAVPassword string

	GoogleCredentialsFile string
	GoogleTokenFile       string

	MetricsTextfile string
}

var validate = validator.New()

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DatabasePath:        DefaultDBPath(),
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
		Timezone:            DefaultTimezone,
		VacationDaysPerYear: DefaultVacationDays,
		CalendarProvider:    DefaultProvider,
		TimeoutSeconds:      DefaultTimeoutSeconds,
		GoogleTokenFile:     DefaultGoogleTokenPath(),
	}
}

// Load builds the configuration: defaults, then the TOML file at path,
// then .env and the process environment.
func Load(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	file, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	cfg.applyFile(file)
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) applyFile(f FileConfig) {
	setString(&c.Timezone, f.Timezone)
	setString(&c.DatabasePath, f.Database.Path)
	setString(&c.LogLevel, f.Log.Level)
	setString(&c.LogFormat, f.Log.Format)
	if f.Work.ExpectedDailyHours != nil {
		c.ExpectedDailyHours = f.Work.ExpectedDailyHours
	}
	if f.Work.ExpectedWeeklyHours != nil {
		c.ExpectedWeeklyHours = f.Work.ExpectedWeeklyHours
	}
	setFloat(&c.VacationDaysPerYear, f.Work.VacationDaysPerYear)
	setFloat(&c.VacationDaysCarryover, f.Work.VacationDaysCarryover)
	setString(&c.CalendarProvider, f.Calendar.Provider)
	if f.Calendar.Selected != nil {
		c.SelectedCalendars = append([]string(nil), f.Calendar.Selected...)
	}
	if f.Calendar.TimeoutSeconds != nil {
		c.TimeoutSeconds = *f.Calendar.TimeoutSeconds
	}
	setString(&c.CalDAVURL, f.CalDAV.URL)
	setString(&c.CalDAVUser, f.CalDAV.User)
	setString(&c.CalDAVPassword, f.CalDAV.Password)
	setString(&c.GoogleCredentialsFile, f.Google.CredentialsFile)
	setString(&c.GoogleTokenFile, f.Google.TokenFile)
	setString(&c.MetricsTextfile, f.Metrics.Textfile)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		"PUNCH_DB_PATH":            &c.DatabasePath,
		"PUNCH_LOG_LEVEL":          &c.LogLevel,
		"PUNCH_LOG_FORMAT":         &c.LogFormat,
		"PUNCH_TIMEZONE":           &c.Timezone,
		"PUNCH_CALENDAR_PROVIDER":  &c.CalendarProvider,
		"PUNCH_CALDAV_URL":         &c.CalDAVURL,
		"PUNCH_CALDAV_USER":        &c.CalDAVUser,
		"PUNCH_CALDAV_PASSWORD":    &c.CalDAVPassword,
		"PUNCH_GOOGLE_CREDENTIALS": &c.GoogleCredentialsFile,
		"PUNCH_GOOGLE_TOKEN":       &c.GoogleTokenFile,
		"PUNCH_METRICS_TEXTFILE":   &c.MetricsTextfile,
	}
	for key, target := range strs {
		if v, ok := get(key); ok {
			*target = v
		}
	}

	hours := map[string]**float64{
		"PUNCH_EXPECTED_DAILY_HOURS":  &c.ExpectedDailyHours,
		"PUNCH_EXPECTED_WEEKLY_HOURS": &c.ExpectedWeeklyHours,
	}
	for key, target := range hours {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*target = &f
		}
	}

	if v, ok := get("PUNCH_CALENDARS"); ok {
		c.SelectedCalendars = SplitList(v)
	}
	if v, ok := get("PUNCH_CALENDAR_TIMEOUT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PUNCH_CALENDAR_TIMEOUT: %w", err)
		}
		c.TimeoutSeconds = n
	}
	return nil
}

// SplitList splits a comma-separated list, dropping empty entries.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setString(target, value *string) {
	if value == nil {
		return
	}
	*target = *value
}

func setFloat(target, value *float64) {
	if value == nil {
		return
	}
	*target = *value
}
