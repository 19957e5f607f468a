package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file. Pointer fields
// distinguish "unset" from zero values.
type FileConfig struct {
	Timezone *string        `toml:"timezone"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
	Work     WorkConfig     `toml:"work"`
	Calendar CalendarConfig `toml:"calendar"`
	CalDAV   CalDAVConfig   `toml:"caldav"`
	Google   GoogleConfig   `toml:"google"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

type DatabaseConfig struct {
	Path *string `toml:"path"`
}

type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

// WorkConfig maps the accounting baseline.
type WorkConfig struct {
	ExpectedDailyHours    *float64 `toml:"expected_daily_hours"`
	ExpectedWeeklyHours   *float64 `toml:"expected_weekly_hours"`
	VacationDaysPerYear   *float64 `toml:"vacation_days_per_year"`
	VacationDaysCarryover *float64 `toml:"vacation_days_carryover"`
}

type CalendarConfig struct {
	Provider       *string  `toml:"provider"`
	Selected       []string `toml:"selected"`
	TimeoutSeconds *int     `toml:"timeout_seconds"`
}

type CalDAVConfig struct {
	URL      *string `toml:"url"`
	User     *string `toml:"user"`
	Password *string `toml:"password"`
}

type GoogleConfig struct {
	CredentialsFile *string `toml:"credentials_file"`
	TokenFile       *string `toml:"token_file"`
}

type MetricsConfig struct {
	Textfile *string `toml:"textfile"`
}

// LoadFile reads a TOML config from the given path. Missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// DefaultTemplate is written by `punch settings init`.
func DefaultTemplate() string {
	return fmt.Sprintf(`# punch configuration
# Uncomment a value to enable it. PUNCH_* environment variables override
# this file, CLI flags override both.

# timezone = %q

[database]
# path = %q

[log]
# level = "info"          # debug, info, warn, error
# format = "text"         # text or json

[work]
# expected_daily_hours = 8
# expected_weekly_hours = 40
# vacation_days_per_year = %v
# vacation_days_carryover = 0

[calendar]
# provider = "caldav"     # caldav or google
# selected = ["https://dav.example.com/calendars/me/work"]
# timeout_seconds = %d

[caldav]
# url = "https://dav.example.com/"
# user = ""
# password = ""

[google]
# credentials_file = "credentials.json"
# token_file = %q

[metrics]
# textfile = "/var/lib/node_exporter/punch.prom"
`,
		DefaultTimezone,
		DefaultDBPath(),
		DefaultVacationDays,
		DefaultTimeoutSeconds,
		DefaultGoogleTokenPath(),
	)
}
