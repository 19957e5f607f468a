package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/models"
)

// DefaultExpectedDailyHours is the baseline when neither daily nor weekly hours are set.
const DefaultExpectedDailyHours = 8.0

// Keys of runtime overrides in app_settings
const (
	KeyExpectedDailyHours    = "expected_daily_hours"
	KeyExpectedWeeklyHours   = "expected_weekly_hours"
	KeyVacationDaysPerYear   = "vacation_days_per_year"
	KeyVacationDaysCarryover = "vacation_days_carryover"
	KeySelectedCalendars     = "calendar_selected"
	KeyCalDAVURL             = "caldav_url"
	KeyCalDAVUser            = "caldav_user"
	KeyCalDAVPassword        = "caldav_password"
)

// Settings is an immutable snapshot of the values an operation depends on.
// Services take one snapshot per operation and pass it down explicitly.
type Settings struct {
	Location *time.Location

	ExpectedDailyHours    *float64
	ExpectedWeeklyHours   *float64
	VacationDaysPerYear   float64
	VacationDaysCarryover float64

	Provider          string
	SelectedCalendars []string
	Timeout           time.Duration

	CalDAVURL      string
	CalDAVUser     string
	CalDAVPassword string

	GoogleCredentialsFile string
	GoogleTokenFile       string
}

// ExpectedDailySeconds returns the per-day baseline: daily hours, else weekly/5,
// else DefaultExpectedDailyHours.
func (s Settings) ExpectedDailySeconds() int {
	switch {
	case s.ExpectedDailyHours != nil:
		return int(*s.ExpectedDailyHours * 3600)
	case s.ExpectedWeeklyHours != nil:
		return int(*s.ExpectedWeeklyHours / 5 * 3600)
	default:
		return int(DefaultExpectedDailyHours * 3600)
	}
}

// Loc returns the reporting timezone, UTC when unset.
func (s Settings) Loc() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Provider supplies settings snapshots.
type Provider interface {
	Snapshot(ctx context.Context) (Settings, error)
}

// Static always returns the same snapshot.
type Static Settings

func (s Static) Snapshot(context.Context) (Settings, error) {
	return Settings(s), nil
}

// Settings converts the static configuration into a snapshot.
func (c Config) Settings() (Settings, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return Settings{
		Location:              loc,
		ExpectedDailyHours:    c.ExpectedDailyHours,
		ExpectedWeeklyHours:   c.ExpectedWeeklyHours,
		VacationDaysPerYear:   c.VacationDaysPerYear,
		VacationDaysCarryover: c.VacationDaysCarryover,
		Provider:              c.CalendarProvider,
		SelectedCalendars:     append([]string(nil), c.SelectedCalendars...),
		Timeout:               time.Duration(c.TimeoutSeconds) * time.Second,
		CalDAVURL:             c.CalDAVURL,
		CalDAVUser:            c.CalDAVUser,
		CalDAVPassword:        c.CalDAVPassword,
		GoogleCredentialsFile: c.GoogleCredentialsFile,
		GoogleTokenFile:       c.GoogleTokenFile,
	}, nil
}

// Store layers runtime overrides from app_settings over the static config.
// Every Snapshot call rereads the table.
type Store struct {
	db   *gorm.DB
	base Config
}

// NewStore creates a Store.
func NewStore(db *gorm.DB, base Config) *Store {
	return &Store{db: db, base: base}
}

// Snapshot returns the current settings.
func (s *Store) Snapshot(ctx context.Context) (Settings, error) {
	settings, err := s.base.Settings()
	if err != nil {
		return Settings{}, err
	}
	var rows []models.AppSetting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	for _, row := range rows {
		if err := applyOverride(&settings, row.Key, row.Value); err != nil {
			return Settings{}, err
		}
	}
	return settings, nil
}

// Updates holds runtime overrides. Nil fields are left alone, empty
// strings and keys listed in Clear remove an override.
type Updates struct {
	ExpectedDailyHours    *float64
	ExpectedWeeklyHours   *float64
	VacationDaysPerYear   *float64
	VacationDaysCarryover *float64
	SelectedCalendars     *[]string
	CalDAVURL             *string
	CalDAVUser            *string
	CalDAVPassword        *string

	Clear []string
}

// Update validates and persists overrides in one transaction.
func (s *Store) Update(ctx context.Context, u Updates) error {
	values := map[string]string{}
	hours := map[string]*float64{
		KeyExpectedDailyHours:    u.ExpectedDailyHours,
		KeyExpectedWeeklyHours:   u.ExpectedWeeklyHours,
		KeyVacationDaysPerYear:   u.VacationDaysPerYear,
		KeyVacationDaysCarryover: u.VacationDaysCarryover,
	}
	for key, v := range hours {
		if v == nil {
			continue
		}
		if *v < 0 && key != KeyVacationDaysCarryover {
			return apperr.Invalid("settings", "%s must be >= 0", key)
		}
		values[key] = strconv.FormatFloat(*v, 'f', -1, 64)
	}
	if u.SelectedCalendars != nil {
		data, err := json.Marshal(*u.SelectedCalendars)
		if err != nil {
			return fmt.Errorf("failed to encode calendars: %w", err)
		}
		values[KeySelectedCalendars] = string(data)
	}
	strs := map[string]*string{
		KeyCalDAVURL:      u.CalDAVURL,
		KeyCalDAVUser:     u.CalDAVUser,
		KeyCalDAVPassword: u.CalDAVPassword,
	}
	for key, v := range strs {
		if v != nil {
			values[key] = *v
		}
	}
	for _, key := range u.Clear {
		values[key] = ""
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			if value == "" {
				if err := tx.Delete(&models.AppSetting{Key: key}).Error; err != nil {
					return err
				}
				continue
			}
			row := models.AppSetting{Key: key, Value: value}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func applyOverride(s *Settings, key, value string) error {
	parseHours := func() (float64, error) {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid stored setting %s: %w", key, err)
		}
		return f, nil
	}
	switch key {
	case KeyExpectedDailyHours, KeyExpectedWeeklyHours:
		f, err := parseHours()
		if err != nil {
			return err
		}
		if key == KeyExpectedDailyHours {
			s.ExpectedDailyHours = &f
		} else {
			s.ExpectedWeeklyHours = &f
		}
	case KeyVacationDaysPerYear:
		f, err := parseHours()
		if err != nil {
			return err
		}
		s.VacationDaysPerYear = f
	case KeyVacationDaysCarryover:
		f, err := parseHours()
		if err != nil {
			return err
		}
		s.VacationDaysCarryover = f
	case KeySelectedCalendars:
		var list []string
		if err := json.Unmarshal([]byte(value), &list); err != nil {
			return fmt.Errorf("invalid stored setting %s: %w", key, err)
		}
		s.SelectedCalendars = list
	case KeyCalDAVURL:
		s.CalDAVURL = value
	case KeyCalDAVUser:
		s.CalDAVUser = value
	case KeyCalDAVPassword:
		s.CalDAVPassword = value
	}
	return nil
}
