// Package leave manages leave entries and holidays, the calendars the
// aggregator subtracts from expected working time.
package leave

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/balkashynov/punch/internal/aggregate"
	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/config"
	"github.com/balkashynov/punch/internal/models"
)

// Service stores leave entries and holidays.
type Service struct {
	db       *gorm.DB
	settings config.Provider
	log      logrus.FieldLogger
}

// New creates a Service.
func New(gdb *gorm.DB, settings config.Provider, log logrus.FieldLogger) *Service {
	return &Service{db: gdb, settings: settings, log: log}
}

// Input describes a leave entry to create.
type Input struct {
	Start    clock.Date
	End      clock.Date
	Type     string
	Comment  string
	Approved bool
}

// Entry is a leave entry with its effective day count.
type Entry struct {
	models.LeaveEntry
	Days int `json:"days"`
}

// CreateLeave stores a leave range and refreshes cached summaries it covers.
func (s *Service) CreateLeave(ctx context.Context, in Input) (*models.LeaveEntry, error) {
	if in.End.Before(in.Start) {
		return nil, apperr.Invalid("create leave", "end date %s is before start date %s", in.End, in.Start)
	}
	typ := strings.ToLower(strings.TrimSpace(in.Type))
	if typ == "" {
		return nil, apperr.Invalid("create leave", "leave type is required")
	}
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	entry := models.LeaveEntry{
		StartDate: in.Start.Time(),
		EndDate:   in.End.Time(),
		Type:      typ,
		Comment:   in.Comment,
		Approved:  in.Approved,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to create leave entry: %w", err)
		}
		return aggregate.RecomputeCached(tx, in.Start, in.End, settings)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteLeave removes a leave entry.
func (s *Service) DeleteLeave(ctx context.Context, id uint) error {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.LeaveEntry
		err := tx.First(&entry, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("delete leave", "leave entry #%d not found", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get leave entry %d: %w", id, err)
		}
		if err := tx.Delete(&entry).Error; err != nil {
			return fmt.Errorf("failed to delete leave entry: %w", err)
		}
		return aggregate.RecomputeCached(tx, clock.DateOf(entry.StartDate.UTC()), clock.DateOf(entry.EndDate.UTC()), settings)
	})
}

// ListLeaves returns the entries overlapping [from, to], optionally of one type.
// Nil bounds are open.
func (s *Service) ListLeaves(ctx context.Context, from, to *clock.Date, typ string) ([]Entry, error) {
	q := s.db.WithContext(ctx).Model(&models.LeaveEntry{})
	if from != nil {
		q = q.Where("end_date >= ?", from.Time())
	}
	if to != nil {
		q = q.Where("start_date <= ?", to.Time())
	}
	if typ != "" {
		q = q.Where("type = ?", strings.ToLower(typ))
	}
	var rows []models.LeaveEntry
	if err := q.Order("start_date").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list leave entries: %w", err)
	}
	if len(rows) == 0 {
		return []Entry{}, nil
	}

	first, last := clock.DateOf(rows[0].StartDate.UTC()), clock.DateOf(rows[0].EndDate.UTC())
	for _, row := range rows[1:] {
		if d := clock.DateOf(row.EndDate.UTC()); d.After(last) {
			last = d
		}
	}
	holidays, err := aggregate.HolidaysBetween(s.db.WithContext(ctx), first, last)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, Entry{LeaveEntry: row, Days: aggregate.EffectiveLeaveDays(row, holidays)})
	}
	return out, nil
}

// AddHoliday creates or renames the holiday on day.
func (s *Service) AddHoliday(ctx context.Context, day clock.Date, name string) (*models.Holiday, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("add holiday", "holiday name is required")
	}
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	h := models.Holiday{Day: day.Time(), Name: name, Source: models.HolidayManual}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertHoliday(tx, &h); err != nil {
			return err
		}
		return aggregate.RecomputeCached(tx, day, day, settings)
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ListHolidays returns holidays between from and to inclusive, ordered by date.
func (s *Service) ListHolidays(ctx context.Context, from, to clock.Date) ([]models.Holiday, error) {
	if to.Before(from) {
		return nil, apperr.Invalid("list holidays", "end date %s is before start date %s", to, from)
	}
	var out []models.Holiday
	err := s.db.WithContext(ctx).
		Where("day >= ? AND day <= ?", from.Time(), to.Time()).
		Order("day").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	return out, nil
}

// DeleteHoliday removes the holiday on day.
func (s *Service) DeleteHoliday(ctx context.Context, day clock.Date) error {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("day = ?", day.Time()).Delete(&models.Holiday{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete holiday: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("delete holiday", "no holiday on %s", day)
		}
		return aggregate.RecomputeCached(tx, day, day, settings)
	})
}

// ImportHolidays reads iCalendar data and stores one holiday per VEVENT,
// keyed by the date of its DTSTART. It returns the number of holidays written.
func (s *Service) ImportHolidays(ctx context.Context, r io.Reader) (int, error) {
	holidays, err := ParseHolidays(r)
	if err != nil {
		return 0, err
	}
	if len(holidays) == 0 {
		return 0, nil
	}
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return 0, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		first, last := clock.DateOf(holidays[0].Day), clock.DateOf(holidays[0].Day)
		for i := range holidays {
			if err := upsertHoliday(tx, &holidays[i]); err != nil {
				return err
			}
			day := clock.DateOf(holidays[i].Day)
			if day.Before(first) {
				first = day
			}
			if day.After(last) {
				last = day
			}
		}
		return aggregate.RecomputeCached(tx, first, last, settings)
	})
	if err != nil {
		return 0, err
	}

	s.log.WithField("count", len(holidays)).Info("holidays imported")
	return len(holidays), nil
}

// ParseHolidays decodes every calendar in r. Events without a usable
// DTSTART are skipped, a missing SUMMARY becomes "Holiday". Later events
// win when two share a date.
func ParseHolidays(r io.Reader) ([]models.Holiday, error) {
	dec := ical.NewDecoder(r)
	byDay := map[clock.Date]int{}
	var out []models.Holiday
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Invalid("import holidays", "invalid iCalendar data: %v", err)
		}
		for _, ev := range cal.Events() {
			prop := ev.Props.Get(ical.PropDateTimeStart)
			if prop == nil {
				continue
			}
			start, err := prop.DateTime(time.UTC)
			if err != nil {
				continue
			}
			name, _ := ev.Props.Text(ical.PropSummary)
			if name = strings.TrimSpace(name); name == "" {
				name = "Holiday"
			}
			day := clock.DateOf(start)
			h := models.Holiday{Day: day.Time(), Name: name, Source: models.HolidayImport}
			if i, ok := byDay[day]; ok {
				out[i] = h
				continue
			}
			byDay[day] = len(out)
			out = append(out, h)
		}
	}
	return out, nil
}

func upsertHoliday(tx *gorm.DB, h *models.Holiday) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "source"}),
	}).Create(h).Error
	if err != nil {
		return fmt.Errorf("failed to store holiday %s: %w", clock.DateOf(h.Day), err)
	}
	return nil
}
