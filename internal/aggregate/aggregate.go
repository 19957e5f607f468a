// Package aggregate derives per-day accounting figures from stopped work
// sessions, leave entries and holidays.
package aggregate

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/config"
	"github.com/balkashynov/punch/internal/models"
)

// Context is the expectation side of a day, independent of worked time.
type Context struct {
	ExpectedSeconds int
	BaselineSeconds int
	VacationSeconds int
	SickSeconds     int
	IsWeekend       bool
	IsHoliday       bool
}

// DailyContext computes what a day expects given its leave types and holiday.
// Weekends, holidays and sick days expect nothing. A vacation weekday keeps
// its baseline expectation and is credited the same amount, so it nets to
// zero overtime. Sick time is credited on every day it is active.
func DailyContext(day clock.Date, leaveTypes []string, holiday *models.Holiday, s config.Settings) Context {
	baseline := s.ExpectedDailySeconds()
	ctx := Context{
		BaselineSeconds: baseline,
		IsWeekend:       day.IsWeekend(),
		IsHoliday:       holiday != nil,
	}
	vacation, sick := hasType(leaveTypes, models.LeaveVacation), hasType(leaveTypes, models.LeaveSick)

	if !ctx.IsWeekend && !ctx.IsHoliday && !sick {
		ctx.ExpectedSeconds = baseline
	}
	if vacation && !ctx.IsWeekend && !ctx.IsHoliday {
		ctx.VacationSeconds = baseline
	}
	if sick {
		ctx.SickSeconds = baseline
	}
	return ctx
}

// Aggregator computes and caches day summaries.
type Aggregator struct {
	db       *gorm.DB
	settings config.Provider
}

// New creates an Aggregator.
func New(db *gorm.DB, settings config.Provider) *Aggregator {
	return &Aggregator{db: db, settings: settings}
}

// ComputeDay recomputes the summary of day from scratch and upserts the
// cache row. It runs on tx so callers can include it in their unit of work.
func ComputeDay(tx *gorm.DB, day clock.Date, s config.Settings) (*models.DaySummary, error) {
	in, err := load(tx, day, day, s)
	if err != nil {
		return nil, err
	}
	summary := in.summarize(day, s)

	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}},
		UpdateAll: true,
	}).Create(&summary).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store day summary %s: %w", day, err)
	}

	var stored models.DaySummary
	if err := tx.Where("day = ?", day.Time()).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to reload day summary %s: %w", day, err)
	}
	return &stored, nil
}

// RecomputeDays runs ComputeDay once per distinct day.
func RecomputeDays(tx *gorm.DB, s config.Settings, days ...clock.Date) error {
	seen := make(map[clock.Date]bool, len(days))
	for _, day := range days {
		if seen[day] {
			continue
		}
		seen[day] = true
		if _, err := ComputeDay(tx, day, s); err != nil {
			return err
		}
	}
	return nil
}

// ComputeRange returns one summary per day from from to to inclusive.
// Nothing is persisted.
func ComputeRange(tx *gorm.DB, from, to clock.Date, s config.Settings) ([]models.DaySummary, error) {
	if to.Before(from) {
		return nil, apperr.Invalid("range overview", "end date %s is before start date %s", to, from)
	}
	in, err := load(tx, from, to, s)
	if err != nil {
		return nil, err
	}
	days := clock.DaysBetween(from, to)
	out := make([]models.DaySummary, 0, len(days))
	for _, day := range days {
		out = append(out, in.summarize(day, s))
	}
	return out, nil
}

// DayOverview recomputes and returns the summary of a single day.
func (a *Aggregator) DayOverview(ctx context.Context, day clock.Date) (*models.DaySummary, error) {
	s, err := a.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var summary *models.DaySummary
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		summary, err = ComputeDay(tx, day, s)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// RangeOverview returns summaries for every day of the range.
func (a *Aggregator) RangeOverview(ctx context.Context, from, to clock.Date) ([]models.DaySummary, error) {
	s, err := a.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeRange(a.db.WithContext(ctx), from, to, s)
}

type totals struct {
	work  int
	pause int
}

// inputs holds everything needed to summarize a range of days, loaded once.
type inputs struct {
	totals   map[clock.Date]totals
	leaves   []models.LeaveEntry
	holidays map[clock.Date]*models.Holiday
}

func load(tx *gorm.DB, from, to clock.Date, s config.Settings) (*inputs, error) {
	loc := s.Loc()
	rangeStart, _ := from.Bounds(loc)
	_, rangeEnd := to.Bounds(loc)

	var sessions []models.WorkSession
	err := tx.Where("start_time >= ? AND start_time < ? AND status = ?", rangeStart, rangeEnd, models.StatusStopped).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	in := &inputs{
		totals:   make(map[clock.Date]totals),
		holidays: make(map[clock.Date]*models.Holiday),
	}
	for _, session := range sessions {
		day := clock.LocalDate(session.StartTime, loc)
		if day.Before(from) || day.After(to) {
			continue
		}
		t := in.totals[day]
		t.work += session.WorkedSeconds()
		t.pause += session.PausedDuration
		in.totals[day] = t
	}

	err = tx.Where("start_date <= ? AND end_date >= ?", to.Time(), from.Time()).
		Find(&in.leaves).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load leave entries: %w", err)
	}

	holidays, err := HolidaysBetween(tx, from, to)
	if err != nil {
		return nil, err
	}
	in.holidays = holidays
	return in, nil
}

// HolidaysBetween loads holidays of the inclusive range keyed by date.
func HolidaysBetween(tx *gorm.DB, from, to clock.Date) (map[clock.Date]*models.Holiday, error) {
	var rows []models.Holiday
	if err := tx.Where("day >= ? AND day <= ?", from.Time(), to.Time()).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load holidays: %w", err)
	}
	out := make(map[clock.Date]*models.Holiday, len(rows))
	for i := range rows {
		out[clock.DateOf(rows[i].Day.UTC())] = &rows[i]
	}
	return out, nil
}

func (in *inputs) summarize(day clock.Date, s config.Settings) models.DaySummary {
	leaveTypes := in.leaveTypes(day)
	holiday := in.holidays[day]
	dc := DailyContext(day, leaveTypes, holiday, s)
	t := in.totals[day]

	summary := models.DaySummary{
		Day:                     day.Time(),
		WorkSeconds:             t.work,
		PauseSeconds:            t.pause,
		ExpectedSeconds:         dc.ExpectedSeconds,
		BaselineExpectedSeconds: dc.BaselineSeconds,
		VacationSeconds:         dc.VacationSeconds,
		SickSeconds:             dc.SickSeconds,
		OvertimeSeconds:         t.work + dc.VacationSeconds - dc.ExpectedSeconds,
		IsWeekend:               dc.IsWeekend,
		IsHoliday:               dc.IsHoliday,
		LeaveTypes:              leaveTypes,
	}
	if holiday != nil {
		summary.HolidayName = holiday.Name
	}
	return summary
}

// leaveTypes returns the sorted, distinct leave types covering day.
func (in *inputs) leaveTypes(day clock.Date) []string {
	set := map[string]bool{}
	for _, leave := range in.leaves {
		if covers(leave, day) {
			set[leave.Type] = true
		}
	}
	types := make([]string, 0, len(set))
	for t := range set {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func covers(leave models.LeaveEntry, day clock.Date) bool {
	start, end := clock.DateOf(leave.StartDate.UTC()), clock.DateOf(leave.EndDate.UTC())
	return !day.Before(start) && !day.After(end)
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
