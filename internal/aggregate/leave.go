package aggregate

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/config"
	"github.com/balkashynov/punch/internal/models"
)

// EffectiveLeaveDays counts the days of entry that are neither weekends nor holidays.
func EffectiveLeaveDays(entry models.LeaveEntry, holidays map[clock.Date]*models.Holiday) int {
	start, end := clock.DateOf(entry.StartDate.UTC()), clock.DateOf(entry.EndDate.UTC())
	return effectiveDays(start, end, holidays)
}

func effectiveDays(from, to clock.Date, holidays map[clock.Date]*models.Holiday) int {
	n := 0
	for _, day := range clock.DaysBetween(from, to) {
		if day.IsWeekend() || holidays[day] != nil {
			continue
		}
		n++
	}
	return n
}

// Balance is the vacation account of one year, in days.
type Balance struct {
	Year        int     `json:"year"`
	Entitlement float64 `json:"entitlement"`
	Used        int     `json:"used"`
	Remaining   float64 `json:"remaining"`
}

// VacationBalance sums the effective vacation days taken in year against
// the yearly entitlement plus carryover. Entries spanning a year boundary
// only count their days inside year.
func VacationBalance(tx *gorm.DB, year int, s config.Settings) (Balance, error) {
	first := clock.NewDate(year, time.January, 1)
	last := clock.NewDate(year, time.December, 31)

	var entries []models.LeaveEntry
	err := tx.Where("type = ? AND start_date <= ? AND end_date >= ?", models.LeaveVacation, last.Time(), first.Time()).
		Find(&entries).Error
	if err != nil {
		return Balance{}, fmt.Errorf("failed to load vacation entries: %w", err)
	}
	holidays, err := HolidaysBetween(tx, first, last)
	if err != nil {
		return Balance{}, err
	}

	used := 0
	for _, entry := range entries {
		start, end := clock.DateOf(entry.StartDate.UTC()), clock.DateOf(entry.EndDate.UTC())
		if start.Before(first) {
			start = first
		}
		if end.After(last) {
			end = last
		}
		used += effectiveDays(start, end, holidays)
	}

	entitlement := s.VacationDaysPerYear + s.VacationDaysCarryover
	return Balance{
		Year:        year,
		Entitlement: entitlement,
		Used:        used,
		Remaining:   entitlement - float64(used),
	}, nil
}

// VacationBalance is the snapshot-taking form of the package function.
func (a *Aggregator) VacationBalance(ctx context.Context, year int) (Balance, error) {
	s, err := a.settings.Snapshot(ctx)
	if err != nil {
		return Balance{}, err
	}
	return VacationBalance(a.db.WithContext(ctx), year, s)
}

// RecomputeCached refreshes the cached summaries that already exist in the
// inclusive range. Days never summarized stay absent.
func RecomputeCached(tx *gorm.DB, from, to clock.Date, s config.Settings) error {
	var days []time.Time
	err := tx.Model(&models.DaySummary{}).
		Where("day >= ? AND day <= ?", from.Time(), to.Time()).
		Pluck("day", &days).Error
	if err != nil {
		return fmt.Errorf("failed to list cached summaries: %w", err)
	}
	dates := make([]clock.Date, 0, len(days))
	for _, d := range days {
		dates = append(dates, clock.DateOf(d.UTC()))
	}
	return RecomputeDays(tx, s, dates...)
}
