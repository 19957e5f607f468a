package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/config"
	"github.com/balkashynov/punch/internal/models"
)

// DefaultListDays is the span listed when no end date is given.
const DefaultListDays = 30

// Service is the caller-facing side of calendar events.
type Service struct {
	db         *gorm.DB
	settings   config.Provider
	clock      clock.Clock
	clients    ClientFactory
	reconciler *Reconciler
	log        logrus.FieldLogger
}

// NewService creates a Service.
func NewService(gdb *gorm.DB, settings config.Provider, clk clock.Clock, clients ClientFactory, reconciler *Reconciler, log logrus.FieldLogger) *Service {
	return &Service{db: gdb, settings: settings, clock: clk, clients: clients, reconciler: reconciler, log: log}
}

// Range resolves optional bounds: from defaults to today, to to
// from+DefaultListDays.
func Range(from, to *clock.Date, today clock.Date) (clock.Date, clock.Date, error) {
	start := today
	if from != nil {
		start = *from
	}
	end := start.AddDays(DefaultListDays)
	if to != nil {
		end = *to
	}
	if end.Before(start) {
		return clock.Date{}, clock.Date{}, apperr.Invalid("list events", "end date %s is before start date %s", end, start)
	}
	return start, end, nil
}

// WindowFor covers the local days from..to inclusive.
func WindowFor(from, to clock.Date, loc *time.Location) Window {
	start, _ := from.Bounds(loc)
	_, end := to.Bounds(loc)
	return Window{Start: start, End: end}
}

// Sync reconciles the window of the given dates without reading events back.
func (s *Service) Sync(ctx context.Context, from, to *clock.Date) (Result, error) {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	start, end, err := Range(from, to, clock.Today(s.clock, settings.Loc()))
	if err != nil {
		return Result{}, err
	}
	return s.reconciler.Reconcile(ctx, settings, WindowFor(start, end, settings.Loc()))
}

// ListEvents reconciles the requested window and returns its events ordered
// by start. A failed reconciliation is returned as an error; nothing is read.
func (s *Service) ListEvents(ctx context.Context, from, to *clock.Date) ([]models.CalendarEvent, error) {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	start, end, err := Range(from, to, clock.Today(s.clock, settings.Loc()))
	if err != nil {
		return nil, err
	}
	w := WindowFor(start, end, settings.Loc())
	if _, err := s.reconciler.Reconcile(ctx, settings, w); err != nil {
		return nil, err
	}

	var events []models.CalendarEvent
	err = s.db.WithContext(ctx).
		Where("start_time >= ? AND start_time < ?", w.Start, w.End).
		Order("start_time").Order("id").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// ListCalendars lists the remote calendars. Without strict, a missing
// configuration yields nil. With strict it is an InvalidInput error and
// transport failures are Upstream errors.
func (s *Service) ListCalendars(ctx context.Context, strict bool) ([]Calendar, error) {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var client Client
	if s.clients != nil {
		client, err = s.clients(ctx, settings)
		if err != nil {
			return nil, err
		}
	}
	if client == nil {
		if strict {
			return nil, apperr.Invalid("list calendars", "no %s calendar account is configured", settings.Provider)
		}
		return nil, nil
	}

	calendars, err := client.ListCalendars(ctx)
	if err != nil {
		if strict {
			return nil, apperr.Upstream("list calendars", err, "calendar server unavailable")
		}
		s.log.WithError(err).Warn("listing calendars failed")
		return nil, nil
	}
	return calendars, nil
}
