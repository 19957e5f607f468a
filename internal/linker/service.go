package linker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/config"
	"github.com/balkashynov/punch/internal/models"
	"github.com/balkashynov/punch/internal/tracker"
)

// Linker manages subtracks and participation of calendar events.
type Linker struct {
	db       *gorm.DB
	settings config.Provider
	log      logrus.FieldLogger
}

// New creates a Linker.
func New(gdb *gorm.DB, settings config.Provider, log logrus.FieldLogger) *Linker {
	return &Linker{db: gdb, settings: settings, log: log}
}

// SubtrackInput creates a subtrack. Day defaults to the local date of Start.
type SubtrackInput struct {
	Day     clock.Date
	Title   string
	Start   *time.Time
	End     *time.Time
	Project string
	Tags    []string
	Note    string
}

// SubtrackChanges lists the fields UpdateSubtrack should touch.
type SubtrackChanges struct {
	Title      *string
	Start      *time.Time
	End        *time.Time
	ClearTimes bool
	Project    *string
	Tags       *[]string
	Note       *string
}

// CreateSubtrack stores a subtrack and its auto session when it has both instants.
func (l *Linker) CreateSubtrack(ctx context.Context, in SubtrackInput) (*models.WorkSubtrack, error) {
	s, err := l.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	st := models.WorkSubtrack{
		Title:     strings.TrimSpace(in.Title),
		StartTime: clock.ToUTCPtr(in.Start),
		EndTime:   clock.ToUTCPtr(in.End),
		Project:   strings.TrimSpace(in.Project),
		Tags:      tracker.NormalizeTags(in.Tags),
		Note:      strings.TrimSpace(in.Note),
	}
	day := in.Day
	if day.IsZero() && st.StartTime != nil {
		day = clock.LocalDate(*st.StartTime, s.Loc())
	}
	if day.IsZero() {
		return nil, apperr.Invalid("create subtrack", "day or start time is required")
	}
	st.Day = day.Time()
	if err := validateSubtrack(&st); err != nil {
		return nil, err
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&st).Error; err != nil {
			return fmt.Errorf("failed to create subtrack: %w", err)
		}
		_, err := EnsureForSpan(tx, s, SpanOf(&st))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// UpdateSubtrack applies changes and moves, refreshes or removes the auto session.
func (l *Linker) UpdateSubtrack(ctx context.Context, id uint, changes SubtrackChanges) (*models.WorkSubtrack, error) {
	s, err := l.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var st *models.WorkSubtrack
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		st, err = findSubtrack(tx, id)
		if err != nil {
			return err
		}
		if changes.Title != nil {
			st.Title = strings.TrimSpace(*changes.Title)
		}
		if changes.ClearTimes {
			st.StartTime, st.EndTime = nil, nil
		}
		if changes.Start != nil {
			st.StartTime = clock.ToUTCPtr(changes.Start)
			st.Day = clock.LocalDate(*st.StartTime, s.Loc()).Time()
		}
		if changes.End != nil {
			st.EndTime = clock.ToUTCPtr(changes.End)
		}
		if changes.Project != nil {
			st.Project = strings.TrimSpace(*changes.Project)
		}
		if changes.Tags != nil {
			st.Tags = tracker.NormalizeTags(*changes.Tags)
		}
		if changes.Note != nil {
			st.Note = strings.TrimSpace(*changes.Note)
		}
		if err := validateSubtrack(st); err != nil {
			return err
		}
		if err := tx.Save(st).Error; err != nil {
			return fmt.Errorf("failed to update subtrack: %w", err)
		}
		return syncSpan(tx, s, st)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteSubtrack removes a subtrack and its auto session.
func (l *Linker) DeleteSubtrack(ctx context.Context, id uint) error {
	s, err := l.settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := findSubtrack(tx, id)
		if err != nil {
			return err
		}
		return deleteSubtrack(tx, s, st)
	})
}

// ListSubtracks returns the subtracks of day ordered by start time.
func (l *Linker) ListSubtracks(ctx context.Context, day clock.Date) ([]models.WorkSubtrack, error) {
	var out []models.WorkSubtrack
	err := l.db.WithContext(ctx).
		Where("day = ?", day.Time()).
		Order("start_time").Order("created_at").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subtracks: %w", err)
	}
	return out, nil
}

// ManualEvent is a calendar event entered by hand.
type ManualEvent struct {
	Title       string
	Start       time.Time
	End         time.Time
	Location    string
	Description string
	Status      string
}

// CreateEvent stores a manual calendar event. An attended event gets its
// subtrack and auto session right away.
func (l *Linker) CreateEvent(ctx context.Context, in ManualEvent) (*models.CalendarEvent, error) {
	s, err := l.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = models.EventPending
	}
	if !models.ValidEventStatus(status) {
		return nil, apperr.Invalid("create event", "unknown participation status %q", status)
	}
	start, end := clock.ToUTC(in.Start), clock.ToUTC(in.End)
	if !end.After(start) {
		return nil, apperr.Invalid("create event", "event end must be after start")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Invalid("create event", "title is required")
	}

	ev := models.CalendarEvent{
		Title:       title,
		StartTime:   start,
		EndTime:     end,
		Location:    in.Location,
		Description: in.Description,
		Source:      models.SourceManual,
	}
	ev.SetStatus(status)

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ev).Error; err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}
		if ev.Status == models.EventAttended {
			return SyncAttendedEvent(tx, s, &ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// SetParticipation changes the status of an event and links or unlinks
// its subtrack accordingly.
func (l *Linker) SetParticipation(ctx context.Context, eventID uint, status string) (*models.CalendarEvent, error) {
	if !models.ValidEventStatus(status) {
		return nil, apperr.Invalid("set participation", "unknown participation status %q", status)
	}
	s, err := l.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var ev models.CalendarEvent
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&ev, eventID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("set participation", "calendar event #%d not found", eventID)
		}
		if err != nil {
			return fmt.Errorf("failed to get event %d: %w", eventID, err)
		}
		previous := ev.Status
		ev.SetStatus(status)
		if err := tx.Save(&ev).Error; err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}
		l.log.WithFields(logrus.Fields{"event_id": ev.ID, "from": previous, "to": status}).Debug("participation changed")

		if ev.Status == models.EventAttended {
			return SyncAttendedEvent(tx, s, &ev)
		}
		return DetachEvent(tx, s, &ev)
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// SyncAttendedEvent creates or refreshes the subtrack owned by an attended
// event and ensures its auto session.
func SyncAttendedEvent(tx *gorm.DB, s config.Settings, ev *models.CalendarEvent) error {
	st, err := subtrackOfEvent(tx, ev.ID)
	if err != nil {
		return err
	}
	if st == nil {
		id := ev.ID
		st = &models.WorkSubtrack{CalendarEventID: &id}
	}
	start, end := ev.StartTime, ev.EndTime
	st.Day = clock.LocalDate(start, s.Loc()).Time()
	st.Title = ev.Title
	st.StartTime = &start
	st.EndTime = &end
	st.Note = ev.Description

	if err := tx.Save(st).Error; err != nil {
		return fmt.Errorf("failed to store subtrack of event %d: %w", ev.ID, err)
	}
	_, err = EnsureForSpan(tx, s, SpanOf(st))
	return err
}

// DetachEvent removes the subtrack and auto session of an event, if any.
func DetachEvent(tx *gorm.DB, s config.Settings, ev *models.CalendarEvent) error {
	st, err := subtrackOfEvent(tx, ev.ID)
	if err != nil || st == nil {
		return err
	}
	return deleteSubtrack(tx, s, st)
}

func syncSpan(tx *gorm.DB, s config.Settings, st *models.WorkSubtrack) error {
	span := SpanOf(st)
	if span.complete() {
		_, err := EnsureForSpan(tx, s, span)
		return err
	}
	return RemoveAuto(tx, s, span)
}

func deleteSubtrack(tx *gorm.DB, s config.Settings, st *models.WorkSubtrack) error {
	if err := RemoveAuto(tx, s, SpanOf(st)); err != nil {
		return err
	}
	if err := tx.Delete(st).Error; err != nil {
		return fmt.Errorf("failed to delete subtrack %d: %w", st.ID, err)
	}
	return nil
}

func validateSubtrack(st *models.WorkSubtrack) error {
	if st.Title == "" {
		return apperr.Invalid("subtrack", "title is required")
	}
	if st.StartTime != nil && st.EndTime != nil && !st.EndTime.After(*st.StartTime) {
		return apperr.Invalid("subtrack", "subtrack end must be after start")
	}
	return nil
}

func findSubtrack(tx *gorm.DB, id uint) (*models.WorkSubtrack, error) {
	var st models.WorkSubtrack
	err := tx.First(&st, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("subtrack", "subtrack #%d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtrack %d: %w", id, err)
	}
	return &st, nil
}

func subtrackOfEvent(tx *gorm.DB, eventID uint) (*models.WorkSubtrack, error) {
	var st models.WorkSubtrack
	err := tx.Where("calendar_event_id = ?", eventID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtrack of event %d: %w", eventID, err)
	}
	return &st, nil
}
