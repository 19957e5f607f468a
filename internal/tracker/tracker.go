// Package tracker implements the work session state machine.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/balkashynov/punch/internal/aggregate"
	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/config"
	"github.com/balkashynov/punch/internal/db"
	"github.com/balkashynov/punch/internal/models"
)

// Transition tells which way PauseOrResume went.
type Transition string

const (
	TransitionPaused  Transition = "paused"
	TransitionResumed Transition = "resumed"
)

// StartRequest opens a session. StartTime defaults to now.
type StartRequest struct {
	Project   string
	Tags      []string
	Comment   string
	StartTime *time.Time
}

// ManualRequest inserts an already stopped session.
type ManualRequest struct {
	Start      time.Time
	Stop       time.Time
	Project    string
	Tags       []string
	Comment    string
	SubtrackID *uint
}

// SessionChanges lists the fields Edit should touch. Nil means unchanged.
type SessionChanges struct {
	Start   *time.Time
	Stop    *time.Time
	Project *string
	Tags    *[]string
	Comment *string
}

// Tracker owns the lifecycle of work sessions.
type Tracker struct {
	db       *gorm.DB
	clock    clock.Clock
	settings config.Provider
	log      logrus.FieldLogger
}

// New creates a Tracker.
func New(gdb *gorm.DB, clk clock.Clock, settings config.Provider, log logrus.FieldLogger) *Tracker {
	return &Tracker{db: gdb, clock: clk, settings: settings, log: log}
}

// Start opens a new active session. Only one session may be open at a time.
func (t *Tracker) Start(ctx context.Context, req StartRequest) (*models.WorkSession, error) {
	start := t.clock.Now()
	if req.StartTime != nil {
		start = clock.ToUTC(*req.StartTime)
	}
	session := models.WorkSession{
		StartTime: start,
		Status:    models.StatusActive,
		Project:   strings.TrimSpace(req.Project),
		Tags:      NormalizeTags(req.Tags),
		Comment:   req.Comment,
	}

	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := findOpen(tx)
		if err != nil {
			return err
		}
		if open != nil {
			return apperr.Conflict("start", "session #%d is already %s", open.ID, open.Status)
		}
		if err := tx.Create(&session).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict("start", "another session is already open")
			}
			return fmt.Errorf("failed to create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.log.WithFields(logrus.Fields{"session_id": session.ID, "start": session.StartTime}).Debug("session started")
	return &session, nil
}

// PauseOrResume toggles the open session between active and paused.
func (t *Tracker) PauseOrResume(ctx context.Context) (*models.WorkSession, Transition, error) {
	now := t.clock.Now()
	var (
		session    *models.WorkSession
		transition Transition
	)
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		session, err = requireOpen(tx, "pause")
		if err != nil {
			return err
		}
		if session.Status == models.StatusActive {
			session.MarkPaused(now)
			transition = TransitionPaused
		} else {
			session.MarkResumed(now)
			transition = TransitionResumed
		}
		if err := tx.Save(session).Error; err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	t.log.WithFields(logrus.Fields{"session_id": session.ID, "transition": transition}).Debug("session toggled")
	return session, transition, nil
}

// Stop closes the open session, folding an open pause, and recomputes its day.
func (t *Tracker) Stop(ctx context.Context, comment *string) (*models.WorkSession, error) {
	s, err := t.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	now := t.clock.Now()

	var session *models.WorkSession
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		session, err = requireOpen(tx, "stop")
		if err != nil {
			return err
		}
		session.MarkStopped(now)
		if comment != nil {
			session.Comment = *comment
		}
		if err := tx.Save(session).Error; err != nil {
			return fmt.Errorf("failed to stop session: %w", err)
		}
		_, err = aggregate.ComputeDay(tx, clock.LocalDate(session.StartTime, s.Loc()), s)
		return err
	})
	if err != nil {
		return nil, err
	}

	t.log.WithFields(logrus.Fields{"session_id": session.ID, "total_seconds": session.WorkedSeconds()}).Debug("session stopped")
	return session, nil
}

// CreateManual inserts a stopped session covering [Start, Stop).
func (t *Tracker) CreateManual(ctx context.Context, req ManualRequest) (*models.WorkSession, error) {
	s, err := t.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var session *models.WorkSession
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		session, err = CreateManualTx(tx, s, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// CreateManualTx is CreateManual inside the caller's transaction.
func CreateManualTx(tx *gorm.DB, s config.Settings, req ManualRequest) (*models.WorkSession, error) {
	start, stop := clock.ToUTC(req.Start), clock.ToUTC(req.Stop)
	if !stop.After(start) {
		return nil, apperr.Invalid("manual session", "stop %s must be after start %s", stop.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	session := models.WorkSession{
		StartTime:  start,
		StopTime:   &stop,
		Status:     models.StatusStopped,
		Project:    strings.TrimSpace(req.Project),
		Tags:       NormalizeTags(req.Tags),
		Comment:    req.Comment,
		SubtrackID: req.SubtrackID,
	}
	session.Recalculate()
	if err := tx.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if _, err := aggregate.ComputeDay(tx, clock.LocalDate(start, s.Loc()), s); err != nil {
		return nil, err
	}
	return &session, nil
}

// Edit applies changes to a stopped session and recomputes the days it
// left and landed on.
func (t *Tracker) Edit(ctx context.Context, id uint, changes SessionChanges) (*models.WorkSession, error) {
	s, err := t.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var session *models.WorkSession
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		session, err = EditTx(tx, s, id, changes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// EditTx is Edit inside the caller's transaction.
func EditTx(tx *gorm.DB, s config.Settings, id uint, changes SessionChanges) (*models.WorkSession, error) {
	session, err := findByID(tx, id, "edit")
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusStopped {
		return nil, apperr.Invalid("edit", "session #%d is %s, stop it first", id, session.Status)
	}
	oldDay := clock.LocalDate(session.StartTime, s.Loc())

	if changes.Start != nil {
		session.StartTime = clock.ToUTC(*changes.Start)
	}
	if changes.Stop != nil {
		session.StopTime = clock.ToUTCPtr(changes.Stop)
	}
	if changes.Project != nil {
		session.Project = strings.TrimSpace(*changes.Project)
	}
	if changes.Tags != nil {
		session.Tags = NormalizeTags(*changes.Tags)
	}
	if changes.Comment != nil {
		session.Comment = *changes.Comment
	}
	if session.StopTime == nil || !session.StopTime.After(session.StartTime) {
		return nil, apperr.Invalid("edit", "stop must be after start")
	}
	session.LastPauseStart = nil
	session.Recalculate()

	if err := tx.Save(session).Error; err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	newDay := clock.LocalDate(session.StartTime, s.Loc())
	if err := aggregate.RecomputeDays(tx, s, oldDay, newDay); err != nil {
		return nil, err
	}
	return session, nil
}

// Delete removes a stopped session and recomputes its day.
func (t *Tracker) Delete(ctx context.Context, id uint) error {
	s, err := t.settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := findByID(tx, id, "delete")
		if err != nil {
			return err
		}
		return DeleteTx(tx, s, session)
	})
}

// DeleteTx removes session inside the caller's transaction.
func DeleteTx(tx *gorm.DB, s config.Settings, session *models.WorkSession) error {
	if session.Status != models.StatusStopped {
		return apperr.Invalid("delete", "session #%d is %s, stop it first", session.ID, session.Status)
	}
	if err := tx.Delete(session).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	_, err := aggregate.ComputeDay(tx, clock.LocalDate(session.StartTime, s.Loc()), s)
	return err
}

// Active returns the open session, or nil when nothing is tracked.
func (t *Tracker) Active(ctx context.Context) (*models.WorkSession, error) {
	return findOpen(t.db.WithContext(ctx))
}

// Get returns a session by id.
func (t *Tracker) Get(ctx context.Context, id uint) (*models.WorkSession, error) {
	return findByID(t.db.WithContext(ctx), id, "get")
}

// ListDay returns the sessions starting on day in the reporting timezone.
func (t *Tracker) ListDay(ctx context.Context, day clock.Date) ([]models.WorkSession, error) {
	s, err := t.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	from, to := day.Bounds(s.Loc())
	var sessions []models.WorkSession
	err = t.db.WithContext(ctx).
		Where("start_time >= ? AND start_time < ?", from, to).
		Order("start_time").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// NormalizeTags trims, drops empty entries and removes duplicates, keeping order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func findOpen(tx *gorm.DB) (*models.WorkSession, error) {
	var session models.WorkSession
	err := tx.Where("status IN ?", []string{models.StatusActive, models.StatusPaused}).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}
	return &session, nil
}

func requireOpen(tx *gorm.DB, op string) (*models.WorkSession, error) {
	session, err := findOpen(tx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.NotFound(op, "no active session")
	}
	return session, nil
}

func findByID(tx *gorm.DB, id uint, op string) (*models.WorkSession, error) {
	var session models.WorkSession
	err := tx.First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(op, "session #%d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %d: %w", id, err)
	}
	return &session, nil
}
