// Package linker keeps generated work sessions in step with subtracks and
// attended calendar events.
package linker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/config"
	"github.com/balkashynov/punch/internal/models"
	"github.com/balkashynov/punch/internal/tracker"
)

// Marker prefixes the comment of every generated session.
const Marker = "[auto] "

// Comment renders the synthetic comment for a span.
func Comment(title, note string) string {
	if note = strings.TrimSpace(note); note != "" {
		return Marker + title + " – " + note
	}
	return Marker + title
}

// HasMarker reports whether comment still looks generated.
func HasMarker(comment string) bool {
	return strings.HasPrefix(comment, Marker)
}

// Span describes the interval an auto session should cover.
type Span struct {
	SubtrackID *uint
	Start      *time.Time
	Stop       *time.Time
	Title      string
	Project    string
	Tags       []string
	Note       string
}

func (sp Span) complete() bool {
	return sp.Start != nil && sp.Stop != nil
}

// SpanOf builds the span of a subtrack.
func SpanOf(st *models.WorkSubtrack) Span {
	id := st.ID
	return Span{
		SubtrackID: &id,
		Start:      clock.ToUTCPtr(st.StartTime),
		Stop:       clock.ToUTCPtr(st.EndTime),
		Title:      st.Title,
		Project:    st.Project,
		Tags:       st.Tags,
		Note:       st.Note,
	}
}

// EnsureForSpan creates or refreshes the session covering span. It returns
// nil without error when the span lacks either instant.
func EnsureForSpan(tx *gorm.DB, s config.Settings, span Span) (*models.WorkSession, error) {
	if !span.complete() {
		return nil, nil
	}
	session, linked, err := findAuto(tx, span)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return tracker.CreateManualTx(tx, s, tracker.ManualRequest{
			Start:      *span.Start,
			Stop:       *span.Stop,
			Project:    span.Project,
			Tags:       span.Tags,
			Comment:    Comment(span.Title, span.Note),
			SubtrackID: span.SubtrackID,
		})
	}

	changes := tracker.SessionChanges{}
	dirty := false
	if linked && (!session.StartTime.Equal(*span.Start) || !session.StopTime.Equal(*span.Stop)) {
		changes.Start, changes.Stop = span.Start, span.Stop
		dirty = true
	}
	if want := Comment(span.Title, span.Note); HasMarker(session.Comment) && session.Comment != want {
		changes.Comment = &want
		dirty = true
	}
	if !linked && span.SubtrackID != nil && session.SubtrackID == nil && HasMarker(session.Comment) {
		if err := tx.Model(session).Update("subtrack_id", *span.SubtrackID).Error; err != nil {
			return nil, fmt.Errorf("failed to link session %d: %w", session.ID, err)
		}
		session.SubtrackID = span.SubtrackID
	}
	if !dirty {
		return session, nil
	}
	return tracker.EditTx(tx, s, session.ID, changes)
}

// RemoveAuto deletes the generated session of span, if any, and recomputes its day.
func RemoveAuto(tx *gorm.DB, s config.Settings, span Span) error {
	var session models.WorkSession
	var q *gorm.DB
	switch {
	case span.SubtrackID != nil:
		q = tx.Where("subtrack_id = ?", *span.SubtrackID)
	case span.complete():
		q = tx.Where("start_time = ? AND stop_time = ? AND comment = ?", *span.Start, *span.Stop, Comment(span.Title, span.Note))
	default:
		return nil
	}
	err := q.First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if span.SubtrackID != nil && span.complete() {
			return RemoveAuto(tx, s, Span{Start: span.Start, Stop: span.Stop, Title: span.Title, Note: span.Note})
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find generated session: %w", err)
	}
	return tracker.DeleteTx(tx, s, &session)
}

// findAuto looks up the session of span by back-reference first, then by
// exact instants. linked reports a back-reference hit.
func findAuto(tx *gorm.DB, span Span) (*models.WorkSession, bool, error) {
	var session models.WorkSession
	if span.SubtrackID != nil {
		err := tx.Where("subtrack_id = ?", *span.SubtrackID).First(&session).Error
		if err == nil {
			return &session, true, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("failed to find linked session: %w", err)
		}
	}

	q := tx.Where("start_time = ? AND stop_time = ?", *span.Start, *span.Stop)
	if span.SubtrackID != nil {
		q = q.Where("subtrack_id IS NULL")
	}
	err := q.First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find session by span: %w", err)
	}
	return &session, false, nil
}
