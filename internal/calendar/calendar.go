// Package calendar mirrors remote calendar occurrences into local
// CalendarEvent rows.
package calendar

import (
	"context"
	"time"

	"github.com/balkashynov/punch/internal/config"
)

// Calendar is a remote calendar as listed by a Client.
type Calendar struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Occurrence is one instance of a remote event in a source-agnostic shape.
// Transport adapters produce it, already expanded and flattened.
type Occurrence struct {
	Title        string
	Start        time.Time
	Stop         *time.Time // nil when the source omitted an end
	Location     string
	Description  string
	ExternalID   string
	RecurrenceID string
	Attendees    []string
}

// Window is the half-open instant range [Start, End) being reconciled.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Naive reinterprets the window's wall clock in loc as UTC, for servers
// that mishandle zoned time-range filters.
func (w Window) Naive(loc *time.Location) Window {
	strip := func(t time.Time) time.Time {
		l := t.In(loc)
		return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), 0, time.UTC)
	}
	return Window{Start: strip(w.Start), End: strip(w.End)}
}

// Client is a remote calendar transport.
type Client interface {
	ListCalendars(ctx context.Context) ([]Calendar, error)
	Occurrences(ctx context.Context, cal Calendar, start, end time.Time, expand bool) ([]Occurrence, error)
}

// ClientFactory builds the Client for a settings snapshot. It returns a nil
// Client without error when no remote source is configured.
type ClientFactory func(ctx context.Context, s config.Settings) (Client, error)
