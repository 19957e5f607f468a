// Package clock converts between the reporting timezone and UTC storage
// instants and provides the civil Date type used for day bucketing.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// System is the wall clock.
type System struct{}

// Now returns the current UTC instant truncated to whole seconds.
func (System) Now() time.Time {
	return ToUTC(time.Now())
}

// Manual is a settable clock for tests and replays.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock set to t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: ToUTC(t)}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = ToUTC(t)
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// ToUTC normalizes an instant for storage: UTC, whole seconds.
func ToUTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// ToUTCPtr is ToUTC for optional instants.
func ToUTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := ToUTC(*t)
	return &u
}

// LoadLocation resolves a reporting timezone name. Empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// Today returns the current civil date in loc.
func Today(c Clock, loc *time.Location) Date {
	return LocalDate(c.Now(), loc)
}
