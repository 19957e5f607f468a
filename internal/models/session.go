package models

import (
	"time"

	"gorm.io/datatypes"
)

// Session statuses
const (
	StatusActive  = "active"
	StatusPaused  = "paused"
	StatusStopped = "stopped"
)

// WorkSession is one contiguous (or currently open) work interval
type WorkSession struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StartTime      time.Time                   `gorm:"not null;index" json:"start_time"`
	StopTime       *time.Time                  `gorm:"index" json:"stop_time"`
	Status         string                      `gorm:"size:20;not null;default:active;index" json:"status"`
	Project        string                      `gorm:"size:100" json:"project"`
	Tags           datatypes.JSONSlice[string] `json:"tags"`
	Comment        string                      `json:"comment"`
	PausedDuration int                         `gorm:"not null;default:0" json:"paused_duration"` // seconds
	LastPauseStart *time.Time                  `json:"last_pause_start"`
	TotalSeconds   *int                        `json:"total_seconds"` // nil until stopped

	// Set for sessions generated from a subtrack
	SubtrackID *uint `gorm:"index" json:"subtrack_id,omitempty"`
}

// IsOpen reports whether the session is active or paused
func (s *WorkSession) IsOpen() bool {
	return s.Status == StatusActive || s.Status == StatusPaused
}

// IsAuto reports whether the session was generated by the linker
func (s *WorkSession) IsAuto() bool {
	return s.SubtrackID != nil
}

// MarkPaused opens a pause at now. It is a no-op unless the session is active.
func (s *WorkSession) MarkPaused(now time.Time) {
	if s.Status != StatusActive {
		return
	}
	s.LastPauseStart = &now
	s.Status = StatusPaused
}

// MarkResumed closes the open pause and folds it into PausedDuration.
func (s *WorkSession) MarkResumed(now time.Time) {
	if s.Status != StatusPaused {
		return
	}
	s.foldPause(now)
	s.Status = StatusActive
}

// MarkStopped closes the session at now, folding any open pause first.
func (s *WorkSession) MarkStopped(now time.Time) {
	if s.Status == StatusStopped {
		return
	}
	if s.Status == StatusPaused {
		s.foldPause(now)
	}
	s.StopTime = &now
	s.Status = StatusStopped
	s.Recalculate()
}

// Recalculate sets TotalSeconds from the interval and pause bookkeeping.
// It does nothing for sessions without a stop time.
func (s *WorkSession) Recalculate() {
	if s.StopTime == nil {
		return
	}
	total := EffectiveSeconds(s.StartTime, *s.StopTime, s.PausedDuration)
	s.TotalSeconds = &total
}

// WorkedSeconds returns TotalSeconds, or derives it when it was never stored
func (s *WorkSession) WorkedSeconds() int {
	if s.TotalSeconds != nil {
		return max(*s.TotalSeconds, 0)
	}
	if s.StopTime == nil {
		return 0
	}
	return EffectiveSeconds(s.StartTime, *s.StopTime, s.PausedDuration)
}

// ElapsedSeconds is the worked time up to now. An open pause does not count.
func (s *WorkSession) ElapsedSeconds(now time.Time) int {
	if s.StopTime != nil {
		return s.WorkedSeconds()
	}
	paused := s.PausedDuration
	if s.LastPauseStart != nil {
		paused += int(now.Sub(*s.LastPauseStart).Seconds())
	}
	return EffectiveSeconds(s.StartTime, now, paused)
}

func (s *WorkSession) foldPause(now time.Time) {
	if s.LastPauseStart != nil {
		s.PausedDuration += int(now.Sub(*s.LastPauseStart).Seconds())
	}
	s.LastPauseStart = nil
}

// EffectiveSeconds is (stop - start) - paused, clamped to zero
func EffectiveSeconds(start, stop time.Time, paused int) int {
	return max(int(stop.Sub(start).Seconds())-paused, 0)
}
