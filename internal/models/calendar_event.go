package models

import (
	"time"

	"gorm.io/datatypes"
)

// Participation statuses
const (
	EventPending   = "pending"
	EventAttended  = "attended"
	EventAbsent    = "absent"
	EventCancelled = "cancelled"
)

// SourceManual marks events entered by hand
const SourceManual = "manual"

// CalendarEvent is a meeting, entered manually or mirrored from a remote calendar.
// ExternalID and RecurrenceID use the empty string for "absent" so the
// composite unique indexes behave under SQLite's NULL semantics.
type CalendarEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title        string                      `gorm:"size:200;not null" json:"title"`
	StartTime    time.Time                   `gorm:"not null;index" json:"start_time"`
	EndTime      time.Time                   `gorm:"not null" json:"end_time"`
	Location     string                      `gorm:"size:200" json:"location"`
	Description  string                      `json:"description"`
	Status       string                      `gorm:"size:20;not null;default:pending" json:"status"`
	Ignored      bool                        `gorm:"not null;default:false" json:"ignored"`
	Source       string                      `gorm:"size:255;not null;default:manual;index" json:"source"`
	ExternalID   string                      `gorm:"size:255;not null;default:''" json:"external_id"`
	RecurrenceID string                      `gorm:"size:64;not null;default:''" json:"recurrence_id"`
	Attendees    datatypes.JSONSlice[string] `json:"attendees"`
}

// SetStatus updates the participation status and keeps Ignored in sync
func (e *CalendarEvent) SetStatus(status string) {
	e.Status = status
	e.Ignored = status == EventCancelled
}

// ValidEventStatus reports whether s is a known participation status
func ValidEventStatus(s string) bool {
	switch s {
	case EventPending, EventAttended, EventAbsent, EventCancelled:
		return true
	}
	return false
}
