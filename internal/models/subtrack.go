package models

import (
	"time"

	"gorm.io/datatypes"
)

// WorkSubtrack is a planned or logged sub-activity of a day
type WorkSubtrack struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Day       time.Time                   `gorm:"type:date;not null;index" json:"day"`
	Title     string                      `gorm:"size:200;not null" json:"title"`
	StartTime *time.Time                  `json:"start_time"`
	EndTime   *time.Time                  `json:"end_time"`
	Project   string                      `gorm:"size:100" json:"project"`
	Tags      datatypes.JSONSlice[string] `json:"tags"`
	Note      string                      `json:"note"`

	// Owning calendar event, if the subtrack mirrors an attended meeting
	CalendarEventID *uint `gorm:"uniqueIndex" json:"calendar_event_id,omitempty"`
}
