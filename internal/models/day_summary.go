package models

import (
	"time"

	"gorm.io/datatypes"
)

// DaySummary is the cached accounting record of one day. It is always
// recomputed from sessions, leaves and holidays, never edited.
type DaySummary struct {
	ID  uint      `gorm:"primarykey" json:"-"`
	Day time.Time `gorm:"type:date;not null;uniqueIndex" json:"day"`

	WorkSeconds             int                         `json:"work_seconds"`
	PauseSeconds            int                         `json:"pause_seconds"`
	OvertimeSeconds         int                         `json:"overtime_seconds"`
	ExpectedSeconds         int                         `json:"expected_seconds"`
	BaselineExpectedSeconds int                         `json:"baseline_expected_seconds"`
	VacationSeconds         int                         `json:"vacation_seconds"`
	SickSeconds             int                         `json:"sick_seconds"`
	IsWeekend               bool                        `json:"is_weekend"`
	IsHoliday               bool                        `json:"is_holiday"`
	HolidayName             string                      `json:"holiday_name,omitempty"`
	LeaveTypes              datatypes.JSONSlice[string] `json:"leave_types"`
}

// AppSetting persists a runtime configuration override
type AppSetting struct {
	Key       string    `gorm:"primaryKey;size:100"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time
}
