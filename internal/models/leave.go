package models

import "time"

// Leave types that affect accounting
const (
	LeaveVacation = "vacation"
	LeaveSick     = "sick"
)

// LeaveEntry is an inclusive date range of absence
type LeaveEntry struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	StartDate time.Time `gorm:"type:date;not null;index" json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null;index" json:"end_date"`
	Type      string    `gorm:"size:20;not null" json:"type"`
	Comment   string    `json:"comment"`
	Approved  bool      `gorm:"not null;default:false" json:"approved"`
}

// Holiday sources
const (
	HolidayManual = "manual"
	HolidayImport = "import"
)

// Holiday is a single non-working calendar date
type Holiday struct {
	ID     uint      `gorm:"primarykey" json:"id"`
	Day    time.Time `gorm:"type:date;not null;uniqueIndex" json:"day"`
	Name   string    `gorm:"size:200;not null" json:"name"`
	Source string    `gorm:"size:20;not null;default:manual" json:"source"`
}
