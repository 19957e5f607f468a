package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balkashynov/punch/internal/models"
)

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "punch.db")
	gdb, err := Open(path, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })

	for _, table := range []string{"work_sessions", "work_subtracks", "calendar_events", "leave_entries", "holidays", "day_summaries", "app_settings"} {
		assert.True(t, gdb.Migrator().HasTable(table), table)
	}
}

func TestSingleOpenSessionIndex(t *testing.T) {
	gdb, err := Open(filepath.Join(t.TempDir(), "punch.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, gdb.Create(&models.WorkSession{StartTime: now, Status: models.StatusActive}).Error)

	err = gdb.Create(&models.WorkSession{StartTime: now.Add(time.Hour), Status: models.StatusPaused}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	stop := now.Add(2 * time.Hour)
	require.NoError(t, gdb.Create(&models.WorkSession{StartTime: now, StopTime: &stop, Status: models.StatusStopped}).Error)
	require.NoError(t, gdb.Create(&models.WorkSession{StartTime: now, StopTime: &stop, Status: models.StatusStopped}).Error)
}

func TestCalendarEventUniqueness(t *testing.T) {
	gdb, err := Open(filepath.Join(t.TempDir(), "punch.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	ev := func(ext, rec string) *models.CalendarEvent {
		return &models.CalendarEvent{Title: "Standup", StartTime: start, EndTime: start.Add(15 * time.Minute), Source: "work", ExternalID: ext, RecurrenceID: rec, Status: models.EventPending}
	}

	require.NoError(t, gdb.Create(ev("uid-1", "")).Error)
	require.NoError(t, gdb.Create(ev("uid-1", "20240102T090000Z")).Error)
	assert.True(t, IsUniqueViolation(gdb.Create(ev("uid-1", "")).Error))

	require.NoError(t, gdb.Create(ev("", "")).Error)
	assert.True(t, IsUniqueViolation(gdb.Create(ev("", "")).Error))
}
