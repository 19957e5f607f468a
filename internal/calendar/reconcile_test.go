package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/config"
	"github.com/balkashynov/punch/internal/linker"
	"github.com/balkashynov/punch/internal/logging"
	"github.com/balkashynov/punch/internal/models"
)

func linkedReconciler(gdb *gorm.DB, fake *fakeClient) (*Reconciler, *linker.Linker) {
	l := linker.New(gdb, config.Static(settings), logging.Discard())
	r := NewReconciler(gdb, factory(fake), logging.Discard(), WithHooks(Hooks{
		AfterUpdate:  linker.SyncAttendedEvent,
		BeforeDelete: linker.DetachEvent,
	}))
	return r, l
}

func workOn(t *testing.T, gdb *gorm.DB, day clock.Date) int {
	t.Helper()
	var summary models.DaySummary
	err := gdb.Where("day = ?", day.Time()).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0
	}
	require.NoError(t, err)
	return summary.WorkSeconds
}

func sessionsOf(t *testing.T, gdb *gorm.DB) []models.WorkSession {
	t.Helper()
	var out []models.WorkSession
	require.NoError(t, gdb.Order("start_time").Find(&out).Error)
	return out
}

func TestExpandedInstancesWithoutRecurrenceIDStayApart(t *testing.T) {
	gdb := newDB(t)
	fake := newFake(
		Occurrence{Title: "Standup", Start: at(2, 9, 0), Stop: ptr(at(2, 9, 15)), ExternalID: "uid-series"},
		Occurrence{Title: "Standup", Start: at(3, 9, 0), Stop: ptr(at(3, 9, 15)), ExternalID: "uid-series"},
		Occurrence{Title: "Standup", Start: at(4, 9, 0), Stop: ptr(at(4, 9, 15)), ExternalID: "uid-series"},
	)
	r := NewReconciler(gdb, factory(fake), logging.Discard())
	ctx := context.Background()

	res, err := r.Reconcile(ctx, settings, window)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)
	assert.Zero(t, res.Unchanged)

	rows := events(t, gdb)
	require.Len(t, rows, 3)
	assert.Equal(t, "20240102T080000Z", rows[0].RecurrenceID)
	assert.Equal(t, "20240103T080000Z", rows[1].RecurrenceID)
	assert.Equal(t, "20240104T080000Z", rows[2].RecurrenceID)

	// server order does not matter
	occ := fake.occurrences["/cal/work"]
	occ[0], occ[2] = occ[2], occ[0]
	res, err = r.Reconcile(ctx, settings, window)
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.Equal(t, 3, res.Unchanged)
}

func TestSingleInstanceRowJoinsItsSeries(t *testing.T) {
	gdb := newDB(t)
	fake := newFake(Occurrence{Title: "Standup", Start: at(2, 9, 0), Stop: ptr(at(2, 9, 15)), ExternalID: "uid-series"})
	r := NewReconciler(gdb, factory(fake), logging.Discard())
	ctx := context.Background()

	_, err := r.Reconcile(ctx, settings, window)
	require.NoError(t, err)
	first := events(t, gdb)[0]
	assert.Empty(t, first.RecurrenceID)

	fake.occurrences["/cal/work"] = append(fake.occurrences["/cal/work"],
		Occurrence{Title: "Standup", Start: at(3, 9, 0), Stop: ptr(at(3, 9, 15)), ExternalID: "uid-series"})
	res, err := r.Reconcile(ctx, settings, window)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Zero(t, res.Deleted)

	rows := events(t, gdb)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, "20240102T080000Z", rows[0].RecurrenceID)
}

func TestAttendedEventFollowsRemoteTimes(t *testing.T) {
	gdb := newDB(t)
	fake := newFake(Occurrence{Title: "Retro", Start: at(4, 15, 0), Stop: ptr(at(4, 16, 0)), ExternalID: "uid-retro"})
	r, l := linkedReconciler(gdb, fake)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, settings, window)
	require.NoError(t, err)
	row := events(t, gdb)[0]
	_, err = l.SetParticipation(ctx, row.ID, models.EventAttended)
	require.NoError(t, err)

	thursday, friday := clock.NewDate(2024, time.January, 4), clock.NewDate(2024, time.January, 5)
	assert.Equal(t, 3600, workOn(t, gdb, thursday))

	fake.occurrences["/cal/work"][0].Start = at(5, 10, 0)
	fake.occurrences["/cal/work"][0].Stop = ptr(at(5, 11, 30))
	res, err := r.Reconcile(ctx, settings, window)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	sessions := sessionsOf(t, gdb)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].StartTime.Equal(at(5, 10, 0)))
	require.NotNil(t, sessions[0].StopTime)
	assert.True(t, sessions[0].StopTime.Equal(at(5, 11, 30)))

	assert.Zero(t, workOn(t, gdb, thursday))
	assert.Equal(t, 5400, workOn(t, gdb, friday))

	var st models.WorkSubtrack
	require.NoError(t, gdb.Where("calendar_event_id = ?", row.ID).First(&st).Error)
	assert.True(t, st.Day.Equal(friday.Time()))
}

func TestAttendedEventMirrorsDescription(t *testing.T) {
	gdb := newDB(t)
	fake := newFake(Occurrence{Title: "Retro", Description: "agenda", Start: at(4, 15, 0), Stop: ptr(at(4, 16, 0)), ExternalID: "uid-retro"})
	r, l := linkedReconciler(gdb, fake)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, settings, window)
	require.NoError(t, err)
	row := events(t, gdb)[0]
	_, err = l.SetParticipation(ctx, row.ID, models.EventAttended)
	require.NoError(t, err)

	fake.occurrences["/cal/work"][0].Description = "new agenda"
	res, err := r.Reconcile(ctx, settings, window)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	var st models.WorkSubtrack
	require.NoError(t, gdb.Where("calendar_event_id = ?", row.ID).First(&st).Error)
	assert.Equal(t, "new agenda", st.Note)

	sessions := sessionsOf(t, gdb)
	require.Len(t, sessions, 1)
	assert.Equal(t, linker.Comment("Retro", "new agenda"), sessions[0].Comment)
}

func TestRemovedDuplicateDetachesItsSession(t *testing.T) {
	gdb := newDB(t)
	require.NoError(t, gdb.Exec("DROP INDEX idx_calendar_events_external").Error)
	start := at(2, 9, 0).UTC()
	var rows [2]models.CalendarEvent
	for i := range rows {
		rows[i] = models.CalendarEvent{
			Title: "Standup", StartTime: start, EndTime: start.Add(time.Hour),
			Source: "/cal/work", ExternalID: "uid-dup", Status: models.EventPending,
		}
		require.NoError(t, gdb.Create(&rows[i]).Error)
	}

	fake := newFake(Occurrence{Title: "Standup", Start: start, Stop: ptr(start.Add(time.Hour)), ExternalID: "uid-dup"})
	r, l := linkedReconciler(gdb, fake)
	ctx := context.Background()

	_, err := l.SetParticipation(ctx, rows[1].ID, models.EventAttended)
	require.NoError(t, err)
	require.Len(t, sessionsOf(t, gdb), 1)
	tuesday := clock.NewDate(2024, time.January, 2)
	assert.Equal(t, 3600, workOn(t, gdb, tuesday))

	res, err := r.Reconcile(ctx, settings, window)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	remaining := events(t, gdb)
	require.Len(t, remaining, 1)
	assert.Equal(t, rows[0].ID, remaining[0].ID)

	var subtracks int64
	require.NoError(t, gdb.Model(&models.WorkSubtrack{}).Count(&subtracks).Error)
	assert.Zero(t, subtracks)
	assert.Empty(t, sessionsOf(t, gdb))
	assert.Zero(t, workOn(t, gdb, tuesday))
}

func TestNarrowWindowFindsSeriesInstance(t *testing.T) {
	gdb := newDB(t)
	fake := newFake(
		Occurrence{Title: "Standup", Start: at(2, 9, 0), Stop: ptr(at(2, 9, 15)), ExternalID: "uid-series"},
		Occurrence{Title: "Standup", Start: at(3, 9, 0), Stop: ptr(at(3, 9, 15)), ExternalID: "uid-series"},
		Occurrence{Title: "Standup", Start: at(4, 9, 0), Stop: ptr(at(4, 9, 15)), ExternalID: "uid-series"},
	)
	r, l := linkedReconciler(gdb, fake)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, settings, window)
	require.NoError(t, err)
	rows := events(t, gdb)
	require.Len(t, rows, 3)
	attended := rows[1]
	require.Equal(t, "20240103T080000Z", attended.RecurrenceID)
	_, err = l.SetParticipation(ctx, attended.ID, models.EventAttended)
	require.NoError(t, err)

	// a server that honours the bounds sends back the one instance
	fake.occurrences["/cal/work"] = []Occurrence{
		{Title: "Standup", Start: at(3, 9, 0), Stop: ptr(at(3, 9, 15)), ExternalID: "uid-series"},
	}
	wednesday := clock.NewDate(2024, time.January, 3)
	narrow := WindowFor(wednesday, wednesday, berlin)
	for i := 0; i < 2; i++ {
		res, err := r.Reconcile(ctx, settings, narrow)
		require.NoError(t, err)
		assert.False(t, res.Changed())
		assert.Equal(t, 1, res.Unchanged)
	}

	rows = events(t, gdb)
	require.Len(t, rows, 3)
	assert.Equal(t, attended.ID, rows[1].ID)
	assert.Equal(t, "20240103T080000Z", rows[1].RecurrenceID)
	assert.Equal(t, models.EventAttended, rows[1].Status)
	assert.Len(t, sessionsOf(t, gdb), 1)
}
