package linker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/config"
	"github.com/balkashynov/punch/internal/db"
	"github.com/balkashynov/punch/internal/logging"
	"github.com/balkashynov/punch/internal/models"
)

var (
	settings = config.Settings{Location: time.UTC}
	nine     = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	ten      = nine.Add(time.Hour)
)

func newLinker(t *testing.T) (*Linker, *gorm.DB) {
	t.Helper()
	gdb, err := db.Open(filepath.Join(t.TempDir(), "punch.db"), db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	return New(gdb, config.Static(settings), logging.Discard()), gdb
}

func sessions(t *testing.T, gdb *gorm.DB) []models.WorkSession {
	t.Helper()
	var out []models.WorkSession
	require.NoError(t, gdb.Order("id").Find(&out).Error)
	return out
}

func TestComment(t *testing.T) {
	assert.Equal(t, "[auto] Review", Comment("Review", ""))
	assert.Equal(t, "[auto] Review – PR 12", Comment("Review", " PR 12 "))
	assert.True(t, HasMarker(Comment("x", "")))
	assert.False(t, HasMarker("Review"))
}

func TestEnsureForSpanIsIdempotent(t *testing.T) {
	_, gdb := newLinker(t)
	span := Span{Start: &nine, Stop: &ten, Title: "Planning", Note: "Q1"}

	first, err := EnsureForSpan(gdb, settings, span)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "[auto] Planning – Q1", first.Comment)
	assert.Equal(t, 3600, *first.TotalSeconds)

	second, err := EnsureForSpan(gdb, settings, span)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, sessions(t, gdb), 1)
}

func TestEnsureForSpanIncompleteIsNoop(t *testing.T) {
	_, gdb := newLinker(t)
	session, err := EnsureForSpan(gdb, settings, Span{Start: &nine, Title: "x"})
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Empty(t, sessions(t, gdb))
}

func TestEnsureForSpanRespectsManualComment(t *testing.T) {
	_, gdb := newLinker(t)
	span := Span{Start: &nine, Stop: &ten, Title: "Planning"}
	session, err := EnsureForSpan(gdb, settings, span)
	require.NoError(t, err)

	require.NoError(t, gdb.Model(session).Update("comment", "my own words").Error)
	span.Title = "Renamed"
	_, err = EnsureForSpan(gdb, settings, span)
	require.NoError(t, err)
	assert.Equal(t, "my own words", sessions(t, gdb)[0].Comment)

	require.NoError(t, gdb.Model(session).Update("comment", "[auto] old").Error)
	_, err = EnsureForSpan(gdb, settings, span)
	require.NoError(t, err)
	assert.Equal(t, "[auto] Renamed", sessions(t, gdb)[0].Comment)
}

func TestRemoveAutoByValue(t *testing.T) {
	_, gdb := newLinker(t)
	span := Span{Start: &nine, Stop: &ten, Title: "Planning"}
	_, err := EnsureForSpan(gdb, settings, span)
	require.NoError(t, err)

	require.NoError(t, RemoveAuto(gdb, settings, Span{Start: &nine, Stop: &ten, Title: "Other"}))
	assert.Len(t, sessions(t, gdb), 1)

	require.NoError(t, RemoveAuto(gdb, settings, span))
	assert.Empty(t, sessions(t, gdb))
}

func TestSubtrackLifecycle(t *testing.T) {
	l, gdb := newLinker(t)
	ctx := context.Background()

	st, err := l.CreateSubtrack(ctx, SubtrackInput{Title: "Deploy", Start: &nine, End: &ten, Project: "ops"})
	require.NoError(t, err)
	assert.Equal(t, clock.NewDate(2024, time.January, 2).Time(), st.Day)

	all := sessions(t, gdb)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].SubtrackID)
	assert.Equal(t, st.ID, *all[0].SubtrackID)
	assert.Equal(t, "ops", all[0].Project)

	// times follow the subtrack through the back-reference
	later := ten.Add(30 * time.Minute)
	title := "Deploy v2"
	_, err = l.UpdateSubtrack(ctx, st.ID, SubtrackChanges{End: &later, Title: &title})
	require.NoError(t, err)
	all = sessions(t, gdb)
	require.Len(t, all, 1)
	assert.Equal(t, 5400, *all[0].TotalSeconds)
	assert.Equal(t, "[auto] Deploy v2", all[0].Comment)

	_, err = l.UpdateSubtrack(ctx, st.ID, SubtrackChanges{ClearTimes: true})
	require.NoError(t, err)
	assert.Empty(t, sessions(t, gdb))

	_, err = l.UpdateSubtrack(ctx, st.ID, SubtrackChanges{Start: &nine, End: &ten})
	require.NoError(t, err)
	assert.Len(t, sessions(t, gdb), 1)

	require.NoError(t, l.DeleteSubtrack(ctx, st.ID))
	assert.Empty(t, sessions(t, gdb))
	assert.ErrorIs(t, l.DeleteSubtrack(ctx, st.ID), apperr.ErrNotFound)
}

func TestSubtrackValidation(t *testing.T) {
	l, _ := newLinker(t)
	ctx := context.Background()

	_, err := l.CreateSubtrack(ctx, SubtrackInput{Title: "x", Start: &ten, End: &nine})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = l.CreateSubtrack(ctx, SubtrackInput{Title: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	st, err := l.CreateSubtrack(ctx, SubtrackInput{Day: clock.NewDate(2024, time.January, 2), Title: "Notes only"})
	require.NoError(t, err)
	listed, err := l.ListSubtracks(ctx, clock.NewDate(2024, time.January, 2))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, st.ID, listed[0].ID)
}

func TestParticipationLinksEvent(t *testing.T) {
	l, gdb := newLinker(t)
	ctx := context.Background()

	ev, err := l.CreateEvent(ctx, ManualEvent{Title: "Retro", Start: nine, End: ten, Description: "sprint 4"})
	require.NoError(t, err)
	assert.Equal(t, models.EventPending, ev.Status)
	assert.Equal(t, models.SourceManual, ev.Source)
	assert.Empty(t, sessions(t, gdb))

	ev, err = l.SetParticipation(ctx, ev.ID, models.EventAttended)
	require.NoError(t, err)
	assert.False(t, ev.Ignored)

	var st models.WorkSubtrack
	require.NoError(t, gdb.Where("calendar_event_id = ?", ev.ID).First(&st).Error)
	assert.Equal(t, "Retro", st.Title)
	assert.Equal(t, "sprint 4", st.Note)
	all := sessions(t, gdb)
	require.Len(t, all, 1)
	assert.Equal(t, "[auto] Retro – sprint 4", all[0].Comment)

	// attending twice does not duplicate anything
	_, err = l.SetParticipation(ctx, ev.ID, models.EventAttended)
	require.NoError(t, err)
	assert.Len(t, sessions(t, gdb), 1)

	ev, err = l.SetParticipation(ctx, ev.ID, models.EventCancelled)
	require.NoError(t, err)
	assert.True(t, ev.Ignored)
	assert.Empty(t, sessions(t, gdb))
	var count int64
	require.NoError(t, gdb.Model(&models.WorkSubtrack{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSyncAttendedEventFollowsTimes(t *testing.T) {
	l, gdb := newLinker(t)
	ctx := context.Background()

	ev, err := l.CreateEvent(ctx, ManualEvent{Title: "1:1", Start: nine, End: ten, Status: models.EventAttended})
	require.NoError(t, err)
	require.Len(t, sessions(t, gdb), 1)

	ev.StartTime = nine.AddDate(0, 0, 1)
	ev.EndTime = ten.AddDate(0, 0, 1)
	require.NoError(t, SyncAttendedEvent(gdb, settings, ev))

	all := sessions(t, gdb)
	require.Len(t, all, 1)
	assert.True(t, all[0].StartTime.Equal(ev.StartTime))

	var row models.DaySummary
	require.NoError(t, gdb.Where("day = ?", clock.NewDate(2024, time.January, 2).Time()).First(&row).Error)
	assert.Zero(t, row.WorkSeconds)
}

func TestParticipationErrors(t *testing.T) {
	l, _ := newLinker(t)
	ctx := context.Background()

	_, err := l.SetParticipation(ctx, 99, models.EventAttended)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = l.SetParticipation(ctx, 1, "maybe")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = l.CreateEvent(ctx, ManualEvent{Title: "x", Start: ten, End: nine})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
