package tracker

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

var nine = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func newTracker(t *testing.T) (*Tracker, *clock.Manual, *gorm.DB) {
	t.Helper()
	gdb, err := db.Open(filepath.Join(t.TempDir(), "punch.db"), db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	clk := clock.NewManual(nine)
	return New(gdb, clk, config.Static{Location: time.UTC}, logging.Discard()), clk, gdb
}

func summaryFor(t *testing.T, gdb *gorm.DB, day clock.Date) models.DaySummary {
	t.Helper()
	var row models.DaySummary
	require.NoError(t, gdb.Where("day = ?", day.Time()).First(&row).Error)
	return row
}

func TestPauseArithmetic(t *testing.T) {
	tr, clk, gdb := newTracker(t)
	ctx := context.Background()

	_, err := tr.Start(ctx, StartRequest{Project: "punch", Tags: []string{"dev", " dev ", ""}})
	require.NoError(t, err)

	clk.Set(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	session, transition, err := tr.PauseOrResume(ctx)
	require.NoError(t, err)
	assert.Equal(t, TransitionPaused, transition)
	assert.Equal(t, models.StatusPaused, session.Status)
	require.NotNil(t, session.LastPauseStart)

	clk.Set(time.Date(2024, 1, 2, 10, 15, 0, 0, time.UTC))
	session, transition, err = tr.PauseOrResume(ctx)
	require.NoError(t, err)
	assert.Equal(t, TransitionResumed, transition)
	assert.Nil(t, session.LastPauseStart)
	assert.Equal(t, 900, session.PausedDuration)

	clk.Set(time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC))
	session, err = tr.Stop(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, session.TotalSeconds)
	assert.Equal(t, 10800-900, *session.TotalSeconds)
	assert.Equal(t, []string{"dev"}, []string(session.Tags))

	summary := summaryFor(t, gdb, clock.NewDate(2024, time.January, 2))
	assert.Equal(t, 9900, summary.WorkSeconds)
	assert.Equal(t, 900, summary.PauseSeconds)
}

func TestStopWhilePausedFoldsPause(t *testing.T) {
	tr, clk, _ := newTracker(t)
	ctx := context.Background()

	_, err := tr.Start(ctx, StartRequest{})
	require.NoError(t, err)
	clk.Advance(time.Hour)
	_, _, err = tr.PauseOrResume(ctx)
	require.NoError(t, err)
	clk.Advance(30 * time.Minute)

	comment := "done"
	session, err := tr.Stop(ctx, &comment)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStopped, session.Status)
	assert.Equal(t, 1800, session.PausedDuration)
	assert.Equal(t, 3600, *session.TotalSeconds)
	assert.Nil(t, session.LastPauseStart)
	assert.Equal(t, "done", session.Comment)
}

func TestSingleOpenSession(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()

	_, err := tr.Start(ctx, StartRequest{})
	require.NoError(t, err)
	_, err = tr.Start(ctx, StartRequest{})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, _, err = tr.PauseOrResume(ctx)
	require.NoError(t, err)
	_, err = tr.Start(ctx, StartRequest{})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = tr.Stop(ctx, nil)
	require.NoError(t, err)
	_, err = tr.Start(ctx, StartRequest{})
	assert.NoError(t, err)
}

func TestNothingOpen(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()

	_, _, err := tr.PauseOrResume(ctx)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = tr.Stop(ctx, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	active, err := tr.Active(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestStartAtExplicitInstant(t *testing.T) {
	tr, _, _ := newTracker(t)
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	at := time.Date(2024, 1, 2, 8, 30, 0, 0, berlin)

	session, err := tr.Start(context.Background(), StartRequest{StartTime: &at})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, session.StartTime.Location())
	assert.True(t, session.StartTime.Equal(at))
}

func TestCreateManual(t *testing.T) {
	tr, _, gdb := newTracker(t)
	ctx := context.Background()

	session, err := tr.CreateManual(ctx, ManualRequest{Start: nine, Stop: nine.Add(150 * time.Minute), Project: "ops"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusStopped, session.Status)
	assert.Equal(t, 9000, *session.TotalSeconds)
	assert.Zero(t, session.PausedDuration)
	assert.Equal(t, 9000, summaryFor(t, gdb, clock.NewDate(2024, time.January, 2)).WorkSeconds)

	_, err = tr.CreateManual(ctx, ManualRequest{Start: nine, Stop: nine})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = tr.CreateManual(ctx, ManualRequest{Start: nine, Stop: nine.Add(-time.Minute)})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestEditMovesSessionBetweenDays(t *testing.T) {
	tr, _, gdb := newTracker(t)
	ctx := context.Background()

	session, err := tr.CreateManual(ctx, ManualRequest{Start: nine, Stop: nine.Add(time.Hour)})
	require.NoError(t, err)

	start, stop := nine.AddDate(0, 0, 1), nine.AddDate(0, 0, 1).Add(2*time.Hour)
	project := "moved"
	edited, err := tr.Edit(ctx, session.ID, SessionChanges{Start: &start, Stop: &stop, Project: &project})
	require.NoError(t, err)
	assert.Equal(t, 7200, *edited.TotalSeconds)
	assert.Equal(t, "moved", edited.Project)

	assert.Zero(t, summaryFor(t, gdb, clock.NewDate(2024, time.January, 2)).WorkSeconds)
	assert.Equal(t, 7200, summaryFor(t, gdb, clock.NewDate(2024, time.January, 3)).WorkSeconds)
}

func TestEditValidation(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()

	_, err := tr.Edit(ctx, 42, SessionChanges{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	stopped, err := tr.CreateManual(ctx, ManualRequest{Start: nine, Stop: nine.Add(time.Hour)})
	require.NoError(t, err)
	bad := nine.Add(-time.Hour)
	_, err = tr.Edit(ctx, stopped.ID, SessionChanges{Stop: &bad})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	open, err := tr.Start(ctx, StartRequest{})
	require.NoError(t, err)
	comment := "x"
	_, err = tr.Edit(ctx, open.ID, SessionChanges{Comment: &comment})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestDelete(t *testing.T) {
	tr, _, gdb := newTracker(t)
	ctx := context.Background()

	session, err := tr.CreateManual(ctx, ManualRequest{Start: nine, Stop: nine.Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, tr.Delete(ctx, session.ID))
	assert.Zero(t, summaryFor(t, gdb, clock.NewDate(2024, time.January, 2)).WorkSeconds)

	assert.ErrorIs(t, tr.Delete(ctx, session.ID), apperr.ErrNotFound)

	open, err := tr.Start(ctx, StartRequest{})
	require.NoError(t, err)
	assert.ErrorIs(t, tr.Delete(ctx, open.ID), apperr.ErrInvalidInput)
}

func TestListDay(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()

	_, err := tr.CreateManual(ctx, ManualRequest{Start: nine.Add(3 * time.Hour), Stop: nine.Add(4 * time.Hour)})
	require.NoError(t, err)
	_, err = tr.CreateManual(ctx, ManualRequest{Start: nine, Stop: nine.Add(time.Hour)})
	require.NoError(t, err)
	_, err = tr.CreateManual(ctx, ManualRequest{Start: nine.AddDate(0, 0, 1), Stop: nine.AddDate(0, 0, 1).Add(time.Hour)})
	require.NoError(t, err)

	sessions, err := tr.ListDay(ctx, clock.NewDate(2024, time.January, 2))
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].StartTime.Equal(nine))
}
