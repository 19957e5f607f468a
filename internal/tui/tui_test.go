package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balkashynov/punch/internal/models"
)

func openSession(start time.Time) *models.WorkSession {
	return &models.WorkSession{ID: 7, StartTime: start, Status: models.StatusActive, Comment: "deep work"}
}

func TestTimerToggleAndStop(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := start.Add(time.Hour)

	var toggles, stops int
	actions := TimerActions{
		Toggle: func() (*models.WorkSession, error) {
			toggles++
			s := openSession(start)
			s.MarkPaused(now)
			return s, nil
		},
		Stop: func() (*models.WorkSession, error) {
			stops++
			s := openSession(start)
			s.MarkStopped(now)
			return s, nil
		},
	}

	m := NewTimerModel(openSession(start), actions, time.UTC)
	m.now = func() time.Time { return now }

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	require.NotNil(t, cmd)
	model, _ = model.Update(cmd())
	m = model.(TimerModel)
	assert.Equal(t, 1, toggles)
	assert.Equal(t, models.StatusPaused, m.session.Status)
	assert.False(t, m.stopped)

	model, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	require.NotNil(t, cmd)
	model, _ = model.Update(cmd())
	m = model.(TimerModel)
	assert.Equal(t, 1, stops)
	assert.True(t, m.stopped)
	assert.Equal(t, 3600, m.elapsed)
}

func TestTimerKeepsRunningOnError(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	actions := TimerActions{
		Stop: func() (*models.WorkSession, error) { return nil, errors.New("db locked") },
	}
	m := NewTimerModel(openSession(start), actions, time.UTC)

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	model, _ = model.Update(cmd())
	m = model.(TimerModel)
	assert.False(t, m.stopped)
	assert.EqualError(t, m.err, "db locked")
	assert.Equal(t, models.StatusActive, m.session.Status)
}

func TestRenderBigClock(t *testing.T) {
	short := renderBigClock(65, false)
	assert.Len(t, strings.Split(short, "\n"), 5)

	long := renderBigClock(3*3600+5, false)
	// hh:mm:ss is three digit pairs wider than mm:ss
	assert.Greater(t, len(long), len(short))
}

func TestOverviewRows(t *testing.T) {
	days := []models.DaySummary{
		{
			Day:             time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			WorkSeconds:     9 * 3600,
			ExpectedSeconds: 8 * 3600,
			OvertimeSeconds: 3600,
		},
		{
			Day:         time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			IsWeekend:   true,
			IsHoliday:   true,
			HolidayName: "Founders Day",
			LeaveTypes:  []string{"sick"},
		},
	}

	rows := OverviewRows(days)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2024-03-01", "Fri", "9h00m", "0s", "8h00m", "0s", "0s", "1h00m", ""}, rows[0])
	assert.Equal(t, "Founders Day, weekend, sick", rows[1][8])
	assert.Len(t, rows[0], len(OverviewColumns))

	totals := SumDays(days)
	assert.Equal(t, Totals{Days: 2, Work: 9 * 3600, Expected: 8 * 3600, Overtime: 3600}, totals)
}
