package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/balkashynov/punch/internal/models"
)

// TimerResult tells how the timer was left.
type TimerResult struct {
	Session *models.WorkSession
	Stopped bool
}

// RunTimerTUI shows the live timer until the user stops or leaves.
func RunTimerTUI(session *models.WorkSession, actions TimerActions, loc *time.Location) (TimerResult, error) {
	model := NewTimerModel(session, actions, loc)

	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return TimerResult{}, fmt.Errorf("timer UI failed: %w", err)
	}

	timer := finalModel.(TimerModel)
	return TimerResult{Session: timer.session, Stopped: timer.stopped}, nil
}

// RunOverviewTUI shows the day summaries in a table.
func RunOverviewTUI(title string, days []models.DaySummary) error {
	p := tea.NewProgram(NewOverviewModel(title, days), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("overview UI failed: %w", err)
	}
	return nil
}
