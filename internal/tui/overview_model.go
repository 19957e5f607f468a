package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/punch/internal/models"
	"github.com/balkashynov/punch/internal/parser"
)

// Totals sums a range of day summaries
type Totals struct {
	Days     int
	Work     int
	Pause    int
	Expected int
	Vacation int
	Sick     int
	Overtime int
}

// SumDays adds up the seconds of every summary.
func SumDays(days []models.DaySummary) Totals {
	t := Totals{Days: len(days)}
	for _, d := range days {
		t.Work += d.WorkSeconds
		t.Pause += d.PauseSeconds
		t.Expected += d.ExpectedSeconds
		t.Vacation += d.VacationSeconds
		t.Sick += d.SickSeconds
		t.Overtime += d.OvertimeSeconds
	}
	return t
}

// OverviewColumns are the overview table headers
var OverviewColumns = []string{"Day", "", "Work", "Pause", "Expected", "Vacation", "Sick", "Overtime", "Notes"}

// OverviewRows renders one table row per summary.
func OverviewRows(days []models.DaySummary) [][]string {
	rows := make([][]string, 0, len(days))
	for _, d := range days {
		rows = append(rows, []string{
			d.Day.Format("2006-01-02"),
			d.Day.Format("Mon"),
			parser.FormatSeconds(d.WorkSeconds),
			parser.FormatSeconds(d.PauseSeconds),
			parser.FormatSeconds(d.ExpectedSeconds),
			parser.FormatSeconds(d.VacationSeconds),
			parser.FormatSeconds(d.SickSeconds),
			parser.FormatSeconds(d.OvertimeSeconds),
			DayNotes(d),
		})
	}
	return rows
}

// DayNotes describes why a day's expectation differs from the baseline.
func DayNotes(d models.DaySummary) string {
	var notes []string
	if d.IsHoliday {
		name := d.HolidayName
		if name == "" {
			name = "holiday"
		}
		notes = append(notes, name)
	}
	if d.IsWeekend {
		notes = append(notes, "weekend")
	}
	notes = append(notes, d.LeaveTypes...)
	return strings.Join(notes, ", ")
}

// OverviewModel is a scrollable table of day summaries
type OverviewModel struct {
	width  int
	height int
	title  string
	table  table.Model
	totals Totals
}

// NewOverviewModel builds the table for days.
func NewOverviewModel(title string, days []models.DaySummary) OverviewModel {
	widths := []int{10, 3, 8, 8, 8, 8, 8, 9, 24}
	columns := make([]table.Column, len(OverviewColumns))
	for i, name := range OverviewColumns {
		columns[i] = table.Column{Title: name, Width: widths[i]}
	}

	var rows []table.Row
	for _, r := range OverviewRows(days) {
		rows = append(rows, table.Row(r))
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 20)),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(ColorBorder)).
		BorderBottom(true).
		Foreground(lipgloss.Color(ColorAccentBright)).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color(ColorPrimaryText)).
		Background(lipgloss.Color(ColorAccentMain)).
		Bold(false)
	t.SetStyles(styles)

	return OverviewModel{title: title, table: t, totals: SumDays(days)}
}

func (m OverviewModel) Init() tea.Cmd {
	return nil
}

func (m OverviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(min(len(m.table.Rows())+1, msg.Height-8), 3))
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m OverviewModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorPrimaryText)).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorAccentMain)).
		Padding(0, 1)

	overtimeColor := ColorSuccess
	if m.totals.Overtime < 0 {
		overtimeColor = ColorError
	}
	label := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText))
	value := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorPrimaryText)).Bold(true)

	summary := strings.Join([]string{
		label.Render("days ") + value.Render(fmt.Sprint(m.totals.Days)),
		label.Render("work ") + value.Render(parser.FormatSeconds(m.totals.Work)),
		label.Render("expected ") + value.Render(parser.FormatSeconds(m.totals.Expected)),
		label.Render("overtime ") + value.Foreground(lipgloss.Color(overtimeColor)).Render(parser.FormatSeconds(m.totals.Overtime)),
	}, "   ")

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorHelpText)).
		Italic(true).
		Render("↑/↓ navigate · esc/q quit")

	grid := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorBorder)).
		Render(m.table.View())

	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(m.title), grid, summary, "", help)
}
