package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/punch/internal/models"
	"github.com/balkashynov/punch/internal/parser"
)

// TimerActions are the session operations the timer can trigger.
type TimerActions struct {
	Toggle func() (*models.WorkSession, error)
	Stop   func() (*models.WorkSession, error)
}

// TimerModel shows the open session with a live clock
type TimerModel struct {
	width   int
	height  int
	session *models.WorkSession
	actions TimerActions
	now     func() time.Time
	loc     *time.Location

	elapsed        int
	timerAnimation int

	stopped bool // session was stopped from the timer
	exiting bool // user left, session keeps running
	err     error
}

type timerTickMsg struct{}

type animationTickMsg struct{}

// sessionMsg carries the result of a toggle or stop
type sessionMsg struct {
	session *models.WorkSession
	stopped bool
	err     error
}

// NewTimerModel creates a timer for an open session.
func NewTimerModel(session *models.WorkSession, actions TimerActions, loc *time.Location) TimerModel {
	m := TimerModel{
		session: session,
		actions: actions,
		now:     time.Now,
		loc:     loc,
	}
	m.elapsed = session.ElapsedSeconds(m.now())
	return m
}

func timerTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return timerTickMsg{} })
}

func animationTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg { return animationTickMsg{} })
}

func (m TimerModel) Init() tea.Cmd {
	return tea.Batch(timerTick(), animationTick())
}

func (m TimerModel) done() bool {
	return m.stopped || m.exiting
}

func (m TimerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case timerTickMsg:
		m.elapsed = m.session.ElapsedSeconds(m.now())
		if m.done() {
			return m, nil
		}
		return m, timerTick()

	case animationTickMsg:
		// The animation freezes while paused
		if m.session.Status == models.StatusActive {
			m.timerAnimation = (m.timerAnimation + 1) % 4
		}
		if m.done() {
			return m, nil
		}
		return m, animationTick()

	case sessionMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.session = msg.session
		m.elapsed = m.session.ElapsedSeconds(m.now())
		if msg.stopped {
			m.stopped = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "p", "P", " ":
			return m, m.toggle()
		case "s", "S":
			return m, m.stop()
		case "ctrl+c", "esc", "q":
			m.exiting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m TimerModel) toggle() tea.Cmd {
	toggle := m.actions.Toggle
	return func() tea.Msg {
		session, err := toggle()
		return sessionMsg{session: session, err: err}
	}
}

func (m TimerModel) stop() tea.Cmd {
	stop := m.actions.Stop
	return func() tea.Msg {
		session, err := stop()
		return sessionMsg{session: session, stopped: err == nil, err: err}
	}
}

func (m TimerModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	helpBar := m.renderHelpBar()
	contentHeight := m.height - 2

	// Narrow view: just the clock
	if m.width < 90 {
		return lipgloss.JoinVertical(lipgloss.Left, m.renderTimerPanel(m.width, contentHeight), helpBar)
	}

	leftWidth := m.width / 2
	rightWidth := m.width - leftWidth - 2

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTimerPanel(leftWidth, contentHeight),
		"  ",
		m.renderDetailsPanel(rightWidth, contentHeight),
	)
	return lipgloss.JoinVertical(lipgloss.Left, content, helpBar)
}

func (m TimerModel) renderTimerPanel(width, height int) string {
	var components []string
	center := lipgloss.NewStyle().Align(lipgloss.Center).Width(width)

	headerColor := ColorAccentBright
	headerText := "PAUSED"
	if m.session.Status == models.StatusActive {
		anim := []string{"⏱", "⏲", "⏱", "⏲"}[m.timerAnimation]
		headerText = fmt.Sprintf("%s  TRACKING TIME  %s", anim, anim)
	} else {
		headerColor = ColorWarning
	}
	components = append(components, center.Foreground(lipgloss.Color(headerColor)).Bold(true).Render(headerText))

	title := m.session.Comment
	if title == "" {
		title = "session #" + fmt.Sprint(m.session.ID)
	}
	if width > 8 && len(title) > width-4 {
		title = title[:width-7] + "..."
	}
	components = append(components, center.Foreground(lipgloss.Color(ColorPrimaryText)).Bold(true).Render(title))

	var clockLines []string
	for _, line := range strings.Split(renderBigClock(m.elapsed, m.session.Status == models.StatusPaused), "\n") {
		clockLines = append(clockLines, center.Render(line))
	}
	components = append(components, strings.Join(clockLines, "\n"))

	info := fmt.Sprintf("Started at %s", m.session.StartTime.In(m.loc).Format("15:04:05"))
	if m.session.PausedDuration > 0 {
		info += " · paused " + parser.FormatSeconds(m.session.PausedDuration)
	}
	components = append(components, center.Foreground(lipgloss.Color(ColorSecondaryText)).Italic(true).Render(info))

	if m.err != nil {
		components = append(components, center.Foreground(lipgloss.Color(ColorError)).Render("Error: "+m.err.Error()))
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(strings.Join(components, "\n\n"))
}

// ASCII art digits, 5 rows each
var bigDigits = map[rune][5]string{
	'0': {" ███ ", "█   █", "█   █", "█   █", " ███ "},
	'1': {"  █  ", " ██  ", "  █  ", "  █  ", "█████"},
	'2': {" ███ ", "█   █", "   █ ", "  █  ", "█████"},
	'3': {" ███ ", "█   █", "  ██ ", "█   █", " ███ "},
	'4': {"█   █", "█   █", "█████", "    █", "    █"},
	'5': {"█████", "█    ", "████ ", "    █", "████ "},
	'6': {" ███ ", "█    ", "████ ", "█   █", " ███ "},
	'7': {"█████", "    █", "   █ ", "  █  ", " █   "},
	'8': {" ███ ", "█   █", " ███ ", "█   █", " ███ "},
	'9': {" ███ ", "█   █", " ████", "    █", " ███ "},
	':': {"     ", "  █  ", "     ", "  █  ", "     "},
}

func renderBigClock(seconds int, paused bool) string {
	h, mnt, sec := seconds/3600, (seconds%3600)/60, seconds%60
	text := fmt.Sprintf("%02d:%02d", mnt, sec)
	if h > 0 {
		text = fmt.Sprintf("%02d:%02d:%02d", h, mnt, sec)
	}

	var rows [5]strings.Builder
	for _, r := range text {
		art := bigDigits[r]
		for i := range rows {
			rows[i].WriteString(art[i])
			rows[i].WriteString(" ")
		}
	}

	color := ColorAccentBright
	if paused {
		color = ColorWarning
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)

	lines := make([]string, len(rows))
	for i := range rows {
		lines[i] = style.Render(rows[i].String())
	}
	return strings.Join(lines, "\n")
}

func (m TimerModel) renderDetailsPanel(width, _ int) string {
	var b strings.Builder
	b.WriteString("\n")

	logoLines := []string{
		"██████╗ ██╗   ██╗███╗   ██╗ ██████╗██╗  ██╗",
		"██╔══██╗██║   ██║████╗  ██║██╔════╝██║  ██║",
		"██████╔╝██║   ██║██╔██╗ ██║██║     ███████║",
		"██╔═══╝ ██║   ██║██║╚██╗██║██║     ██╔══██║",
		"██║     ╚██████╔╝██║ ╚████║╚██████╗██║  ██║",
		"╚═╝      ╚═════╝ ╚═╝  ╚═══╝ ╚═════╝╚═╝  ╚═╝",
	}
	row := lipgloss.NewStyle().Align(lipgloss.Center).Width(width - 8)

	b.WriteString(row.Foreground(lipgloss.Color(ColorAccentMain)).Bold(true).Render(strings.Join(logoLines, "\n")))
	b.WriteString("\n\n")
	b.WriteString(row.Foreground(lipgloss.Color(ColorBorder)).Render(strings.Repeat("─", min(width-12, 40))))
	b.WriteString("\n\n")

	s := m.session
	tags := ""
	if len(s.Tags) > 0 {
		tags = "#" + strings.Join(s.Tags, " #")
	}
	status := s.Status
	if status == models.StatusPaused && s.LastPauseStart != nil {
		status += " since " + s.LastPauseStart.In(m.loc).Format("15:04")
	}

	fields := []struct{ icon, label, value string }{
		{"●", "Status", status},
		{"📁", "Project", s.Project},
		{"🏷️ ", "Tags", tags},
		{"📝", "Comment", s.Comment},
		{"📅", "Day", s.StartTime.In(m.loc).Format("Mon Jan 02, 2006")},
	}
	for _, f := range fields {
		value, color := f.value, ColorAccentBright
		if value == "" {
			value, color = "none", ColorDisabledText
		}
		line := fmt.Sprintf("%s %s: %s", f.icon, f.label,
			lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(value))
		b.WriteString(row.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m TimerModel) renderHelpBar() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorHelpText)).
		Italic(true).
		Align(lipgloss.Center).
		Width(m.width).
		Render("p pause/resume · s stop & save · esc/q exit (keep running) · ctrl+c quit")
}
