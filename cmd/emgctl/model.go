package main

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/clinictrack/emgcore/internal/store"
	"github.com/clinictrack/emgcore/pkg/models"
)

const pollInterval = 3 * time.Second

var (
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	flashStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
)

type sessionsLoadedMsg struct {
	sessions []models.Session
	err      error
}

type clipboardFlashExpiredMsg struct{}

// model is the bubbletea Model for the session queue view. It never writes
// to the store; the only side effect it triggers outside its own state is
// a clipboard write.
type model struct {
	store *store.Store
	table table.Model

	sessions []models.Session
	loadErr  error
	flash    string
}

func newModel(s *store.Store) model {
	columns := []table.Column{
		{Title: "Code", Width: 12},
		{Title: "Status", Width: 12},
		{Title: "Elapsed", Width: 10},
		{Title: "Last Error", Width: 40},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)
	return model{store: s, table: t}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetchSessions(), tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} }))
}

type pollMsg struct{}

func (m model) fetchSessions() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sessions, err := m.store.ListRecentSessions(ctx, 50)
		return sessionsLoadedMsg{sessions: sessions, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "c":
			return m.copySelectedCode()
		}

	case pollMsg:
		return m, tea.Batch(m.fetchSessions(), tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} }))

	case sessionsLoadedMsg:
		if msg.err != nil {
			m.loadErr = msg.err
			return m, nil
		}
		m.loadErr = nil
		m.sessions = msg.sessions
		m.table.SetRows(rowsFor(msg.sessions))
		return m, nil

	case clipboardFlashExpiredMsg:
		m.flash = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// copySelectedCode copies the highlighted row's session code to the system
// clipboard (§ C11 "Lets the operator copy a session code to the
// clipboard"). A clipboard failure (e.g. headless environment with no
// clipboard provider) is surfaced as a flash message, not a crash.
func (m model) copySelectedCode() (tea.Model, tea.Cmd) {
	row := m.table.Cursor()
	if row < 0 || row >= len(m.sessions) {
		return m, nil
	}
	code := m.sessions[row].Code
	if err := clipboard.WriteAll(code); err != nil {
		m.flash = errorStyle.Render(fmt.Sprintf("clipboard unavailable: %v", err))
	} else {
		m.flash = flashStyle.Render(fmt.Sprintf("copied %s to clipboard", code))
	}
	return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg { return clipboardFlashExpiredMsg{} })
}

func rowsFor(sessions []models.Session) []table.Row {
	rows := make([]table.Row, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, table.Row{s.Code, string(s.Status), elapsedSince(s.UpdatedAt), lastErrorText(s)})
	}
	return rows
}

func elapsedSince(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t).Round(time.Second)
	return d.String()
}

func lastErrorText(s models.Session) string {
	if s.ProcessingErrorMessage == nil {
		return ""
	}
	return fmt.Sprintf("[%s] %s", s.ProcessingErrorMessage.Kind, s.ProcessingErrorMessage.Message)
}

func (m model) View() string {
	var b string
	b += m.table.View() + "\n"
	if m.loadErr != nil {
		b += errorStyle.Render("load failed: "+m.loadErr.Error()) + "\n"
	}
	if m.flash != "" {
		b += m.flash + "\n"
	}
	b += helpStyle.Render("↑/↓ select  ·  c copy code  ·  q quit")
	return b
}
