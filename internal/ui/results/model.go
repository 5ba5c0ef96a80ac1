package results

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/draft-responder/internal/keys"
	"github.com/nhle/draft-responder/internal/model"
	"github.com/nhle/draft-responder/internal/theme"
	"github.com/nhle/draft-responder/internal/ui"
)

const (
	fromWidth    = 30
	subjectWidth = 40

	statusSuccess = "✅ Success"
	statusError   = "❌ Error"
)

// OpenMsg asks the parent to open the response at Index.
type OpenMsg struct {
	Index int
}

// DownloadAllMsg asks the parent to export every response.
type DownloadAllMsg struct{}

// NewRunMsg asks the parent to return to the configuration form.
type NewRunMsg struct{}

// Model is the summary table of generated responses.
type Model struct {
	table     table.Model
	responses []model.Response
	keys      *keys.KeyMap
	width     int
	height    int
}

// New creates a results view for responses.
func New(responses []model.Response, k *keys.KeyMap, width, height int) Model {
	t := table.New(
		table.WithColumns(columns()),
		table.WithRows(Rows(responses)),
		table.WithFocused(true),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(theme.ColorWhite).
		Background(theme.ColorBlue).
		Bold(false)
	t.SetStyles(s)

	m := Model{
		table:     t,
		responses: responses,
		keys:      k,
	}
	m.SetSize(width, height)
	return m
}

func columns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: "From", Width: fromWidth + 3},
		{Title: "Subject", Width: subjectWidth + 3},
		{Title: "Status", Width: 12},
	}
}

// Rows builds one table row per response.
func Rows(responses []model.Response) []table.Row {
	rows := make([]table.Row, 0, len(responses))
	for i, r := range responses {
		rows = append(rows, table.Row{
			strconv.Itoa(i + 1),
			ui.Truncate(r.Email.Sender, fromWidth),
			ui.Truncate(r.Email.Subject, subjectWidth),
			Status(r),
		})
	}
	return rows
}

// Status returns the status cell for r.
func Status(r model.Response) string {
	if r.Failed() {
		return statusError
	}
	return statusSuccess
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles navigation and actions.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Select):
			if len(m.responses) == 0 {
				return m, nil
			}
			idx := m.table.Cursor()
			return m, func() tea.Msg { return OpenMsg{Index: idx} }

		case key.Matches(msg, m.keys.DownloadAll):
			return m, func() tea.Msg { return DownloadAllMsg{} }

		case key.Matches(msg, m.keys.NewRun):
			return m, func() tea.Msg { return NewRunMsg{} }
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// Cursor returns the index of the highlighted row.
func (m Model) Cursor() int {
	return m.table.Cursor()
}

// SetCursor highlights row i.
func (m *Model) SetCursor(i int) {
	m.table.SetCursor(i)
}

// View renders the table with a short summary line.
func (m Model) View() string {
	failed := 0
	for _, r := range m.responses {
		if r.Failed() {
			failed++
		}
	}

	title := theme.SectionStyle.Render(fmt.Sprintf("Generated %d responses", len(m.responses)))
	if failed > 0 {
		title += "  " + theme.WarningStyle.Render(fmt.Sprintf("(%d used the fallback)", failed))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, "", m.table.View()),
	)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	h := height - 6
	if h < 3 {
		h = 3
	}
	m.table.SetHeight(h)
}
