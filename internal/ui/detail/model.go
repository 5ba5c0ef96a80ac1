package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/draft-responder/internal/keys"
	"github.com/nhle/draft-responder/internal/model"
	"github.com/nhle/draft-responder/internal/theme"
)

// BackMsg signals the parent to return to the results table. Text is
// the current content of the editor.
type BackMsg struct {
	Index int
	Text  string
}

// DownloadMsg asks the parent to export this response with Text.
type DownloadMsg struct {
	Index int
	Text  string
}

type pane int

const (
	paneEditor pane = iota
	paneOriginal
)

// Model shows one original email next to its editable draft.
type Model struct {
	index    int
	response model.Response
	viewport viewport.Model
	editor   textarea.Model
	focus    pane
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a detail view for the response at index. text is the
// draft to edit, which may already differ from the generated one.
func New(index int, r model.Response, text string, k *keys.KeyMap, width, height int) Model {
	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.Placeholder = "Response text"
	ta.SetValue(text)
	ta.Focus()

	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle()

	m := Model{
		index:    index,
		response: r,
		viewport: vp,
		editor:   ta,
		focus:    paneEditor,
		keys:     k,
	}
	m.SetSize(width, height)
	return m
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.DownloadOne):
			idx, text := m.index, m.editor.Value()
			return m, func() tea.Msg { return DownloadMsg{Index: idx, Text: text} }

		case key.Matches(msg, m.keys.Back):
			idx, text := m.index, m.editor.Value()
			return m, func() tea.Msg { return BackMsg{Index: idx, Text: text} }

		case key.Matches(msg, m.keys.SwitchFocus):
			return m.toggleFocus(), nil
		}
	}

	var cmd tea.Cmd
	if m.focus == paneEditor {
		m.editor, cmd = m.editor.Update(msg)
	} else {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m Model) toggleFocus() Model {
	if m.focus == paneEditor {
		m.focus = paneOriginal
		m.editor.Blur()
	} else {
		m.focus = paneEditor
		m.editor.Focus()
	}
	return m
}

// Index returns the position of the response in the run.
func (m Model) Index() int {
	return m.index
}

// Text returns the current editor content.
func (m Model) Text() string {
	return m.editor.Value()
}

// View renders the two panes side by side.
func (m Model) View() string {
	left := theme.PanelStyle
	right := theme.PanelStyle
	if m.focus == paneEditor {
		right = theme.FocusedPanelStyle
	} else {
		left = theme.FocusedPanelStyle
	}

	original := lipgloss.JoinVertical(
		lipgloss.Left,
		theme.SectionStyle.Render("Original Email"),
		m.viewport.View(),
	)

	var header []string
	header = append(header, theme.SectionStyle.Render("Generated Response"))
	if m.response.Failed() {
		header = append(header, theme.ErrorBannerStyle.Render("Error: "+m.response.ErrorMessage))
	}
	draft := lipgloss.JoinVertical(lipgloss.Left, append(header, m.editor.View())...)

	w := m.paneWidth()
	panes := lipgloss.JoinHorizontal(
		lipgloss.Top,
		left.Width(w).Render(original),
		right.Width(w).Render(draft),
	)

	title := theme.HeaderStyle.Render(fmt.Sprintf("Response #%d: %s", m.index+1, m.response.Email.Subject))
	hints := theme.HelpStyle.Render("tab switch pane • ctrl+s download this response • esc back")

	return lipgloss.JoinVertical(lipgloss.Left, title, panes, hints)
}

// RenderOriginal formats the original email for display.
func RenderOriginal(e model.Email, width int) string {
	var sb strings.Builder
	field := func(label, value string) {
		sb.WriteString(theme.LabelStyle.Render(label+":") + " " + value + "\n")
	}
	field("From", e.Sender)
	field("Subject", e.Subject)
	field("Date", e.Date)
	sb.WriteString("\n" + theme.LabelStyle.Render("Body:") + "\n")

	body := e.Body
	if body == "" {
		body = theme.HelpStyle.Render("(no plain-text body)")
	}
	sb.WriteString(body)

	return lipgloss.NewStyle().Width(width).Render(sb.String())
}

func (m Model) paneWidth() int {
	w := m.width/2 - 4
	if w < 20 {
		w = 20
	}
	return w
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height

	w := m.paneWidth()
	h := height - 6
	if h < 5 {
		h = 5
	}

	m.viewport.Width = w
	m.viewport.Height = h
	m.viewport.SetContent(RenderOriginal(m.response.Email, w))

	edH := h
	if m.response.Failed() {
		edH--
	}
	m.editor.SetWidth(w)
	m.editor.SetHeight(edH)
}
