package run

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/draft-responder/internal/model"
	"github.com/nhle/draft-responder/internal/pipeline"
	"github.com/nhle/draft-responder/internal/theme"
)

// EventMsg carries one progress event from the running pipeline.
type EventMsg struct {
	Event pipeline.Event
}

// FinishedMsg carries the finished session. It is the last message of a run.
type FinishedMsg struct {
	Session *pipeline.Session
}

// Func executes one pipeline run, reporting progress through report.
type Func func(ctx context.Context, cfg model.Config, report pipeline.Reporter) *pipeline.Session

type logLine struct {
	text    string
	warning bool
	failed  bool
}

// Model shows the progress of a single run.
type Model struct {
	spinner  spinner.Model
	progress progress.Model
	events   chan tea.Msg

	lines   []logLine
	percent int
	message string
	stage   pipeline.Stage
	done    bool

	width, height int
}

// New creates an idle run view.
func New(width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
	}
	m.SetSize(width, height)
	return m
}

// Start launches fn in the background and returns the commands that
// stream its events into Update.
func (m Model) Start(ctx context.Context, cfg model.Config, fn Func) (Model, tea.Cmd) {
	ch := make(chan tea.Msg, 16)
	m.events = ch
	m.lines = nil
	m.percent = 0
	m.message = ""
	m.stage = pipeline.StageIdle
	m.done = false

	go func() {
		defer close(ch)
		s := fn(ctx, cfg, func(e pipeline.Event) {
			ch <- EventMsg{Event: e}
		})
		ch <- FinishedMsg{Session: s}
	}()

	return m, tea.Batch(m.spinner.Tick, waitForEvent(ch))
}

// waitForEvent returns a tea.Cmd that waits for the next message from
// the run. Update re-arms it after every event.
func waitForEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles run events and spinner ticks.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		m.apply(msg.Event)
		return m, waitForEvent(m.events)

	case FinishedMsg:
		m.done = true
		if msg.Session != nil {
			m.stage = msg.Session.Stage
			m.message = msg.Session.Message
			m.percent = msg.Session.Percent
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) apply(e pipeline.Event) {
	m.lines = append(m.lines, logLine{
		text:    e.Message,
		warning: e.Warning,
		failed:  e.Stage.Failed(),
	})
	if e.Warning {
		return
	}
	m.percent = e.Percent
	m.message = e.Message
	m.stage = e.Stage
}

// Done reports whether the run has finished.
func (m Model) Done() bool {
	return m.done
}

// Percent returns the last reported progress.
func (m Model) Percent() int {
	return m.percent
}

// View renders the spinner, progress bar and event log.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(theme.SectionStyle.Render("Processing emails") + "\n\n")

	status := m.message
	if !m.done {
		status = m.spinner.View() + " " + status
	}
	sb.WriteString(status + "\n\n")
	sb.WriteString(m.progress.ViewAs(float64(m.percent)/100) + "\n\n")

	for _, l := range m.visibleLines() {
		sb.WriteString(renderLine(l) + "\n")
	}

	if m.done && m.stage != pipeline.StageDone {
		sb.WriteString("\n" + theme.HelpStyle.Render("n new run • q quit"))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(sb.String())
}

func (m Model) visibleLines() []logLine {
	limit := m.height - 10
	if limit < 3 {
		limit = 3
	}
	if len(m.lines) <= limit {
		return m.lines
	}
	return m.lines[len(m.lines)-limit:]
}

func renderLine(l logLine) string {
	switch {
	case l.failed:
		return theme.ErrorStyle.Render("✗ " + l.text)
	case l.warning:
		return theme.WarningStyle.Render("! " + l.text)
	default:
		return theme.SuccessStyle.Render("• ") + l.text
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	w := width - 8
	if w > 80 {
		w = 80
	}
	if w < 20 {
		w = 20
	}
	m.progress.Width = w
}

// Summary renders a one-line description of the finished run.
func Summary(s *pipeline.Session) string {
	if s == nil {
		return ""
	}
	if len(s.Warnings) > 0 {
		return fmt.Sprintf("%s (%d warning(s))", s.Message, len(s.Warnings))
	}
	return s.Message
}
