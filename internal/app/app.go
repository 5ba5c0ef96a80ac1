package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/draft-responder/internal/export"
	"github.com/nhle/draft-responder/internal/keys"
	"github.com/nhle/draft-responder/internal/model"
	"github.com/nhle/draft-responder/internal/pipeline"
	"github.com/nhle/draft-responder/internal/theme"
	"github.com/nhle/draft-responder/internal/ui"
	configview "github.com/nhle/draft-responder/internal/ui/config"
	"github.com/nhle/draft-responder/internal/ui/detail"
	helpview "github.com/nhle/draft-responder/internal/ui/help"
	"github.com/nhle/draft-responder/internal/ui/results"
	"github.com/nhle/draft-responder/internal/ui/run"
)

const title = "AI Email Responder"

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewConfig ViewState = iota
	ViewRun
	ViewResults
	ViewDetail
	ViewHelp
)

// Deps are the collaborators the UI drives.
type Deps struct {
	Run      run.Func
	Exporter *export.Writer
	Logger   *slog.Logger

	// Ctx bounds pipeline runs. Defaults to context.Background.
	Ctx context.Context
}

// PipelineRunner returns a run.Func that wires fresh pipeline
// collaborators for every submitted configuration.
func PipelineRunner(logger *slog.Logger) run.Func {
	return func(ctx context.Context, cfg model.Config, report pipeline.Reporter) *pipeline.Session {
		return pipeline.Run(ctx, cfg, pipeline.NewDeps(cfg, logger), report)
	}
}

// Model is the root Bubble Tea model. It routes between the form, the
// run progress, the results table and the detail editor.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	deps         Deps
	logger       *slog.Logger

	cfg     model.Config
	session *pipeline.Session

	// edits overlays user changes on the generated drafts, by index.
	edits map[int]string

	configView  configview.Model
	runView     run.Model
	resultsView results.Model
	detailView  detail.Model
	helpView    helpview.Model

	status     string
	statusErr  bool
	statusWarn bool
	ready      bool
}

// New creates the root model with the form prefilled from cfg.
func New(cfg model.Config, deps Deps) Model {
	k := keys.DefaultKeyMap()
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return Model{
		currentView: ViewConfig,
		layout:      ui.NewLayout(80, 24),
		keys:        k,
		deps:        deps,
		logger:      logger,
		cfg:         cfg,
		edits:       make(map[int]string),
		configView:  configview.New(cfg, k, 80, 22),
		runView:     run.New(80, 22),
		resultsView: results.New(nil, k, 80, 22),
		detailView:  detail.New(0, model.Response{}, "", k, 80, 22),
		helpView:    helpview.New(k, 80, 22),
	}
}

// Init starts the configuration form.
func (m Model) Init() tea.Cmd {
	return m.configView.Init()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := msg.Width, m.layout.ContentHeight()
		m.runView.SetSize(w, h)
		m.resultsView.SetSize(w, h)
		m.detailView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		if m.currentView == ViewConfig {
			// huh forms compute their layout from the size message.
			var cmd tea.Cmd
			m.configView, cmd = m.configView.Update(tea.WindowSizeMsg{Width: w, Height: h})
			return m, cmd
		}
		m.configView.SetSize(w, h)
		return m, nil

	case configview.SubmitMsg:
		return m.startRun(msg.Config)

	case configview.CancelMsg:
		return m, tea.Quit

	case run.EventMsg:
		var cmd tea.Cmd
		m.runView, cmd = m.runView.Update(msg)
		if msg.Event.Warning {
			m.setStatus(msg.Event.Message, false)
			m.statusWarn = true
		}
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.runView, cmd = m.runView.Update(msg)
		return m, cmd

	case run.FinishedMsg:
		return m.finishRun(msg)

	case results.OpenMsg:
		return m.openDetail(msg.Index)

	case results.DownloadAllMsg:
		return m.downloadAll()

	case results.NewRunMsg:
		return m.newRun()

	case detail.BackMsg:
		m.recordEdit(msg.Index, msg.Text)
		m.resultsView.SetCursor(msg.Index)
		m.currentView = ViewResults
		return m, nil

	case detail.DownloadMsg:
		m.recordEdit(msg.Index, msg.Text)
		return m.downloadOne(msg.Index, msg.Text)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that apply outside text input views.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	// The form and the editor consume every other key.
	if m.currentView == ViewConfig || m.currentView == ViewDetail {
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
		} else {
			m.previousView = m.currentView
			m.currentView = ViewHelp
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}

	case key.Matches(msg, m.keys.Quit):
		if m.currentView == ViewRun && !m.runView.Done() {
			return m, nil, true
		}
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.NewRun):
		if m.currentView == ViewRun && m.runView.Done() {
			next, cmd := m.newRun()
			return next, cmd, true
		}
	}

	return m, nil, false
}

func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewConfig:
		m.configView, cmd = m.configView.Update(msg)
	case ViewRun:
		m.runView, cmd = m.runView.Update(msg)
	case ViewResults:
		m.resultsView, cmd = m.resultsView.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

func (m Model) startRun(cfg model.Config) (tea.Model, tea.Cmd) {
	m.cfg = cfg
	m.session = nil
	m.edits = make(map[int]string)
	m.currentView = ViewRun
	m.setStatus("Processing emails...", false)
	m.logger.Info("run submitted", "config", cfg)

	var cmd tea.Cmd
	m.runView = run.New(m.layout.Width, m.layout.ContentHeight())
	m.runView, cmd = m.runView.Start(m.deps.Ctx, cfg, m.deps.Run)
	return m, cmd
}

func (m Model) finishRun(msg run.FinishedMsg) (tea.Model, tea.Cmd) {
	m.runView, _ = m.runView.Update(msg)
	s := msg.Session
	m.session = s
	if s == nil {
		return m, nil
	}

	m.setStatus(run.Summary(s), s.Stage.Failed())
	m.statusWarn = !s.Stage.Failed() && (len(s.Warnings) > 0 || s.Stage == pipeline.StageFetchEmpty)

	if s.Stage == pipeline.StageDone && len(s.Responses) > 0 {
		m.resultsView = results.New(s.Responses, m.keys, m.layout.Width, m.layout.ContentHeight())
		m.currentView = ViewResults
	}
	return m, nil
}

func (m Model) newRun() (Model, tea.Cmd) {
	m.configView = configview.New(m.cfg, m.keys, m.layout.Width, m.layout.ContentHeight())
	m.currentView = ViewConfig
	m.setStatus("", false)
	return m, m.configView.Init()
}

func (m Model) responses() []model.Response {
	if m.session == nil {
		return nil
	}
	return m.session.Responses
}

func (m Model) openDetail(idx int) (tea.Model, tea.Cmd) {
	rs := m.responses()
	if idx < 0 || idx >= len(rs) {
		return m, nil
	}

	r := rs[idx]
	m.detailView = detail.New(idx, r, export.TextFor(r, idx, m.edits),
		m.keys, m.layout.Width, m.layout.ContentHeight())
	m.currentView = ViewDetail
	return m, m.detailView.Init()
}

// recordEdit stores text as an edit of response idx, or drops the edit
// when it matches the generated draft.
func (m *Model) recordEdit(idx int, text string) {
	rs := m.responses()
	if idx < 0 || idx >= len(rs) {
		return
	}
	if text == rs[idx].Text {
		delete(m.edits, idx)
		return
	}
	m.edits[idx] = text
}

func (m Model) downloadAll() (tea.Model, tea.Cmd) {
	path, err := m.deps.Exporter.WriteAll(m.responses(), m.edits)
	if err != nil {
		m.logger.Error("export failed", "error", err)
		m.setStatus(fmt.Sprintf("Export failed: %v", err), true)
		return m, nil
	}

	m.logger.Info("exported all responses", "path", path, "edited", len(m.edits))
	m.setStatus(fmt.Sprintf("Saved all responses to %s", path), false)
	return m, nil
}

func (m Model) downloadOne(idx int, text string) (tea.Model, tea.Cmd) {
	rs := m.responses()
	if idx < 0 || idx >= len(rs) {
		return m, nil
	}

	path, err := m.deps.Exporter.WriteOne(idx, rs[idx], text)
	if err != nil {
		m.logger.Error("export failed", "index", idx, "error", err)
		m.setStatus(fmt.Sprintf("Export failed: %v", err), true)
		return m, nil
	}

	m.logger.Info("exported response", "index", idx, "path", path)
	m.setStatus(fmt.Sprintf("Saved response #%d to %s", idx+1, path), false)
	return m, nil
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
	m.statusWarn = false
}

// Status returns the current status line text and whether it is an error.
func (m Model) Status() (string, bool) {
	return m.status, m.statusErr
}

// CurrentView returns the active view.
func (m Model) CurrentView() ViewState {
	return m.currentView
}

// View renders the active view inside the header and status bar frame.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var content string
	switch m.currentView {
	case ViewConfig:
		content = m.configView.View()
	case ViewRun:
		content = m.runView.View()
	case ViewResults:
		content = m.resultsView.View()
	case ViewDetail:
		content = m.detailView.View()
	case ViewHelp:
		content = m.helpView.View()
	}

	info := ""
	if m.cfg.Email.Address != "" {
		info = fmt.Sprintf("%s • %s", m.cfg.Email.Address, m.cfg.AI.Model)
	}

	header := m.layout.RenderHeader(title, info)
	statusBar := m.layout.RenderStatusBar(m.renderStatus(), m.hints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	return theme.OutcomeStyle(m.statusErr, m.statusWarn).Render(m.status)
}

func (m Model) hints() string {
	switch m.currentView {
	case ViewConfig:
		return "enter next • shift+tab back • esc quit"
	case ViewRun:
		if m.runView.Done() {
			return "n new run • q quit"
		}
		return "ctrl+c quit"
	case ViewResults:
		return "enter open • d download all • n new run • ? help • q quit"
	case ViewDetail:
		return "ctrl+s save • esc back"
	case ViewHelp:
		return "esc back"
	}
	return ""
}
