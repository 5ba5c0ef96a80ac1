package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/draft-responder/internal/keys"
	"github.com/nhle/draft-responder/internal/model"
	"github.com/nhle/draft-responder/internal/theme"
)

const (
	securityNote = "Never commit credentials to version control. " +
		"Use an app-specific password for Gmail, never your main account password."
	apiKeyNote = "Get a free API key from Google AI Studio: https://aistudio.google.com/app/apikey"
)

// SubmitMsg carries a validated configuration when the user starts a run.
type SubmitMsg struct {
	Config model.Config
}

// CancelMsg signals the user aborted the form.
type CancelMsg struct{}

// formValues holds the strings huh binds to. It lives on the heap so the
// bindings survive Model being copied by value.
type formValues struct {
	address   string
	password  string
	imapHost  string
	imapPort  string
	smtpHost  string
	smtpPort  string
	apiKey    string
	tone      model.Tone
	maxEmails string
	daysBack  string
	run       bool
}

func valuesFrom(cfg model.Config) *formValues {
	tone := cfg.AI.Tone
	if !tone.Valid() {
		tone = model.ToneProfessional
	}
	return &formValues{
		address:   cfg.Email.Address,
		password:  cfg.Email.Password,
		imapHost:  cfg.Email.IMAPHost,
		imapPort:  portString(cfg.Email.IMAPPort),
		smtpHost:  cfg.Email.SMTPHost,
		smtpPort:  portString(cfg.Email.SMTPPort),
		apiKey:    cfg.AI.APIKey,
		tone:      tone,
		maxEmails: strconv.Itoa(cfg.Run.MaxEmails),
		daysBack:  strconv.Itoa(cfg.Run.DaysBack),
		run:       true,
	}
}

func portString(p int) string {
	if p == 0 {
		return ""
	}
	return strconv.Itoa(p)
}

// Model is the Bubble Tea model for the configuration form.
type Model struct {
	base   model.Config
	values *formValues
	form   *huh.Form
	errMsg string

	keys          *keys.KeyMap
	width, height int
}

// New creates a configuration form prefilled from cfg.
func New(cfg model.Config, k *keys.KeyMap, width, height int) Model {
	m := Model{
		base:   cfg,
		values: valuesFrom(cfg),
		keys:   k,
		width:  width,
		height: height,
	}
	m.form = m.buildForm()
	return m
}

// Init initializes the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards messages to the form and emits SubmitMsg once the
// form completes with a valid configuration.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.SetSize(size.Width, size.Height)
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.submit()
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	if !m.values.run {
		m.errMsg = "Run not started. Review the settings and confirm to start."
		return m.restart()
	}

	cfg, err := toConfig(m.base, m.values)
	if err != nil {
		m.errMsg = err.Error()
		return m.restart()
	}

	m.errMsg = ""
	m.base = cfg
	return m, func() tea.Msg { return SubmitMsg{Config: cfg} }
}

// restart rebuilds the form so it can be edited again. Values are kept.
func (m Model) restart() (Model, tea.Cmd) {
	m.values.run = true
	m.form = m.buildForm()
	return m, m.form.Init()
}

func (m Model) buildForm() *huh.Form {
	v := m.values

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Security Note").
				Description(securityNote),
			huh.NewInput().
				Title("Email Address").
				Placeholder("your-email@gmail.com").
				Value(&v.address).
				Validate(validateRequired("Email address")),
			huh.NewInput().
				Title("Email Password").
				Description("App-specific password, or keyring:<name>").
				EchoMode(huh.EchoModePassword).
				Value(&v.password).
				Validate(validateRequired("Password")),
		).Title("Email Settings"),

		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Server").
				Description("Leave empty for imap.<your provider>").
				Placeholder("imap.gmail.com").
				Value(&v.imapHost),
			huh.NewInput().
				Title("IMAP Port").
				Placeholder("993").
				Value(&v.imapPort).
				Validate(validatePort),
			huh.NewInput().
				Title("SMTP Server").
				Description("Shown for reference; drafts are never sent").
				Placeholder("smtp.gmail.com").
				Value(&v.smtpHost),
			huh.NewInput().
				Title("SMTP Port").
				Placeholder("587").
				Value(&v.smtpPort).
				Validate(validatePort),
		).Title("Advanced Settings"),

		huh.NewGroup(
			huh.NewNote().
				Title("API Key").
				Description(apiKeyNote),
			huh.NewInput().
				Title("Gemini API Key").
				EchoMode(huh.EchoModePassword).
				Value(&v.apiKey).
				Validate(validateRequired("API key")),
			huh.NewSelect[model.Tone]().
				Title("Response Tone").
				Options(huh.NewOptions(model.Tones...)...).
				Value(&v.tone),
			huh.NewInput().
				Title("Max Emails to Process").
				Description(fmt.Sprintf("1 to %d", model.MaxEmailsLimit)).
				Value(&v.maxEmails).
				Validate(validateRange("Max emails", 1, model.MaxEmailsLimit)),
			huh.NewInput().
				Title("Days Back to Check").
				Description(fmt.Sprintf("1 to %d", model.DaysBackLimit)).
				Value(&v.daysBack).
				Validate(validateRange("Days back", 1, model.DaysBackLimit)),
			huh.NewConfirm().
				Title("Process emails now?").
				Affirmative("Run").
				Negative("Not yet").
				Value(&v.run),
		).Title("AI Settings"),
	).WithWidth(m.formWidth()).WithShowHelp(true)
}

// View renders the form with any submission error above it.
func (m Model) View() string {
	content := m.form.View()
	if m.errMsg != "" {
		content = theme.ErrorStyle.Render(m.errMsg) + "\n\n" + content
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Render(content)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

// toConfig overlays the form values on base and validates the result.
func toConfig(base model.Config, v *formValues) (model.Config, error) {
	cfg := base
	cfg.Email.Address = strings.TrimSpace(v.address)
	cfg.Email.Password = v.password
	cfg.Email.IMAPHost = strings.TrimSpace(v.imapHost)
	cfg.Email.SMTPHost = strings.TrimSpace(v.smtpHost)
	cfg.AI.APIKey = strings.TrimSpace(v.apiKey)
	cfg.AI.Tone = v.tone

	var errs []error
	var err error
	if cfg.Email.IMAPPort, err = optionalInt(v.imapPort); err != nil {
		errs = append(errs, fmt.Errorf("imap port: %w", err))
	}
	if cfg.Email.SMTPPort, err = optionalInt(v.smtpPort); err != nil {
		errs = append(errs, fmt.Errorf("smtp port: %w", err))
	}
	if cfg.Run.MaxEmails, err = optionalInt(v.maxEmails); err != nil {
		errs = append(errs, fmt.Errorf("max emails: %w", err))
	}
	if cfg.Run.DaysBack, err = optionalInt(v.daysBack); err != nil {
		errs = append(errs, fmt.Errorf("days back: %w", err))
	}
	if len(errs) > 0 {
		return model.Config{}, errors.Join(errs...)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func optionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return n, nil
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

// validatePort accepts an empty value, which selects the default port.
func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("port must be a number")
	}
	return model.ValidatePort(n)
}

func validateRange(fieldName string, lo, hi int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%s must be a number", fieldName)
		}
		if n < lo || n > hi {
			return fmt.Errorf("%s must be between %d and %d", fieldName, lo, hi)
		}
		return nil
	}
}
