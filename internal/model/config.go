package model

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nhle/draft-responder/internal/credential"
)

// Limits and defaults for the run parameters.
const (
	DefaultIMAPPort  = 993
	DefaultSMTPPort  = 587
	DefaultMailbox   = "INBOX"
	DefaultMaxEmails = 5
	DefaultDaysBack  = 1
	DefaultModel     = "gemini-2.0-flash"
	DefaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta"

	MaxEmailsLimit = 20
	DaysBackLimit  = 7

	defaultProvider = "gmail.com"
	envPrefix       = "DRAFTRESPONDER"
)

// MailConfig holds the mailbox connection settings. The SMTP fields are
// accepted and validated but nothing dials them.
type MailConfig struct {
	Address  string `mapstructure:"address" yaml:"address"`
	Password string `mapstructure:"password" yaml:"password"`
	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort int    `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`

	// MarkSeen fetches with RFC822 semantics, which sets \Seen on the
	// server. When false the body is fetched with BODY.PEEK.
	MarkSeen bool `mapstructure:"mark_seen" yaml:"mark_seen"`
}

// AIConfig holds the text-generation API settings.
type AIConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	Model   string `mapstructure:"model" yaml:"model"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Tone    Tone   `mapstructure:"tone" yaml:"tone"`
}

// RunConfig bounds a single pipeline run.
type RunConfig struct {
	MaxEmails int `mapstructure:"max_emails" yaml:"max_emails"`
	DaysBack  int `mapstructure:"days_back" yaml:"days_back"`
}

// ExportConfig controls where exported drafts are written.
type ExportConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Config is the complete configuration for one run. It is built once,
// passed by value and never written back to disk.
type Config struct {
	Email  MailConfig   `mapstructure:"email" yaml:"email"`
	AI     AIConfig     `mapstructure:"ai" yaml:"ai"`
	Run    RunConfig    `mapstructure:"run" yaml:"run"`
	Export ExportConfig `mapstructure:"export" yaml:"export"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/draftresponder/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "draftresponder", "config.yaml")
}

// DefaultConfig returns a configuration with every optional field set.
func DefaultConfig() Config {
	cfg := Config{
		Email: MailConfig{MarkSeen: true},
		Log:   LogConfig{Level: "info"},
	}
	cfg.ApplyDefaults()
	return cfg
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"address":    "email.address",
	"imap-host":  "email.imap_host",
	"imap-port":  "email.imap_port",
	"mailbox":    "email.mailbox",
	"tone":       "ai.tone",
	"model":      "ai.model",
	"max-emails": "run.max_emails",
	"days-back":  "run.days_back",
	"export-dir": "export.dir",
	"log-level":  "log.level",
	"log-file":   "log.file",
}

// LoadConfig reads configuration from the YAML file at path (optional),
// a .env file in the working directory, DRAFTRESPONDER_* environment
// variables and the given flags, in increasing order of precedence.
// Secret fields holding keyring references are resolved. The result is
// not validated; call Validate before starting a run.
func LoadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	// A missing .env file is the common case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("email.address", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.imap_host", "")
	v.SetDefault("email.imap_port", DefaultIMAPPort)
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", DefaultSMTPPort)
	v.SetDefault("email.mailbox", DefaultMailbox)
	v.SetDefault("email.mark_seen", true)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", DefaultModel)
	v.SetDefault("ai.base_url", DefaultBaseURL)
	v.SetDefault("ai.tone", string(ToneProfessional))
	v.SetDefault("run.max_emails", DefaultMaxEmails)
	v.SetDefault("run.days_back", DefaultDaysBack)
	v.SetDefault("export.dir", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("ai.api_key", envPrefix+"_AI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("binding api key env: %w", err)
	}
	if err := v.BindEnv("log.level", envPrefix+"_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return Config{}, fmt.Errorf("binding log level env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.AI.Tone = Tone(strings.ToLower(string(cfg.AI.Tone)))
	cfg.ApplyDefaults()

	var err error
	if cfg.Email.Password, err = credential.Resolve(cfg.Email.Password); err != nil {
		return Config{}, fmt.Errorf("resolving email password: %w", err)
	}
	if cfg.AI.APIKey, err = credential.Resolve(cfg.AI.APIKey); err != nil {
		return Config{}, fmt.Errorf("resolving api key: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills unset optional fields. Mail hosts default to
// imap.<provider> and smtp.<provider>, where provider is the domain of
// the configured address.
func (c *Config) ApplyDefaults() {
	p := Provider(c.Email.Address)
	if c.Email.IMAPHost == "" {
		c.Email.IMAPHost = "imap." + p
	}
	if c.Email.IMAPPort == 0 {
		c.Email.IMAPPort = DefaultIMAPPort
	}
	if c.Email.SMTPHost == "" {
		c.Email.SMTPHost = "smtp." + p
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = DefaultSMTPPort
	}
	if c.Email.Mailbox == "" {
		c.Email.Mailbox = DefaultMailbox
	}
	if c.AI.Model == "" {
		c.AI.Model = DefaultModel
	}
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = DefaultBaseURL
	}
	if c.AI.Tone == "" {
		c.AI.Tone = ToneProfessional
	}
	if c.Run.MaxEmails == 0 {
		c.Run.MaxEmails = DefaultMaxEmails
	}
	if c.Run.DaysBack == 0 {
		c.Run.DaysBack = DefaultDaysBack
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "."
	}
}

// Provider returns the mail provider domain for address, falling back
// to gmail.com when the address has no domain part.
func Provider(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return defaultProvider
	}
	return strings.ToLower(strings.TrimSpace(address[at+1:]))
}

// Validate checks required fields and ranges. All violations are
// reported together.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Email.Address) == "" {
		errs = append(errs, errors.New("email address is required"))
	}
	if c.Email.Password == "" {
		errs = append(errs, errors.New("email password is required"))
	}
	if strings.TrimSpace(c.AI.APIKey) == "" {
		errs = append(errs, errors.New("api key is required"))
	}
	if strings.TrimSpace(c.Email.IMAPHost) == "" {
		errs = append(errs, errors.New("imap host is required"))
	}
	if err := ValidatePort(c.Email.IMAPPort); err != nil {
		errs = append(errs, fmt.Errorf("imap port: %w", err))
	}
	if err := ValidatePort(c.Email.SMTPPort); err != nil {
		errs = append(errs, fmt.Errorf("smtp port: %w", err))
	}
	if !c.AI.Tone.Valid() {
		errs = append(errs, fmt.Errorf("unknown tone %q", c.AI.Tone))
	}
	if c.Run.MaxEmails < 1 || c.Run.MaxEmails > MaxEmailsLimit {
		errs = append(errs, fmt.Errorf(
			"max emails must be between 1 and %d, got %d",
			MaxEmailsLimit, c.Run.MaxEmails,
		))
	}
	if c.Run.DaysBack < 1 || c.Run.DaysBack > DaysBackLimit {
		errs = append(errs, fmt.Errorf(
			"days back must be between 1 and %d, got %d",
			DaysBackLimit, c.Run.DaysBack,
		))
	}

	return errors.Join(errs...)
}

// ValidatePort reports whether port is a usable TCP port number.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// LogValue implements slog.LogValuer so a Config can be logged without
// leaking secrets.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("address", c.Email.Address),
		slog.String("imap", fmt.Sprintf("%s:%d", c.Email.IMAPHost, c.Email.IMAPPort)),
		slog.String("mailbox", c.Email.Mailbox),
		slog.String("model", c.AI.Model),
		slog.String("tone", string(c.AI.Tone)),
		slog.Int("max_emails", c.Run.MaxEmails),
		slog.Int("days_back", c.Run.DaysBack),
	)
}

// String renders the non-secret fields.
func (c Config) String() string {
	return fmt.Sprintf(
		"%s via %s:%d/%s, %s (%s), max %d emails, %d day(s) back",
		c.Email.Address, c.Email.IMAPHost, c.Email.IMAPPort, c.Email.Mailbox,
		c.AI.Model, c.AI.Tone, c.Run.MaxEmails, c.Run.DaysBack,
	)
}
