package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nhle/draft-responder/internal/app"
	"github.com/nhle/draft-responder/internal/export"
	"github.com/nhle/draft-responder/internal/model"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		headless   bool
	)

	cmd := &cobra.Command{
		Use:           "draftresponder",
		Short:         "Draft AI replies to your unread email",
		Long:          "Fetches recent unread mail over IMAP, drafts replies with Gemini and lets you review, edit and export them.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model.LoadConfig(configPath, cmd.Flags())
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if headless {
				logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)
				err := runHeadless(ctx, cfg, app.PipelineRunner(logger),
					export.NewWriter(afero.NewOsFs(), cfg.Export.Dir), cmd.OutOrStdout(), logger)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
				}
				return err
			}

			return runTUI(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the YAML config file")
	f.BoolVar(&headless, "headless", false, "run once without the terminal UI and export every draft")
	f.String("address", "", "email address to read from")
	f.String("imap-host", "", "IMAP server host (default imap.<provider>)")
	f.Int("imap-port", model.DefaultIMAPPort, "IMAP server port")
	f.String("mailbox", model.DefaultMailbox, "mailbox to search")
	f.String("tone", string(model.ToneProfessional), "response tone (professional, friendly, formal, casual)")
	f.String("model", model.DefaultModel, "Gemini model name")
	f.Int("max-emails", model.DefaultMaxEmails, "maximum number of emails to process (1-20)")
	f.Int("days-back", model.DefaultDaysBack, "how many days back to search (1-7)")
	f.String("export-dir", ".", "directory for exported drafts")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.String("log-file", "", "log file for the terminal UI (default: discard)")

	return cmd
}

func runTUI(ctx context.Context, cfg model.Config) error {
	logger, closeLog, err := tuiLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	m := app.New(cfg, app.Deps{
		Run:      app.PipelineRunner(logger),
		Exporter: export.NewWriter(afero.NewOsFs(), cfg.Export.Dir),
		Logger:   logger,
		Ctx:      ctx,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}
