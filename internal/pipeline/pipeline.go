// Package pipeline runs one fetch-and-draft pass: connect, search,
// fetch, extract, generate, disconnect.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/draft-responder/internal/ai"
	"github.com/nhle/draft-responder/internal/email"
	"github.com/nhle/draft-responder/internal/extract"
	"github.com/nhle/draft-responder/internal/model"
)

// Dialer opens an authenticated mailbox session.
type Dialer interface {
	Dial(ctx context.Context) (email.Mailbox, error)
}

// Generator drafts a reply. On failure it still returns usable text
// alongside the error.
type Generator interface {
	Generate(ctx context.Context, e model.Email, tone model.Tone) (string, error)
}

// Event is a progress notification.
type Event struct {
	Stage   Stage
	Percent int
	Message string
	Warning bool
}

// Reporter receives events synchronously from the running pipeline.
type Reporter func(Event)

// Deps are the collaborators of a run.
type Deps struct {
	Dialer    Dialer
	Generator Generator
	Logger    *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewDeps wires the IMAP client and the Gemini generator for cfg.
func NewDeps(cfg model.Config, logger *slog.Logger) Deps {
	if logger == nil {
		logger = slog.Default()
	}
	client := ai.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL)
	return Deps{
		Dialer:    email.NewIMAPClient(cfg.Email, logger),
		Generator: ai.NewGenerator(client, logger),
		Logger:    logger,
		Now:       time.Now,
	}
}

// Session is the record of one run. It is owned by the caller once Run
// returns.
type Session struct {
	ID     string
	Config model.Config

	Stage    Stage
	Percent  int
	Message  string
	Warnings []string

	Emails    []model.Email
	Responses []model.Response

	StartedAt  time.Time
	FinishedAt time.Time

	// Err is set when the run ended in a failed stage.
	Err error

	// TeardownErr captures a failed close/logout. It never fails a run.
	TeardownErr error
}

// NewSession creates an idle session for cfg.
func NewSession(cfg model.Config) *Session {
	return &Session{
		ID:     uuid.NewString(),
		Config: cfg,
		Stage:  StageIdle,
	}
}

// Run executes the pipeline for cfg and returns the finished session.
// It never panics; every outcome is recorded on the session.
func Run(ctx context.Context, cfg model.Config, deps Deps, report Reporter) *Session {
	s := NewSession(cfg)
	newRunner(s, deps, report).run(ctx)
	return s
}

type runner struct {
	s      *Session
	deps   Deps
	report Reporter
	logger *slog.Logger
}

func newRunner(s *Session, deps Deps, report Reporter) *runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &runner{
		s:      s,
		deps:   deps,
		report: report,
		logger: logger.With("session", s.ID),
	}
}

func (r *runner) emit(stage Stage, percent int, msg string) {
	if percent < r.s.Percent {
		percent = r.s.Percent
	}
	r.s.Stage = stage
	r.s.Percent = percent
	r.s.Message = msg

	r.logger.Info(msg, "stage", stage.String(), "percent", percent)
	if r.report != nil {
		r.report(Event{Stage: stage, Percent: percent, Message: msg})
	}
}

func (r *runner) warn(msg string) {
	r.s.Warnings = append(r.s.Warnings, msg)
	r.logger.Warn(msg, "stage", r.s.Stage.String())
	if r.report != nil {
		r.report(Event{Stage: r.s.Stage, Percent: r.s.Percent, Message: msg, Warning: true})
	}
}

func (r *runner) fail(stage Stage, msg string, err error) {
	r.s.Err = &StageError{Stage: stage, Err: err}
	r.emit(stage, r.s.Percent, msg)
}

func (r *runner) run(ctx context.Context) {
	r.s.StartedAt = r.deps.Now()
	defer func() { r.s.FinishedAt = r.deps.Now() }()

	cfg := r.s.Config
	r.logger.Debug("starting run", "config", cfg)

	r.emit(StageConnecting, 0, "Connecting to email server...")
	mb, err := r.deps.Dialer.Dial(ctx)
	if err != nil {
		r.fail(StageConnectFailed, fmt.Sprintf("Failed to connect to email: %v", err), err)
		return
	}
	defer func() {
		if err := mb.Close(); err != nil {
			r.s.TeardownErr = err
			r.logger.Debug("teardown failed", "error", err)
		}
	}()
	r.emit(StageConnected, 25, "Successfully connected to email server")

	if !r.fetch(ctx, mb) {
		return
	}
	r.generate(ctx)
}

// fetch fills s.Emails and reports whether the run should continue.
func (r *runner) fetch(ctx context.Context, mb email.Mailbox) bool {
	cfg := r.s.Config
	r.emit(StageFetching, r.s.Percent, "Fetching recent emails...")

	since := email.SinceDate(r.deps.Now(), cfg.Run.DaysBack)
	uids, err := mb.SearchUnseenSince(ctx, since)
	if err != nil {
		r.fail(StageFetchFailed, fmt.Sprintf("Error fetching emails: %v", err), err)
		return false
	}

	for _, uid := range SelectRecent(uids, cfg.Run.MaxEmails) {
		if err := ctx.Err(); err != nil {
			r.fail(StageAborted, fmt.Sprintf("Run cancelled: %v", err), err)
			return false
		}

		raw, err := mb.FetchRaw(ctx, uid)
		if err != nil {
			r.warn(fmt.Sprintf("Error processing email %d: %v", uid, err))
			continue
		}
		id := strconv.FormatUint(uint64(uid), 10)
		r.s.Emails = append(r.s.Emails, extract.Message(id, raw))
	}

	msg := fmt.Sprintf("Fetched %d recent emails", len(r.s.Emails))
	if len(r.s.Emails) == 0 {
		r.emit(StageFetchEmpty, r.s.Percent, msg)
		return false
	}
	r.emit(StageFetched, 50, msg)
	return true
}

// generate drafts one response per fetched email. A panic in a
// collaborator aborts the run instead of crashing the caller.
func (r *runner) generate(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			r.logger.Error("generation aborted", "error", err)
			r.fail(StageAborted, fmt.Sprintf("An error occurred: %v", err), err)
		}
	}()

	cfg := r.s.Config
	total := len(r.s.Emails)
	r.emit(StageGenerating, 50, "Generating AI responses...")

	for i, e := range r.s.Emails {
		if err := ctx.Err(); err != nil {
			r.fail(StageAborted, fmt.Sprintf("Run cancelled: %v", err), err)
			return
		}

		text, err := r.deps.Generator.Generate(ctx, e, cfg.AI.Tone)
		resp := model.Response{
			Email:       e,
			Text:        text,
			GeneratedAt: r.deps.Now(),
		}
		if err != nil {
			resp.Text = ai.FallbackResponse
			resp.ErrorMessage = err.Error()
		}
		r.s.Responses = append(r.s.Responses, resp)

		r.emit(StageGenerating, 50+50*(i+1)/total,
			fmt.Sprintf("Generated response %d of %d", i+1, total))
	}

	r.emit(StageDone, 100, fmt.Sprintf("Successfully processed %d emails!", total))
}

// SelectRecent returns the newest limit UIDs in ascending order. UID
// order stands in for arrival order.
func SelectRecent(uids []uint32, limit int) []uint32 {
	sorted := slices.Clone(uids)
	slices.Sort(sorted)
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted
}
