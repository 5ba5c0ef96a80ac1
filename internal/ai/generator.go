package ai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nhle/draft-responder/internal/model"
)

// FallbackResponse is used whenever the API produced nothing usable.
const FallbackResponse = "Thank you for your email. We have received your inquiry and will respond shortly."

// TextGenerator produces text for a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Generator turns emails into draft replies.
type Generator struct {
	text   TextGenerator
	logger *slog.Logger
}

// NewGenerator wraps a TextGenerator such as *Client.
func NewGenerator(text TextGenerator, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{text: text, logger: logger}
}

// Generate drafts a reply to email in the given tone. It always returns
// usable text: on failure the text is FallbackResponse and err describes
// what went wrong. An empty answer yields the fallback without an error.
func (g *Generator) Generate(
	ctx context.Context, email model.Email, tone model.Tone,
) (string, error) {
	out, err := g.text.GenerateText(ctx, BuildPrompt(email, tone))
	if err != nil {
		g.logger.Warn("generation failed", "email_id", email.ID, "error", err)
		return FallbackResponse, err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		g.logger.Debug("empty generation, using fallback", "email_id", email.ID)
		return FallbackResponse, nil
	}
	return out, nil
}
