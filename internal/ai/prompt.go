package ai

import (
	"strings"

	"github.com/nhle/draft-responder/internal/model"
)

// BuildPrompt renders the instruction sent for one email.
func BuildPrompt(email model.Email, tone model.Tone) string {
	var sb strings.Builder

	sb.WriteString("\nYou are a professional customer service representative. ")
	sb.WriteString("Generate a helpful and " + string(tone) + " email response ")
	sb.WriteString("based on the following incoming email:\n\n")

	sb.WriteString("Subject: " + email.Subject + "\n")
	sb.WriteString("From: " + email.Sender + "\n")
	sb.WriteString("Body: " + email.Body + "\n\n")

	sb.WriteString("Generate a response that:\n")
	sb.WriteString("1. Acknowledges the sender's inquiry professionally\n")
	sb.WriteString("2. Addresses their main concern or question\n")
	sb.WriteString("3. Provides helpful information or next steps\n")
	sb.WriteString("4. Maintains a " + string(tone) + " tone\n")
	sb.WriteString("5. Includes appropriate closing remarks\n\n")

	sb.WriteString("Only provide the email response content, ")
	sb.WriteString("without subject line or formatting markers.\n")

	return sb.String()
}
