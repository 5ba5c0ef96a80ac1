// Package export renders responses as plain-text drafts and writes them
// to disk.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/nhle/draft-responder/internal/model"
)

const (
	// TimestampLayout is used for the "Generated on" line.
	TimestampLayout = "2006-01-02 15:04:05"

	fileStampLayout = "20060102_150405"
	separatorWidth  = 50
)

// ErrNothingToExport is returned when there are no responses.
var ErrNothingToExport = errors.New("no responses to export")

// FormatResponse renders one draft. text is the (possibly edited)
// response body to include.
func FormatResponse(r model.Response, text string) string {
	var sb strings.Builder
	sb.WriteString("\nEMAIL RESPONSE DRAFT\n")
	sb.WriteString("===================\n\n")
	writeBody(&sb, r, text)
	return sb.String()
}

// FormatAll renders every response as numbered blocks. edits overrides
// the response text by zero-based index.
func FormatAll(responses []model.Response, edits map[int]string) string {
	sep := strings.Repeat("=", separatorWidth)

	var sb strings.Builder
	for i, r := range responses {
		fmt.Fprintf(&sb, "\nEMAIL RESPONSE DRAFT #%d\n", i+1)
		sb.WriteString(sep + "\n\n")
		writeBody(&sb, r, TextFor(r, i, edits))
		sb.WriteString("\n" + sep + "\n\n")
	}
	return sb.String()
}

func writeBody(sb *strings.Builder, r model.Response, text string) {
	sb.WriteString("Original Email:\n")
	sb.WriteString("Subject: " + r.Email.Subject + "\n")
	sb.WriteString("From: " + r.Email.Sender + "\n")
	sb.WriteString("Date: " + r.Email.Date + "\n\n")
	sb.WriteString("Original Message:\n")
	sb.WriteString(r.Email.Body + "\n\n")
	sb.WriteString("Generated Response:\n")
	sb.WriteString(text + "\n\n")
	sb.WriteString("Generated on: " + r.GeneratedAt.Format(TimestampLayout) + "\n")
}

// TextFor returns the edited text for index i if present, else the
// generated text.
func TextFor(r model.Response, i int, edits map[int]string) string {
	if text, ok := edits[i]; ok {
		return text
	}
	return r.Text
}

// ResponseFileName names the export of the response at zero-based index i.
func ResponseFileName(i int, now time.Time) string {
	return fmt.Sprintf("response_%d_%s.txt", i+1, now.Format(fileStampLayout))
}

// AllFileName names the export of every response.
func AllFileName(now time.Time) string {
	return fmt.Sprintf("email_responses_%s.txt", now.Format(fileStampLayout))
}

// Writer writes exports into a directory.
type Writer struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

// NewWriter creates a Writer rooted at dir on fs.
func NewWriter(fs afero.Fs, dir string) *Writer {
	if dir == "" {
		dir = "."
	}
	return &Writer{fs: fs, dir: dir, now: time.Now}
}

// Dir returns the export directory.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteAll writes every response into one file and returns its path.
func (w *Writer) WriteAll(responses []model.Response, edits map[int]string) (string, error) {
	if len(responses) == 0 {
		return "", ErrNothingToExport
	}
	return w.write(AllFileName(w.now()), FormatAll(responses, edits))
}

// WriteOne writes the response at zero-based index i with the given
// text and returns the file path.
func (w *Writer) WriteOne(i int, r model.Response, text string) (string, error) {
	return w.write(ResponseFileName(i, w.now()), FormatResponse(r, text))
}

func (w *Writer) write(name, data string) (string, error) {
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export dir %s: %w", w.dir, err)
	}

	path := filepath.Join(w.dir, name)
	if err := afero.WriteFile(w.fs, path, []byte(data), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
