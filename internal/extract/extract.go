// Package extract turns raw RFC 5322 messages into model.Email values.
// Everything here is pure: no I/O beyond the byte slice handed in.
package extract

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/nhle/draft-responder/internal/model"
)

// Placeholders used when a header is absent.
const (
	NoSubject     = "No Subject"
	UnknownSender = "Unknown Sender"
	UnknownDate   = "Unknown Date"
)

// Message parses raw into an Email with the given id. It never fails:
// malformed input degrades to placeholders and best-effort body text.
func Message(id string, raw []byte) model.Email {
	email := model.Email{
		ID:      id,
		Subject: NoSubject,
		Sender:  UnknownSender,
		Date:    UnknownDate,
	}

	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		email.Body = strings.TrimSpace(toUTF8(raw))
		return email
	}

	payload, err := io.ReadAll(br)
	if err != nil {
		payload = nil
	}

	hdr := mail.Header{Header: message.Header{Header: h}}
	if hdr.Has("Subject") {
		email.Subject = decodedHeader(hdr, "Subject")
	}
	if hdr.Has("From") {
		email.Sender = decodedHeader(hdr, "From")
	}
	if hdr.Has("Date") {
		email.Date = hdr.Get("Date")
	}

	email.Body = strings.TrimSpace(Body(hdr.Header, payload))
	return email
}

// decodedHeader returns the RFC 2047 decoded value of key, or the raw
// value if decoding fails.
func decodedHeader(h mail.Header, key string) string {
	v, err := h.Text(key)
	if err != nil {
		return h.Get(key)
	}
	return v
}

// Body returns the text body of a message whose header is h and whose
// undecoded payload follows the header. Multipart messages yield the
// first non-attachment text/plain part, or "" if there is none.
func Body(h message.Header, payload []byte) string {
	mediaType, _, err := h.ContentType()
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		return firstPlainText(h, payload)
	}
	return singlePart(h, payload)
}

func singlePart(h message.Header, payload []byte) string {
	e, err := message.New(h, bytes.NewReader(payload))
	if err != nil && !message.IsUnknownCharset(err) {
		return toUTF8(payload)
	}

	body, err := io.ReadAll(e.Body)
	if err != nil {
		return toUTF8(payload)
	}
	return toUTF8(body)
}

// firstPlainText walks the leaf parts in structural order. A candidate
// whose transfer encoding cannot be decoded is skipped.
func firstPlainText(h message.Header, payload []byte) string {
	e, err := message.New(h, bytes.NewReader(payload))
	if err != nil && !message.IsUnknownCharset(err) {
		return ""
	}

	mr := mail.NewReader(e)
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && (part == nil || !message.IsUnknownCharset(err)) {
			break
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok || !isPlainText(inline.Header) {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		return toUTF8(body)
	}

	return ""
}

// isPlainText reports whether a leaf part is a text/plain candidate. A
// missing or unparsable Content-Type counts as text/plain.
func isPlainText(h message.Header) bool {
	if strings.Contains(strings.ToLower(h.Get("Content-Disposition")), "attachment") {
		return false
	}
	mediaType, _, err := h.ContentType()
	if err != nil || mediaType == "" {
		return true
	}
	return strings.EqualFold(mediaType, "text/plain")
}

// toUTF8 replaces invalid UTF-8 sequences with U+FFFD.
func toUTF8(b []byte) string {
	out, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(out)
}
