package model

import "time"

// Email is the structured form of one fetched message.
type Email struct {
	// ID is the mailbox-assigned UID. It is unique within a fetch batch
	// but not guaranteed to be stable across sessions.
	ID      string
	Subject string
	Sender  string
	Date    string
	Body    string
}

// Response is the generated draft for exactly one Email.
type Response struct {
	Email Email
	Text  string

	// ErrorMessage is set when generation failed; Text then holds the
	// fallback response.
	ErrorMessage string

	GeneratedAt time.Time
}

// Failed reports whether the draft was produced by the fallback path
// after a failed API call.
func (r Response) Failed() bool {
	return r.ErrorMessage != ""
}
