package model

import (
	"fmt"
	"strings"
)

// Tone is the stylistic directive embedded in the generation prompt.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneFormal       Tone = "formal"
	ToneCasual       Tone = "casual"
)

// Tones lists every supported tone in display order.
var Tones = []Tone{ToneProfessional, ToneFriendly, ToneFormal, ToneCasual}

// ParseTone converts s (case-insensitive) into a Tone.
func ParseTone(s string) (Tone, error) {
	t := Tone(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("unknown tone %q (want one of %s)", s, joinTones())
}

// Valid reports whether t is one of the supported tones.
func (t Tone) Valid() bool {
	for _, known := range Tones {
		if t == known {
			return true
		}
	}
	return false
}

func joinTones() string {
	names := make([]string, len(Tones))
	for i, t := range Tones {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
