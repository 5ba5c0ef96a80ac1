package results

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/draft-responder/internal/keys"
	"github.com/nhle/draft-responder/internal/model"
)

func responses() []model.Response {
	return []model.Response{
		{
			Email: model.Email{Sender: "short@example.com", Subject: "Hi"},
			Text:  "ok",
		},
		{
			Email:        model.Email{Sender: strings.Repeat("s", 35), Subject: strings.Repeat("x", 45)},
			Text:         "fallback",
			ErrorMessage: "quota",
		},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(responses())
	require.Len(t, rows, 2)

	assert.Equal(t, "1", rows[0][0])
	assert.Equal(t, "short@example.com", rows[0][1])
	assert.Equal(t, "Hi", rows[0][2])
	assert.Equal(t, "✅ Success", rows[0][3])

	assert.Equal(t, "2", rows[1][0])
	assert.Equal(t, strings.Repeat("s", 30)+"...", rows[1][1])
	assert.Equal(t, strings.Repeat("x", 40)+"...", rows[1][2])
	assert.Equal(t, "❌ Error", rows[1][3])
}

func TestRowsExactLimitIsNotTruncated(t *testing.T) {
	rows := Rows([]model.Response{{Email: model.Email{Sender: strings.Repeat("a", 30), Subject: strings.Repeat("b", 40)}}})

	assert.Equal(t, strings.Repeat("a", 30), rows[0][1])
	assert.Equal(t, strings.Repeat("b", 40), rows[0][2])
}

func runKey(t *testing.T, m Model, msg tea.KeyMsg) tea.Msg {
	t.Helper()
	_, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	return cmd()
}

func TestKeys(t *testing.T) {
	m := New(responses(), keys.DefaultKeyMap(), 100, 30)

	assert.Equal(t, DownloadAllMsg{}, runKey(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")}))
	assert.Equal(t, NewRunMsg{}, runKey(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}))

	m.SetCursor(1)
	assert.Equal(t, OpenMsg{Index: 1}, runKey(t, m, tea.KeyMsg{Type: tea.KeyEnter}))
}

func TestEnterOnEmptyTableDoesNothing(t *testing.T) {
	m := New(nil, keys.DefaultKeyMap(), 100, 30)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestViewSummarisesFailures(t *testing.T) {
	view := New(responses(), keys.DefaultKeyMap(), 120, 30).View()

	assert.Contains(t, view, "Generated 2 responses")
	assert.Contains(t, view, "(1 used the fallback)")
}
