package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/draft-responder/internal/model"
)

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var captured http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = *r.Clone(context.Background())
		raw, _ := io.ReadAll(r.Body)
		captured.Body = io.NopCloser(strings.NewReader(string(raw)))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestGenerateTextSendsRequest(t *testing.T) {
	srv, req := newTestServer(t, http.StatusOK, `{
		"candidates": [{"content": {"parts": [{"text": "Hello "}, {"text": "there"}]}}]
	}`)

	c := NewClient("test-key", "gemini-test", srv.URL+"/")
	out, err := c.GenerateText(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/models/gemini-test:generateContent", req.URL.Path)
	assert.Equal(t, "test-key", req.Header.Get("x-goog-api-key"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	var sent generateRequest
	require.NoError(t, json.NewDecoder(req.Body).Decode(&sent))
	require.Len(t, sent.Contents, 1)
	require.Len(t, sent.Contents[0].Parts, 1)
	assert.Equal(t, "the prompt", sent.Contents[0].Parts[0].Text)
}

func TestGenerateTextErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "api error body",
			status:  http.StatusBadRequest,
			body:    `{"error": {"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"}}`,
			wantErr: "API error (400 INVALID_ARGUMENT): API key not valid",
		},
		{
			name:    "plain error body",
			status:  http.StatusServiceUnavailable,
			body:    "overloaded",
			wantErr: "API error (503): overloaded",
		},
		{
			name:    "undecodable body",
			status:  http.StatusOK,
			body:    "not json",
			wantErr: "decoding response",
		},
		{
			name:    "blocked prompt",
			status:  http.StatusOK,
			body:    `{"promptFeedback": {"blockReason": "SAFETY"}}`,
			wantErr: "prompt blocked (SAFETY)",
		},
		{
			name:    "no candidates",
			status:  http.StatusOK,
			body:    `{"candidates": []}`,
			wantErr: "no candidates returned",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status, tt.body)

			_, err := NewClient("k", "", srv.URL).GenerateText(context.Background(), "p")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGenerateTextAPIErrorIsTyped(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusTooManyRequests,
		`{"error": {"code": 429, "message": "quota", "status": "RESOURCE_EXHAUSTED"}}`)

	_, err := NewClient("k", "", srv.URL).GenerateText(context.Background(), "p")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "RESOURCE_EXHAUSTED", apiErr.Status)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("k", "", "")
	assert.Equal(t, defaultModel, c.Model())
	assert.Equal(t, defaultBaseURL, c.baseURL)
}

type stubText struct {
	out    string
	err    error
	prompt string
}

func (s *stubText) GenerateText(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.out, s.err
}

func TestGenerate(t *testing.T) {
	email := model.Email{ID: "1", Subject: "Order", Sender: "bob@example.com", Body: "Where is it?"}

	tests := []struct {
		name    string
		stub    *stubText
		want    string
		wantErr bool
	}{
		{name: "trims text", stub: &stubText{out: "  Dear Bob,\nSoon.  \n"}, want: "Dear Bob,\nSoon."},
		{name: "empty text uses fallback", stub: &stubText{out: "   "}, want: FallbackResponse},
		{name: "failure uses fallback", stub: &stubText{err: errors.New("boom")}, want: FallbackResponse, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewGenerator(tt.stub, nil).Generate(context.Background(), email, model.ToneFriendly)
			assert.Equal(t, tt.want, out)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	email := model.Email{Subject: "Refund", Sender: "ann@example.com", Body: "I want my money back."}

	prompt := BuildPrompt(email, model.ToneFormal)

	assert.Contains(t, prompt, "Generate a helpful and formal email response")
	assert.Contains(t, prompt, "Subject: Refund\n")
	assert.Contains(t, prompt, "From: ann@example.com\n")
	assert.Contains(t, prompt, "Body: I want my money back.\n")
	assert.Contains(t, prompt, "4. Maintains a formal tone\n")
	assert.Contains(t, prompt, "5. Includes appropriate closing remarks\n")
	assert.Contains(t, prompt, "Only provide the email response content, without subject line or formatting markers.")
	assert.Equal(t, 2, strings.Count(prompt, "formal"))
}
