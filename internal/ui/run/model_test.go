package run

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/draft-responder/internal/model"
	"github.com/nhle/draft-responder/internal/pipeline"
)

func fakeRun(_ context.Context, cfg model.Config, report pipeline.Reporter) *pipeline.Session {
	s := pipeline.NewSession(cfg)
	report(pipeline.Event{Stage: pipeline.StageConnecting, Percent: 0, Message: "Connecting to email server..."})
	report(pipeline.Event{Stage: pipeline.StageFetching, Percent: 25, Message: "Error processing email 3: boom", Warning: true})
	report(pipeline.Event{Stage: pipeline.StageDone, Percent: 100, Message: "Successfully processed 1 emails!"})
	s.Stage = pipeline.StageDone
	s.Percent = 100
	s.Message = "Successfully processed 1 emails!"
	s.Warnings = []string{"Error processing email 3: boom"}
	return s
}

func TestStartStreamsEventsThenFinishes(t *testing.T) {
	m := New(80, 24)
	m, cmd := m.Start(context.Background(), model.DefaultConfig(), fakeRun)
	require.NotNil(t, cmd)

	var finished *pipeline.Session
	for i := 0; i < 10 && finished == nil; i++ {
		msg := waitForEvent(m.events)()
		require.NotNil(t, msg)
		if f, ok := msg.(FinishedMsg); ok {
			finished = f.Session
		}
		m, _ = m.Update(msg)
	}

	require.NotNil(t, finished)
	assert.True(t, m.Done())
	assert.Equal(t, 100, m.Percent())
	assert.Len(t, m.lines, 3)
	assert.True(t, m.lines[1].warning)
	assert.Nil(t, waitForEvent(m.events)(), "channel closed after FinishedMsg")
	assert.Equal(t, "Successfully processed 1 emails! (1 warning(s))", Summary(finished))
}

func TestWarningsDoNotMoveProgress(t *testing.T) {
	m := New(80, 24)
	m.apply(pipeline.Event{Stage: pipeline.StageConnected, Percent: 25, Message: "connected"})
	m.apply(pipeline.Event{Stage: pipeline.StageFetching, Percent: 0, Message: "warn", Warning: true})

	assert.Equal(t, 25, m.Percent())
	assert.Equal(t, "connected", m.message)
}

func TestViewShowsFailure(t *testing.T) {
	m := New(80, 24)
	m, _ = m.Update(EventMsg{Event: pipeline.Event{
		Stage:   pipeline.StageConnectFailed,
		Percent: 0,
		Message: "Failed to connect to email: refused",
	}})
	m, _ = m.Update(FinishedMsg{Session: &pipeline.Session{
		Stage:   pipeline.StageConnectFailed,
		Message: "Failed to connect to email: refused",
	}})

	view := m.View()
	assert.Contains(t, view, "Failed to connect to email: refused")
	assert.Contains(t, view, "n new run")
}
