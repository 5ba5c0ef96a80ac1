package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/draft-responder/internal/ai"
	"github.com/nhle/draft-responder/internal/email"
	"github.com/nhle/draft-responder/internal/model"
)

var fixedNow = time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)

type fakeMailbox struct {
	uids      []uint32
	searchErr error
	fetchErr  map[uint32]error
	closeErr  error

	since   time.Time
	fetched []uint32
	closed  int
}

func (f *fakeMailbox) SearchUnseenSince(_ context.Context, since time.Time) ([]uint32, error) {
	f.since = since
	return f.uids, f.searchErr
}

func (f *fakeMailbox) FetchRaw(_ context.Context, uid uint32) ([]byte, error) {
	f.fetched = append(f.fetched, uid)
	if err := f.fetchErr[uid]; err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("Subject: message %d\r\nFrom: sender%d@example.com\r\n\r\nbody %d\r\n", uid, uid, uid)), nil
}

func (f *fakeMailbox) Close() error {
	f.closed++
	return f.closeErr
}

type fakeDialer struct {
	mb  *fakeMailbox
	err error
}

func (d *fakeDialer) Dial(context.Context) (email.Mailbox, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.mb, nil
}

type fakeGenerator struct {
	fail  map[string]error
	panic string
	seen  []string
}

func (g *fakeGenerator) Generate(_ context.Context, e model.Email, tone model.Tone) (string, error) {
	if g.panic != "" && e.ID == g.panic {
		panic("generator exploded")
	}
	g.seen = append(g.seen, e.ID)
	if err := g.fail[e.ID]; err != nil {
		return ai.FallbackResponse, err
	}
	return fmt.Sprintf("reply to %s in %s tone", e.Subject, tone), nil
}

func testConfig(maxEmails int) model.Config {
	cfg := model.DefaultConfig()
	cfg.Email.Address = "me@example.com"
	cfg.Email.Password = "pw"
	cfg.AI.APIKey = "key"
	cfg.Run.MaxEmails = maxEmails
	return cfg
}

func testDeps(d Dialer, g Generator) Deps {
	return Deps{
		Dialer:    d,
		Generator: g,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return fixedNow },
	}
}

func collect(events *[]Event) Reporter {
	return func(e Event) { *events = append(*events, e) }
}

func TestRunHappyPath(t *testing.T) {
	mb := &fakeMailbox{uids: []uint32{7, 3, 9, 1, 5}}
	gen := &fakeGenerator{}
	var events []Event

	s := Run(context.Background(), testConfig(3), testDeps(&fakeDialer{mb: mb}, gen), collect(&events))

	assert.Equal(t, StageDone, s.Stage)
	assert.Equal(t, 100, s.Percent)
	assert.Equal(t, "Successfully processed 3 emails!", s.Message)
	assert.NoError(t, s.Err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, fixedNow, s.StartedAt)
	assert.Equal(t, fixedNow, s.FinishedAt)

	assert.Equal(t, []uint32{5, 7, 9}, mb.fetched, "newest UIDs in ascending order")
	assert.Equal(t, 1, mb.closed)
	assert.Equal(t, fixedNow.AddDate(0, 0, -1), mb.since)

	require.Len(t, s.Emails, 3)
	require.Len(t, s.Responses, 3)
	for i, r := range s.Responses {
		assert.Equal(t, s.Emails[i], r.Email)
		assert.False(t, r.Failed())
		assert.Equal(t, fixedNow, r.GeneratedAt)
	}
	assert.Equal(t, "5", s.Emails[0].ID)
	assert.Equal(t, "message 5", s.Emails[0].Subject)
	assert.Equal(t, "reply to message 9 in professional tone", s.Responses[2].Text)

	var percents []int
	var stages []Stage
	for _, e := range events {
		percents = append(percents, e.Percent)
		stages = append(stages, e.Stage)
	}
	assert.Equal(t, []int{0, 25, 25, 50, 50, 66, 83, 100, 100}, percents)
	assert.Equal(t, []Stage{
		StageConnecting, StageConnected, StageFetching, StageFetched,
		StageGenerating, StageGenerating, StageGenerating, StageGenerating, StageDone,
	}, stages)
}

func TestRunConnectFailure(t *testing.T) {
	dialErr := &email.AuthError{Username: "me@example.com", Err: errors.New("bad password")}
	gen := &fakeGenerator{}

	s := Run(context.Background(), testConfig(5), testDeps(&fakeDialer{err: dialErr}, gen), nil)

	assert.Equal(t, StageConnectFailed, s.Stage)
	assert.True(t, s.Stage.Terminal())
	assert.Contains(t, s.Message, "Failed to connect to email: authentication failed")
	assert.True(t, email.IsAuthError(s.Err))

	var stageErr *StageError
	require.ErrorAs(t, s.Err, &stageErr)
	assert.Equal(t, StageConnectFailed, stageErr.Stage)
	assert.Empty(t, s.Emails)
	assert.Empty(t, gen.seen)
}

func TestRunNoEmails(t *testing.T) {
	mb := &fakeMailbox{}
	gen := &fakeGenerator{}

	s := Run(context.Background(), testConfig(5), testDeps(&fakeDialer{mb: mb}, gen), nil)

	assert.Equal(t, StageFetchEmpty, s.Stage)
	assert.Equal(t, "Fetched 0 recent emails", s.Message)
	assert.Equal(t, 25, s.Percent)
	assert.NoError(t, s.Err)
	assert.Empty(t, s.Responses)
	assert.Empty(t, gen.seen)
	assert.Equal(t, 1, mb.closed, "connection closed after empty fetch")
}

func TestRunSearchFailure(t *testing.T) {
	mb := &fakeMailbox{searchErr: errors.New("BAD command")}

	s := Run(context.Background(), testConfig(5), testDeps(&fakeDialer{mb: mb}, &fakeGenerator{}), nil)

	assert.Equal(t, StageFetchFailed, s.Stage)
	assert.Equal(t, "Error fetching emails: BAD command", s.Message)
	assert.Error(t, s.Err)
	assert.Equal(t, 1, mb.closed)
}

func TestRunSkipsMessagesThatFailToFetch(t *testing.T) {
	mb := &fakeMailbox{
		uids:     []uint32{1, 2, 3},
		fetchErr: map[uint32]error{2: errors.New("connection reset")},
	}
	var events []Event

	s := Run(context.Background(), testConfig(5), testDeps(&fakeDialer{mb: mb}, &fakeGenerator{}), collect(&events))

	assert.Equal(t, StageDone, s.Stage)
	require.Len(t, s.Emails, 2)
	assert.Equal(t, []string{"Error processing email 2: connection reset"}, s.Warnings)

	var warned bool
	for _, e := range events {
		if e.Warning {
			warned = true
			assert.Equal(t, s.Warnings[0], e.Message)
		}
	}
	assert.True(t, warned)
}

func TestRunAllFetchesFailIsEmpty(t *testing.T) {
	mb := &fakeMailbox{
		uids:     []uint32{4},
		fetchErr: map[uint32]error{4: errors.New("gone")},
	}

	s := Run(context.Background(), testConfig(5), testDeps(&fakeDialer{mb: mb}, &fakeGenerator{}), nil)

	assert.Equal(t, StageFetchEmpty, s.Stage)
	assert.Len(t, s.Warnings, 1)
}

func TestRunGenerationFailureUsesFallback(t *testing.T) {
	mb := &fakeMailbox{uids: []uint32{1, 2}}
	gen := &fakeGenerator{fail: map[string]error{"1": errors.New("quota exceeded")}}

	s := Run(context.Background(), testConfig(5), testDeps(&fakeDialer{mb: mb}, gen), nil)

	assert.Equal(t, StageDone, s.Stage)
	require.Len(t, s.Responses, 2)
	assert.True(t, s.Responses[0].Failed())
	assert.Equal(t, ai.FallbackResponse, s.Responses[0].Text)
	assert.Equal(t, "quota exceeded", s.Responses[0].ErrorMessage)
	assert.False(t, s.Responses[1].Failed())
}

func TestRunPanicAborts(t *testing.T) {
	mb := &fakeMailbox{uids: []uint32{1, 2}}
	gen := &fakeGenerator{panic: "2"}

	s := Run(context.Background(), testConfig(5), testDeps(&fakeDialer{mb: mb}, gen), nil)

	assert.Equal(t, StageAborted, s.Stage)
	assert.Contains(t, s.Message, "generator exploded")
	assert.Len(t, s.Responses, 1)
	assert.Equal(t, 1, mb.closed, "teardown runs after abort")
}

func TestRunCancelledContextAborts(t *testing.T) {
	mb := &fakeMailbox{uids: []uint32{1, 2}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := Run(ctx, testConfig(5), testDeps(&fakeDialer{mb: mb}, &fakeGenerator{}), nil)

	assert.Equal(t, StageAborted, s.Stage)
	assert.ErrorIs(t, s.Err, context.Canceled)
	assert.Empty(t, mb.fetched)
}

func TestRunTeardownErrorIsCaptured(t *testing.T) {
	mb := &fakeMailbox{uids: []uint32{1}, closeErr: errors.New("logout failed")}

	s := Run(context.Background(), testConfig(5), testDeps(&fakeDialer{mb: mb}, &fakeGenerator{}), nil)

	assert.Equal(t, StageDone, s.Stage)
	assert.NoError(t, s.Err)
	assert.EqualError(t, s.TeardownErr, "logout failed")
}

func TestSelectRecent(t *testing.T) {
	tests := []struct {
		name  string
		uids  []uint32
		limit int
		want  []uint32
	}{
		{name: "fewer than limit", uids: []uint32{3, 1}, limit: 5, want: []uint32{1, 3}},
		{name: "tail of sorted", uids: []uint32{10, 2, 8, 4, 6}, limit: 2, want: []uint32{8, 10}},
		{name: "empty", uids: nil, limit: 5, want: []uint32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectRecent(tt.uids, tt.limit)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStage(t *testing.T) {
	assert.Equal(t, "connect failed", StageConnectFailed.String())
	assert.Equal(t, "stage(99)", Stage(99).String())
	assert.False(t, StageGenerating.Terminal())
	assert.True(t, StageFetchEmpty.Terminal())
	assert.False(t, StageFetchEmpty.Failed())
	assert.True(t, StageAborted.Failed())
}
