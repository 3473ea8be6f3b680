package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lira/internal/api"
	"lira/internal/config"
	"lira/internal/history"
	"lira/internal/mode"
	"lira/internal/protocol"
	"lira/internal/pubsub"
	"lira/internal/session"
	"lira/internal/stream"
	"lira/internal/ui/toaster"
)

func strPtr(s string) *string { return &s }

// backend fakes the submission endpoints plus a hanging SSE stream.
type backend struct {
	srv *httptest.Server

	mu     sync.Mutex
	events []string
}

func newBackend(t *testing.T, submitResp protocol.SubmitResponse) *backend {
	t.Helper()
	b := &backend{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(submitResp)
	})
	mux.HandleFunc("POST /verify/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(submitResp)
	})
	mux.HandleFunc("GET /user/{id}/events/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		b.mu.Lock()
		for _, ev := range b.events {
			fmt.Fprintf(w, "data: %s\n\n", ev)
		}
		b.mu.Unlock()
		flusher.Flush()
		<-r.Context().Done()
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func newTestApp(t *testing.T, backendURL string, repo *history.Repository) Model {
	t.Helper()
	cfg := config.Defaults()
	cfg.BackendURL = backendURL
	cfg.TerminalDelayMS = 10

	m := New(api.NewClient(backendURL, 5*time.Second), cfg, repo)
	t.Cleanup(m.Close)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

// notice wraps a stream event the way the consumer's broker delivers it.
func notice(ev protocol.StreamEvent) pubsub.Event[stream.Notice] {
	return pubsub.Event[stream.Notice]{
		Type:    pubsub.MessageEvent,
		Payload: stream.Notice{Event: &ev},
	}
}

func discoveryResult(jobID int64, triggered bool) mode.SubmissionResultMsg {
	return mode.SubmissionResultMsg{
		Mode: session.ModeDiscovery,
		Resp: protocol.SubmitResponse{
			JobID:             jobID,
			Answer:            "workflow started",
			WorkflowTriggered: triggered,
		},
	}
}

func waitForState(t *testing.T, c *stream.Consumer, want stream.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("consumer never reached state %v", want)
}

func TestDiscoverySubmission_TriggersWorkflowAndStream(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)

	next, _ := m.Update(mode.SubmissionStartedMsg{
		Mode: session.ModeDiscovery,
		Text: "what links kiwi fruit to cancer",
	})
	m = next.(Model)
	assert.Equal(t, 1, m.timeline.Len())

	next, _ = m.Update(discoveryResult(6, true))
	m = next.(Model)

	id, ok := m.sess.ActiveJobID()
	require.True(t, ok)
	assert.EqualValues(t, 6, id)
	assert.Equal(t, 2, m.timeline.Len(), "answer is pushed to the transcript")

	waitForState(t, m.consumer, stream.Open)
}

func TestDiscoverySubmission_ConversationalReplyDoesNotOpenStream(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)

	next, _ := m.Update(discoveryResult(6, false))
	m = next.(Model)

	assert.Equal(t, stream.Closed, m.consumer.State())
}

func TestVerificationSubmission_AlwaysOpensStream(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)
	m.sess.SetMode(session.ModeVerification)

	next, _ := m.Update(mode.SubmissionResultMsg{
		Mode: session.ModeVerification,
		Resp: protocol.SubmitResponse{JobID: 101, Message: "checking..."},
	})
	m = next.(Model)

	id, ok := m.sess.ActiveJobID()
	require.True(t, ok)
	assert.EqualValues(t, 101, id)
	waitForState(t, m.consumer, stream.Open)
}

func TestStreamNotice_ForeignJobIsDiscarded(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)
	m.sess.SetActiveJobID(6)

	next, _ := m.Update(notice(protocol.StreamEvent{
		JobID:      999,
		Phase:      protocol.PhaseIngestion,
		NextAction: strPtr("continue"),
	}))
	m = next.(Model)

	assert.Equal(t, 0, m.timeline.Len(), "foreign events never reach the transcript")
}

func TestStreamNotice_MatchingEventIsForwarded(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)
	m.sess.SetActiveJobID(6)

	next, _ := m.Update(notice(protocol.StreamEvent{
		JobID:      6,
		Phase:      protocol.PhaseTriples,
		NextAction: strPtr("continue"),
	}))
	m = next.(Model)

	assert.Equal(t, 1, m.timeline.Len())
}

func TestStreamNotice_NeedsMoreInputReenablesForm(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)
	m.sess.SetActiveJobID(6)

	// Put the discovery form into the processing state by submitting.
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("kiwi and cancer")})
	m = next.(Model)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(Model)

	type processor interface{ Processing() bool }
	require.True(t, m.discovery.(processor).Processing())

	// The paused-workflow message as it arrives on the wire: a bare
	// status, no next_action key.
	ev, err := protocol.ParseEvent([]byte(
		`{"job_id": 6, "phase": "DECISION", "status": "needs_more_input"}`))
	require.NoError(t, err)
	next, _ = m.Update(notice(ev))
	m = next.(Model)

	assert.False(t, m.discovery.(processor).Processing())
	assert.False(t, ev.Terminal(), "awaiting-input event must not schedule a stream close")
}

func TestStreamNotice_TerminalEventClosesStreamAfterDelay(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)

	next, _ := m.Update(discoveryResult(6, true))
	m = next.(Model)
	waitForState(t, m.consumer, stream.Open)

	// Terminal: next_action carried as an explicit null.
	ev, err := protocol.ParseEvent([]byte(
		`{"job_id": 6, "phase": "DECISION", "status": "found", "next_action": null}`))
	require.NoError(t, err)
	next, cmd := m.Update(notice(ev))
	m = next.(Model)
	require.NotNil(t, cmd)

	// The close arrives as a tick; deliver it directly.
	next, _ = m.Update(closeStreamMsg{jobID: 6})
	m = next.(Model)

	waitForState(t, m.consumer, stream.Closed)
}

func TestCloseStream_StaleJobIsIgnored(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)

	next, _ := m.Update(discoveryResult(7, true))
	m = next.(Model)
	waitForState(t, m.consumer, stream.Open)

	// A delayed close for an older job must not touch the live stream.
	next, _ = m.Update(closeStreamMsg{jobID: 6})
	m = next.(Model)

	assert.Equal(t, stream.Open, m.consumer.State())
}

func TestSwitchMode_PerformsFullReset(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)

	// Dirty every piece of session state.
	next, _ := m.Update(mode.SubmissionStartedMsg{Mode: session.ModeDiscovery, Text: "kiwi"})
	m = next.(Model)
	next, _ = m.Update(discoveryResult(6, true))
	m = next.(Model)
	m.sess.AddFile("paper.pdf", "/tmp/paper.pdf")
	waitForState(t, m.consumer, stream.Open)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlAt})
	m = next.(Model)

	assert.Equal(t, session.ModeVerification, m.sess.Mode())
	_, hasJob := m.sess.ActiveJobID()
	assert.False(t, hasJob, "job correlation is dropped")
	assert.Zero(t, m.sess.FileCount(), "staged files are dropped")
	assert.Equal(t, 0, m.timeline.Len(), "transcript is cleared")
	waitForState(t, m.consumer, stream.Closed)

	// And back again.
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlAt})
	m = next.(Model)
	assert.Equal(t, session.ModeDiscovery, m.sess.Mode())
}

func TestSwitchMode_CloseConfirmationStaysOutOfFreshTimeline(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)

	next, _ := m.Update(discoveryResult(6, true))
	m = next.(Model)
	waitForState(t, m.consumer, stream.Open)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlAt})
	m = next.(Model)
	waitForState(t, m.consumer, stream.Closed)

	// The broker confirms the deliberate close after the reset; the ready
	// view must not show a stale lifecycle note.
	next, _ = m.Update(pubsub.Event[stream.Notice]{Type: pubsub.ClosedEvent})
	m = next.(Model)

	assert.Equal(t, 0, m.timeline.Len())
}

func TestCloseStream_TerminalDelayConcludesWorkflowInTranscript(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)

	next, _ := m.Update(discoveryResult(6, true))
	m = next.(Model)
	waitForState(t, m.consumer, stream.Open)
	before := m.timeline.Len()

	next, _ = m.Update(closeStreamMsg{jobID: 6})
	m = next.(Model)

	waitForState(t, m.consumer, stream.Closed)
	assert.Equal(t, before+1, m.timeline.Len(), "conclusion note joins the final block")
	assert.Contains(t, m.timeline.View(), "workflow concluded")
}

func TestClearSession_KeepsMode(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)
	m.sess.SetMode(session.ModeVerification)
	m.sess.SetActiveJobID(101)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	m = next.(Model)

	assert.Equal(t, session.ModeVerification, m.sess.Mode())
	_, hasJob := m.sess.ActiveJobID()
	assert.False(t, hasJob)
}

func TestStreamError_ReenablesFormAndToasts(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)

	next, cmd := m.Update(pubsub.Event[stream.Notice]{
		Type:    pubsub.ErrorEvent,
		Payload: stream.Notice{Err: fmt.Errorf("connection reset")},
	})
	m = next.(Model)

	assert.Equal(t, 1, m.timeline.Len(), "stream failure is visible in the transcript")
	require.NotNil(t, cmd)
}

func TestHistory_RecordsFullJobLifecycle(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})

	db, err := history.NewDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := db.Repository()

	m := newTestApp(t, b.srv.URL, repo)

	next, _ := m.Update(mode.SubmissionStartedMsg{Mode: session.ModeDiscovery, Text: "what links kiwi fruit to cancer"})
	m = next.(Model)
	next, _ = m.Update(discoveryResult(6, true))
	m = next.(Model)

	final, err := protocol.ParseEvent([]byte(
		`{"job_id": 6, "phase": "DECISION", "status": "found", "next_action": null}`))
	require.NoError(t, err)
	next, _ = m.Update(notice(final))
	m = next.(Model)

	jobs, err := repo.RecentJobs(1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "discovery", jobs[0].Mode)
	require.True(t, jobs[0].BackendJobID.Valid)
	assert.EqualValues(t, 6, jobs[0].BackendJobID.Int64)
	assert.Equal(t, history.OutcomeFound, jobs[0].Outcome)

	msgs, err := repo.MessagesForJob(jobs[0].GUID)
	require.NoError(t, err)
	require.Len(t, msgs, 3, "user text, answer, and event are recorded")
}

func TestToastLifecycle(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)

	next, cmd := m.Update(mode.ShowToastMsg{Message: "hello", Style: toaster.StyleInfo})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.toaster.Visible())

	next, _ = m.Update(toaster.DismissMsg{})
	m = next.(Model)
	assert.False(t, m.toaster.Visible())
}

func TestHelpOverlay_TogglesAndSwallowsKeys(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	m := newTestApp(t, b.srv.URL, nil)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlUnderscore})
	m = next.(Model)
	require.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Keybindings")

	// Mode switch is ignored while help is open.
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlAt})
	m = next.(Model)
	assert.Equal(t, session.ModeDiscovery, m.sess.Mode())

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	assert.False(t, m.showHelp)
	assert.NotContains(t, m.View(), "Keybindings")
}

func TestApp_SmokeTest(t *testing.T) {
	b := newBackend(t, protocol.SubmitResponse{})
	cfg := config.Defaults()
	cfg.BackendURL = b.srv.URL

	m := New(api.NewClient(b.srv.URL, 5*time.Second), cfg, nil)

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return len(bts) > 0
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))
}
