// Package app contains the root application model. It owns the session
// state, the event subscription, the transcript, and the mode switch; the
// mode controllers own their forms.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lira/internal/api"
	"lira/internal/config"
	"lira/internal/history"
	"lira/internal/keys"
	"lira/internal/log"
	"lira/internal/mode"
	"lira/internal/mode/discovery"
	"lira/internal/mode/verification"
	"lira/internal/protocol"
	"lira/internal/pubsub"
	"lira/internal/session"
	"lira/internal/stream"
	"lira/internal/ui/help"
	"lira/internal/ui/styles"
	"lira/internal/ui/timeline"
	"lira/internal/ui/toaster"
	"lira/internal/watcher"
)

const toastDuration = 3 * time.Second

// formHeight is the vertical space reserved below the transcript.
const formHeight = 8

// closeStreamMsg fires after the terminal-event delay; the job id guards
// against closing a stream that a newer submission already reopened.
type closeStreamMsg struct {
	jobID int64
}

// fileDroppedMsg reports a file that settled in the drop directory.
type fileDroppedMsg struct {
	path string
}

// Model is the root application state.
type Model struct {
	// Mode management
	sess         *session.State
	discovery    mode.Controller
	verification mode.Controller

	// Shared services (passed to mode controllers)
	services mode.Services

	// Transcript and notifications - owned by app, not individual modes
	timeline timeline.Model
	toaster  toaster.Model
	help     help.Model
	showHelp bool

	// Event subscription
	consumer       *stream.Consumer
	streamCtx      context.Context
	streamCancel   context.CancelFunc
	streamListener *pubsub.ContinuousListener[stream.Notice]

	// Drop directory watcher
	watcherHandle *watcher.Watcher
	dropCh        <-chan string

	// Local history bookkeeping
	jobGUID string

	width  int
	height int
}

// New creates the application model.
func New(client *api.Client, cfg config.Config, repo *history.Repository) Model {
	sess := session.New()

	services := mode.Services{
		API:     client,
		Session: sess,
		History: repo,
		Config:  &cfg,
		Keys:    keys.DefaultKeyMap(),
	}

	consumer := stream.New(stream.Config{
		BaseURL:           cfg.BackendURL,
		UserID:            cfg.UserID,
		ReconnectAttempts: cfg.Reconnect.Attempts,
		ReconnectDelay:    cfg.Reconnect.Delay(),
	})

	streamCtx, streamCancel := context.WithCancel(context.Background())
	listener := pubsub.NewContinuousListener(streamCtx, consumer.Broker())

	// The drop directory is optional; submission works without it.
	var (
		watcherHandle *watcher.Watcher
		dropCh        <-chan string
	)
	if cfg.Drop.Enabled && cfg.Drop.Dir != "" {
		if w, err := watcher.New(watcher.DefaultConfig(cfg.Drop.Dir)); err == nil {
			if ch, err := w.Start(); err == nil {
				watcherHandle = w
				dropCh = ch
			} else {
				log.Warn(log.CatWatch, "Drop directory unavailable", "dir", cfg.Drop.Dir, "error", err)
				_ = w.Stop()
			}
		}
	}

	return Model{
		sess:           sess,
		discovery:      discovery.New(services),
		verification:   verification.New(services),
		services:       services,
		timeline:       timeline.New(),
		toaster:        toaster.New(),
		help:           help.New(services.Keys),
		consumer:       consumer,
		streamCtx:      streamCtx,
		streamCancel:   streamCancel,
		streamListener: listener,
		watcherHandle:  watcherHandle,
		dropCh:         dropCh,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.discovery.Init(),
		m.streamListener.Listen(),
	}
	if m.dropCh != nil {
		cmds = append(cmds, m.listenDrop())
	}
	return tea.Batch(cmds...)
}

// listenDrop waits for the next file from the drop directory.
func (m Model) listenDrop() tea.Cmd {
	ctx, ch := m.streamCtx, m.dropCh
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-ch:
			if !ok {
				return nil
			}
			return fileDroppedMsg{path: path}
		}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.timeline = m.timeline.SetSize(msg.Width, max(msg.Height-formHeight, 3))
		m.discovery = m.discovery.SetSize(msg.Width, formHeight)
		m.verification = m.verification.SetSize(msg.Width, formHeight)
		m.help = m.help.SetSize(msg.Width, msg.Height)

		return m, nil

	case tea.KeyMsg:
		km := m.services.Keys
		switch {
		case key.Matches(msg, km.Quit):
			m.Close()
			return m, tea.Quit
		case key.Matches(msg, km.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case m.showHelp && key.Matches(msg, km.Escape):
			m.showHelp = false
			return m, nil
		case m.showHelp:
			// Help swallows other keys until dismissed.
			return m, nil
		case key.Matches(msg, km.SwitchMode):
			return m.switchMode()
		case key.Matches(msg, km.ClearSession):
			return m.clearSession()
		}

	case mode.SubmissionStartedMsg:
		return m.handleSubmissionStarted(msg)

	case mode.SubmissionResultMsg:
		return m.handleSubmissionResult(msg)

	case mode.ShowToastMsg:
		m.toaster = m.toaster.Show(msg.Message, msg.Style)
		return m, toaster.ScheduleDismiss(toastDuration)

	case toaster.DismissMsg:
		m.toaster = m.toaster.Hide()
		return m, nil

	case pubsub.Event[stream.Notice]:
		return m.handleStreamNotice(msg)

	case closeStreamMsg:
		return m.handleCloseStream(msg)

	case fileDroppedMsg:
		return m.handleFileDropped(msg)
	}

	return m.updateActive(msg)
}

// updateActive delegates a message to the active mode controller.
func (m Model) updateActive(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.sess.Mode() {
	case session.ModeVerification:
		m.verification, cmd = m.verification.Update(msg)
	default:
		m.discovery, cmd = m.discovery.Update(msg)
	}

	// Viewport scrolling applies regardless of mode.
	var tlCmd tea.Cmd
	m.timeline, tlCmd = m.timeline.Update(msg)

	return m, tea.Batch(cmd, tlCmd)
}

// switchMode performs the full reset sequence: close the subscription, drop
// the job correlation and staged files, clear the transcript, rebuild the
// forms, then flip the mode.
func (m Model) switchMode() (tea.Model, tea.Cmd) {
	from := m.sess.Mode()
	to := from.Toggle()
	log.Info(log.CatMode, "Switching mode", "from", from.String(), "to", to.String())

	m.consumer.Stop()
	m.sess.Clear()
	m.timeline = m.timeline.Clear()
	m.jobGUID = ""

	// Fresh controllers: inputs empty and forms enabled.
	m.discovery = discovery.New(m.services).SetSize(m.width, formHeight)
	m.verification = verification.New(m.services).SetSize(m.width, formHeight)

	m.sess.SetMode(to)

	var initCmd tea.Cmd
	if to == session.ModeVerification {
		initCmd = m.verification.Init()
	} else {
		initCmd = m.discovery.Init()
	}

	return m, tea.Batch(
		initCmd,
		func() tea.Msg {
			return mode.ShowToastMsg{Message: "Mode: " + to.String(), Style: toaster.StyleInfo}
		},
	)
}

// clearSession resets the current conversation without changing mode.
func (m Model) clearSession() (tea.Model, tea.Cmd) {
	current := m.sess.Mode()

	m.consumer.Stop()
	m.sess.Clear()
	m.timeline = m.timeline.Clear()
	m.jobGUID = ""

	m.discovery = discovery.New(m.services).SetSize(m.width, formHeight)
	m.verification = verification.New(m.services).SetSize(m.width, formHeight)
	m.sess.SetMode(current)

	var initCmd tea.Cmd
	if current == session.ModeVerification {
		initCmd = m.verification.Init()
	} else {
		initCmd = m.discovery.Init()
	}

	return m, tea.Batch(initCmd, func() tea.Msg {
		return mode.ShowToastMsg{Message: "Session cleared", Style: toaster.StyleInfo}
	})
}

// handleSubmissionStarted echoes the submission into the transcript and
// opens a local history record.
func (m Model) handleSubmissionStarted(msg mode.SubmissionStartedMsg) (tea.Model, tea.Cmd) {
	m.timeline = m.timeline.PushUser(msg.Text, msg.Files)

	if m.services.History != nil {
		rec, err := m.services.History.CreateJob(msg.Mode.String(), truncate(msg.Text, 200))
		if err != nil {
			log.ErrorErr(log.CatStore, "recording job", err)
		} else {
			m.jobGUID = rec.GUID
			if err := m.services.History.AppendMessage(rec.GUID, history.RoleUser, msg.Text); err != nil {
				log.ErrorErr(log.CatStore, "recording message", err)
			}
		}
	}

	return m.updateActive(msg)
}

// handleSubmissionResult does the session bookkeeping for a reply and opens
// the subscription when the reply started a workflow. The originating
// controller sees the same message and manages its own form.
func (m Model) handleSubmissionResult(msg mode.SubmissionResultMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m.updateActive(msg)
	}

	m.sess.SetActiveJobID(msg.Resp.JobID)

	if reply := msg.Resp.Reply(); reply != "" {
		m.timeline = m.timeline.PushAnswer(reply)
	}

	if m.services.History != nil && m.jobGUID != "" {
		if err := m.services.History.SetBackendJobID(m.jobGUID, msg.Resp.JobID); err != nil {
			log.ErrorErr(log.CatStore, "recording backend job id", err)
		}
		if reply := msg.Resp.Reply(); reply != "" {
			if err := m.services.History.SetAnswer(m.jobGUID, reply); err != nil {
				log.ErrorErr(log.CatStore, "recording answer", err)
			}
			if err := m.services.History.AppendMessage(m.jobGUID, history.RoleAnswer, reply); err != nil {
				log.ErrorErr(log.CatStore, "recording message", err)
			}
		}
	}

	// Verification always starts a workflow; discovery only when the
	// backend says it did.
	if msg.Mode == session.ModeVerification || msg.Resp.WorkflowTriggered {
		m.consumer.Start()
	}

	return m.updateActive(msg)
}

// handleStreamNotice applies the dispatch rules to one subscription notice.
func (m Model) handleStreamNotice(msg pubsub.Event[stream.Notice]) (tea.Model, tea.Cmd) {
	keepListening := m.streamListener.Listen()

	switch msg.Type {
	case pubsub.MessageEvent:
		ev := msg.Payload.Event
		if ev == nil {
			return m, keepListening
		}
		if !m.sess.Matches(*ev) {
			log.Debug(log.CatStream, "Discarding event for foreign job", "jobID", ev.JobID)
			return m, keepListening
		}
		return m.dispatchEvent(*ev, keepListening)

	case pubsub.ErrorEvent:
		m.timeline = m.timeline.PushError("Event stream failed: " + msg.Payload.Err.Error())
		model, cmd := m.updateActive(mode.ReenableFormMsg{})
		return model, tea.Batch(cmd, keepListening, func() tea.Msg {
			return mode.ShowToastMsg{Message: "Stream lost. Submit again to retry", Style: toaster.StyleError}
		})

	case pubsub.ClosedEvent:
		// The consumer only reports Closed on a deliberate Stop (mode
		// switch, session clear, terminal delay, or a superseding Start).
		// The user already sees the state change; a transcript notice
		// here would land in a freshly cleared timeline.
		log.Debug(log.CatStream, "Subscription close confirmed")
		return m, keepListening
	}

	return m, keepListening
}

// dispatchEvent forwards a matching event to the transcript and applies the
// gating rules.
func (m Model) dispatchEvent(ev protocol.StreamEvent, keepListening tea.Cmd) (tea.Model, tea.Cmd) {
	m.timeline = m.timeline.PushEvent(ev)

	if m.services.History != nil && m.jobGUID != "" {
		if err := m.services.History.AppendMessage(m.jobGUID, history.RoleEvent, describeEvent(ev)); err != nil {
			log.ErrorErr(log.CatStore, "recording event", err)
		}
	}

	gate := session.Evaluate(m.sess.Mode(), ev)
	cmds := []tea.Cmd{keepListening}

	if gate.ReenableForm {
		var cmd tea.Cmd
		m, cmd = m.updateActive(mode.ReenableFormMsg{})
		cmds = append(cmds, cmd)
	}

	if gate.Terminal {
		m.recordOutcome(ev)
		jobID := ev.JobID
		delay := m.services.Config.TerminalDelay()
		cmds = append(cmds, tea.Tick(delay, func(time.Time) tea.Msg {
			return closeStreamMsg{jobID: jobID}
		}))
	}

	return m, tea.Batch(cmds...)
}

// recordOutcome maps the terminal event onto a stored job outcome.
func (m Model) recordOutcome(ev protocol.StreamEvent) {
	if m.services.History == nil || m.jobGUID == "" {
		return
	}

	outcome := history.OutcomeHalted
	switch {
	case ev.StatusIs(protocol.StatusFound):
		outcome = history.OutcomeFound
	case ev.StatusIs(protocol.StatusNotFound):
		outcome = history.OutcomeNotFound
	case ev.StatusIs(protocol.StatusNoHypothesis),
		ev.NextActionIs(protocol.NextActionHaltNoHypothesis):
		outcome = history.OutcomeNoHypothesis
	}

	if err := m.services.History.SetOutcome(m.jobGUID, outcome); err != nil {
		log.ErrorErr(log.CatStore, "recording outcome", err)
	}
}

// handleCloseStream closes the subscription after the terminal delay, unless
// a newer submission claimed the session in the meantime.
func (m Model) handleCloseStream(msg closeStreamMsg) (tea.Model, tea.Cmd) {
	if id, ok := m.sess.ActiveJobID(); !ok || id != msg.jobID {
		return m, nil
	}

	m.consumer.Stop()
	log.Info(log.CatStream, "Workflow concluded, subscription closed", "jobID", msg.jobID)
	m.timeline = m.timeline.PushNotice("workflow concluded")

	model, cmd := m.updateActive(mode.ReenableFormMsg{})
	return model, cmd
}

// handleFileDropped stages a dropped file in discovery mode. Verification
// takes no attachments, so drops outside discovery are announced and held
// until the user switches back.
func (m Model) handleFileDropped(msg fileDroppedMsg) (tea.Model, tea.Cmd) {
	keepListening := m.listenDrop()

	if m.sess.Mode() != session.ModeDiscovery {
		return m, tea.Batch(keepListening, func() tea.Msg {
			return mode.ShowToastMsg{
				Message: "File drops apply to discovery mode",
				Style:   toaster.StyleWarn,
			}
		})
	}

	staged := mode.FileStagedMsg{Name: filepath.Base(msg.path), Path: msg.path}
	model, cmd := m.updateActive(staged)
	return model, tea.Batch(cmd, keepListening)
}

// View implements tea.Model.
func (m Model) View() string {
	header := m.headerLine()
	form := m.activeView()

	view := lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.timeline.View(),
		form,
	)

	if m.toaster.Visible() {
		view = lipgloss.JoinVertical(lipgloss.Left, view, m.toaster.View())
	}

	if m.showHelp {
		return m.help.Overlay(view)
	}

	return view
}

func (m Model) activeView() string {
	if m.sess.Mode() == session.ModeVerification {
		return m.verification.View()
	}
	return m.discovery.View()
}

func (m Model) headerLine() string {
	label := "DISCOVERY"
	if m.sess.Mode() == session.ModeVerification {
		label = "VERIFICATION"
	}

	parts := styles.PhaseBadge.Render("◆ "+label)
	if id, ok := m.sess.ActiveJobID(); ok {
		parts += styles.MutedStyle.Render(fmt.Sprintf("  job %d", id))
	}
	if m.consumer.State() == stream.Open {
		parts += styles.SuccessStyle.Render("  ● live")
	}
	return parts
}

// Close releases resources held by the application.
func (m *Model) Close() {
	m.streamCancel()
	m.consumer.Close()
	if m.watcherHandle != nil {
		_ = m.watcherHandle.Stop()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func describeEvent(ev protocol.StreamEvent) string {
	text := ev.Phase
	if ev.Status != nil && *ev.Status != "" {
		text += " " + *ev.Status
	}
	if ev.Explanation != "" {
		text += ": " + ev.Explanation
	}
	return text
}
