// Package discovery implements the open-ended discovery mode: free-text
// questions with optional document attachments, submitted to the background
// literature workflow.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lira/internal/api"
	"lira/internal/log"
	"lira/internal/mode"
	"lira/internal/protocol"
	"lira/internal/session"
	"lira/internal/ui/styles"
	"lira/internal/ui/toaster"
)

// focusTarget identifies which input is active.
type focusTarget int

const (
	focusQuestion focusTarget = iota
	focusAttach
)

// Model holds the discovery mode state.
type Model struct {
	services mode.Services

	question    textarea.Model
	attachInput textinput.Model
	spinner     spinner.Model

	focus      focusTarget
	attaching  bool
	processing bool

	width  int
	height int
}

var _ mode.Controller = Model{}

// New creates the discovery controller.
func New(services mode.Services) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask a question, e.g. \"what links kiwi fruit to cancer prevention?\""
	ta.SetHeight(4)
	ta.CharLimit = 0
	ta.Focus()

	ti := textinput.New()
	ti.Placeholder = "/path/to/document.pdf"
	ti.Prompt = "attach> "

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.PhaseActiveColor)

	return Model{
		services:    services,
		question:    ta,
		attachInput: ti,
		spinner:     sp,
	}
}

// Init returns initial commands for the mode.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages and returns updated model and commands.
func (m Model) Update(msg tea.Msg) (mode.Controller, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.processing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case mode.SubmissionResultMsg:
		if msg.Mode != session.ModeDiscovery {
			return m, nil
		}
		return m.handleResult(msg)

	case mode.ReenableFormMsg:
		m.processing = false
		m.question.Focus()
		return m, textarea.Blink

	case mode.FileStagedMsg:
		if m.services.Session.AddFile(msg.Name, msg.Path) {
			return m, toast(fmt.Sprintf("Attached %s", msg.Name), toaster.StyleSuccess)
		}
		return m, nil
	}

	return m.updateInputs(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (mode.Controller, tea.Cmd) {
	km := m.services.Keys

	if m.attaching {
		switch {
		case key.Matches(msg, km.Escape):
			m.attaching = false
			m.focus = focusQuestion
			m.attachInput.Blur()
			m.attachInput.SetValue("")
			m.question.Focus()
			return m, textarea.Blink
		case msg.Type == tea.KeyEnter:
			return m.stageTypedPath()
		}
		var cmd tea.Cmd
		m.attachInput, cmd = m.attachInput.Update(msg)
		return m, cmd
	}

	if m.processing {
		// The form is gone while the workflow runs; only global keys apply,
		// and the root model sees those first.
		return m, nil
	}

	switch {
	case key.Matches(msg, km.Submit):
		return m.submit()
	case key.Matches(msg, km.Attach):
		m.attaching = true
		m.focus = focusAttach
		m.question.Blur()
		m.attachInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, km.RemoveFile):
		files := m.services.Session.Files()
		if len(files) == 0 {
			return m, nil
		}
		last := files[len(files)-1]
		m.services.Session.RemoveFile(last.Name)
		return m, toast(fmt.Sprintf("Removed %s", last.Name), toaster.StyleInfo)
	}

	return m.updateInputs(msg)
}

func (m Model) updateInputs(msg tea.Msg) (mode.Controller, tea.Cmd) {
	var cmd tea.Cmd
	if m.attaching {
		m.attachInput, cmd = m.attachInput.Update(msg)
	} else if !m.processing {
		m.question, cmd = m.question.Update(msg)
	}
	return m, cmd
}

// stageTypedPath adds the typed path to the pending set.
func (m Model) stageTypedPath() (mode.Controller, tea.Cmd) {
	path := strings.TrimSpace(m.attachInput.Value())
	m.attaching = false
	m.focus = focusQuestion
	m.attachInput.Blur()
	m.attachInput.SetValue("")
	m.question.Focus()

	if path == "" {
		return m, textarea.Blink
	}

	name := filepath.Base(path)
	if !m.services.Session.AddFile(name, path) {
		return m, tea.Batch(textarea.Blink, toast(fmt.Sprintf("%s already attached", name), toaster.StyleWarn))
	}
	return m, tea.Batch(textarea.Blink, toast(fmt.Sprintf("Attached %s", name), toaster.StyleSuccess))
}

// submit validates the form and, if valid, disables it and sends the
// request. An invalid submission leaves the form untouched.
func (m Model) submit() (mode.Controller, tea.Cmd) {
	req := protocol.DiscoveryRequest{
		Content: strings.TrimSpace(m.question.Value()),
		Files:   m.services.Session.Files(),
	}
	if id, ok := m.services.Session.ActiveJobID(); ok {
		req.JobID = &id
	}

	if err := api.ValidateDiscovery(req); err != nil {
		return m, toast("Type a question or attach a file first", toaster.StyleWarn)
	}

	m.processing = true
	m.question.Blur()

	started := mode.SubmissionStartedMsg{
		Mode:  session.ModeDiscovery,
		Text:  req.Content,
		Files: req.Files,
	}

	client := m.services.API
	timeout := m.services.Config.RequestTimeout()
	submitCmd := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		resp, err := client.SubmitDiscovery(ctx, req)
		if err != nil {
			return mode.SubmissionResultMsg{Mode: session.ModeDiscovery, Err: err}
		}
		return mode.SubmissionResultMsg{Mode: session.ModeDiscovery, Resp: *resp}
	}

	return m, tea.Batch(
		func() tea.Msg { return started },
		submitCmd,
		m.spinner.Tick,
	)
}

// handleResult reacts to the submission reply. Success clears the inputs and
// keeps the form disabled until the stream gates it back on; failure
// restores the form so the user can retry.
func (m Model) handleResult(msg mode.SubmissionResultMsg) (mode.Controller, tea.Cmd) {
	if msg.Err != nil {
		m.processing = false
		m.question.Focus()

		var httpErr *api.HTTPError
		text := "Submission failed: " + msg.Err.Error()
		if errors.As(msg.Err, &httpErr) {
			text = fmt.Sprintf("Backend rejected the request (%d)", httpErr.Status)
		}
		log.ErrorErr(log.CatMode, "discovery submission failed", msg.Err)
		return m, tea.Batch(textarea.Blink, toast(text, toaster.StyleError))
	}

	m.question.SetValue("")
	m.services.Session.ClearFiles()

	if !msg.Resp.WorkflowTriggered {
		// Conversational reply: no workflow, so the form comes straight back.
		m.processing = false
		m.question.Focus()
		return m, textarea.Blink
	}

	return m, nil
}

// View renders the mode's UI.
func (m Model) View() string {
	var b strings.Builder

	if files := m.services.Session.Files(); len(files) > 0 {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = "📎 " + f.Name
		}
		b.WriteString(styles.MutedStyle.Render(strings.Join(names, "  ")))
		b.WriteString("\n")
	}

	switch {
	case m.attaching:
		b.WriteString(m.attachInput.View())
	case m.processing:
		b.WriteString(m.spinner.View())
		b.WriteString(styles.MutedStyle.Render(" working on it, progress will appear above"))
	default:
		b.WriteString(m.question.View())
	}

	b.WriteString("\n")
	b.WriteString(m.helpLine())

	return b.String()
}

func (m Model) helpLine() string {
	km := m.services.Keys
	parts := []string{
		km.Submit.Help().Key + " " + km.Submit.Help().Desc,
		km.Attach.Help().Key + " " + km.Attach.Help().Desc,
		km.SwitchMode.Help().Key + " " + km.SwitchMode.Help().Desc,
	}
	if m.services.Session.FileCount() > 0 {
		parts = append(parts, km.RemoveFile.Help().Key+" "+km.RemoveFile.Help().Desc)
	}
	return styles.MutedStyle.Render(strings.Join(parts, " · "))
}

// SetSize handles terminal resize events.
func (m Model) SetSize(width, height int) mode.Controller {
	m.width = width
	m.height = height
	m.question.SetWidth(width - 2)
	m.attachInput.Width = width - 12
	return m
}

// Processing reports whether the form is disabled pending workflow output.
func (m Model) Processing() bool {
	return m.processing
}

func toast(message string, style toaster.Style) tea.Cmd {
	return func() tea.Msg {
		return mode.ShowToastMsg{Message: message, Style: style}
	}
}
