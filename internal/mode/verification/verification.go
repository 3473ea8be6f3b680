// Package verification implements the two-entity verification mode: the
// user names two entities and the workflow checks whether the literature
// connects them.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
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

const entityCount = 2

// Model holds the verification mode state.
type Model struct {
	services mode.Services

	entities   [entityCount]textinput.Model
	spinner    spinner.Model
	focusIdx   int
	processing bool

	width  int
	height int
}

var _ mode.Controller = Model{}

// New creates the verification controller.
func New(services mode.Services) Model {
	var entities [entityCount]textinput.Model
	labels := [entityCount]string{"first entity, e.g. kiwi", "second entity, e.g. cancer"}
	for i := range entities {
		ti := textinput.New()
		ti.Placeholder = labels[i]
		ti.Prompt = fmt.Sprintf("entity %d> ", i+1)
		ti.CharLimit = 200
		entities[i] = ti
	}
	entities[0].Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.PhaseActiveColor)

	return Model{
		services: services,
		entities: entities,
		spinner:  sp,
	}
}

// Init returns initial commands for the mode.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
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
		if msg.Mode != session.ModeVerification {
			return m, nil
		}
		return m.handleResult(msg)

	case mode.ReenableFormMsg:
		m.processing = false
		m.entities[m.focusIdx].Focus()
		return m, textinput.Blink
	}

	return m.updateInputs(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (mode.Controller, tea.Cmd) {
	km := m.services.Keys

	if m.processing {
		return m, nil
	}

	switch {
	case key.Matches(msg, km.Submit):
		return m.submit()
	case key.Matches(msg, km.FocusNext):
		return m.moveFocus(1), textinput.Blink
	case key.Matches(msg, km.FocusPrev):
		return m.moveFocus(-1), textinput.Blink
	case msg.Type == tea.KeyEnter:
		if m.focusIdx < entityCount-1 {
			return m.moveFocus(1), textinput.Blink
		}
		return m.submit()
	}

	return m.updateInputs(msg)
}

func (m Model) moveFocus(delta int) Model {
	m.entities[m.focusIdx].Blur()
	m.focusIdx = (m.focusIdx + delta + entityCount) % entityCount
	m.entities[m.focusIdx].Focus()
	return m
}

func (m Model) updateInputs(msg tea.Msg) (mode.Controller, tea.Cmd) {
	if m.processing {
		return m, nil
	}
	var cmd tea.Cmd
	m.entities[m.focusIdx], cmd = m.entities[m.focusIdx].Update(msg)
	return m, cmd
}

// submit validates both entity names and, if valid, disables the form and
// sends the request.
func (m Model) submit() (mode.Controller, tea.Cmd) {
	req := protocol.VerificationRequest{
		Entity1: strings.TrimSpace(m.entities[0].Value()),
		Entity2: strings.TrimSpace(m.entities[1].Value()),
	}

	if err := api.ValidateVerification(req); err != nil {
		return m, toast("Both entity names are required", toaster.StyleWarn)
	}

	m.processing = true
	for i := range m.entities {
		m.entities[i].Blur()
	}

	started := mode.SubmissionStartedMsg{
		Mode: session.ModeVerification,
		Text: fmt.Sprintf("verify: %s ↔ %s", req.Entity1, req.Entity2),
	}

	client := m.services.API
	timeout := m.services.Config.RequestTimeout()
	submitCmd := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		resp, err := client.SubmitVerification(ctx, req)
		if err != nil {
			return mode.SubmissionResultMsg{Mode: session.ModeVerification, Err: err}
		}
		return mode.SubmissionResultMsg{Mode: session.ModeVerification, Resp: *resp}
	}

	return m, tea.Batch(
		func() tea.Msg { return started },
		submitCmd,
		m.spinner.Tick,
	)
}

// handleResult reacts to the submission reply. A verification submission
// always starts a workflow, so on success the form stays disabled until the
// stream re-enables it.
func (m Model) handleResult(msg mode.SubmissionResultMsg) (mode.Controller, tea.Cmd) {
	if msg.Err != nil {
		m.processing = false
		m.entities[m.focusIdx].Focus()

		var httpErr *api.HTTPError
		text := "Submission failed: " + msg.Err.Error()
		if errors.As(msg.Err, &httpErr) {
			text = fmt.Sprintf("Backend rejected the request (%d)", httpErr.Status)
		}
		log.ErrorErr(log.CatMode, "verification submission failed", msg.Err)
		return m, tea.Batch(textinput.Blink, toast(text, toaster.StyleError))
	}

	for i := range m.entities {
		m.entities[i].SetValue("")
	}
	m.focusIdx = 0

	return m, nil
}

// View renders the mode's UI.
func (m Model) View() string {
	var b strings.Builder

	if m.processing {
		b.WriteString(m.spinner.View())
		b.WriteString(styles.MutedStyle.Render(" verifying the connection"))
	} else {
		for i := range m.entities {
			b.WriteString(m.entities[i].View())
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.helpLine())

	return b.String()
}

func (m Model) helpLine() string {
	km := m.services.Keys
	parts := []string{
		km.Submit.Help().Key + " " + km.Submit.Help().Desc,
		km.FocusNext.Help().Key + " " + km.FocusNext.Help().Desc,
		km.SwitchMode.Help().Key + " " + km.SwitchMode.Help().Desc,
	}
	return styles.MutedStyle.Render(strings.Join(parts, " · "))
}

// SetSize handles terminal resize events.
func (m Model) SetSize(width, height int) mode.Controller {
	m.width = width
	m.height = height
	for i := range m.entities {
		m.entities[i].Width = width - 14
	}
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
