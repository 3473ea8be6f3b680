// Package mode defines the mode controller interface, shared services, and
// the messages controllers use to talk to the root model.
package mode

import (
	tea "github.com/charmbracelet/bubbletea"

	"lira/internal/api"
	"lira/internal/config"
	"lira/internal/history"
	"lira/internal/keys"
	"lira/internal/protocol"
	"lira/internal/session"
	"lira/internal/ui/toaster"
)

// Controller defines the interface all modes must implement.
type Controller interface {
	// Init returns initial commands for the mode.
	Init() tea.Cmd

	// Update handles messages and returns updated model and commands.
	Update(msg tea.Msg) (Controller, tea.Cmd)

	// View renders the mode's UI.
	View() string

	// SetSize handles terminal resize events.
	SetSize(width, height int) Controller
}

// Services contains shared dependencies injected into mode controllers.
type Services struct {
	API     *api.Client
	Session *session.State
	History *history.Repository
	Config  *config.Config
	Keys    keys.KeyMap
}

// ShowToastMsg asks the root model to display a toast notification.
type ShowToastMsg struct {
	Message string
	Style   toaster.Style
}

// SubmissionStartedMsg is emitted by a controller the moment a validated
// submission goes on the wire, so the transcript shows it immediately.
type SubmissionStartedMsg struct {
	Mode  session.Mode
	Text  string
	Files []protocol.Attachment
}

// SubmissionResultMsg carries the backend's reply (or the transport error)
// for an in-flight submission. The root model does session bookkeeping and
// stream gating; the originating controller re-enables its form on error.
type SubmissionResultMsg struct {
	Mode session.Mode
	Resp protocol.SubmitResponse
	Err  error
}

// ReenableFormMsg tells the active controller to accept input again, after
// the workflow asked for more input or concluded.
type ReenableFormMsg struct{}

// FileStagedMsg reports a file added to the pending set, either via the
// attach keybinding or the drop directory.
type FileStagedMsg struct {
	Name string
	Path string
}
