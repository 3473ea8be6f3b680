// Package session holds the per-session client state: the active mode, the
// job correlation id, and the staged attachments. All mutation happens on
// the Bubble Tea update loop, so the state is deliberately unsynchronized.
package session

import (
	"sort"

	"lira/internal/log"
	"lira/internal/protocol"
)

// Mode selects which submission path and form is active.
type Mode int

const (
	ModeDiscovery Mode = iota
	ModeVerification
)

func (m Mode) String() string {
	switch m {
	case ModeDiscovery:
		return "discovery"
	case ModeVerification:
		return "verification"
	default:
		return "unknown"
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeDiscovery {
		return ModeVerification
	}
	return ModeDiscovery
}

// State is the single mutable session context, owned by the app model and
// shared with the mode controllers through mode.Services.
type State struct {
	mode        Mode
	activeJobID *int64
	pending     map[string]string // attachment name -> path
}

// New creates a session in discovery mode with no active job.
func New() *State {
	return &State{
		mode:    ModeDiscovery,
		pending: make(map[string]string),
	}
}

// Mode returns the current mode.
func (s *State) Mode() Mode { return s.mode }

// SetMode switches the mode. It does not reset the rest of the state;
// the mode controller performs the full reset sequence.
func (s *State) SetMode(m Mode) {
	s.mode = m
}

// ActiveJobID returns the job id the session is correlated with.
func (s *State) ActiveJobID() (int64, bool) {
	if s.activeJobID == nil {
		return 0, false
	}
	return *s.activeJobID, true
}

// SetActiveJobID stores the job id returned by a successful submission.
func (s *State) SetActiveJobID(id int64) {
	s.activeJobID = &id
	log.Debug(log.CatSession, "Active job set", "jobID", id)
}

// Matches reports whether an inbound event belongs to the active job.
// Events for any other job are stale or foreign and must be discarded.
func (s *State) Matches(ev protocol.StreamEvent) bool {
	return s.activeJobID != nil && ev.JobID == *s.activeJobID
}

// AddFile stages an attachment. Re-adding an existing name is a no-op;
// it returns false so callers can skip duplicate notifications.
func (s *State) AddFile(name, path string) bool {
	if _, exists := s.pending[name]; exists {
		return false
	}
	s.pending[name] = path
	log.Debug(log.CatSession, "Attachment staged", "name", name)
	return true
}

// RemoveFile unstages an attachment by name.
func (s *State) RemoveFile(name string) {
	delete(s.pending, name)
}

// Files returns the staged attachments sorted by name for stable display
// and request construction.
func (s *State) Files() []protocol.Attachment {
	files := make([]protocol.Attachment, 0, len(s.pending))
	for name, path := range s.pending {
		files = append(files, protocol.Attachment{Name: name, Path: path})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

// FileCount returns the number of staged attachments.
func (s *State) FileCount() int { return len(s.pending) }

// ClearFiles drops all staged attachments.
func (s *State) ClearFiles() {
	s.pending = make(map[string]string)
}

// Clear resets the job correlation and staged attachments. Called on mode
// switch and on explicit session clear.
func (s *State) Clear() {
	s.activeJobID = nil
	s.pending = make(map[string]string)
	log.Debug(log.CatSession, "Session cleared", "mode", s.mode)
}

// Gate is the form-gating outcome of one matching stream event. The two
// flags are independent: an event may both re-enable the form and be
// terminal, and most events are neither.
type Gate struct {
	// ReenableForm means the workflow paused for user input: show the form
	// again and hide the processing indicator.
	ReenableForm bool
	// Terminal means the workflow concluded: after the configured delay,
	// re-enable the form and close the subscription.
	Terminal bool
}

// Evaluate applies the dispatch rules to one event already known to match
// the active job.
func Evaluate(mode Mode, ev protocol.StreamEvent) Gate {
	var g Gate

	if ev.StatusIs(protocol.StatusNeedsMoreInput) {
		g.ReenableForm = true
	}
	if mode == ModeDiscovery &&
		ev.StatusIs(protocol.StatusInsufficientSignal) &&
		ev.NextActionIs(protocol.NextActionNeedInputs) {
		g.ReenableForm = true
	}
	g.Terminal = ev.Terminal()

	return g
}
