// Package protocol defines the wire contract with the literature-review
// backend: submission requests, submission responses, and the structured
// events delivered on the per-session SSE channel.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Pipeline phases reported by stream events.
const (
	PhaseCreation      = "CREATION"
	PhaseIngestion     = "INGESTION"
	PhaseTriples       = "TRIPLES"
	PhaseGraph         = "GRAPH"
	PhasePathReasoning = "PATHREASONING"
	PhaseDecision      = "DECISION"
	PhaseFetch         = "FETCH"
	PhaseDownload      = "DOWNLOAD"
)

// Sub-status values carried on DECISION-phase events.
const (
	StatusNeedsMoreInput     = "needs_more_input"
	StatusHaltConfident      = "haltconfident"
	StatusNoHypothesis       = "nohypo"
	StatusFound              = "found"
	StatusNotFound           = "notfound"
	StatusInsufficientSignal = "insufficientsignal"
)

// next_action values the client reacts to.
const (
	NextActionHaltNoHypothesis = "halt_no_hypothesis"
	NextActionNeedInputs       = "need_inputs"
)

// Attachment is a file staged for upload. The content is read from Path at
// submission time; the client treats it as an opaque blob.
type Attachment struct {
	Name string
	Path string
}

// DiscoveryRequest is the payload for a discovery-mode submission.
// JobID continues an existing job when set; Content and Files are each
// optional, but at least one of them must be present.
type DiscoveryRequest struct {
	JobID   *int64
	Content string
	Files   []Attachment
}

// VerificationRequest asks the backend whether two entities are connected.
// Both entity names are required.
type VerificationRequest struct {
	Entity1 string
	Entity2 string
}

// SubmitResponse is the backend's reply to either submission kind.
// WorkflowTriggered is only ever set on discovery responses; a discovery
// reply without it is purely conversational and must not open a stream.
type SubmitResponse struct {
	JobID             int64  `json:"job_id"`
	Answer            string `json:"answer,omitempty"`
	Message           string `json:"message,omitempty"`
	Status            string `json:"status,omitempty"`
	WorkflowTriggered bool   `json:"workflow_triggered,omitempty"`
}

// Reply returns the displayable text of the response: the natural-language
// answer when present, otherwise the short status message.
func (r SubmitResponse) Reply() string {
	if strings.TrimSpace(r.Answer) != "" {
		return r.Answer
	}
	return r.Message
}

// GraphNode is one node of a knowledge-graph payload.
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// GraphEdge is one edge of a knowledge-graph payload.
type GraphEdge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation,omitempty"`
}

// Graph is the nodes/edges structure carried by GRAPH-phase events.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Hypothesis is one entry of a ranked hypothesis list.
type Hypothesis struct {
	Rank      int     `json:"rank,omitempty"`
	Statement string  `json:"statement"`
	Score     float64 `json:"score,omitempty"`
}

// Paper is one literature reference in a papers payload.
type Paper struct {
	Title  string `json:"title"`
	Year   int    `json:"year,omitempty"`
	Source string `json:"source,omitempty"`
	DOI    string `json:"doi,omitempty"`
}

// Payload is the optional rich payload of a stream event.
type Payload struct {
	Graph          *Graph       `json:"graph,omitempty"`
	TopKHypotheses []Hypothesis `json:"top_k_hypotheses,omitempty"`
	Papers         []Paper      `json:"papers,omitempty"`
}

// StreamEvent is one message on the session event subscription.
// Status and NextAction are pointers because the backend distinguishes
// null from empty. For next_action the distinction goes one level
// further: the backend writes the key on every event it emits, and an
// explicit null there concludes the workflow, whereas an event that
// omits the key entirely (a bare progress message) is not terminal.
type StreamEvent struct {
	JobID       int64          `json:"job_id"`
	JobType     string         `json:"job_type,omitempty"`
	Phase       string         `json:"phase"`
	Status      *string        `json:"status"`
	NextAction  *string        `json:"next_action"`
	Explanation string         `json:"explanation,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Metric      map[string]any `json:"metric,omitempty"`
	Payload     *Payload       `json:"payload,omitempty"`
	ErrorReason string         `json:"error_reason,omitempty"`

	// nextActionSet records whether the next_action key appeared in the
	// raw message at all, separating explicit null from an absent key.
	nextActionSet bool
}

// UnmarshalJSON decodes the event and tracks next_action key presence,
// which the terminal rule depends on.
func (e *StreamEvent) UnmarshalJSON(data []byte) error {
	type plain StreamEvent
	if err := json.Unmarshal(data, (*plain)(e)); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	_, e.nextActionSet = fields["next_action"]
	return nil
}

// ParseEvent decodes a single stream message. Events without a job id or
// phase are rejected; callers discard them without closing the stream.
func ParseEvent(data []byte) (StreamEvent, error) {
	var ev StreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return StreamEvent{}, fmt.Errorf("decoding stream event: %w", err)
	}
	if ev.JobID == 0 {
		return StreamEvent{}, fmt.Errorf("stream event missing job_id")
	}
	if ev.Phase == "" {
		return StreamEvent{}, fmt.Errorf("stream event missing phase")
	}
	return ev, nil
}

// StatusIs reports whether the event carries the given sub-status.
func (e StreamEvent) StatusIs(status string) bool {
	return e.Status != nil && *e.Status == status
}

// NextActionIs reports whether the event carries the given next action.
func (e StreamEvent) NextActionIs(action string) bool {
	return e.NextAction != nil && *e.NextAction == action
}

// Terminal reports whether the event concludes the workflow: the halt
// code, or next_action carried as an explicit null. A message without
// the next_action key is an ordinary progress event and leaves the
// subscription open.
func (e StreamEvent) Terminal() bool {
	if e.NextAction != nil {
		return *e.NextAction == NextActionHaltNoHypothesis
	}
	return e.nextActionSet
}
