package timeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lira/internal/protocol"
)

func strPtr(s string) *string { return &s }

func newSized(t *testing.T) Model {
	t.Helper()
	return New().SetSize(80, 24)
}

func TestTimeline_PushUserWithFiles(t *testing.T) {
	m := newSized(t)

	m = m.PushUser("what links kiwi to cancer", []protocol.Attachment{
		{Name: "paper.pdf", Path: "/tmp/paper.pdf"},
	})

	view := m.View()
	assert.Contains(t, view, "what links kiwi to cancer")
	assert.Contains(t, view, "paper.pdf")
	assert.Equal(t, 1, m.Len())
}

func TestTimeline_PushAnswerRendersMarkdown(t *testing.T) {
	m := newSized(t)

	m = m.PushAnswer("workflow **started**")

	assert.Contains(t, m.View(), "workflow")
	assert.Contains(t, m.View(), "started")
}

func TestTimeline_PushEventShowsPhaseAndStatus(t *testing.T) {
	m := newSized(t)

	m = m.PushEvent(protocol.StreamEvent{
		JobID:       6,
		Phase:       protocol.PhaseIngestion,
		Status:      strPtr("processing"),
		NextAction:  strPtr("continue"),
		Explanation: "parsing uploaded documents",
	})

	view := m.View()
	assert.Contains(t, view, "INGESTION")
	assert.Contains(t, view, "processing")
	assert.Contains(t, view, "parsing uploaded documents")
}

func TestTimeline_PushEventRendersGraphPayload(t *testing.T) {
	m := newSized(t)

	m = m.PushEvent(protocol.StreamEvent{
		JobID:      6,
		Phase:      protocol.PhaseGraph,
		NextAction: strPtr("continue"),
		Payload: &protocol.Payload{
			Graph: &protocol.Graph{
				Nodes: []protocol.GraphNode{
					{ID: "n1", Label: "kiwi"},
					{ID: "n2", Label: "vitamin C"},
				},
				Edges: []protocol.GraphEdge{
					{Source: "n1", Target: "n2", Relation: "contains"},
				},
			},
		},
	})

	view := m.View()
	assert.Contains(t, view, "2 nodes, 1 edges")
	assert.Contains(t, view, "kiwi")
	assert.Contains(t, view, "contains")
}

func TestTimeline_PushEventRendersHypothesesAndPapers(t *testing.T) {
	m := newSized(t)

	m = m.PushEvent(protocol.StreamEvent{
		JobID:      6,
		Phase:      protocol.PhasePathReasoning,
		NextAction: strPtr("continue"),
		Payload: &protocol.Payload{
			TopKHypotheses: []protocol.Hypothesis{
				{Rank: 1, Statement: "kiwi intake reduces oxidative DNA damage", Score: 0.91},
			},
			Papers: []protocol.Paper{
				{Title: "Kiwifruit and DNA repair", Year: 2019, Source: "PubMed"},
			},
		},
	})

	view := m.View()
	assert.Contains(t, view, "hypotheses")
	assert.Contains(t, view, "oxidative DNA damage")
	assert.Contains(t, view, "0.910")
	assert.Contains(t, view, "Kiwifruit and DNA repair")
	assert.Contains(t, view, "2019")
}

func TestTimeline_PushEventShowsErrorReason(t *testing.T) {
	m := newSized(t)

	m = m.PushEvent(protocol.StreamEvent{
		JobID:       6,
		Phase:       protocol.PhaseDecision,
		NextAction:  nil,
		ErrorReason: "no corpus matched the query",
	})

	assert.Contains(t, m.View(), "no corpus matched the query")
}

func TestTimeline_Clear(t *testing.T) {
	m := newSized(t)

	m = m.PushUser("hello", nil)
	m = m.PushAnswer("hi")
	require.Equal(t, 2, m.Len())

	m = m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, "", strings.TrimSpace(m.View()))
}

func TestTimeline_GraphEdgeListIsTruncated(t *testing.T) {
	m := newSized(t)

	edges := make([]protocol.GraphEdge, 20)
	for i := range edges {
		edges[i] = protocol.GraphEdge{Source: "a", Target: "b"}
	}
	m = m.PushEvent(protocol.StreamEvent{
		JobID:      6,
		Phase:      protocol.PhaseGraph,
		NextAction: strPtr("continue"),
		Payload:    &protocol.Payload{Graph: &protocol.Graph{Edges: edges}},
	})

	assert.Contains(t, m.View(), "12 more")
}
