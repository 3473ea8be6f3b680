// Package timeline renders the session transcript: user submissions, backend
// answers, and workflow events, in arrival order inside a scrolling viewport.
package timeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"lira/internal/log"
	"lira/internal/protocol"
	"lira/internal/ui/markdown"
	"lira/internal/ui/styles"
)

type entryKind int

const (
	kindUser entryKind = iota
	kindAnswer
	kindEvent
	kindNotice
	kindError
)

type entry struct {
	kind  entryKind
	text  string
	files []protocol.Attachment
	event *protocol.StreamEvent
}

// Model holds the timeline state.
type Model struct {
	viewport viewport.Model
	entries  []entry
	renderer *markdown.CachedRenderer
	width    int
	height   int
}

// New creates an empty timeline.
func New() Model {
	vp := viewport.New(0, 0)
	return Model{viewport: vp}
}

// SetSize resizes the viewport and re-renders all entries at the new width.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height

	r, err := markdown.NewCached(contentWidth(width), "dark")
	if err != nil {
		log.ErrorErr(log.CatUI, "creating markdown renderer", err)
		r = nil
	}
	m.renderer = r

	m.refresh()
	return m
}

// contentWidth leaves room for the prefix gutter.
func contentWidth(width int) int {
	w := width - 2
	if w < 10 {
		w = 10
	}
	return w
}

// PushUser appends the user's submission with any staged files.
func (m Model) PushUser(text string, files []protocol.Attachment) Model {
	m.entries = append(m.entries, entry{kind: kindUser, text: text, files: files})
	m.refresh()
	return m
}

// PushAnswer appends a backend answer, rendered as markdown.
func (m Model) PushAnswer(text string) Model {
	m.entries = append(m.entries, entry{kind: kindAnswer, text: text})
	m.refresh()
	return m
}

// PushEvent appends a workflow event.
func (m Model) PushEvent(ev protocol.StreamEvent) Model {
	m.entries = append(m.entries, entry{kind: kindEvent, event: &ev})
	m.refresh()
	return m
}

// PushNotice appends a muted informational line, such as stream lifecycle
// notes.
func (m Model) PushNotice(text string) Model {
	m.entries = append(m.entries, entry{kind: kindNotice, text: text})
	m.refresh()
	return m
}

// PushError appends an error line.
func (m Model) PushError(text string) Model {
	m.entries = append(m.entries, entry{kind: kindError, text: text})
	m.refresh()
	return m
}

// Clear drops every entry.
func (m Model) Clear() Model {
	m.entries = nil
	m.refresh()
	return m
}

// Len returns the number of entries.
func (m Model) Len() int {
	return len(m.entries)
}

// Update handles viewport scrolling.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the viewport.
func (m Model) View() string {
	return m.viewport.View()
}

// refresh rebuilds the viewport content and keeps the tail in view.
func (m *Model) refresh() {
	wasAtBottom := m.viewport.AtBottom()

	var blocks []string
	for _, e := range m.entries {
		blocks = append(blocks, m.renderEntry(e))
	}
	m.viewport.SetContent(strings.Join(blocks, "\n"))

	if wasAtBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderEntry(e entry) string {
	switch e.kind {
	case kindUser:
		return m.renderUser(e)
	case kindAnswer:
		return styles.AnswerPrefix.Render("◀ ") + m.renderMarkdown(e.text)
	case kindEvent:
		return m.renderEvent(*e.event)
	case kindError:
		return styles.ErrorStyle.Render("✗ " + m.wrap(e.text))
	default:
		return styles.MutedStyle.Render("· " + m.wrap(e.text))
	}
}

func (m *Model) renderUser(e entry) string {
	var b strings.Builder
	b.WriteString(styles.UserPrefix.Render("▶ "))
	b.WriteString(m.wrap(e.text))
	for _, f := range e.files {
		b.WriteString("\n")
		b.WriteString(styles.MutedStyle.Render("  📎 " + f.Name))
	}
	return b.String()
}

// renderEvent formats one workflow event: a phase badge, the optional
// status, then whatever the event carries.
func (m *Model) renderEvent(ev protocol.StreamEvent) string {
	var b strings.Builder

	badge := styles.PhaseBadge
	if ev.Terminal() {
		badge = styles.PhaseDoneBadge
	}
	b.WriteString(badge.Render(fmt.Sprintf("[%s]", ev.Phase)))
	if ev.Status != nil && *ev.Status != "" {
		b.WriteString(" " + styles.MutedStyle.Render(*ev.Status))
	}

	if ev.Explanation != "" {
		b.WriteString("\n" + m.renderMarkdown(ev.Explanation))
	}
	if ev.ErrorReason != "" {
		b.WriteString("\n" + styles.ErrorStyle.Render(m.wrap(ev.ErrorReason)))
	}
	if len(ev.Result) > 0 {
		b.WriteString("\n" + m.renderKV(ev.Result))
	}
	if len(ev.Metric) > 0 {
		b.WriteString("\n" + styles.MetricStyle.Render(m.renderKV(ev.Metric)))
	}
	if ev.Payload != nil {
		if ev.Payload.Graph != nil {
			b.WriteString("\n" + m.renderGraph(ev.Payload.Graph))
		}
		if len(ev.Payload.TopKHypotheses) > 0 {
			b.WriteString("\n" + m.renderHypotheses(ev.Payload.TopKHypotheses))
		}
		if len(ev.Payload.Papers) > 0 {
			b.WriteString("\n" + m.renderPapers(ev.Payload.Papers))
		}
	}

	return b.String()
}

// renderKV formats a result or metric map as sorted key: value lines.
func (m *Model) renderKV(kv map[string]any) string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, m.wrap(fmt.Sprintf("  %s: %v", k, kv[k])))
	}
	return strings.Join(lines, "\n")
}

const maxEdgesShown = 8

func (m *Model) renderGraph(g *protocol.Graph) string {
	var b strings.Builder
	b.WriteString(styles.MutedStyle.Render(
		fmt.Sprintf("  graph: %d nodes, %d edges", len(g.Nodes), len(g.Edges)),
	))

	labels := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		labels[n.ID] = n.Label
	}
	label := func(id string) string {
		if l, ok := labels[id]; ok && l != "" {
			return l
		}
		return id
	}

	for i, edge := range g.Edges {
		if i == maxEdgesShown {
			b.WriteString("\n" + styles.MutedStyle.Render(
				fmt.Sprintf("  … %d more", len(g.Edges)-maxEdgesShown),
			))
			break
		}
		rel := edge.Relation
		if rel == "" {
			rel = "→"
		}
		line := fmt.Sprintf("  %s —%s→ %s", label(edge.Source), rel, label(edge.Target))
		b.WriteString("\n" + m.truncateLine(line))
	}
	return b.String()
}

func (m *Model) renderHypotheses(hs []protocol.Hypothesis) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(styles.HypothesisColor).Bold(true).Render("  hypotheses"))
	for i, h := range hs {
		rank := h.Rank
		if rank == 0 {
			rank = i + 1
		}
		line := fmt.Sprintf("  %d. %s", rank, h.Statement)
		if h.Score != 0 {
			line += styles.MetricStyle.Render(fmt.Sprintf(" (%.3f)", h.Score))
		}
		b.WriteString("\n" + m.wrap(line))
	}
	return b.String()
}

func (m *Model) renderPapers(ps []protocol.Paper) string {
	var b strings.Builder
	b.WriteString(styles.MutedStyle.Render(fmt.Sprintf("  papers (%d)", len(ps))))
	for _, p := range ps {
		cite := p.Title
		if p.Year != 0 {
			cite = fmt.Sprintf("%s (%d)", cite, p.Year)
		}
		if p.Source != "" {
			cite += ", " + p.Source
		}
		b.WriteString("\n" + styles.CitationStyle.Render(m.truncateLine("  "+cite)))
	}
	return b.String()
}

func (m *Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return m.wrap(text)
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		log.ErrorErr(log.CatUI, "rendering markdown", err)
		return m.wrap(text)
	}
	return strings.TrimRight(out, "\n")
}

func (m *Model) wrap(text string) string {
	return wordwrap.String(text, contentWidth(m.width))
}

func (m *Model) truncateLine(line string) string {
	return runewidth.Truncate(line, contentWidth(m.width), "…")
}
