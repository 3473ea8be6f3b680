// Package help contains the keybinding help overlay.
package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"lira/internal/keys"
	"lira/internal/ui/overlay"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}).
			PaddingLeft(2)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}).
			MarginTop(1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BBBBBB"}).
			Width(12)

	descStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#999999"})

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"}).
			Padding(0, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#696969"}).
			MarginTop(1)
)

// Model holds the help overlay state.
type Model struct {
	keys   keys.KeyMap
	width  int
	height int
}

// New creates a help overlay with the given keybindings.
func New(km keys.KeyMap) Model {
	return Model{keys: km}
}

// SetSize updates the viewport dimensions used for centering.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	return m
}

// Overlay renders the help box centered over a background view.
func (m Model) Overlay(background string) string {
	box := m.render()
	if background == "" {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	return overlay.Center(m.width, m.height, box, background)
}

func (m Model) render() string {
	var submitCol strings.Builder
	submitCol.WriteString(sectionStyle.Render("Submission"))
	submitCol.WriteString("\n")
	submitCol.WriteString(binding(m.keys.Submit))
	submitCol.WriteString(binding(m.keys.Attach))
	submitCol.WriteString(binding(m.keys.RemoveFile))
	submitCol.WriteString(binding(m.keys.FocusNext))
	submitCol.WriteString(binding(m.keys.FocusPrev))

	var sessionCol strings.Builder
	sessionCol.WriteString(sectionStyle.Render("Session"))
	sessionCol.WriteString("\n")
	sessionCol.WriteString(binding(m.keys.SwitchMode))
	sessionCol.WriteString(binding(m.keys.ClearSession))
	sessionCol.WriteString(binding(m.keys.Escape))
	sessionCol.WriteString(binding(m.keys.Quit))

	columns := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().MarginRight(4).Render(submitCol.String()),
		sessionCol.String(),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keybindings"),
		columns,
		footerStyle.Render("press "+m.keys.Help.Help().Key+" or esc to close"),
	)

	return boxStyle.Render(content)
}

// binding formats one key/description row.
func binding(b key.Binding) string {
	h := b.Help()
	return keyStyle.Render(h.Key) + descStyle.Render(h.Desc) + "\n"
}
