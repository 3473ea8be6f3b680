// Package styles contains Lip Gloss style definitions.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Semantic color names - Text hierarchy
	TextPrimaryColor     = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#CCCCCC"} // Main/primary text
	TextSecondaryColor   = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BBBBBB"} // Labels, secondary info
	TextMutedColor       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#696969"} // Hints, help text, footers
	TextPlaceholderColor = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#777777"} // Input placeholders

	// Semantic color names - Border
	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"} // Unfocused borders
	BorderFocusColor   = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"} // Focused borders

	// Semantic color names - Status
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"} // Success states
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"} // Warnings
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"} // Errors

	// Toast notification colors
	ToastBorderSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	ToastBorderErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	ToastBorderInfoColor    = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}
	ToastBorderWarnColor    = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"}

	// Workflow phase colors
	PhaseActiveColor   = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"} // Phase currently streaming
	PhaseDoneColor     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"} // Completed phases
	PhaseHaltedColor   = lipgloss.AdaptiveColor{Light: "#D20F39", Dark: "#F38BA8"} // Halted workflows
	HypothesisColor    = lipgloss.AdaptiveColor{Light: "#8839EF", Dark: "#CBA6F7"} // Hypothesis text
	EntityColor        = lipgloss.AdaptiveColor{Light: "#179299", Dark: "#94E2D5"} // Entity names
	MetricColor        = lipgloss.AdaptiveColor{Light: "#FE640B", Dark: "#FAB387"} // Scores and metrics
	PaperCitationColor = lipgloss.AdaptiveColor{Light: "#9CA0B0", Dark: "#6C7086"} // Paper references

	// Form colors
	FormInputBorderColor        = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#8C8C8C"}
	FormInputFocusedBorderColor = lipgloss.AdaptiveColor{Light: "#FFF", Dark: "#FFF"}
	FormLabelColor              = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#8C8C8C"}
	FormFocusedLabelColor       = lipgloss.AdaptiveColor{Light: "#FFF", Dark: "#FFF"}

	// Shared styles
	MutedStyle     = lipgloss.NewStyle().Foreground(TextMutedColor)
	ErrorStyle     = lipgloss.NewStyle().Foreground(StatusErrorColor)
	SuccessStyle   = lipgloss.NewStyle().Foreground(StatusSuccessColor)
	UserPrefix     = lipgloss.NewStyle().Bold(true).Foreground(EntityColor)
	AnswerPrefix   = lipgloss.NewStyle().Bold(true).Foreground(PhaseActiveColor)
	PhaseBadge     = lipgloss.NewStyle().Bold(true).Foreground(PhaseActiveColor)
	PhaseDoneBadge = lipgloss.NewStyle().Bold(true).Foreground(PhaseDoneColor)
	MetricStyle    = lipgloss.NewStyle().Foreground(MetricColor)
	CitationStyle  = lipgloss.NewStyle().Foreground(PaperCitationColor).Italic(true)
)
