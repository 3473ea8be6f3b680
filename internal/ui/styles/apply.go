package styles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ThemeConfig mirrors config.ThemeConfig so this package stays free of
// config imports. Empty fields keep the built-in color.
type ThemeConfig struct {
	Highlight string
	Subtle    string
	Error     string
	Success   string
}

// ApplyTheme overrides the color tokens from configuration and rebuilds
// the styles derived from them.
func ApplyTheme(cfg ThemeConfig) error {
	overrides := []struct {
		name  string
		value string
		apply func(lipgloss.AdaptiveColor)
	}{
		{"highlight", cfg.Highlight, func(c lipgloss.AdaptiveColor) {
			PhaseActiveColor = c
			BorderFocusColor = c
		}},
		{"subtle", cfg.Subtle, func(c lipgloss.AdaptiveColor) {
			TextMutedColor = c
			PaperCitationColor = c
		}},
		{"error", cfg.Error, func(c lipgloss.AdaptiveColor) {
			StatusErrorColor = c
		}},
		{"success", cfg.Success, func(c lipgloss.AdaptiveColor) {
			StatusSuccessColor = c
			PhaseDoneColor = c
		}},
	}

	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		if !isValidHexColor(o.value) {
			return fmt.Errorf("invalid hex color for theme.%s: %s", o.name, o.value)
		}
		o.apply(lipgloss.AdaptiveColor{Light: o.value, Dark: o.value})
	}

	rebuildStyles()
	return nil
}

// rebuildStyles reconstructs the shared styles after their color tokens
// changed. Package-level styles capture colors at build time, so every
// style derived from an overridable token appears here.
func rebuildStyles() {
	MutedStyle = lipgloss.NewStyle().Foreground(TextMutedColor)
	ErrorStyle = lipgloss.NewStyle().Foreground(StatusErrorColor)
	SuccessStyle = lipgloss.NewStyle().Foreground(StatusSuccessColor)
	AnswerPrefix = lipgloss.NewStyle().Bold(true).Foreground(PhaseActiveColor)
	PhaseBadge = lipgloss.NewStyle().Bold(true).Foreground(PhaseActiveColor)
	PhaseDoneBadge = lipgloss.NewStyle().Bold(true).Foreground(PhaseDoneColor)
	CitationStyle = lipgloss.NewStyle().Foreground(PaperCitationColor).Italic(true)
}

// isValidHexColor accepts #RGB and #RRGGBB.
func isValidHexColor(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	hex := s[1:]
	if len(hex) != 3 && len(hex) != 6 {
		return false
	}
	for _, r := range hex {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
