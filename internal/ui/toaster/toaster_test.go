package toaster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_ShowAndHide(t *testing.T) {
	m := New()
	assert.False(t, m.Visible())
	assert.Empty(t, m.View())

	m = m.Show("stream closed", StyleInfo)
	assert.True(t, m.Visible())
	assert.Contains(t, m.View(), "stream closed")

	m = m.Hide()
	assert.False(t, m.Visible())
	assert.Empty(t, m.View())
}

func TestModel_StylePrefixes(t *testing.T) {
	tests := []struct {
		style  Style
		prefix string
	}{
		{StyleSuccess, "✅"},
		{StyleError, "❌"},
		{StyleInfo, "ℹ️"},
		{StyleWarn, "⚠️"},
	}

	for _, tt := range tests {
		m := New().Show("message", tt.style)
		require.Contains(t, m.View(), tt.prefix)
	}
}

func TestScheduleDismiss_ProducesDismissMsg(t *testing.T) {
	cmd := ScheduleDismiss(0)
	require.NotNil(t, cmd)

	msg := cmd()
	_, ok := msg.(DismissMsg)
	assert.True(t, ok, "expected DismissMsg, got %T", msg)
}
