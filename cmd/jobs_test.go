package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOneLine_CollapsesWhitespaceAndTruncates(t *testing.T) {
	require.Equal(t, "kiwi and cancer", oneLine("kiwi\n  and\tcancer", 60))

	long := "does dietary fibre intake correlate with colorectal cancer risk"
	got := oneLine(long, 20)
	require.Len(t, []rune(got), 20)
	require.Equal(t, "…", string([]rune(got)[19]))
}

func TestRunJobs_RejectsUnknownFlags(t *testing.T) {
	jobsFormat = "json"
	defer func() { jobsFormat = "table"; jobsMode = "" }()
	err := runJobs(jobsCmd, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown format")

	jobsFormat = "table"
	jobsMode = "triage"
	err = runJobs(jobsCmd, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown mode")
}
