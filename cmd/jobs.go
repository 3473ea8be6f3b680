package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"lira/internal/config"
	"lira/internal/history"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	jobsLimit  int
	jobsFormat string
	jobsMode   string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent jobs from local history",
	Long: `List jobs recorded in the local history database, newest first.

Examples:
  # Show the last 20 jobs
  lira jobs

  # Show the last 5 discovery jobs
  lira jobs --limit 5 --mode discovery

  # Machine-readable output
  lira jobs --format yaml`,
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "Maximum number of jobs to list")
	jobsCmd.Flags().StringVarP(&jobsFormat, "format", "f", "table", "Output format: table or yaml")
	jobsCmd.Flags().StringVarP(&jobsMode, "mode", "m", "", "Filter by mode: discovery or verification")
	rootCmd.AddCommand(jobsCmd)
}

// jobListing is the YAML shape of one history row. sql.NullInt64 does not
// marshal cleanly, so the backend id becomes a plain pointer.
type jobListing struct {
	GUID         string `yaml:"guid"`
	BackendJobID *int64 `yaml:"backend_job_id,omitempty"`
	Mode         string `yaml:"mode"`
	Summary      string `yaml:"summary"`
	Answer       string `yaml:"answer,omitempty"`
	Outcome      string `yaml:"outcome,omitempty"`
	CreatedAt    string `yaml:"created_at"`
}

func runJobs(cmd *cobra.Command, args []string) error {
	if jobsFormat != "table" && jobsFormat != "yaml" {
		return fmt.Errorf("unknown format %q (want table or yaml)", jobsFormat)
	}
	if jobsMode != "" && jobsMode != "discovery" && jobsMode != "verification" {
		return fmt.Errorf("unknown mode %q (want discovery or verification)", jobsMode)
	}

	historyPath := cfg.HistoryPath
	if historyPath == "" {
		historyPath = config.DefaultHistoryPath()
	}
	db, err := history.NewDB(historyPath)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer func() { _ = db.Close() }()

	jobs, err := db.Repository().RecentJobs(jobsLimit)
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}
	if jobsMode != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if j.Mode == jobsMode {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}

	if jobsFormat == "yaml" {
		listings := make([]jobListing, 0, len(jobs))
		for _, j := range jobs {
			l := jobListing{
				GUID:      j.GUID,
				Mode:      j.Mode,
				Summary:   j.Summary,
				Answer:    j.Answer,
				Outcome:   j.Outcome,
				CreatedAt: time.Unix(j.CreatedAt, 0).UTC().Format(time.RFC3339),
			}
			if j.BackendJobID.Valid {
				id := j.BackendJobID.Int64
				l.BackendJobID = &id
			}
			listings = append(listings, l)
		}
		return yaml.NewEncoder(os.Stdout).Encode(listings)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs recorded yet.")
		return nil
	}
	for _, j := range jobs {
		id := "-"
		if j.BackendJobID.Valid {
			id = fmt.Sprintf("%d", j.BackendJobID.Int64)
		}
		outcome := j.Outcome
		if outcome == "" {
			outcome = "pending"
		}
		when := time.Unix(j.CreatedAt, 0).Local().Format("2006-01-02 15:04")
		fmt.Printf("%s  %-4s %-12s %-13s %s\n",
			when, id, j.Mode, outcome, oneLine(j.Summary, 60))
	}
	return nil
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return s
}
