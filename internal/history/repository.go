package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobNotFoundError is returned when a job with the given GUID does not exist.
type JobNotFoundError struct {
	GUID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job not found: %s", e.GUID)
}

const jobColumns = `id, guid, backend_job_id, mode, summary, answer, outcome, created_at, updated_at`

// Repository persists job and message records.
type Repository struct {
	db *sql.DB
}

func newRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanJob(scanner interface{ Scan(...any) error }) (*JobRecord, error) {
	var rec JobRecord
	err := scanner.Scan(
		&rec.ID, &rec.GUID, &rec.BackendJobID, &rec.Mode, &rec.Summary,
		&rec.Answer, &rec.Outcome, &rec.CreatedAt, &rec.UpdatedAt,
	)
	return &rec, err
}

// CreateJob inserts a new job row and returns it with GUID and ID assigned.
// Summary is the user's submission text, truncated by the caller if needed.
func (r *Repository) CreateJob(mode, summary string) (*JobRecord, error) {
	now := time.Now().Unix()
	rec := &JobRecord{
		GUID:      uuid.NewString(),
		Mode:      mode,
		Summary:   summary,
		CreatedAt: now,
		UpdatedAt: now,
	}
	result, err := r.db.Exec(
		`INSERT INTO jobs (guid, backend_job_id, mode, summary, answer, outcome, created_at, updated_at)
		 VALUES (?, NULL, ?, ?, '', '', ?, ?)`,
		rec.GUID, rec.Mode, rec.Summary, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id
	return rec, nil
}

// SetBackendJobID records the backend-assigned job id once the submission
// response arrives.
func (r *Repository) SetBackendJobID(guid string, backendID int64) error {
	return r.updateJob(guid,
		`UPDATE jobs SET backend_job_id = ?, updated_at = ? WHERE guid = ?`,
		backendID, time.Now().Unix(), guid,
	)
}

// SetAnswer stores the immediate answer returned by the submission endpoint.
func (r *Repository) SetAnswer(guid, answer string) error {
	return r.updateJob(guid,
		`UPDATE jobs SET answer = ?, updated_at = ? WHERE guid = ?`,
		answer, time.Now().Unix(), guid,
	)
}

// SetOutcome records how the job's stream settled.
func (r *Repository) SetOutcome(guid, outcome string) error {
	return r.updateJob(guid,
		`UPDATE jobs SET outcome = ?, updated_at = ? WHERE guid = ?`,
		outcome, time.Now().Unix(), guid,
	)
}

func (r *Repository) updateJob(guid, query string, args ...any) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return &JobNotFoundError{GUID: guid}
	}
	return nil
}

// FindJob retrieves a job by GUID.
func (r *Repository) FindJob(guid string) (*JobRecord, error) {
	row := r.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE guid = ?`, guid)
	rec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &JobNotFoundError{GUID: guid}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return rec, nil
}

// RecentJobs returns up to limit jobs ordered newest first. A limit of zero
// or less returns all jobs.
func (r *Repository) RecentJobs(limit int) ([]*JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

// AppendMessage attaches a timeline entry to a job.
func (r *Repository) AppendMessage(jobGUID, role, content string) error {
	_, err := r.db.Exec(
		`INSERT INTO messages (job_guid, role, content, created_at) VALUES (?, ?, ?, ?)`,
		jobGUID, role, content, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// MessagesForJob returns a job's timeline entries oldest first.
func (r *Repository) MessagesForJob(jobGUID string) ([]*MessageRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, job_guid, role, content, created_at FROM messages
		 WHERE job_guid = ? ORDER BY created_at ASC, id ASC`,
		jobGUID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []*MessageRecord
	for rows.Next() {
		var m MessageRecord
		if err := rows.Scan(&m.ID, &m.JobGUID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return msgs, nil
}
