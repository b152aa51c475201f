package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"comicdb/internal/etl"

	"github.com/google/uuid"
)

// JobStore implements persistence for load jobs and run logs.
type JobStore struct {
	db *DB
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

const jobColumns = `id, name, source_type, source_config, transforms, collection,
	 mode, dedupe_key, trigger_type, trigger_config, enabled,
	 last_run_at, last_status, last_error, created_at, updated_at`

// ── LoadJob CRUD ───────────────────────────────────────────

func (s *JobStore) CreateJob(job *etl.LoadJob) error {
	now := time.Now()
	job.ID = uuid.New().String()
	job.CreatedAt = now
	job.UpdatedAt = now

	srcCfg, _ := json.Marshal(job.SourceCfg)
	transforms, _ := json.Marshal(job.Transforms)

	_, err := s.db.conn.Exec(
		`INSERT INTO load_jobs (id, name, source_type, source_config, transforms, collection,
		 mode, dedupe_key, trigger_type, trigger_config, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.SourceType, string(srcCfg), string(transforms),
		job.Collection, job.Mode, job.DedupeKey,
		job.TriggerType, job.TriggerConfig, job.Enabled,
		job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (s *JobStore) GetJob(id string) (*etl.LoadJob, error) {
	row := s.db.conn.QueryRow(
		`SELECT `+jobColumns+` FROM load_jobs WHERE id = ?`, id,
	)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("load job not found: %s", id)
	}
	return job, err
}

func (s *JobStore) UpdateJob(job *etl.LoadJob) error {
	job.UpdatedAt = time.Now()
	srcCfg, _ := json.Marshal(job.SourceCfg)
	transforms, _ := json.Marshal(job.Transforms)

	_, err := s.db.conn.Exec(
		`UPDATE load_jobs SET name=?, source_type=?, source_config=?, transforms=?,
		 collection=?, mode=?, dedupe_key=?, trigger_type=?, trigger_config=?,
		 enabled=?, updated_at=? WHERE id=?`,
		job.Name, job.SourceType, string(srcCfg), string(transforms),
		job.Collection, job.Mode, job.DedupeKey,
		job.TriggerType, job.TriggerConfig, job.Enabled,
		job.UpdatedAt, job.ID,
	)
	return err
}

func (s *JobStore) UpdateJobStatus(id, status, errMsg string) error {
	_, err := s.db.conn.Exec(
		`UPDATE load_jobs SET last_run_at=?, last_status=?, last_error=?, updated_at=? WHERE id=?`,
		time.Now(), status, errMsg, time.Now(), id,
	)
	return err
}

func (s *JobStore) DeleteJob(id string) error {
	// Delete run logs first.
	if _, err := s.db.conn.Exec(`DELETE FROM run_logs WHERE job_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.conn.Exec(`DELETE FROM load_jobs WHERE id = ?`, id)
	return err
}

func (s *JobStore) ListJobs() ([]etl.LoadJob, error) {
	rows, err := s.db.conn.Query(
		`SELECT ` + jobColumns + ` FROM load_jobs ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListEnabledTriggeredJobs returns jobs that are enabled with a
// schedule or file-watch trigger.
func (s *JobStore) ListEnabledTriggeredJobs() ([]etl.LoadJob, error) {
	rows, err := s.db.conn.Query(
		`SELECT ` + jobColumns + ` FROM load_jobs
		 WHERE enabled = 1 AND trigger_type IN ('schedule', 'file_watch')
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (*etl.LoadJob, error) {
	job := &etl.LoadJob{}
	var srcCfg, transforms string
	err := r.Scan(
		&job.ID, &job.Name, &job.SourceType, &srcCfg, &transforms,
		&job.Collection, &job.Mode, &job.DedupeKey,
		&job.TriggerType, &job.TriggerConfig, &job.Enabled,
		&job.LastRunAt, &job.LastStatus, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(srcCfg), &job.SourceCfg)
	json.Unmarshal([]byte(transforms), &job.Transforms)
	return job, nil
}

func collectJobs(rows *sql.Rows) ([]etl.LoadJob, error) {
	var jobs []etl.LoadJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// ── Run Logs ───────────────────────────────────────────────

func (s *JobStore) CreateRunLog(l *etl.RunLog) error {
	l.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO run_logs (id, job_id, started_at, finished_at, status, rows_read, rows_written, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.JobID, l.StartedAt, l.FinishedAt, l.Status, l.RowsRead, l.RowsWritten, l.Error,
	)
	return err
}

func (s *JobStore) ListRunLogs(jobID string, limit int) ([]etl.RunLog, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, job_id, started_at, finished_at, status, rows_read, rows_written, error
		 FROM run_logs WHERE job_id = ? ORDER BY started_at DESC LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []etl.RunLog
	for rows.Next() {
		var l etl.RunLog
		if err := rows.Scan(
			&l.ID, &l.JobID, &l.StartedAt, &l.FinishedAt,
			&l.Status, &l.RowsRead, &l.RowsWritten, &l.Error,
		); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
