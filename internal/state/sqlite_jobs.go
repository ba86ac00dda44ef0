package state

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateJob records a new running job for a build.
func (s *SQLiteStore) CreateJob(buildID, key, version, envRow, logPath string) (*Job, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	job := &Job{
		ID:        generateID(),
		BuildID:   buildID,
		Key:       key,
		Version:   version,
		EnvRow:    envRow,
		Status:    JobStatusRunning,
		LogPath:   logPath,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO jobs (id, build_id, job_key, version, env_row, status, log_path, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.BuildID, job.Key, job.Version, job.EnvRow, job.Status, job.LogPath, job.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

// CompleteJob marks a job as completed with the given status.
func (s *SQLiteStore) CompleteJob(id string, status JobStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE jobs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, now, errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("job not found: %s", id)
	}

	return nil
}

// GetJobsForBuild retrieves all jobs for a build in start order.
func (s *SQLiteStore) GetJobsForBuild(buildID string) ([]*Job, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, build_id, job_key, version, env_row, status, log_path, started_at, completed_at, error
		 FROM jobs WHERE build_id = ? ORDER BY started_at, job_key`,
		buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job := &Job{}
		var completedAt sql.NullTime
		var errMsg sql.NullString

		err := rows.Scan(&job.ID, &job.BuildID, &job.Key, &job.Version, &job.EnvRow,
			&job.Status, &job.LogPath, &job.StartedAt, &completedAt, &errMsg)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}

		if completedAt.Valid {
			job.CompletedAt = &completedAt.Time
		}
		if errMsg.Valid {
			job.Error = errMsg.String
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// RecordStep records one executed command. Sequence is the step's position
// within its job across all stages.
func (s *SQLiteStore) RecordStep(step *Step) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if step.ID == "" {
		step.ID = generateID()
	}
	if step.StartedAt.IsZero() {
		step.StartedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO steps (id, job_id, stage, sequence, command, exit_code, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID, step.JobID, step.Stage, step.Sequence, step.Command, step.ExitCode, step.DurationMS, step.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}

	return nil
}

// GetStepsForJob retrieves all executed steps for a job in sequence order.
func (s *SQLiteStore) GetStepsForJob(jobID string) ([]*Step, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, job_id, stage, sequence, command, exit_code, duration_ms, started_at
		 FROM steps WHERE job_id = ? ORDER BY sequence`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		step := &Step{}
		err := rows.Scan(&step.ID, &step.JobID, &step.Stage, &step.Sequence,
			&step.Command, &step.ExitCode, &step.DurationMS, &step.StartedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

// RecordNotification records a notification decision for a build.
func (s *SQLiteStore) RecordNotification(n *Notification) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if n.ID == "" {
		n.ID = generateID()
	}
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO notifications (id, build_id, channel, recipient, reason, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.BuildID, n.Channel, n.Recipient, n.Reason, n.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}

	return nil
}

// GetNotificationsForBuild retrieves notifications recorded for a build.
func (s *SQLiteStore) GetNotificationsForBuild(buildID string) ([]*Notification, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, build_id, channel, recipient, reason, sent_at
		 FROM notifications WHERE build_id = ? ORDER BY sent_at`,
		buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n := &Notification{}
		err := rows.Scan(&n.ID, &n.BuildID, &n.Channel, &n.Recipient, &n.Reason, &n.SentAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}
