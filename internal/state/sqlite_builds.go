package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CreateBuild creates a new build with the next per-pipeline number.
func (s *SQLiteStore) CreateBuild(pipeline, commit string) (*Build, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	build := &Build{
		ID:        generateID(),
		Pipeline:  pipeline,
		Status:    BuildStatusRunning,
		Commit:    commit,
		StartedAt: time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRow(
		`SELECT COALESCE(MAX(number), 0) + 1 FROM builds WHERE pipeline = ?`,
		pipeline,
	).Scan(&build.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate build number: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO builds (id, number, pipeline, status, commit_hash, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		build.ID, build.Number, build.Pipeline, build.Status, build.Commit, build.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create build: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("created build",
		slog.String("id", build.ID),
		slog.Int64("number", build.Number),
		slog.String("pipeline", pipeline))

	return build, nil
}

// SetBuildCommit records the resolved source commit for a build.
func (s *SQLiteStore) SetBuildCommit(id, commit string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	result, err := s.db.Exec(`UPDATE builds SET commit_hash = ? WHERE id = ?`, commit, id)
	if err != nil {
		return fmt.Errorf("failed to set build commit: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("build not found: %s", id)
	}

	return nil
}

// CompleteBuild marks a build as completed with the given status.
func (s *SQLiteStore) CompleteBuild(id string, status BuildStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE builds SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, now, errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete build: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("build not found: %s", id)
	}

	return nil
}

const buildColumns = `id, number, pipeline, status, commit_hash, started_at, completed_at, error`

// scanBuild scans one build row from a QueryRow or Rows source.
func scanBuild(row interface{ Scan(...any) error }) (*Build, error) {
	build := &Build{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(&build.ID, &build.Number, &build.Pipeline, &build.Status,
		&build.Commit, &build.StartedAt, &completedAt, &errMsg)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		build.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		build.Error = errMsg.String
	}
	return build, nil
}

// GetBuild retrieves a build by ID.
func (s *SQLiteStore) GetBuild(id string) (*Build, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	build, err := scanBuild(s.db.QueryRow(
		`SELECT `+buildColumns+` FROM builds WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("build not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build: %w", err)
	}

	return build, nil
}

// GetBuildByNumber retrieves a build by its per-pipeline number.
func (s *SQLiteStore) GetBuildByNumber(pipeline string, number int64) (*Build, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	build, err := scanBuild(s.db.QueryRow(
		`SELECT `+buildColumns+` FROM builds WHERE pipeline = ? AND number = ?`,
		pipeline, number,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("build not found: %s #%d", pipeline, number)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build: %w", err)
	}

	return build, nil
}

// GetLatestCompletedBuild retrieves the most recent completed build for a
// pipeline. Returns nil without error when none exists; notification policy
// treats that as a first build.
func (s *SQLiteStore) GetLatestCompletedBuild(pipeline string) (*Build, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	build, err := scanBuild(s.db.QueryRow(
		`SELECT `+buildColumns+` FROM builds
		 WHERE pipeline = ? AND status != ?
		 ORDER BY number DESC LIMIT 1`,
		pipeline, BuildStatusRunning,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest build: %w", err)
	}

	return build, nil
}

// ListBuilds retrieves recent builds for a pipeline, newest first.
// An empty pipeline lists builds across all pipelines.
func (s *SQLiteStore) ListBuilds(pipeline string, limit int) ([]*Build, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + buildColumns + ` FROM builds ORDER BY started_at DESC LIMIT ?`
	args := []any{limit}
	if pipeline != "" {
		query = `SELECT ` + buildColumns + ` FROM builds WHERE pipeline = ? ORDER BY number DESC LIMIT ?`
		args = []any{pipeline, limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer rows.Close()

	var builds []*Build
	for rows.Next() {
		build, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		builds = append(builds, build)
	}

	return builds, rows.Err()
}
