package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// generateID returns a new run identifier.
func generateID() string {
	return uuid.New().String()
}

// CreateRun records the start of an import of dataset.
func (s *SQLStore) CreateRun(ctx context.Context, dataset string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        generateID(),
		Dataset:   dataset,
		Status:    RunStatusRunning,
		StartedAt: s.now(),
	}

	s.logger.Debug("creating run", slog.String("run_id", run.ID), slog.String("dataset", dataset))

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO import_runs (id, dataset, status, started_at)
		VALUES (?, ?, ?, ?)
	`), run.ID, run.Dataset, string(run.Status), nullTime{Time: run.StartedAt, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// CompleteRun marks a run as finished with the given status and counters.
func (s *SQLStore) CompleteRun(ctx context.Context, id string, status RunStatus, stats RunStats, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	s.logger.Debug("completing run", slog.String("run_id", id), slog.String("status", string(status)))

	result, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE import_runs
		SET status = ?, completed_at = ?, error = ?,
		    rows_read = ?, rows_imported = ?, rows_skipped = ?, rows_failed = ?, rows_deleted = ?
		WHERE id = ?
	`), string(status), nullTime{Time: s.now(), Valid: true}, errMsg,
		stats.Read, stats.Imported, stats.Skipped, stats.Failed, stats.Deleted, id)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *SQLStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	query := `
		SELECT id, dataset, status, started_at, completed_at, error,
		       rows_read, rows_imported, rows_skipped, rows_failed, rows_deleted
		FROM import_runs
		ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		var (
			run                Run
			status             string
			started, completed nullTime
		)
		if err := rows.Scan(&run.ID, &run.Dataset, &status, &started, &completed, &run.Error,
			&run.Stats.Read, &run.Stats.Imported, &run.Stats.Skipped, &run.Stats.Failed, &run.Stats.Deleted); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Status = RunStatus(status)
		run.StartedAt = started.Time
		if completed.Valid {
			t := completed.Time
			run.CompletedAt = &t
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

var _ RunLedger = (*SQLStore)(nil)
