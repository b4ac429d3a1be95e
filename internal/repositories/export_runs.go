package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/shared"
)

// ExportRunRepository stores the history of bulk exports.
type ExportRunRepository struct {
	db *sql.DB
}

// NewExportRunRepository creates a new [ExportRunRepository] with the given database connection
func NewExportRunRepository(db *sql.DB) *ExportRunRepository {
	return &ExportRunRepository{db: db}
}

// Start inserts a new run with a generated id and StartedAt set to now.
func (r *ExportRunRepository) Start(ctx context.Context, run *models.ExportRun) error {
	if run.Format == "" || run.OutputDir == "" {
		return fmt.Errorf("%w: export run needs a format and output directory", shared.ErrInvalidInput)
	}

	run.ID = shared.GenerateID()
	run.StartedAt = time.Now().UTC()
	run.FinishedAt = nil

	query := `
		INSERT INTO export_runs (id, format, output_dir, total, succeeded, failed, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		run.ID, run.Format, run.OutputDir, run.Total, run.Succeeded, run.Failed, run.StartedAt,
	); err != nil {
		return fmt.Errorf("failed to insert export run: %w", err)
	}
	return nil
}

// Finish stores the final counts and stamps FinishedAt.
func (r *ExportRunRepository) Finish(ctx context.Context, run *models.ExportRun) error {
	finished := time.Now().UTC()

	query := `
		UPDATE export_runs
		SET total = ?, succeeded = ?, failed = ?, finished_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, run.Total, run.Succeeded, run.Failed, finished, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update export run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("export run not found: %s", run.ID)
	}

	run.FinishedAt = &finished
	return nil
}

// Get retrieves a run by id.
func (r *ExportRunRepository) Get(ctx context.Context, id string) (*models.ExportRun, error) {
	query := `
		SELECT id, format, output_dir, total, succeeded, failed, started_at, finished_at
		FROM export_runs WHERE id = ?
	`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("export run not found: %s", id)
	}
	return run, err
}

// Recent lists up to limit runs, newest first.
func (r *ExportRunRepository) Recent(ctx context.Context, limit int) ([]*models.ExportRun, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, format, output_dir, total, succeeded, failed, started_at, finished_at
		FROM export_runs ORDER BY started_at DESC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query export runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ExportRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.ExportRun, error) {
	var (
		run      models.ExportRun
		finished sql.NullTime
	)
	if err := s.Scan(&run.ID, &run.Format, &run.OutputDir, &run.Total, &run.Succeeded, &run.Failed, &run.StartedAt, &finished); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan export run: %w", err)
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}
