package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aknr/ocrspot/pkg/models"
)

const pgErrCodeUniqueViolation = "23505"

// IsUniqueViolation は PostgreSQL の unique_violation(23505) かどうかを判定します
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrCodeUniqueViolation
	}
	return false
}

// scanJob は1行を models.Job に変換します
func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		job       models.Job
		status    string
		claimedAt *time.Time
	)
	if err := row.Scan(&job.InputRef, &status, &job.OutputRef, &job.DownstreamLoaded, &claimedAt); err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)
	if !job.Status.Valid() {
		return nil, fmt.Errorf("unknown job status %q", status)
	}
	job.ClaimedAt = claimedAt
	return &job, nil
}
