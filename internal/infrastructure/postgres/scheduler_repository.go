package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-core/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobsSchema = `
    CREATE TABLE IF NOT EXISTS scheduled_jobs (
        id TEXT PRIMARY KEY,
        auction_id TEXT NOT NULL,
        job_type TEXT NOT NULL,
        run_at TIMESTAMPTZ NOT NULL,
        status TEXT NOT NULL,
        attempts INT NOT NULL DEFAULT 0,
        last_error TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_jobs_status_run_at ON scheduled_jobs (status, run_at);
    CREATE INDEX IF NOT EXISTS idx_jobs_auction ON scheduled_jobs (auction_id);
`

// SchedulerRepository talks to the job table through the native pgx pool.
type SchedulerRepository struct {
	pool *pgxpool.Pool
}

func NewSchedulerRepository(pool *pgxpool.Pool) *SchedulerRepository {
	return &SchedulerRepository{pool: pool}
}

const jobColumns = `id, auction_id, job_type, run_at, status, attempts, last_error, created_at`

func (r *SchedulerRepository) CreateJob(ctx context.Context, job *domain.ScheduledJob) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO scheduled_jobs (`+jobColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.AuctionID, string(job.JobType), job.RunAt, string(job.Status),
		job.Attempts, job.LastError, job.CreatedAt)
	return err
}

func (r *SchedulerRepository) GetPendingJobs(ctx context.Context, before time.Time) ([]*domain.ScheduledJob, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM scheduled_jobs WHERE status = $1 AND run_at <= $2 ORDER BY run_at, id`,
		string(domain.JobPending), before)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, collectJob)
}

func (r *SchedulerRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE scheduled_jobs SET status = $1 WHERE id = $2`, string(status), jobID)
	return err
}

func (r *SchedulerRepository) RecordJobFailure(ctx context.Context, jobID string, reason string) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx,
		`UPDATE scheduled_jobs SET attempts = attempts + 1, last_error = $1 WHERE id = $2 RETURNING attempts`,
		reason, jobID).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	return attempts, err
}

func (r *SchedulerRepository) CancelJobsForAuction(ctx context.Context, auctionID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE scheduled_jobs SET status = $1 WHERE auction_id = $2 AND status = $3`,
		string(domain.JobCancelled), auctionID, string(domain.JobPending))
	return err
}

func collectJob(row pgx.CollectableRow) (*domain.ScheduledJob, error) {
	var job domain.ScheduledJob
	var jobType, status string
	if err := row.Scan(&job.ID, &job.AuctionID, &jobType, &job.RunAt, &status,
		&job.Attempts, &job.LastError, &job.CreatedAt); err != nil {
		return nil, err
	}
	job.JobType = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	return &job, nil
}
