package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-core/internal/domain"
)

const jobColumns = `id, auction_id, job_type, run_at, status, attempts, last_error, created_at`

// MySQLSchedulerRepository persists close jobs so a restarted or newly
// elected leader picks up where the previous one stopped.
type MySQLSchedulerRepository struct {
	db *sql.DB
}

func NewMySQLSchedulerRepository(db *sql.DB) *MySQLSchedulerRepository {
	return &MySQLSchedulerRepository{db: db}
}

func (r *MySQLSchedulerRepository) CreateJob(ctx context.Context, job *domain.ScheduledJob) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.AuctionID, string(job.JobType), job.RunAt.UTC(),
		string(job.Status), job.Attempts, nullString(job.LastError), job.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// GetPendingJobs returns pending jobs due at or before the given time,
// oldest first.
func (r *MySQLSchedulerRepository) GetPendingJobs(ctx context.Context, before time.Time) ([]*domain.ScheduledJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM scheduled_jobs WHERE status = ? AND run_at <= ? ORDER BY run_at, id`,
		string(domain.JobPending), before.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *MySQLSchedulerRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE scheduled_jobs SET status = ? WHERE id = ?`, string(status), jobID)
	return err
}

func (r *MySQLSchedulerRepository) RecordJobFailure(ctx context.Context, jobID string, reason string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var attempts int
	err = tx.QueryRowContext(ctx, `SELECT attempts FROM scheduled_jobs WHERE id = ? FOR UPDATE`, jobID).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}

	attempts++
	if _, err := tx.ExecContext(ctx,
		`UPDATE scheduled_jobs SET attempts = ?, last_error = ? WHERE id = ?`,
		attempts, reason, jobID); err != nil {
		return 0, err
	}
	return attempts, tx.Commit()
}

func (r *MySQLSchedulerRepository) CancelJobsForAuction(ctx context.Context, auctionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET status = ? WHERE auction_id = ? AND status = ?`,
		string(domain.JobCancelled), auctionID, string(domain.JobPending))
	return err
}

func scanJob(row scanner) (*domain.ScheduledJob, error) {
	var (
		job       domain.ScheduledJob
		jobType   string
		status    string
		lastError sql.NullString
	)
	if err := row.Scan(&job.ID, &job.AuctionID, &jobType, &job.RunAt, &status,
		&job.Attempts, &lastError, &job.CreatedAt); err != nil {
		return nil, err
	}
	job.JobType = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	job.LastError = lastError.String
	return &job, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
