package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"auction-core/internal/domain"
)

type SchedulerRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.ScheduledJob
}

func NewSchedulerRepository() *SchedulerRepository {
	return &SchedulerRepository{jobs: make(map[string]*domain.ScheduledJob)}
}

func (r *SchedulerRepository) CreateJob(ctx context.Context, job *domain.ScheduledJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *SchedulerRepository) GetPendingJobs(ctx context.Context, before time.Time) ([]*domain.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var jobs []*domain.ScheduledJob
	for _, job := range r.jobs {
		if job.Status == domain.JobPending && !job.RunAt.After(before) {
			copied := *job
			jobs = append(jobs, &copied)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].RunAt.Before(jobs[j].RunAt) })
	return jobs, nil
}

func (r *SchedulerRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[jobID]; ok {
		job.Status = status
	}
	return nil
}

func (r *SchedulerRepository) RecordJobFailure(ctx context.Context, jobID string, reason string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	job.Attempts++
	job.LastError = reason
	return job.Attempts, nil
}

func (r *SchedulerRepository) CancelJobsForAuction(ctx context.Context, auctionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		if job.AuctionID == auctionID && job.Status == domain.JobPending {
			job.Status = domain.JobCancelled
		}
	}
	return nil
}

// Jobs returns a snapshot of every job for the auction.
func (r *SchedulerRepository) Jobs(auctionID string) []domain.ScheduledJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	var jobs []domain.ScheduledJob
	for _, job := range r.jobs {
		if job.AuctionID == auctionID {
			jobs = append(jobs, *job)
		}
	}
	return jobs
}
