package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/utils"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

// RunJobs exercises repo against the SchedulerRepository contract.
func RunJobs(t *testing.T, repo domain.SchedulerRepository) {
	t.Run("pending jobs are due-filtered", func(t *testing.T) { testPendingJobs(t, repo) })
	t.Run("cancel leaves finished jobs", func(t *testing.T) { testCancelJobs(t, repo) })
	t.Run("record failure counts attempts", func(t *testing.T) { testRecordFailure(t, repo) })
}

func pendingFor(t *testing.T, repo domain.SchedulerRepository, auctionID string, before time.Time) []*domain.ScheduledJob {
	t.Helper()
	jobs, err := repo.GetPendingJobs(context.Background(), before)
	assert.NoError(t, err)

	var out []*domain.ScheduledJob
	for _, job := range jobs {
		if job.AuctionID == auctionID {
			out = append(out, job)
		}
	}
	return out
}

func testPendingJobs(t *testing.T, repo domain.SchedulerRepository) {
	ctx := context.Background()
	auctionID := utils.GenerateID("auction")

	late := domain.NewCloseJob(utils.GenerateID("job"), auctionID, base.Add(2*time.Hour), base)
	early := domain.NewCloseJob(utils.GenerateID("job"), auctionID, base.Add(time.Hour), base)
	assert.NoError(t, repo.CreateJob(ctx, late))
	assert.NoError(t, repo.CreateJob(ctx, early))

	check.Equal(t, 0, len(pendingFor(t, repo, auctionID, base)))

	due := pendingFor(t, repo, auctionID, base.Add(90*time.Minute))
	assert.Equal(t, 1, len(due))
	check.Equal(t, early.ID, due[0].ID)
	check.Equal(t, domain.JobCloseAuction, due[0].JobType)

	due = pendingFor(t, repo, auctionID, base.Add(3*time.Hour))
	assert.Equal(t, 2, len(due))
	check.Equal(t, early.ID, due[0].ID)
	check.Equal(t, late.ID, due[1].ID)

	assert.NoError(t, repo.UpdateJobStatus(ctx, early.ID, domain.JobExecuted))
	due = pendingFor(t, repo, auctionID, base.Add(3*time.Hour))
	assert.Equal(t, 1, len(due))
	check.Equal(t, late.ID, due[0].ID)
}

func testCancelJobs(t *testing.T, repo domain.SchedulerRepository) {
	ctx := context.Background()
	auctionID := utils.GenerateID("auction")

	done := domain.NewCloseJob(utils.GenerateID("job"), auctionID, base, base)
	open := domain.NewCloseJob(utils.GenerateID("job"), auctionID, base, base)
	assert.NoError(t, repo.CreateJob(ctx, done))
	assert.NoError(t, repo.CreateJob(ctx, open))
	assert.NoError(t, repo.UpdateJobStatus(ctx, done.ID, domain.JobExecuted))

	assert.NoError(t, repo.CancelJobsForAuction(ctx, auctionID))
	check.Equal(t, 0, len(pendingFor(t, repo, auctionID, base.Add(time.Hour))))
}

func testRecordFailure(t *testing.T, repo domain.SchedulerRepository) {
	ctx := context.Background()
	auctionID := utils.GenerateID("auction")

	job := domain.NewCloseJob(utils.GenerateID("job"), auctionID, base, base)
	assert.NoError(t, repo.CreateJob(ctx, job))

	attempts, err := repo.RecordJobFailure(ctx, job.ID, "connection reset")
	assert.NoError(t, err)
	check.Equal(t, 1, attempts)
	attempts, err = repo.RecordJobFailure(ctx, job.ID, "timeout")
	assert.NoError(t, err)
	check.Equal(t, 2, attempts)

	due := pendingFor(t, repo, auctionID, base)
	assert.Equal(t, 1, len(due))
	check.Equal(t, 2, due[0].Attempts)
	check.Equal(t, "timeout", due[0].LastError)

	_, err = repo.RecordJobFailure(ctx, utils.GenerateID("job"), "boom")
	check.True(t, errors.Is(err, domain.ErrNotFound))
}
