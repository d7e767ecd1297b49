package domain

import "time"

// ScheduledJob is a durable reminder to close an auction at RunAt.
type ScheduledJob struct {
	ID        string
	AuctionID string
	JobType   JobType
	RunAt     time.Time
	Status    JobStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
}

type JobType string

const JobCloseAuction JobType = "close_auction"

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

// MaxJobAttempts bounds how often a close job is retried after
// infrastructure errors. Auctions of failed jobs are still picked up by the
// due-auction sweep.
const MaxJobAttempts = 10

func NewCloseJob(id, auctionID string, runAt, now time.Time) *ScheduledJob {
	return &ScheduledJob{
		ID:        id,
		AuctionID: auctionID,
		JobType:   JobCloseAuction,
		RunAt:     runAt,
		Status:    JobPending,
		CreatedAt: now,
	}
}
