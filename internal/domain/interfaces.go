package domain

import (
	"context"
	"time"
)

// AuctionStore persists auctions and their bids. Apply is the only write
// path after creation and must be atomic.
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	GetBid(ctx context.Context, bidID string) (*Bid, error)
	ListBids(ctx context.Context, auctionID string) ([]*Bid, error)
	// ListDueAuctions returns active auctions whose end time is <= now.
	ListDueAuctions(ctx context.Context, now time.Time) ([]*Auction, error)
	// Apply commits change iff the stored auction version equals
	// change.ExpectedVersion, else returns ErrVersionConflict. On success
	// change.Auction.Version is ExpectedVersion+1.
	Apply(ctx context.Context, change *Change) error
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	GetPendingJobs(ctx context.Context, before time.Time) ([]*ScheduledJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	// RecordJobFailure bumps the attempt counter and returns its new value.
	RecordJobFailure(ctx context.Context, jobID string, reason string) (int, error)
	CancelJobsForAuction(ctx context.Context, auctionID string) error
}

// AuctionLocker serializes operations on one auction. Different auctions
// must never contend on the same lock. The returned func releases it.
type AuctionLocker interface {
	Lock(ctx context.Context, auctionID string) (func(), error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Event interfaces
type EventPublisher interface {
	PublishAuctionEvent(ctx context.Context, event *AuctionEvent) error
}

type EventSubscriber interface {
	SubscribeToAuctionEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *AuctionEvent) error

// EventLogRepository stores the event stream for reporting.
type EventLogRepository interface {
	SaveEvent(ctx context.Context, event *AuctionEvent) error
	GetEvents(ctx context.Context, auctionID string) ([]*AuctionEvent, error)
}

// AuctionCounters is the read model derived from the event stream.
type AuctionCounters struct {
	AuctionID      string `json:"auction_id"`
	BidsPlaced     int64  `json:"bids_placed"`
	BidsSuperseded int64  `json:"bids_superseded"`
	BidsWithdrawn  int64  `json:"bids_withdrawn"`
	StatusChanges  int64  `json:"status_changes"`
	Finalized      bool   `json:"finalized"`
}

const (
	CounterBidsPlaced     = "bids_placed"
	CounterBidsSuperseded = "bids_superseded"
	CounterBidsWithdrawn  = "bids_withdrawn"
	CounterStatusChanges  = "status_changes"
)

type CounterStore interface {
	Increment(ctx context.Context, auctionID, field string, delta int64) error
	MarkFinalized(ctx context.Context, auctionID string) error
	GetCounters(ctx context.Context, auctionID string) (*AuctionCounters, error)
}

// IdentityDirectory resolves display names for user-facing messages.
type IdentityDirectory interface {
	DisplayName(ctx context.Context, identity Identity) (string, error)
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Scheduler interface
type AuctionScheduler interface {
	ScheduleAuctionClose(ctx context.Context, auctionID string, endTime time.Time) error
	CancelSchedule(ctx context.Context, auctionID string) error
	Start(ctx context.Context) error
	Stop() error
}
