package services

import (
	"context"
	"errors"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
	"auction-core/pkg/utils"

	"github.com/robfig/cron/v3"
)

// CronAuctionScheduler drives the eager close path. Each sweep runs only on
// the leader instance and is safe to overlap with lazy closes on reads.
type CronAuctionScheduler struct {
	cron           *cron.Cron
	spec           string
	repo           domain.SchedulerRepository
	auctionMgr     *AuctionManager
	leaderElection domain.LeaderElection
	instanceID     string
	clock          domain.Clock
	log            logger.Logger
}

func NewCronAuctionScheduler(
	spec string,
	repo domain.SchedulerRepository,
	auctionMgr *AuctionManager,
	leaderElection domain.LeaderElection,
	instanceID string,
	clock domain.Clock,
	log logger.Logger,
) *CronAuctionScheduler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &CronAuctionScheduler{
		cron:           cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:           spec,
		repo:           repo,
		auctionMgr:     auctionMgr,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		clock:          clock,
		log:            log,
	}
}

func (s *CronAuctionScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting auction scheduler", "spec", s.spec)

	_, err := s.cron.AddFunc(s.spec, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CronAuctionScheduler) Stop() error {
	s.log.Info("Stopping auction scheduler")
	<-s.cron.Stop().Done()
	return nil
}

func (s *CronAuctionScheduler) ScheduleAuctionClose(ctx context.Context, auctionID string, endTime time.Time) error {
	job := domain.NewCloseJob(utils.GenerateID("job"), auctionID, endTime, s.clock.Now())
	return s.repo.CreateJob(ctx, job)
}

func (s *CronAuctionScheduler) CancelSchedule(ctx context.Context, auctionID string) error {
	return s.repo.CancelJobsForAuction(ctx, auctionID)
}

// Sweep processes due close jobs, then closes any remaining active auction
// past its end time that has no job (e.g. created while the job insert
// failed). It returns the number of auctions closed.
func (s *CronAuctionScheduler) Sweep(ctx context.Context) int {
	if s.leaderElection != nil {
		isLeader, err := s.leaderElection.IsLeader(ctx, s.instanceID)
		if err != nil {
			s.log.Error("Failed to check leadership", "error", err)
			return 0
		}
		if !isLeader {
			return 0
		}
	}

	closed := s.processPendingJobs(ctx)

	n, err := s.auctionMgr.CloseDueAuctions(ctx)
	if err != nil {
		s.log.Error("Failed to close due auctions", "error", err)
	}
	return closed + n
}

func (s *CronAuctionScheduler) processPendingJobs(ctx context.Context) int {
	jobs, err := s.repo.GetPendingJobs(ctx, s.clock.Now())
	if err != nil {
		s.log.Error("Failed to get pending jobs", "error", err)
		return 0
	}

	closed := 0
	for _, job := range jobs {
		s.log.Info("Processing job", "job_id", job.ID, "type", job.JobType, "auction_id", job.AuctionID)

		if job.JobType != domain.JobCloseAuction {
			s.log.Warn("Skipping unknown job type", "job_id", job.ID, "type", job.JobType)
			continue
		}

		auction, err := s.auctionMgr.CloseAuction(ctx, job.AuctionID)
		switch {
		case err == nil:
			if auction.Status == domain.AuctionFinalized {
				closed++
			}
		case errors.Is(err, domain.ErrAuctionNotEnded):
			// Not due yet by the auction's own clock; retry next sweep.
			continue
		case domain.ErrorKind(err) == domain.KindValidation, errors.Is(err, domain.ErrNotFound):
			// Paused, cancelled or gone: nothing left for this job to do.
			s.log.Info("Dropping close job", "job_id", job.ID, "auction_id", job.AuctionID, "reason", err)
			if err := s.repo.UpdateJobStatus(ctx, job.ID, domain.JobCancelled); err != nil {
				s.log.Error("Failed to update job status", "job_id", job.ID, "error", err)
			}
			continue
		default:
			s.recordFailure(ctx, job, err)
			continue
		}

		if err := s.repo.UpdateJobStatus(ctx, job.ID, domain.JobExecuted); err != nil {
			s.log.Error("Failed to update job status", "job_id", job.ID, "error", err)
		}
	}
	return closed
}

// recordFailure leaves the job pending for the next sweep until it runs out
// of attempts.
func (s *CronAuctionScheduler) recordFailure(ctx context.Context, job *domain.ScheduledJob, cause error) {
	attempts, err := s.repo.RecordJobFailure(ctx, job.ID, cause.Error())
	if err != nil {
		s.log.Error("Failed to record job failure", "job_id", job.ID, "error", err)
		return
	}
	s.log.Error("Failed to execute job", "job_id", job.ID, "attempts", attempts, "error", cause)

	if attempts < domain.MaxJobAttempts {
		return
	}
	s.log.Warn("Giving up on close job", "job_id", job.ID, "auction_id", job.AuctionID)
	if err := s.repo.UpdateJobStatus(ctx, job.ID, domain.JobFailed); err != nil {
		s.log.Error("Failed to update job status", "job_id", job.ID, "error", err)
	}
}
