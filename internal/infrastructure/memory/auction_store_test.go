package memory

import (
	"testing"

	"auction-core/internal/infrastructure/storetest"
)

func TestAuctionStore(t *testing.T) {
	storetest.Run(t, NewAuctionStore())
}

func TestSchedulerRepository(t *testing.T) {
	storetest.RunJobs(t, NewSchedulerRepository())
}
