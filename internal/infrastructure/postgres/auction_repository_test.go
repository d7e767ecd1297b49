package postgres

import (
	"context"
	"os"
	"testing"

	"auction-core/internal/config"
	"auction-core/internal/infrastructure/storetest"

	"github.com/peterldowns/testy/assert"
)

// Runs against a real server only when POSTGRES_TEST_DSN is set.
func TestAuctionRepository(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, config.PostgresConfig{DSN: dsn, MaxOpenConns: 4, MaxIdleConns: 2})
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	assert.NoError(t, db.EnsureSchema(ctx))

	storetest.Run(t, NewAuctionRepository(db.BunDB()))
	storetest.RunJobs(t, NewSchedulerRepository(db.Pool()))
}
