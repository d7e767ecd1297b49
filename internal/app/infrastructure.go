// Package app wires configuration into stores, transports and services.
// Each cmd binary builds an Infrastructure and takes the parts it needs.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"auction-core/internal/config"
	"auction-core/internal/domain"
	"auction-core/internal/infrastructure/leader"
	"auction-core/internal/infrastructure/memory"
	"auction-core/internal/infrastructure/mysql"
	"auction-core/internal/infrastructure/postgres"
	"auction-core/internal/infrastructure/redis"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
)

type Infrastructure struct {
	Config *config.Config
	Log    logger.Logger

	Store      domain.AuctionStore
	Jobs       domain.SchedulerRepository
	EventLog   domain.EventLogRepository
	Counters   domain.CounterStore
	Publisher  domain.EventPublisher
	Subscriber domain.EventSubscriber
	Locker     domain.AuctionLocker
	Leader     domain.LeaderElection
	Directory  domain.IdentityDirectory

	closers []func() error
}

// Open connects to the backends selected by cfg. The memory driver needs
// no external service and runs single-instance.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{Config: cfg, Log: log}

	if cfg.Storage.Driver == config.StorageMemory {
		infra.openMemory()
		return infra, nil
	}

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	infra.closers = append(infra.closers, rdb.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		infra.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	switch cfg.Storage.Driver {
	case config.StorageMySQL:
		if err := infra.openMySQL(pingCtx); err != nil {
			infra.Close()
			return nil, err
		}
	case config.StoragePostgres:
		if err := infra.openPostgres(pingCtx); err != nil {
			infra.Close()
			return nil, err
		}
	default:
		infra.Close()
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	infra.Counters = redis.NewRedisCounterStore(rdb)
	infra.Publisher = redis.NewEventPublisher(rdb)
	infra.Subscriber = redis.NewRedisEventSubscriber(rdb, log)
	infra.Leader = leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	directory, err := services.NewCachedDirectory(redis.NewRedisIdentityDirectory(rdb), cfg.Bidding.DirectoryCacheSize)
	if err != nil {
		infra.Close()
		return nil, err
	}
	infra.Directory = directory

	if cfg.Storage.DistributedLock {
		infra.Locker = redis.NewRedisAuctionLocker(rdb, cfg.Storage.LockTTL)
	} else {
		infra.Locker = services.NewKeyedLocker()
	}

	return infra, nil
}

func (i *Infrastructure) openMemory() {
	recorder := memory.NewEventRecorder()
	i.Store = memory.NewAuctionStore()
	i.Jobs = memory.NewSchedulerRepository()
	i.EventLog = memory.NewEventLog()
	i.Counters = memory.NewCounterStore()
	i.Publisher = recorder
	i.Subscriber = recorder
	i.Locker = services.NewKeyedLocker()
	i.Leader = leader.StaticLeader{InstanceID: i.Config.Instance.ID}
	i.Directory = memory.Directory{}
	i.Log.Info("Using in-memory storage")
}

func (i *Infrastructure) openMySQL(ctx context.Context) error {
	cfg := i.Config.MySQL
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open MySQL: %w", err)
	}
	i.closers = append(i.closers, db.Close)

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping MySQL: %w", err)
	}
	if err := mysql.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("failed to apply MySQL schema: %w", err)
	}
	i.Log.Info("Connected to MySQL")

	i.Store = mysql.NewMySQLAuctionRepository(db)
	i.Jobs = mysql.NewMySQLSchedulerRepository(db)
	i.EventLog = mysql.NewMySQLEventLogRepository(db)
	return nil
}

func (i *Infrastructure) openPostgres(ctx context.Context) error {
	db, err := postgres.Open(ctx, i.Config.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	i.closers = append(i.closers, db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to apply Postgres schema: %w", err)
	}
	i.Log.Info("Connected to Postgres")

	i.Store = postgres.NewAuctionRepository(db.BunDB())
	i.Jobs = postgres.NewSchedulerRepository(db.Pool())
	i.EventLog = postgres.NewEventLogRepository(db.BunDB())
	return nil
}

// Services builds the auction manager, bid service and close scheduler on
// top of the opened backends.
func (i *Infrastructure) Services() (*services.AuctionManager, *services.BidService, *services.CronAuctionScheduler) {
	cfg := i.Config

	manager := services.NewAuctionManager(i.Store, i.Locker, i.Publisher, nil, nil, services.ManagerConfig{
		MaxCommitRetries:   cfg.Bidding.MaxCommitRetries,
		MinAuctionDuration: cfg.Bidding.MinAuctionDuration,
	}, i.Log.With("component", "auction_manager"))

	scheduler := services.NewCronAuctionScheduler(cfg.Scheduler.SweepSpec, i.Jobs, manager, i.Leader,
		cfg.Instance.ID, nil, i.Log.With("component", "scheduler"))
	manager.SetScheduler(scheduler)

	bids := services.NewBidService(manager, i.Directory, cfg.Bidding.WithdrawalWindow, i.Log.With("component", "bid_service"))
	return manager, bids, scheduler
}

// Close releases connections in reverse open order.
func (i *Infrastructure) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil {
			i.Log.Error("Failed to close resource", "error", err)
		}
	}
	i.closers = nil
}

// MaintainLeadership retries leader acquisition until ctx ends.
func (i *Infrastructure) MaintainLeadership(ctx context.Context, interval time.Duration) {
	instanceID := i.Config.Instance.ID
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		became, err := i.Leader.BecomeLeader(ctx, instanceID)
		if err != nil {
			i.Log.Error("Failed to attempt leadership", "error", err)
		} else if became {
			i.Log.Info("Became scheduler leader", "instance_id", instanceID)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
