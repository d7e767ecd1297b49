package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"auction-core/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// DB bundles the bun handle used by the auction store with a native pgx
// pool used for the job queue and health checks.
type DB struct {
	pool  *pgxpool.Pool
	bunDB *bun.DB
}

func Open(ctx context.Context, cfg config.PostgresConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &DB{pool: pool, bunDB: bun.NewDB(sqldb, pgdialect.New())}, nil
}

func (db *DB) Pool() *pgxpool.Pool { return db.pool }

func (db *DB) BunDB() *bun.DB { return db.bunDB }

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *DB) Close() error {
	db.pool.Close()
	return db.bunDB.Close()
}

// EnsureSchema creates the tables and the indexes the store relies on.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, model := range []interface{}{
		(*auctionModel)(nil),
		(*bidModel)(nil),
		(*eventModel)(nil),
	} {
		if _, err := db.bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	_, err := db.bunDB.NewCreateIndex().
		Model((*bidModel)(nil)).
		Index("idx_bids_auction_status_amount").
		IfNotExists().
		Column("auction_id", "status").
		ColumnExpr("amount DESC").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create bids index: %w", err)
	}

	_, err = db.bunDB.NewCreateIndex().
		Model((*auctionModel)(nil)).
		Index("idx_auctions_status_ends_at").
		IfNotExists().
		Column("status", "ends_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create auctions index: %w", err)
	}

	_, err = db.pool.Exec(ctx, jobsSchema)
	if err != nil {
		return fmt.Errorf("create scheduled_jobs: %w", err)
	}
	return nil
}
