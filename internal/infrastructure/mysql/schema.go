package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is applied in order by EnsureSchema. The bids index on
// (auction_id, status, amount DESC) serves leader and close lookups.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
        id VARCHAR(64) NOT NULL PRIMARY KEY,
        title VARCHAR(255) NOT NULL DEFAULT '',
        seller_id VARCHAR(64) NOT NULL,
        starts_at DATETIME(6) NOT NULL,
        ends_at DATETIME(6) NOT NULL,
        base_price DECIMAL(20,4) NOT NULL,
        min_increment_percent INT NOT NULL,
        min_increment_amount DECIMAL(20,4) NOT NULL,
        current_price DECIMAL(20,4) NOT NULL,
        bid_count INT NOT NULL DEFAULT 0,
        visibility VARCHAR(16) NOT NULL DEFAULT 'public',
        invited_bidders JSON NULL,
        status TINYINT NOT NULL,
        winning_bid_id VARCHAR(64) NOT NULL DEFAULT '',
        version BIGINT NOT NULL,
        created_at DATETIME(6) NOT NULL,
        updated_at DATETIME(6) NOT NULL,
        INDEX idx_auctions_status_ends_at (status, ends_at)
    )`,
	`CREATE TABLE IF NOT EXISTS bids (
        id VARCHAR(64) NOT NULL PRIMARY KEY,
        auction_id VARCHAR(64) NOT NULL,
        bidder_id VARCHAR(64) NOT NULL,
        amount DECIMAL(20,4) NOT NULL,
        previous_price DECIMAL(20,4) NOT NULL,
        status VARCHAR(16) NOT NULL,
        sequence BIGINT NOT NULL,
        placed_at DATETIME(6) NOT NULL,
        INDEX idx_bids_auction_status_amount (auction_id, status, amount DESC),
        CONSTRAINT fk_bids_auction FOREIGN KEY (auction_id) REFERENCES auctions (id)
    )`,
	`CREATE TABLE IF NOT EXISTS scheduled_jobs (
        id VARCHAR(64) NOT NULL PRIMARY KEY,
        auction_id VARCHAR(64) NOT NULL,
        job_type VARCHAR(32) NOT NULL,
        run_at DATETIME(6) NOT NULL,
        status VARCHAR(16) NOT NULL,
        attempts INT NOT NULL DEFAULT 0,
        last_error TEXT NULL,
        created_at DATETIME(6) NOT NULL,
        INDEX idx_jobs_status_run_at (status, run_at),
        INDEX idx_jobs_auction (auction_id)
    )`,
	`CREATE TABLE IF NOT EXISTS auction_events (
        id VARCHAR(64) NOT NULL PRIMARY KEY,
        auction_id VARCHAR(64) NOT NULL,
        event_type VARCHAR(32) NOT NULL,
        payload JSON NOT NULL,
        occurred_at DATETIME(6) NOT NULL,
        created_at DATETIME(6) NOT NULL,
        INDEX idx_events_auction (auction_id, occurred_at)
    )`,
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
