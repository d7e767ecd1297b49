package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-core/internal/domain"
)

const bidColumns = `id, auction_id, bidder_id, amount, previous_price, status, sequence, placed_at`

// MySQLBidRepository reads the bids table. Writes only happen inside the
// auction repository's Apply transaction.
type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = ?`

	bid, err := scanBid(r.db.QueryRowContext(ctx, query, bidID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bid %s: %w", bidID, domain.ErrNotFound)
	}
	return bid, err
}

func (r *MySQLBidRepository) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE auction_id = ?
        ORDER BY sequence ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}

	return bids, rows.Err()
}

func (r *MySQLBidRepository) insert(ctx context.Context, tx *sql.Tx, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (` + bidColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := tx.ExecContext(ctx, query,
		bid.ID, bid.AuctionID, string(bid.Bidder), bid.Amount, bid.PreviousPrice,
		string(bid.Status), bid.Sequence, bid.PlacedAt)
	return err
}

func (r *MySQLBidRepository) updateStatus(ctx context.Context, tx *sql.Tx, auctionID string, update domain.BidStatusUpdate) error {
	var current string
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM bids WHERE id = ? AND auction_id = ? FOR UPDATE`,
		update.BidID, auctionID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("bid %s: %w", update.BidID, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if current == string(update.Status) {
		return nil
	}

	_, err = tx.ExecContext(ctx, `UPDATE bids SET status = ? WHERE id = ?`, string(update.Status), update.BidID)
	return err
}

func scanBid(row scanner) (*domain.Bid, error) {
	var bid domain.Bid
	var bidder, status string

	err := row.Scan(&bid.ID, &bid.AuctionID, &bidder, &bid.Amount, &bid.PreviousPrice,
		&status, &bid.Sequence, &bid.PlacedAt)
	if err != nil {
		return nil, err
	}

	bid.Bidder = domain.Identity(bidder)
	bid.Status = domain.BidStatus(status)
	return &bid, nil
}
