package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auction-core/internal/domain"

	"github.com/go-sql-driver/mysql"
)

const errDuplicateEntry = 1062

const auctionColumns = `id, title, seller_id, starts_at, ends_at, base_price, min_increment_percent,
        min_increment_amount, current_price, bid_count, visibility, invited_bidders, status,
        winning_bid_id, version, created_at, updated_at`

// MySQLAuctionRepository implements domain.AuctionStore. Apply runs in one
// transaction guarded by a conditional update on the version column.
type MySQLAuctionRepository struct {
	db   *sql.DB
	bids *MySQLBidRepository
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db, bids: NewMySQLBidRepository(db)}
}

func (r *MySQLAuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	invited, err := json.Marshal(auction.InvitedBidders)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = r.db.ExecContext(ctx, query,
		auction.ID, auction.Title, string(auction.Seller), auction.StartsAt, auction.EndsAt,
		auction.BasePrice, auction.MinIncrementPercent, auction.MinIncrementAmount,
		auction.CurrentPrice, auction.BidCount, string(auction.Visibility), invited,
		int(auction.Status), auction.WinningBidID, auction.Version,
		auction.CreatedAt, auction.UpdatedAt)

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errDuplicateEntry {
		return fmt.Errorf("auction %s already exists: %w", auction.ID, domain.ErrConflict)
	}
	return err
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`

	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrNotFound)
	}
	return auction, err
}

func (r *MySQLAuctionRepository) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	return r.bids.GetBid(ctx, bidID)
}

func (r *MySQLAuctionRepository) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	return r.bids.ListBids(ctx, auctionID)
}

func (r *MySQLAuctionRepository) ListDueAuctions(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	query := `
        SELECT ` + auctionColumns + `
        FROM auctions WHERE status = ? AND ends_at <= ?
        ORDER BY ends_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, int(domain.AuctionActive), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}

	return auctions, rows.Err()
}

func (r *MySQLAuctionRepository) Apply(ctx context.Context, change *domain.Change) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	auction := change.Auction
	query := `
        UPDATE auctions
        SET current_price = ?, bid_count = ?, status = ?, winning_bid_id = ?,
            version = ?, updated_at = ?
        WHERE id = ? AND version = ?
    `
	res, err := tx.ExecContext(ctx, query,
		auction.CurrentPrice, auction.BidCount, int(auction.Status), auction.WinningBidID,
		change.ExpectedVersion+1, auction.UpdatedAt,
		auction.ID, change.ExpectedVersion)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return r.missingOrConflict(ctx, tx, auction.ID)
	}

	for _, update := range change.BidStatusUpdates {
		if err := r.bids.updateStatus(ctx, tx, auction.ID, update); err != nil {
			return err
		}
	}
	for _, bid := range change.NewBids {
		if err := r.bids.insert(ctx, tx, bid); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	auction.Version = change.ExpectedVersion + 1
	return nil
}

func (r *MySQLAuctionRepository) missingOrConflict(ctx context.Context, tx *sql.Tx, auctionID string) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM auctions WHERE id = ?`, auctionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("auction %s: %w", auctionID, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return domain.ErrVersionConflict
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row scanner) (*domain.Auction, error) {
	var auction domain.Auction
	var seller, visibility string
	var invited []byte
	var status int

	err := row.Scan(
		&auction.ID, &auction.Title, &seller, &auction.StartsAt, &auction.EndsAt,
		&auction.BasePrice, &auction.MinIncrementPercent, &auction.MinIncrementAmount,
		&auction.CurrentPrice, &auction.BidCount, &visibility, &invited, &status,
		&auction.WinningBidID, &auction.Version, &auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}

	auction.Seller = domain.Identity(seller)
	auction.Visibility = domain.Visibility(visibility)
	auction.Status = domain.AuctionStatus(status)
	if len(invited) > 0 {
		if err := json.Unmarshal(invited, &auction.InvitedBidders); err != nil {
			return nil, fmt.Errorf("decode invited bidders of %s: %w", auction.ID, err)
		}
	}
	return &auction, nil
}
