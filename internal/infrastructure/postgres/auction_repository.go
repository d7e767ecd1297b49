package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-core/internal/domain"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// AuctionRepository implements domain.AuctionStore on bun.
type AuctionRepository struct {
	db *bun.DB
}

func NewAuctionRepository(db *bun.DB) *AuctionRepository {
	return &AuctionRepository{db: db}
}

func (r *AuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	_, err := r.db.NewInsert().Model(toAuctionModel(auction)).Exec(ctx)

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
		return fmt.Errorf("auction %s already exists: %w", auction.ID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

func (r *AuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	model := new(auctionModel)
	err := r.db.NewSelect().Model(model).Where("id = ?", auctionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return model.toDomain(), nil
}

func (r *AuctionRepository) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	model := new(bidModel)
	err := r.db.NewSelect().Model(model).Where("id = ?", bidID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bid %s: %w", bidID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return model.toDomain(), nil
}

func (r *AuctionRepository) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	var models []*bidModel
	err := r.db.NewSelect().
		Model(&models).
		Where("auction_id = ?", auctionID).
		Order("sequence ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}

	bids := make([]*domain.Bid, len(models))
	for i, m := range models {
		bids[i] = m.toDomain()
	}
	return bids, nil
}

func (r *AuctionRepository) ListDueAuctions(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	var models []*auctionModel
	err := r.db.NewSelect().
		Model(&models).
		Where("status = ?", int16(domain.AuctionActive)).
		Where("ends_at <= ?", now).
		Order("ends_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list due auctions: %w", err)
	}

	auctions := make([]*domain.Auction, len(models))
	for i, m := range models {
		auctions[i] = m.toDomain()
	}
	return auctions, nil
}

func (r *AuctionRepository) Apply(ctx context.Context, change *domain.Change) error {
	auction := change.Auction

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*auctionModel)(nil)).
			Set("current_price = ?", auction.CurrentPrice).
			Set("bid_count = ?", auction.BidCount).
			Set("status = ?", int16(auction.Status)).
			Set("winning_bid_id = ?", auction.WinningBidID).
			Set("version = ?", change.ExpectedVersion+1).
			Set("updated_at = ?", auction.UpdatedAt).
			Where("id = ?", auction.ID).
			Where("version = ?", change.ExpectedVersion).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			exists, err := tx.NewSelect().Model((*auctionModel)(nil)).Where("id = ?", auction.ID).Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("auction %s: %w", auction.ID, domain.ErrNotFound)
			}
			return domain.ErrVersionConflict
		}

		for _, update := range change.BidStatusUpdates {
			res, err := tx.NewUpdate().
				Model((*bidModel)(nil)).
				Set("status = ?", string(update.Status)).
				Where("id = ?", update.BidID).
				Where("auction_id = ?", auction.ID).
				Exec(ctx)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return fmt.Errorf("bid %s: %w", update.BidID, domain.ErrNotFound)
			}
		}

		if len(change.NewBids) > 0 {
			models := make([]*bidModel, len(change.NewBids))
			for i, b := range change.NewBids {
				models[i] = toBidModel(b)
			}
			if _, err := tx.NewInsert().Model(&models).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	auction.Version = change.ExpectedVersion + 1
	return nil
}
