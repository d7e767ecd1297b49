package postgres

import (
	"encoding/json"
	"time"

	"auction-core/internal/domain"

	"github.com/uptrace/bun"
)

type auctionModel struct {
	bun.BaseModel `bun:"table:auctions,alias:a"`

	ID                  string       `bun:"id,pk"`
	Title               string       `bun:"title,notnull"`
	SellerID            string       `bun:"seller_id,notnull"`
	StartsAt            time.Time    `bun:"starts_at,notnull"`
	EndsAt              time.Time    `bun:"ends_at,notnull"`
	BasePrice           domain.Money `bun:"base_price,type:numeric(20,4),notnull"`
	MinIncrementPercent int          `bun:"min_increment_percent,notnull"`
	MinIncrementAmount  domain.Money `bun:"min_increment_amount,type:numeric(20,4),notnull"`
	CurrentPrice        domain.Money `bun:"current_price,type:numeric(20,4),notnull"`
	BidCount            int          `bun:"bid_count,notnull"`
	Visibility          string       `bun:"visibility,notnull"`
	InvitedBidders      []string     `bun:"invited_bidders,type:jsonb"`
	Status              int16        `bun:"status,notnull"`
	WinningBidID        string       `bun:"winning_bid_id,notnull"`
	Version             int64        `bun:"version,notnull"`
	CreatedAt           time.Time    `bun:"created_at,notnull"`
	UpdatedAt           time.Time    `bun:"updated_at,notnull"`
}

type bidModel struct {
	bun.BaseModel `bun:"table:bids,alias:b"`

	ID            string       `bun:"id,pk"`
	AuctionID     string       `bun:"auction_id,notnull"`
	BidderID      string       `bun:"bidder_id,notnull"`
	Amount        domain.Money `bun:"amount,type:numeric(20,4),notnull"`
	PreviousPrice domain.Money `bun:"previous_price,type:numeric(20,4),notnull"`
	Status        string       `bun:"status,notnull"`
	Sequence      int64        `bun:"sequence,notnull"`
	PlacedAt      time.Time    `bun:"placed_at,notnull"`
}

type eventModel struct {
	bun.BaseModel `bun:"table:auction_events,alias:e"`

	ID         string          `bun:"id,pk"`
	AuctionID  string          `bun:"auction_id,notnull"`
	EventType  string          `bun:"event_type,notnull"`
	Payload    json.RawMessage `bun:"payload,type:jsonb,notnull"`
	OccurredAt time.Time       `bun:"occurred_at,notnull"`
	CreatedAt  time.Time       `bun:"created_at,notnull"`
}

func toAuctionModel(a *domain.Auction) *auctionModel {
	invited := make([]string, len(a.InvitedBidders))
	for i, id := range a.InvitedBidders {
		invited[i] = string(id)
	}
	return &auctionModel{
		ID:                  a.ID,
		Title:               a.Title,
		SellerID:            string(a.Seller),
		StartsAt:            a.StartsAt,
		EndsAt:              a.EndsAt,
		BasePrice:           a.BasePrice,
		MinIncrementPercent: a.MinIncrementPercent,
		MinIncrementAmount:  a.MinIncrementAmount,
		CurrentPrice:        a.CurrentPrice,
		BidCount:            a.BidCount,
		Visibility:          string(a.Visibility),
		InvitedBidders:      invited,
		Status:              int16(a.Status),
		WinningBidID:        a.WinningBidID,
		Version:             a.Version,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

func (m *auctionModel) toDomain() *domain.Auction {
	var invited []domain.Identity
	for _, id := range m.InvitedBidders {
		invited = append(invited, domain.Identity(id))
	}
	return &domain.Auction{
		ID:                  m.ID,
		Title:               m.Title,
		Seller:              domain.Identity(m.SellerID),
		StartsAt:            m.StartsAt.UTC(),
		EndsAt:              m.EndsAt.UTC(),
		BasePrice:           m.BasePrice,
		MinIncrementPercent: m.MinIncrementPercent,
		MinIncrementAmount:  m.MinIncrementAmount,
		CurrentPrice:        m.CurrentPrice,
		BidCount:            m.BidCount,
		Visibility:          domain.Visibility(m.Visibility),
		InvitedBidders:      invited,
		Status:              domain.AuctionStatus(m.Status),
		WinningBidID:        m.WinningBidID,
		Version:             m.Version,
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
}

func toBidModel(b *domain.Bid) *bidModel {
	return &bidModel{
		ID:            b.ID,
		AuctionID:     b.AuctionID,
		BidderID:      string(b.Bidder),
		Amount:        b.Amount,
		PreviousPrice: b.PreviousPrice,
		Status:        string(b.Status),
		Sequence:      b.Sequence,
		PlacedAt:      b.PlacedAt,
	}
}

func (m *bidModel) toDomain() *domain.Bid {
	return &domain.Bid{
		ID:            m.ID,
		AuctionID:     m.AuctionID,
		Bidder:        domain.Identity(m.BidderID),
		Amount:        m.Amount,
		PreviousPrice: m.PreviousPrice,
		Status:        domain.BidStatus(m.Status),
		Sequence:      m.Sequence,
		PlacedAt:      m.PlacedAt.UTC(),
	}
}
