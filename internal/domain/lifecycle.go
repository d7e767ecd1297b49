package domain

import (
	"fmt"
	"time"
)

var allowedTransitions = map[AuctionStatus][]AuctionStatus{
	AuctionDraft:     {AuctionActive, AuctionCancelled},
	AuctionActive:    {AuctionPaused, AuctionFinalized, AuctionCancelled},
	AuctionPaused:    {AuctionActive, AuctionCancelled},
	AuctionFinalized: nil,
	AuctionCancelled: nil,
}

func (s AuctionStatus) CanTransitionTo(target AuctionStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionFinalized || s == AuctionCancelled
}

// CheckTransition validates a seller-initiated status change.
func (a *Auction) CheckTransition(target AuctionStatus, actor Identity) error {
	if actor != a.Seller {
		return ErrUnauthorized
	}
	if !a.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, target)
	}
	return nil
}

// CheckAdmissible reports why the auction cannot take a bid at now, or nil
// when it is bid-admissible: status active and now in [StartsAt, EndsAt).
// The window is checked before the status so that an expired auction always
// reports ErrAuctionEnded.
func (a *Auction) CheckAdmissible(now time.Time) error {
	if !now.Before(a.EndsAt) {
		return ErrAuctionEnded
	}
	if now.Before(a.StartsAt) {
		return ErrAuctionNotStarted
	}
	if a.Status != AuctionActive {
		return ErrAuctionNotActive
	}
	return nil
}

// IsDueForClose reports whether the closer must finalize the auction.
func (a *Auction) IsDueForClose(now time.Time) bool {
	return a.Status == AuctionActive && !now.Before(a.EndsAt)
}

type NewAuctionParams struct {
	ID                  string
	Title               string
	Seller              Identity
	StartsAt            time.Time
	EndsAt              time.Time
	BasePrice           Money
	MinIncrementPercent int
	Visibility          Visibility
	InvitedBidders      []Identity
}

const (
	MinIncrementPercent = 1
	MaxIncrementPercent = 50
)

// NewAuction validates params and builds the initial auction state. The
// increment amount is fixed here from the base price and never rescaled.
func NewAuction(p NewAuctionParams, now time.Time, minDuration time.Duration) (*Auction, error) {
	if p.Seller == "" {
		return nil, fmt.Errorf("%w: seller is required", ErrInvalidAuction)
	}
	if !p.BasePrice.IsPositive() {
		return nil, fmt.Errorf("%w: base price must be positive", ErrInvalidAuction)
	}
	if p.MinIncrementPercent < MinIncrementPercent || p.MinIncrementPercent > MaxIncrementPercent {
		return nil, fmt.Errorf("%w: min increment percent must be in [%d,%d]",
			ErrInvalidAuction, MinIncrementPercent, MaxIncrementPercent)
	}
	if !p.EndsAt.After(p.StartsAt) {
		return nil, fmt.Errorf("%w: ends_at must be after starts_at", ErrInvalidAuction)
	}
	if p.EndsAt.Sub(p.StartsAt) < minDuration {
		return nil, fmt.Errorf("%w: auction must last at least %s", ErrInvalidAuction, minDuration)
	}

	visibility := p.Visibility
	switch visibility {
	case "":
		visibility = VisibilityPublic
	case VisibilityPublic, VisibilityPrivate:
	default:
		return nil, fmt.Errorf("%w: unknown visibility %q", ErrInvalidAuction, visibility)
	}

	status := AuctionDraft
	if !p.StartsAt.After(now) {
		status = AuctionActive
	}

	return &Auction{
		ID:                  p.ID,
		Title:               p.Title,
		Seller:              p.Seller,
		StartsAt:            p.StartsAt,
		EndsAt:              p.EndsAt,
		BasePrice:           p.BasePrice,
		MinIncrementPercent: p.MinIncrementPercent,
		MinIncrementAmount:  p.BasePrice.PercentCeil(p.MinIncrementPercent),
		CurrentPrice:        p.BasePrice,
		Visibility:          visibility,
		InvitedBidders:      append([]Identity(nil), p.InvitedBidders...),
		Status:              status,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}
