package domain

import (
	"time"
)

// Identity is the normalized, opaque id handed to the core by the identity
// collaborator. It is never a partially populated user record.
type Identity string

type AuctionStatus int

const (
	AuctionDraft AuctionStatus = iota
	AuctionActive
	AuctionPaused
	AuctionFinalized
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionDraft:
		return "draft"
	case AuctionActive:
		return "active"
	case AuctionPaused:
		return "paused"
	case AuctionFinalized:
		return "finalized"
	case AuctionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func ParseAuctionStatus(s string) (AuctionStatus, error) {
	switch s {
	case "draft":
		return AuctionDraft, nil
	case "active":
		return AuctionActive, nil
	case "paused":
		return AuctionPaused, nil
	case "finalized":
		return AuctionFinalized, nil
	case "cancelled":
		return AuctionCancelled, nil
	}
	return 0, ErrUnknownStatus
}

func (s AuctionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AuctionStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseAuctionStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type Auction struct {
	ID                  string        `json:"id"`
	Title               string        `json:"title"`
	Seller              Identity      `json:"seller"`
	StartsAt            time.Time     `json:"starts_at"`
	EndsAt              time.Time     `json:"ends_at"`
	BasePrice           Money         `json:"base_price"`
	MinIncrementPercent int           `json:"min_increment_percent"`
	MinIncrementAmount  Money         `json:"min_increment_amount"`
	CurrentPrice        Money         `json:"current_price"`
	BidCount            int           `json:"bid_count"`
	Visibility          Visibility    `json:"visibility"`
	InvitedBidders      []Identity    `json:"invited_bidders,omitempty"`
	Status              AuctionStatus `json:"status"`
	WinningBidID        string        `json:"winning_bid_id,omitempty"`
	Version             int64         `json:"version"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// Clone returns a deep copy so callers can compute a new state without
// touching the stored one.
func (a *Auction) Clone() *Auction {
	c := *a
	if a.InvitedBidders != nil {
		c.InvitedBidders = append([]Identity(nil), a.InvitedBidders...)
	}
	return &c
}

// MinimumNextBid is the lowest amount the next bid must reach.
func (a *Auction) MinimumNextBid() Money {
	return a.CurrentPrice.Add(a.MinIncrementAmount)
}

// AdmitsBidder reports whether identity may take part under the auction's
// visibility: anyone for public auctions, seller and invitees otherwise.
func (a *Auction) AdmitsBidder(identity Identity) bool {
	if a.Visibility != VisibilityPrivate {
		return true
	}
	if identity == a.Seller {
		return true
	}
	for _, invited := range a.InvitedBidders {
		if invited == identity {
			return true
		}
	}
	return false
}

type BidStatus string

const (
	BidActive     BidStatus = "active"
	BidSuperseded BidStatus = "superseded"
	BidWithdrawn  BidStatus = "withdrawn"
	BidWinning    BidStatus = "winning"
)

type Bid struct {
	ID            string    `json:"id"`
	AuctionID     string    `json:"auction_id"`
	Bidder        Identity  `json:"bidder"`
	Amount        Money     `json:"amount"`
	PreviousPrice Money     `json:"previous_price"`
	Status        BidStatus `json:"status"`
	// Sequence is the 1-based commit position within the auction.
	Sequence int64     `json:"sequence"`
	PlacedAt time.Time `json:"placed_at"`
}

func (b *Bid) Clone() *Bid {
	c := *b
	return &c
}

// BidStatusUpdate moves one stored bid to a new status.
type BidStatusUpdate struct {
	BidID  string
	Status BidStatus
}

// Change is the unit of work committed by AuctionStore.Apply. Auction holds
// the complete new auction row; it is written only if the stored version
// still equals ExpectedVersion.
type Change struct {
	Auction          *Auction
	ExpectedVersion  int64
	NewBids          []*Bid
	BidStatusUpdates []BidStatusUpdate
}
