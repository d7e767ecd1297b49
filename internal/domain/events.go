package domain

import (
	"time"
)

type EventType string

const (
	EventBidPlaced            EventType = "bid_placed"
	EventBidSuperseded        EventType = "bid_superseded"
	EventBidWithdrawn         EventType = "bid_withdrawn"
	EventAuctionStatusChanged EventType = "auction_status_changed"
	EventAuctionFinalized     EventType = "auction_finalized"
)

// AuctionEvent is published after a commit. It carries everything a
// notifier needs to render a message without querying the core again.
type AuctionEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	AuctionID string    `json:"auction_id"`
	SellerID  Identity  `json:"seller_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	BidID         string   `json:"bid_id,omitempty"`
	BidderID      Identity `json:"bidder_id,omitempty"`
	Amount        *Money   `json:"amount,omitempty"`
	PreviousPrice *Money   `json:"previous_price,omitempty"`
	Message       string   `json:"message,omitempty"`

	// BidPlaced: the leader that was just outbid.
	PreviousLeaderBidID string   `json:"previous_leader_bid_id,omitempty"`
	PreviousLeaderID    Identity `json:"previous_leader_id,omitempty"`

	// BidSuperseded: the bid that displaced this one.
	SupersededByBidID    string   `json:"superseded_by_bid_id,omitempty"`
	SupersededByBidderID Identity `json:"superseded_by_bidder_id,omitempty"`

	// AuctionStatusChanged
	FromStatus string   `json:"from_status,omitempty"`
	ToStatus   string   `json:"to_status,omitempty"`
	ActorID    Identity `json:"actor_id,omitempty"`

	// AuctionFinalized; both empty when the auction closed without bids.
	WinnerBidID string   `json:"winner_bid_id,omitempty"`
	WinnerID    Identity `json:"winner_id,omitempty"`
}
