package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Ledger is a read-only snapshot of one auction's bids in commit order.
// The leader is always derived from it, never cached on the auction.
type Ledger struct {
	bids []*Bid
}

func NewLedger(bids []*Bid) *Ledger {
	sorted := append([]*Bid(nil), bids...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Sequence < sorted[j].Sequence
	})
	return &Ledger{bids: sorted}
}

func (l *Ledger) Bids() []*Bid { return l.bids }

func (l *Ledger) Len() int { return len(l.bids) }

func (l *Ledger) Find(bidID string) *Bid {
	for _, b := range l.bids {
		if b.ID == bidID {
			return b
		}
	}
	return nil
}

func (l *Ledger) ActiveBids() []*Bid {
	var active []*Bid
	for _, b := range l.bids {
		if b.Status == BidActive {
			active = append(active, b)
		}
	}
	return active
}

// Leader returns the active bid with the highest amount, ties going to the
// earliest placed, or nil when no bid is active.
func (l *Ledger) Leader() *Bid {
	return highest(l.ActiveBids())
}

// Winner returns the bid marked winning by the closer, if any.
func (l *Ledger) Winner() *Bid {
	for _, b := range l.bids {
		if b.Status == BidWinning {
			return b
		}
	}
	return nil
}

// StandingBidOf returns the bidder's highest active bid.
func (l *Ledger) StandingBidOf(bidder Identity) *Bid {
	var own []*Bid
	for _, b := range l.ActiveBids() {
		if b.Bidder == bidder {
			own = append(own, b)
		}
	}
	return highest(own)
}

func highest(bids []*Bid) *Bid {
	var best *Bid
	for _, b := range bids {
		switch {
		case best == nil:
			best = b
		case b.Amount.GreaterThan(best.Amount):
			best = b
		case b.Amount.Equal(best.Amount) && earlier(b, best):
			best = b
		}
	}
	return best
}

func earlier(a, b *Bid) bool {
	if a.PlacedAt.Equal(b.PlacedAt) {
		return a.Sequence < b.Sequence
	}
	return a.PlacedAt.Before(b.PlacedAt)
}

// BidFilter narrows statistics. Zero values match everything.
type BidFilter struct {
	Bidder   Identity
	Statuses []BidStatus
}

func (f BidFilter) matches(b *Bid) bool {
	if f.Bidder != "" && b.Bidder != f.Bidder {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if b.Status == s {
			return true
		}
	}
	return false
}

type BidStatistics struct {
	Count           int   `json:"count"`
	Max             Money `json:"max"`
	Min             Money `json:"min"`
	Average         Money `json:"average"`
	DistinctBidders int   `json:"distinct_bidders"`
}

const averagePlaces = 2

func (l *Ledger) Statistics(filter BidFilter) BidStatistics {
	var stats BidStatistics
	sum := decimal.Zero
	bidders := make(map[Identity]struct{})

	for _, b := range l.bids {
		if !filter.matches(b) {
			continue
		}
		if stats.Count == 0 || b.Amount.GreaterThan(stats.Max) {
			stats.Max = b.Amount
		}
		if stats.Count == 0 || b.Amount.LessThan(stats.Min) {
			stats.Min = b.Amount
		}
		stats.Count++
		sum = sum.Add(b.Amount.Decimal())
		bidders[b.Bidder] = struct{}{}
	}

	if stats.Count > 0 {
		stats.Average = MoneyFromDecimal(sum.DivRound(decimal.NewFromInt(int64(stats.Count)), averagePlaces))
	}
	stats.DistinctBidders = len(bidders)
	return stats
}
