package domain

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func bid(id string, seq int64, bidder Identity, amount int64, status BidStatus, at time.Time) *Bid {
	return &Bid{
		ID:        id,
		AuctionID: "auction_1",
		Bidder:    bidder,
		Amount:    NewMoney(amount),
		Status:    status,
		Sequence:  seq,
		PlacedAt:  at,
	}
}

func TestLedger_OrdersByCommitSequence(t *testing.T) {
	l := NewLedger([]*Bid{
		bid("b3", 3, "carol", 1150, BidActive, epoch),
		bid("b1", 1, "alice", 1050, BidSuperseded, epoch),
		bid("b2", 2, "bob", 1100, BidSuperseded, epoch),
	})

	assert.Equal(t, 3, l.Len())
	check.Equal(t, "b1", l.Bids()[0].ID)
	check.Equal(t, "b2", l.Bids()[1].ID)
	check.Equal(t, "b3", l.Bids()[2].ID)
	check.Equal(t, "b2", l.Find("b2").ID)
	check.Nil(t, l.Find("missing"))
}

func TestLedger_Leader(t *testing.T) {
	check.Nil(t, NewLedger(nil).Leader())

	l := NewLedger([]*Bid{
		bid("b1", 1, "alice", 1050, BidActive, epoch),
		bid("b2", 2, "bob", 1200, BidWithdrawn, epoch.Add(time.Minute)),
		bid("b3", 3, "carol", 1100, BidActive, epoch.Add(2*time.Minute)),
	})
	leader := l.Leader()
	assert.NotNil(t, leader)
	check.Equal(t, "b3", leader.ID)
	check.Equal(t, 2, len(l.ActiveBids()))
}

func TestLedger_LeaderTieGoesToEarliest(t *testing.T) {
	l := NewLedger([]*Bid{
		bid("late", 2, "bob", 1100, BidActive, epoch.Add(time.Minute)),
		bid("early", 1, "alice", 1100, BidActive, epoch),
	})
	check.Equal(t, "early", l.Leader().ID)

	// same instant: commit order decides
	l = NewLedger([]*Bid{
		bid("second", 2, "bob", 1100, BidActive, epoch),
		bid("first", 1, "alice", 1100, BidActive, epoch),
	})
	check.Equal(t, "first", l.Leader().ID)
}

func TestLedger_StandingBidAndWinner(t *testing.T) {
	l := NewLedger([]*Bid{
		bid("b1", 1, "alice", 1050, BidSuperseded, epoch),
		bid("b2", 2, "bob", 1100, BidActive, epoch),
		bid("b3", 3, "alice", 1150, BidWinning, epoch),
	})

	check.Nil(t, l.StandingBidOf("alice"))
	check.Equal(t, "b2", l.StandingBidOf("bob").ID)
	check.Equal(t, "b3", l.Winner().ID)
}

func TestLedger_Statistics(t *testing.T) {
	l := NewLedger([]*Bid{
		bid("b1", 1, "alice", 1050, BidSuperseded, epoch),
		bid("b2", 2, "bob", 1100, BidSuperseded, epoch),
		bid("b3", 3, "alice", 1175, BidActive, epoch),
	})

	all := l.Statistics(BidFilter{})
	check.Equal(t, 3, all.Count)
	check.Equal(t, "1175", all.Max.String())
	check.Equal(t, "1050", all.Min.String())
	check.Equal(t, "1108.33", all.Average.String())
	check.Equal(t, 2, all.DistinctBidders)

	alice := l.Statistics(BidFilter{Bidder: "alice"})
	check.Equal(t, 2, alice.Count)
	check.Equal(t, "1112.5", alice.Average.String())
	check.Equal(t, 1, alice.DistinctBidders)

	superseded := l.Statistics(BidFilter{Statuses: []BidStatus{BidSuperseded}})
	check.Equal(t, 2, superseded.Count)
	check.Equal(t, "1100", superseded.Max.String())

	none := l.Statistics(BidFilter{Bidder: "nobody"})
	check.Equal(t, 0, none.Count)
	check.True(t, none.Average.IsZero())
	check.Equal(t, 0, none.DistinctBidders)
}
