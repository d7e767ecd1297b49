package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testAuction(t *testing.T) *Auction {
	t.Helper()
	a, err := NewAuction(NewAuctionParams{
		ID:                  "auction_1",
		Seller:              "seller",
		StartsAt:            epoch,
		EndsAt:              epoch.Add(2 * time.Hour),
		BasePrice:           NewMoney(1000),
		MinIncrementPercent: 5,
	}, epoch, time.Hour)
	assert.NoError(t, err)
	return a
}

func TestTransitionTable(t *testing.T) {
	all := []AuctionStatus{AuctionDraft, AuctionActive, AuctionPaused, AuctionFinalized, AuctionCancelled}
	allowed := map[AuctionStatus]map[AuctionStatus]bool{
		AuctionDraft:  {AuctionActive: true, AuctionCancelled: true},
		AuctionActive: {AuctionPaused: true, AuctionFinalized: true, AuctionCancelled: true},
		AuctionPaused: {AuctionActive: true, AuctionCancelled: true},
	}

	for _, from := range all {
		for _, to := range all {
			check.Equal(t, allowed[from][to], from.CanTransitionTo(to))
		}
	}

	check.True(t, AuctionFinalized.IsTerminal())
	check.True(t, AuctionCancelled.IsTerminal())
	check.False(t, AuctionPaused.IsTerminal())
}

func TestCheckTransition(t *testing.T) {
	a := testAuction(t)

	check.True(t, errors.Is(a.CheckTransition(AuctionPaused, "someone"), ErrUnauthorized))
	check.NoError(t, a.CheckTransition(AuctionPaused, "seller"))
	check.True(t, errors.Is(a.CheckTransition(AuctionDraft, "seller"), ErrInvalidTransition))

	a.Status = AuctionFinalized
	check.True(t, errors.Is(a.CheckTransition(AuctionActive, "seller"), ErrInvalidTransition))
}

func TestCheckAdmissible(t *testing.T) {
	a := testAuction(t)

	check.NoError(t, a.CheckAdmissible(epoch))
	check.NoError(t, a.CheckAdmissible(epoch.Add(time.Hour)))
	check.True(t, errors.Is(a.CheckAdmissible(epoch.Add(-time.Second)), ErrAuctionNotStarted))
	// the end is exclusive
	check.True(t, errors.Is(a.CheckAdmissible(epoch.Add(2*time.Hour)), ErrAuctionEnded))

	a.Status = AuctionPaused
	check.True(t, errors.Is(a.CheckAdmissible(epoch.Add(time.Hour)), ErrAuctionNotActive))

	// an expired auction reports ended regardless of status
	for _, s := range []AuctionStatus{AuctionDraft, AuctionPaused, AuctionCancelled, AuctionFinalized} {
		a.Status = s
		check.True(t, errors.Is(a.CheckAdmissible(epoch.Add(3*time.Hour)), ErrAuctionEnded))
	}
}

func TestIsDueForClose(t *testing.T) {
	a := testAuction(t)

	check.False(t, a.IsDueForClose(epoch.Add(time.Hour)))
	check.True(t, a.IsDueForClose(epoch.Add(2*time.Hour)))

	a.Status = AuctionPaused
	check.False(t, a.IsDueForClose(epoch.Add(3*time.Hour)))
}

func TestNewAuction(t *testing.T) {
	a := testAuction(t)
	check.Equal(t, AuctionActive, a.Status)
	check.Equal(t, "50", a.MinIncrementAmount.String())
	check.True(t, a.CurrentPrice.Equal(a.BasePrice))
	check.Equal(t, VisibilityPublic, a.Visibility)
	check.Equal(t, int64(1), a.Version)
	check.Equal(t, "1050", a.MinimumNextBid().String())

	future, err := NewAuction(NewAuctionParams{
		Seller:              "seller",
		StartsAt:            epoch.Add(time.Hour),
		EndsAt:              epoch.Add(3 * time.Hour),
		BasePrice:           NewMoney(10),
		MinIncrementPercent: 10,
	}, epoch, time.Hour)
	assert.NoError(t, err)
	check.Equal(t, AuctionDraft, future.Status)
}

func TestNewAuction_Invalid(t *testing.T) {
	valid := NewAuctionParams{
		Seller:              "seller",
		StartsAt:            epoch,
		EndsAt:              epoch.Add(time.Hour),
		BasePrice:           NewMoney(100),
		MinIncrementPercent: 5,
	}

	tests := map[string]func(p *NewAuctionParams){
		"missing seller":     func(p *NewAuctionParams) { p.Seller = "" },
		"zero base price":    func(p *NewAuctionParams) { p.BasePrice = NewMoney(0) },
		"negative price":     func(p *NewAuctionParams) { p.BasePrice = NewMoney(-5) },
		"percent too low":    func(p *NewAuctionParams) { p.MinIncrementPercent = 0 },
		"percent too high":   func(p *NewAuctionParams) { p.MinIncrementPercent = 51 },
		"ends before start":  func(p *NewAuctionParams) { p.EndsAt = p.StartsAt.Add(-time.Hour) },
		"too short":          func(p *NewAuctionParams) { p.EndsAt = p.StartsAt.Add(59 * time.Minute) },
		"unknown visibility": func(p *NewAuctionParams) { p.Visibility = "secret" },
	}

	for name, mutate := range tests {
		p := valid
		mutate(&p)
		_, err := NewAuction(p, epoch, time.Hour)
		if !errors.Is(err, ErrInvalidAuction) {
			t.Errorf("case %q: expected ErrInvalidAuction, got %v", name, err)
		}
	}

	_, err := NewAuction(valid, epoch, time.Hour)
	check.NoError(t, err)
}

func TestAdmitsBidder(t *testing.T) {
	a := testAuction(t)
	check.True(t, a.AdmitsBidder("anyone"))

	a.Visibility = VisibilityPrivate
	a.InvitedBidders = []Identity{"alice"}
	check.True(t, a.AdmitsBidder("alice"))
	check.True(t, a.AdmitsBidder("seller"))
	check.False(t, a.AdmitsBidder("bob"))
}

func TestAuctionStatus_Text(t *testing.T) {
	for _, s := range []AuctionStatus{AuctionDraft, AuctionActive, AuctionPaused, AuctionFinalized, AuctionCancelled} {
		text, err := s.MarshalText()
		assert.NoError(t, err)

		var parsed AuctionStatus
		assert.NoError(t, parsed.UnmarshalText(text))
		check.Equal(t, s, parsed)
	}

	_, err := ParseAuctionStatus("closed")
	check.True(t, errors.Is(err, ErrUnknownStatus))
}
