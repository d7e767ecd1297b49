package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	ErrAuctionNotActive  = errors.New("auction is not active")
	ErrAuctionNotStarted = errors.New("auction has not started")
	ErrAuctionEnded      = errors.New("auction has ended")
	ErrAuctionNotEnded   = errors.New("auction has not reached its end time")

	ErrSelfBidForbidden = errors.New("seller cannot bid on own auction")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("only the seller may change the auction status")

	ErrBidTooLow    = errors.New("bid is below the minimum required amount")
	ErrRedundantBid = errors.New("bid does not exceed the bidder's own standing bid")

	ErrNotWithdrawable          = errors.New("bid is not active")
	ErrCannotWithdrawLeadingBid = errors.New("the leading bid cannot be withdrawn")
	ErrWithdrawalWindowExpired  = errors.New("withdrawal window has expired")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown status")
	ErrInvalidAuction    = errors.New("invalid auction")
	ErrInvalidAmount     = errors.New("invalid amount")

	// ErrVersionConflict is returned by stores when the auction row changed
	// between read and write. Services retry it; callers see ErrConflict.
	ErrVersionConflict = errors.New("auction version conflict")
	ErrConflict        = errors.New("too much contention on auction, try again")
)

// BidTooLowError carries the minimum amount a retry must reach.
type BidTooLowError struct {
	MinRequired Money
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: minimum required is %s", ErrBidTooLow, e.MinRequired)
}

func (e *BidTooLowError) Unwrap() error { return ErrBidTooLow }

type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrSelfBidForbidden, KindAuthorization},
	{ErrForbidden, KindAuthorization},
	{ErrUnauthorized, KindAuthorization},
	{ErrConflict, KindConflict},
	{ErrVersionConflict, KindConflict},
	{ErrAuctionNotActive, KindValidation},
	{ErrAuctionNotStarted, KindValidation},
	{ErrAuctionEnded, KindValidation},
	{ErrAuctionNotEnded, KindValidation},
	{ErrBidTooLow, KindValidation},
	{ErrRedundantBid, KindValidation},
	{ErrNotWithdrawable, KindValidation},
	{ErrCannotWithdrawLeadingBid, KindValidation},
	{ErrWithdrawalWindowExpired, KindValidation},
	{ErrInvalidTransition, KindValidation},
	{ErrUnknownStatus, KindValidation},
	{ErrInvalidAuction, KindValidation},
	{ErrInvalidAmount, KindValidation},
}

// ErrorKind classifies err. Only KindConflict is ever retried, and only
// inside the services package.
func ErrorKind(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
