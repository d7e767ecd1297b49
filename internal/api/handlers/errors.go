package handlers

import (
	"errors"
	"net/http"

	"auction-core/internal/domain"
)

// HeaderUserID carries the caller's identity, set by the gateway after
// authentication.
const HeaderUserID = "X-User-ID"

type ErrorResponse struct {
	Error       string `json:"error"`
	Kind        string `json:"kind"`
	MinRequired string `json:"min_required,omitempty"`
}

// errorResponse maps a service error to its HTTP status and body.
func errorResponse(err error) (int, ErrorResponse) {
	kind := domain.ErrorKind(err)
	body := ErrorResponse{Error: err.Error(), Kind: string(kind)}

	var tooLow *domain.BidTooLowError
	if errors.As(err, &tooLow) {
		body.MinRequired = tooLow.MinRequired.String()
	}

	switch kind {
	case domain.KindValidation:
		return http.StatusUnprocessableEntity, body
	case domain.KindAuthorization:
		return http.StatusForbidden, body
	case domain.KindNotFound:
		return http.StatusNotFound, body
	case domain.KindConflict:
		return http.StatusConflict, body
	}

	// Don't leak store details to clients.
	body.Error = "internal error"
	return http.StatusInternalServerError, body
}

func badRequest(msg string) ErrorResponse {
	return ErrorResponse{Error: msg, Kind: string(domain.KindValidation)}
}

func parseBidStatuses(values []string) ([]domain.BidStatus, error) {
	var statuses []domain.BidStatus
	for _, v := range values {
		switch s := domain.BidStatus(v); s {
		case domain.BidActive, domain.BidSuperseded, domain.BidWithdrawn, domain.BidWinning:
			statuses = append(statuses, s)
		default:
			return nil, domain.ErrUnknownStatus
		}
	}
	return statuses, nil
}
