package handlers

import (
	"encoding/json"
	"net/http"

	"auction-core/internal/domain"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	"github.com/gorilla/mux"
)

type BidHandler struct {
	bidService *services.BidService
	log        logger.Logger
}

type PlaceBidRequest struct {
	Amount  domain.Money `json:"amount"`
	Message string       `json:"message"`
}

func NewBidHandler(bidService *services.BidService, log logger.Logger) *BidHandler {
	return &BidHandler{
		bidService: bidService,
		log:        log,
	}
}

func (h *BidHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auctions/{id}/bids", h.PlaceBid).Methods(http.MethodPost)
	api.HandleFunc("/bids/{id}", h.WithdrawBid).Methods(http.MethodDelete)
}

func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	bidder := domain.Identity(r.Header.Get(HeaderUserID))
	if bidder == "" {
		writeJSON(w, http.StatusUnauthorized, badRequest("missing "+HeaderUserID+" header"))
		return
	}

	var req PlaceBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, badRequest("invalid request body"))
		return
	}

	bid, err := h.bidService.PlaceBid(r.Context(), mux.Vars(r)["id"], bidder, req.Amount, req.Message)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

func (h *BidHandler) WithdrawBid(w http.ResponseWriter, r *http.Request) {
	actor := domain.Identity(r.Header.Get(HeaderUserID))
	if actor == "" {
		writeJSON(w, http.StatusUnauthorized, badRequest("missing "+HeaderUserID+" header"))
		return
	}

	if err := h.bidService.WithdrawBid(r.Context(), mux.Vars(r)["id"], actor); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BidHandler) fail(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
