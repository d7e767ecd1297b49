package handlers

import (
	"net/http"
	"strings"
	"time"

	"auction-core/internal/domain"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	"github.com/labstack/echo/v4"
)

type AuctionHandler struct {
	auctionManager *services.AuctionManager
	log            logger.Logger
}

type CreateAuctionRequest struct {
	Title               string            `json:"title"`
	StartsAt            time.Time         `json:"starts_at"`
	EndsAt              time.Time         `json:"ends_at"`
	BasePrice           domain.Money      `json:"base_price"`
	MinIncrementPercent int               `json:"min_increment_percent"`
	Visibility          domain.Visibility `json:"visibility"`
	InvitedBidders      []domain.Identity `json:"invited_bidders"`
}

type TransitionRequest struct {
	Target string `json:"target"`
}

func NewAuctionHandler(auctionManager *services.AuctionManager, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionManager: auctionManager,
		log:            log,
	}
}

// RegisterRoutes mounts the auction API under /api/v1.
func (h *AuctionHandler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1")
	api.POST("/auctions", h.CreateAuction)
	api.GET("/auctions/:id", h.GetAuction)
	api.GET("/auctions/:id/bids", h.ListBids)
	api.POST("/auctions/:id/transitions", h.TransitionAuction)
	api.POST("/auctions/:id/close", h.CloseAuction)
	api.GET("/auctions/:id/statistics", h.GetStatistics)
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	seller := domain.Identity(c.Request().Header.Get(HeaderUserID))
	if seller == "" {
		return c.JSON(http.StatusUnauthorized, badRequest("missing "+HeaderUserID+" header"))
	}

	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		h.log.Warn("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, badRequest("invalid request body"))
	}

	auction, err := h.auctionManager.CreateAuction(c.Request().Context(), services.CreateAuctionRequest{
		Title:               req.Title,
		Seller:              seller,
		StartsAt:            req.StartsAt,
		EndsAt:              req.EndsAt,
		BasePrice:           req.BasePrice,
		MinIncrementPercent: req.MinIncrementPercent,
		Visibility:          req.Visibility,
		InvitedBidders:      req.InvitedBidders,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusCreated, auction)
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auction, err := h.auctionManager.GetAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, auction)
}

func (h *AuctionHandler) ListBids(c echo.Context) error {
	bids, err := h.auctionManager.ListBids(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if bids == nil {
		bids = []*domain.Bid{}
	}
	return c.JSON(http.StatusOK, bids)
}

func (h *AuctionHandler) TransitionAuction(c echo.Context) error {
	actor := domain.Identity(c.Request().Header.Get(HeaderUserID))
	if actor == "" {
		return c.JSON(http.StatusUnauthorized, badRequest("missing "+HeaderUserID+" header"))
	}

	var req TransitionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, badRequest("invalid request body"))
	}
	target, err := domain.ParseAuctionStatus(req.Target)
	if err != nil {
		return h.fail(c, err)
	}

	auction, err := h.auctionManager.TransitionAuction(c.Request().Context(), c.Param("id"), target, actor)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, auction)
}

func (h *AuctionHandler) CloseAuction(c echo.Context) error {
	auction, err := h.auctionManager.CloseAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, auction)
}

// GetStatistics accepts ?bidder= and ?status= (repeated or comma separated).
func (h *AuctionHandler) GetStatistics(c echo.Context) error {
	var raw []string
	for _, v := range c.QueryParams()["status"] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				raw = append(raw, s)
			}
		}
	}
	statuses, err := parseBidStatuses(raw)
	if err != nil {
		return h.fail(c, err)
	}

	filter := domain.BidFilter{
		Bidder:   domain.Identity(c.QueryParam("bidder")),
		Statuses: statuses,
	}
	stats, err := h.auctionManager.GetBidStatistics(c.Request().Context(), c.Param("id"), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *AuctionHandler) fail(c echo.Context, err error) error {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "path", c.Path(), "auction_id", c.Param("id"), "error", err)
	}
	return c.JSON(status, body)
}
