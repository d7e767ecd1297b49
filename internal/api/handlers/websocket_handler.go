package handlers

import (
	"context"
	"net/http"
	"sync"

	"auction-core/internal/domain"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// maxCommandSize bounds one inbound frame; commands are small JSON objects.
const maxCommandSize = 4096

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Command is a client request on the bidding socket.
type Command struct {
	Type      string       `json:"type"`
	RequestID string       `json:"request_id,omitempty"`
	Amount    domain.Money `json:"amount"`
	Message   string       `json:"message,omitempty"`
	BidID     string       `json:"bid_id,omitempty"`
}

// Reply answers exactly one Command, echoing its request_id.
type Reply struct {
	Type        string      `json:"type"`
	RequestID   string      `json:"request_id,omitempty"`
	Bid         *domain.Bid `json:"bid,omitempty"`
	BidID       string      `json:"bid_id,omitempty"`
	Error       string      `json:"error,omitempty"`
	Kind        string      `json:"kind,omitempty"`
	MinRequired string      `json:"min_required,omitempty"`
}

// WebSocketHandler accepts bid commands over a socket bound to one auction.
// Replies go only to the sender; there is no broadcast.
type WebSocketHandler struct {
	bidService *services.BidService
	auctions   *services.AuctionManager
	log        logger.Logger

	mu      sync.Mutex
	baseCtx context.Context
}

func NewWebSocketHandler(bidService *services.BidService, auctions *services.AuctionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bidService: bidService,
		auctions:   auctions,
		log:        log,
	}
}

// SetBaseContext ties every session to ctx; cancelling it closes all
// sockets. Sessions default to context.Background().
func (h *WebSocketHandler) SetBaseContext(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.baseCtx = ctx
}

func (h *WebSocketHandler) baseContext() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.baseCtx == nil {
		return context.Background()
	}
	return h.baseCtx
}

func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/auction/{auctionID}", h.HandleConnection)
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["auctionID"]

	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	if userID == "" {
		http.Error(w, "user_id required", http.StatusUnauthorized)
		return
	}

	if _, err := h.auctions.GetAuction(r.Context(), auctionID); err != nil {
		status, body := errorResponse(err)
		http.Error(w, body.Error, status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn.SetReadLimit(maxCommandSize)
	session := &wsSession{
		conn:      conn,
		bidder:    domain.Identity(userID),
		auctionID: auctionID,
	}
	go h.handleMessages(h.baseContext(), session)
}

type wsSession struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	bidder    domain.Identity
	auctionID string
}

func (s *wsSession) send(reply Reply) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(reply)
}

// handleMessages runs until the peer goes away or ctx ends. Commands in
// flight are cancelled with the session.
func (h *WebSocketHandler) handleMessages(ctx context.Context, s *wsSession) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.conn.Close()

	go func() {
		<-ctx.Done()
		// Unblocks ReadJSON on shutdown.
		_ = s.conn.Close()
	}()

	log := h.log.With("auction_id", s.auctionID, "user_id", string(s.bidder))
	for {
		var cmd Command
		if err := s.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Failed to read message", "error", err)
			}
			return
		}

		reply := h.dispatch(ctx, s, cmd)
		reply.RequestID = cmd.RequestID
		if err := s.send(reply); err != nil {
			log.Warn("Failed to send reply", "error", err)
			return
		}
	}
}

func (h *WebSocketHandler) dispatch(ctx context.Context, s *wsSession, cmd Command) Reply {
	switch cmd.Type {
	case "place_bid":
		bid, err := h.bidService.PlaceBid(ctx, s.auctionID, s.bidder, cmd.Amount, cmd.Message)
		if err != nil {
			return h.errorReply(err)
		}
		return Reply{Type: "bid_placed", Bid: bid}
	case "withdraw_bid":
		if err := h.bidService.WithdrawBid(ctx, cmd.BidID, s.bidder); err != nil {
			return h.errorReply(err)
		}
		return Reply{Type: "bid_withdrawn", BidID: cmd.BidID}
	case "ping":
		return Reply{Type: "pong"}
	}
	return Reply{Type: "error", Error: "unknown message type: " + cmd.Type, Kind: string(domain.KindValidation)}
}

func (h *WebSocketHandler) errorReply(err error) Reply {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Socket command failed", "error", err)
	}
	return Reply{Type: "error", Error: body.Error, Kind: body.Kind, MinRequired: body.MinRequired}
}
