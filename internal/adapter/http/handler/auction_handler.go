package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"escrow-marketplace/internal/adapter/http/dto"
	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/internal/metrics"
	"escrow-marketplace/pkg/apperror"
	"escrow-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients are served from other origins; the token check gates access.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AuctionHandler handles the auction engine endpoints and the live feed.
type AuctionHandler struct {
	auctionSvc ports.AuctionService
	feed       ports.AuctionFeed
	log        zerolog.Logger
}

// NewAuctionHandler creates a new AuctionHandler. feed may be nil, which
// disables the websocket endpoint.
func NewAuctionHandler(auctionSvc ports.AuctionService, feed ports.AuctionFeed, log zerolog.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionSvc: auctionSvc,
		feed:       feed,
		log:        log.With().Str("component", "auction_handler").Logger(),
	}
}

// Create handles POST /api/v1/auctions.
func (h *AuctionHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.CreateAuctionRequest
	if !bind(c, &req) {
		return
	}

	auction, err := h.auctionSvc.Create(c.Request.Context(), a, ports.CreateAuctionRequest{
		ProductID:       uuid.MustParse(req.ProductID), // validated by binding
		Quantity:        req.Quantity,
		Title:           req.Title,
		Description:     req.Description,
		StartPrice:      req.StartPrice,
		ReservePrice:    req.ReservePrice,
		BuyNowPrice:     req.BuyNowPrice,
		MinIncrement:    req.MinIncrement,
		StartAt:         req.StartAt,
		EndAt:           req.EndAt,
		AntiSnipeWindow: time.Duration(req.AntiSnipeSeconds) * time.Second,
		Extension:       time.Duration(req.ExtensionSeconds) * time.Second,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, auction)
}

// Get handles GET /api/v1/auctions/:id.
func (h *AuctionHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	view, err := h.auctionSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Submit handles POST /api/v1/auctions/:id/submit.
func (h *AuctionHandler) Submit(c *gin.Context) {
	h.transition(c, h.auctionSvc.Submit)
}

// Cancel handles POST /api/v1/auctions/:id/cancel.
func (h *AuctionHandler) Cancel(c *gin.Context) {
	h.transition(c, h.auctionSvc.Cancel)
}

func (h *AuctionHandler) transition(c *gin.Context, fn func(context.Context, domain.Actor, uuid.UUID) (*domain.Auction, error)) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	auction, err := fn(c.Request.Context(), a, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, auction)
}

// Review handles POST /api/v1/auctions/:id/review.
func (h *AuctionHandler) Review(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ReviewAuctionRequest
	if !bind(c, &req) {
		return
	}

	auction, err := h.auctionSvc.Review(c.Request.Context(), a, id, ports.ReviewAuctionRequest{
		Approve: *req.Approve,
		Reason:  req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, auction)
}

// PlaceBid handles POST /api/v1/auctions/:id/bids.
func (h *AuctionHandler) PlaceBid(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.PlaceBidRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.auctionSvc.PlaceBid(c.Request.Context(), a, id, req.Amount)
	if err != nil {
		metrics.BidsTotal.WithLabelValues("rejected").Inc()
		response.Error(c, err)
		return
	}
	metrics.BidsTotal.WithLabelValues("accepted").Inc()
	response.Created(c, result)
}

// BuyNow handles POST /api/v1/auctions/:id/buy-now.
func (h *AuctionHandler) BuyNow(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, err := h.auctionSvc.BuyNow(c.Request.Context(), a, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// Close handles POST /api/v1/auctions/:id/close.
func (h *AuctionHandler) Close(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.auctionSvc.AdminClose(c.Request.Context(), a, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Watch handles GET /api/v1/auctions/:id/ws. It sends the current view, then
// every bid and state change until either side closes.
func (h *AuctionHandler) Watch(c *gin.Context) {
	if h.feed == nil {
		response.Error(c, apperror.ErrFeatureDisabled("Live auction feed"))
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	view, err := h.auctionSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	snapshot, err := json.Marshal(domain.FeedMessage{Topic: domain.TopicAuctionSnapshot, Data: mustJSON(view)})
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, stop, err := h.feed.Subscribe(ctx, id)
	if err != nil {
		h.log.Error().Err(err).Str("auction_id", id.String()).Msg("auction feed subscribe failed")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"),
			time.Now().Add(wsWriteWait))
		return
	}
	defer stop()

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, snapshot, events)
}

// readPump discards client messages and ends the session on disconnect.
func (h *AuctionHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("websocket closed")
			}
			return
		}
	}
}

func (h *AuctionHandler) writePump(ctx context.Context, conn *websocket.Conn, snapshot []byte, events <-chan []byte) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	write := func(kind int, data []byte) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(kind, data) == nil
	}

	if !write(websocket.TextMessage, snapshot) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			if !write(websocket.TextMessage, msg) {
				return
			}
		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
