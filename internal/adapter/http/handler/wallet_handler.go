package handler

import (
	"context"
	"math"
	"time"

	"escrow-marketplace/internal/adapter/http/dto"
	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/apperror"
	"escrow-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetWallet handles GET /api/v1/wallets/me. The wallet is opened on first use.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.Open(c.Request.Context(), a.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}

// Deposit handles POST /api/v1/wallets/me/deposits.
func (h *WalletHandler) Deposit(c *gin.Context) {
	h.move(c, h.walletSvc.Deposit)
}

// Withdraw handles POST /api/v1/wallets/me/withdrawals.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	h.move(c, h.walletSvc.Withdraw)
}

func (h *WalletHandler) move(c *gin.Context, fn func(context.Context, ports.WalletMovementRequest) (*domain.Transaction, error)) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.MovementRequest
	if !bind(c, &req) {
		return
	}

	txn, err := fn(c.Request.Context(), ports.WalletMovementRequest{
		UserID:      a.UserID,
		Amount:      req.Amount,
		Reference:   req.Reference,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewTransactionResponse(txn))
}

// ListTransactions handles GET /api/v1/wallets/me/transactions.
// Query: page, page_size, type, from, to (RFC 3339).
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	params := ports.TransactionListParams{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if t := c.Query("type"); t != "" {
		txType := domain.TransactionType(t)
		params.Type = &txType
	}
	for key, dst := range map[string]**time.Time{"from": &params.From, "to": &params.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, apperror.Validation(key+" must be an RFC 3339 timestamp"))
			return
		}
		*dst = &ts
	}

	txns, total, err := h.walletSvc.ListTransactions(c.Request.Context(), a.UserID, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	// The service clamps paging; mirror it for the envelope.
	page, pageSize := params.Page, params.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, dto.NewTransactionResponse(&txns[i]))
	}

	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	})
}

// SetStatus handles PUT /api/v1/admin/wallets/:user_id/status.
func (h *WalletHandler) SetStatus(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	var req dto.WalletStatusRequest
	if !bind(c, &req) {
		return
	}

	wallet, err := h.walletSvc.SetActive(c.Request.Context(), a, userID, *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}
