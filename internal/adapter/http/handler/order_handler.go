package handler

import (
	"escrow-marketplace/internal/adapter/http/dto"
	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// OrderHandler handles checkout and the order lifecycle.
type OrderHandler struct {
	orderSvc ports.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc ports.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// Checkout handles POST /api/v1/orders.
func (h *OrderHandler) Checkout(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.CheckoutRequest
	if !bind(c, &req) {
		return
	}

	order, err := h.orderSvc.Checkout(c.Request.Context(), ports.CheckoutRequest{
		BuyerID:     a.UserID,
		DeliveryFee: req.DeliveryFee,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// Get handles GET /api/v1/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, err := h.orderSvc.GetOrder(c.Request.Context(), a, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

// Cancel handles POST /api/v1/orders/:id/cancel.
func (h *OrderHandler) Cancel(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.orderSvc.Cancel(c.Request.Context(), a, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Refund handles POST /api/v1/orders/:id/refund.
func (h *OrderHandler) Refund(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.orderSvc.RefundDelivered(c.Request.Context(), a, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Advance handles POST /api/v1/orders/:id/status.
func (h *OrderHandler) Advance(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.AdvanceOrderRequest
	if !bind(c, &req) {
		return
	}

	order, err := h.orderSvc.AdvanceStatus(c.Request.Context(), a, id, domain.OrderStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

// AssignCourier handles POST /api/v1/orders/:id/assign.
func (h *OrderHandler) AssignCourier(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, err := h.orderSvc.AssignCourier(c.Request.Context(), a, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

// Complete handles POST /api/v1/orders/:id/complete. Admin only; the
// scheduler completes orders in bulk.
func (h *OrderHandler) Complete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, err := h.orderSvc.Complete(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}
