package handler

import (
	"escrow-marketplace/internal/adapter/http/dto"
	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReturnHandler handles return requests, inspection and settlement.
type ReturnHandler struct {
	returnSvc ports.ReturnService
}

// NewReturnHandler creates a new ReturnHandler.
func NewReturnHandler(returnSvc ports.ReturnService) *ReturnHandler {
	return &ReturnHandler{returnSvc: returnSvc}
}

type returnView struct {
	Request  *domain.ReturnRequest    `json:"request"`
	Products []domain.ReturnedProduct `json:"returned_products"`
}

// Request handles POST /api/v1/returns.
func (h *ReturnHandler) Request(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.ReturnRequest
	if !bind(c, &req) {
		return
	}

	rr, err := h.returnSvc.Request(c.Request.Context(), a, ports.ReturnRequestInput{
		OrderID:     uuid.MustParse(req.OrderID),
		OrderItemID: uuid.MustParse(req.OrderItemID),
		Quantity:    req.Quantity,
		Reason:      req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rr)
}

// RequestWholeOrder handles POST /api/v1/orders/:id/returns.
func (h *ReturnHandler) RequestWholeOrder(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.WholeOrderReturnRequest
	if !bind(c, &req) {
		return
	}

	requests, err := h.returnSvc.RequestWholeOrder(c.Request.Context(), a, orderID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, requests)
}

// Get handles GET /api/v1/returns/:id.
func (h *ReturnHandler) Get(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	rr, products, err := h.returnSvc.Get(c.Request.Context(), a, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, returnView{Request: rr, Products: products})
}

// Inspect handles POST /api/v1/returns/:id/inspection.
func (h *ReturnHandler) Inspect(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.InspectionRequest
	if !bind(c, &req) {
		return
	}

	rr, err := h.returnSvc.RecordInspection(c.Request.Context(), a, id, ports.InspectionInput{
		Breakdown: dto.ToBreakdown(req.Breakdown),
		Notes:     req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rr)
}

// Approve handles POST /api/v1/returns/:id/approve.
func (h *ReturnHandler) Approve(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ApproveReturnRequest
	if !bind(c, &req) {
		return
	}

	settlement, err := h.returnSvc.Approve(c.Request.Context(), a, id, ports.ApproveReturnInput{
		Breakdown:      dto.ToBreakdown(req.Breakdown),
		RefundOverride: req.RefundOverride,
		AdminNotes:     req.AdminNotes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settlement)
}

// Reject handles POST /api/v1/returns/:id/reject.
func (h *ReturnHandler) Reject(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.RejectRequest
	if !bind(c, &req) {
		return
	}

	rr, err := h.returnSvc.Reject(c.Request.Context(), a, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rr)
}

// DecideResale handles POST /api/v1/returned-products/:id/decision.
func (h *ReturnHandler) DecideResale(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ResaleDecisionRequest
	if !bind(c, &req) {
		return
	}

	rp, err := h.returnSvc.DecideReturnedProduct(c.Request.Context(), a, id, *req.Approve)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rp)
}
