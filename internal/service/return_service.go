package service

import (
	"context"
	"fmt"
	"strings"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReturnServiceImpl implements ports.ReturnService.
type ReturnServiceImpl struct {
	*engine
}

// NewReturnService creates a new ReturnServiceImpl.
func NewReturnService(d Deps) *ReturnServiceImpl {
	return &ReturnServiceImpl{engine: newEngine(d)}
}

func returnRef(r *domain.ReturnRequest) string {
	return "RETURN:" + r.ID.String()
}

// Request opens a return for part of a delivered order item.
func (s *ReturnServiceImpl) Request(ctx context.Context, actor domain.Actor, in ports.ReturnRequestInput) (*domain.ReturnRequest, error) {
	if err := authorize(actor, domain.CapRequestReturn); err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, apperror.Validation("quantity must be positive")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperror.Validation("reason is required")
	}

	var req *domain.ReturnRequest
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		order, err := s.lockReturnableOrder(ctx, tx, actor, in.OrderID)
		if err != nil {
			return err
		}
		item := order.Item(in.OrderItemID)
		if item == nil {
			return apperror.ErrNotFound("order item")
		}
		req, err = s.open(ctx, tx, actor, order, item, in.Quantity, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("return_id", req.ID.String()).
		Str("order_id", req.OrderID.String()).
		Int64("quantity", req.Quantity).
		Msg("return requested")

	return req, nil
}

// RequestWholeOrder opens one return per item for every unit not yet claimed.
func (s *ReturnServiceImpl) RequestWholeOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID, reason string) ([]domain.ReturnRequest, error) {
	if err := authorize(actor, domain.CapRequestReturn); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("reason is required")
	}

	var out []domain.ReturnRequest
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		order, err := s.lockReturnableOrder(ctx, tx, actor, orderID)
		if err != nil {
			return err
		}
		for i := range order.Items {
			item := &order.Items[i]
			claimed, err := s.Returns.SumRequestedQuantity(ctx, tx, item.ID)
			if err != nil {
				return dbErr("sum requested quantity", err)
			}
			if item.Quantity-claimed <= 0 {
				continue
			}
			req, err := s.open(ctx, tx, actor, order, item, item.Quantity-claimed, reason)
			if err != nil {
				return err
			}
			out = append(out, *req)
		}
		if len(out) == 0 {
			return apperror.Validation("every unit of the order is already being returned")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("order_id", orderID.String()).
		Int("requests", len(out)).
		Msg("whole order return requested")

	return out, nil
}

// lockReturnableOrder locks a delivered order of the buyer that is still
// inside its dispute window.
func (s *ReturnServiceImpl) lockReturnableOrder(ctx context.Context, tx pgx.Tx, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.UserID {
		return nil, apperror.ErrNotOwner("order")
	}
	if order.Status != domain.OrderStatusDelivered {
		return nil, apperror.ErrInvalidStateTransition("order", string(order.Status), "return")
	}
	if order.DeliveredAt == nil {
		return nil, apperror.ErrMissingDeliveryTimestamp()
	}
	if !order.InDisputeWindow(s.now(), s.Settings.DisputeWindow) {
		return nil, apperror.ErrWindowExpired("return")
	}
	return order, nil
}

func (s *ReturnServiceImpl) open(ctx context.Context, tx pgx.Tx, actor domain.Actor, order *domain.Order, item *domain.OrderItem, qty int64, reason string) (*domain.ReturnRequest, error) {
	claimed, err := s.Returns.SumRequestedQuantity(ctx, tx, item.ID)
	if err != nil {
		return nil, dbErr("sum requested quantity", err)
	}
	if remaining := item.Quantity - claimed; qty > remaining {
		return nil, apperror.Validation(fmt.Sprintf("only %d units of this item can still be returned", remaining))
	}

	now := s.now()
	req := &domain.ReturnRequest{
		ID:          uuid.New(),
		OrderID:     order.ID,
		OrderItemID: item.ID,
		BuyerID:     actor.UserID,
		Reason:      reason,
		Quantity:    qty,
		Status:      domain.ReturnStatusRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Returns.Create(ctx, tx, req); err != nil {
		return nil, dbErr("create return request", err)
	}
	if err := s.notifier.Notify(ctx, tx, item.SellerID, domain.NotifyReturnRequested,
		domain.ReturnRequestRef(req.ID), msgReturnRequested(req, order), map[string]any{"order_id": order.ID}); err != nil {
		return nil, err
	}
	return req, nil
}

// RecordInspection stores the inspector's breakdown. It must account for
// every requested unit.
func (s *ReturnServiceImpl) RecordInspection(ctx context.Context, actor domain.Actor, requestID uuid.UUID, in ports.InspectionInput) (*domain.ReturnRequest, error) {
	if err := authorize(actor, domain.CapInspectReturn); err != nil {
		return nil, err
	}
	total, err := in.Breakdown.Validate()
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	var req *domain.ReturnRequest
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = s.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if !req.Status.IsOpen() {
			return apperror.ErrInvalidStateTransition("return", string(req.Status), "inspect")
		}
		if total != req.Quantity {
			return apperror.ErrQuantityMismatch(req.Quantity, total)
		}

		dominant := in.Breakdown.Dominant()
		req.Inspection = in.Breakdown
		req.Condition = &dominant
		req.InspectedBy = ptrUUID(actor.UserID)
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			req.InspectionNotes = ptrString(notes)
		}
		req.Status = domain.ReturnStatusUnderInspection
		req.UpdatedAt = s.now()
		if err := s.Returns.Update(ctx, tx, req); err != nil {
			return dbErr("update return request", err)
		}

		if err := s.notifier.Notify(ctx, tx, req.BuyerID, domain.NotifyReturnInspected,
			domain.ReturnRequestRef(req.ID), msgReturnInspected(req), nil); err != nil {
			return err
		}
		if in.Breakdown.NeedsSellerApproval() {
			sellerID, err := s.sellerOf(ctx, tx, req)
			if err != nil {
				return err
			}
			return s.notifier.Notify(ctx, tx, sellerID, domain.NotifyReturnNeedsApproval,
				domain.ReturnRequestRef(req.ID), msgReturnNeedsApproval(), nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Approve settles a return: the refund leaves the order's escrow for the
// buyer, NEW units go back on sale, and the seller loses points for
// damaged, incomplete or unsaleable units.
func (s *ReturnServiceImpl) Approve(ctx context.Context, actor domain.Actor, requestID uuid.UUID, in ports.ApproveReturnInput) (*ports.ReturnSettlement, error) {
	if err := authorize(actor, domain.CapSettleReturn); err != nil {
		return nil, err
	}

	// The order is the root aggregate, so it is locked before the request.
	peek, err := s.Returns.GetByID(ctx, nil, requestID)
	if err != nil {
		return nil, dbErr("get return request", err)
	}
	if peek == nil {
		return nil, apperror.ErrNotFound("return request")
	}

	var result *ports.ReturnSettlement
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		order, err := s.lockOrder(ctx, tx, peek.OrderID)
		if err != nil {
			return err
		}
		req, err := s.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if !req.Status.IsOpen() {
			return apperror.ErrInvalidStateTransition("return", string(req.Status), "approve")
		}
		if order.Status != domain.OrderStatusDelivered {
			return apperror.ErrInvalidStateTransition("order", string(order.Status), "settle return")
		}

		breakdown := in.Breakdown
		if breakdown == nil {
			breakdown = req.Inspection
		}
		if len(breakdown) == 0 {
			return apperror.Validation("inspection breakdown is required")
		}
		total, err := breakdown.Validate()
		if err != nil {
			return apperror.Validation(err.Error())
		}
		if total != req.Quantity {
			return apperror.ErrQuantityMismatch(req.Quantity, total)
		}

		item := order.Item(req.OrderItemID)
		if item == nil {
			return apperror.ErrNotFound("order item")
		}
		refund := item.UnitPrice * req.Quantity
		if in.RefundOverride != nil {
			refund = *in.RefundOverride
			if refund < 0 || refund > item.Escrowed() {
				return apperror.Validation(fmt.Sprintf("refund must be between 0 and %s", domain.FormatAmount(item.Escrowed())))
			}
		}
		if refund > item.Escrowed() {
			refund = item.Escrowed()
		}

		products, err := s.lockProducts(ctx, tx, item.ProductID)
		if err != nil {
			return err
		}
		holder := s.escrowHolder(order)
		wallets, err := s.ledger.Lock(ctx, tx, holder, order.BuyerID)
		if err != nil {
			return err
		}
		if err := s.ledger.Settle(ctx, tx, heldToBalance(wallets[holder], wallets[order.BuyerID], Movement{
			Type:        domain.TransactionTypeRefund,
			Amount:      refund,
			Reference:   returnRef(req),
			Description: "return refund for order " + order.Number,
		})); err != nil {
			return err
		}
		item.RefundedAmount += refund
		if err := s.Orders.UpdateItemRefund(ctx, tx, item.ID, item.RefundedAmount); err != nil {
			return dbErr("update item refund", err)
		}

		now := s.now()
		var rows []domain.ReturnedProduct
		pendingResale := false
		for _, row := range breakdown {
			if row.Quantity == 0 {
				continue
			}
			rp := domain.NewReturnedProduct(req, item.ProductID, item.SellerID, row, now)
			if err := s.Returns.CreateReturnedProduct(ctx, tx, &rp); err != nil {
				return dbErr("create returned product", err)
			}
			if rp.SellerApproval == domain.SellerApprovalPending {
				pendingResale = true
			}
			rows = append(rows, rp)
		}

		restocked := breakdown.Quantity(domain.ConditionNew)
		if restocked > 0 {
			if err := s.stock.Adjust(ctx, tx, products[item.ProductID], restocked, domain.StockReasonReturnRestocked); err != nil {
				return err
			}
		}

		penalty := s.Settings.PenaltyWeights.Penalty(breakdown)
		if penalty > 0 {
			if _, err := s.Users.AdjustPoints(ctx, tx, item.SellerID, -penalty); err != nil {
				return dbErr("adjust seller points", err)
			}
		}

		dominant := breakdown.Dominant()
		req.Inspection = breakdown
		req.Condition = &dominant
		req.Status = domain.ReturnStatusApproved
		req.RefundAmount = ptrInt64(refund)
		req.PenaltyPoints = ptrInt64(penalty)
		req.ProcessedBy = ptrUUID(actor.UserID)
		req.ProcessedAt = ptrTime(now)
		req.UpdatedAt = now
		if notes := strings.TrimSpace(in.AdminNotes); notes != "" {
			req.AdminNotes = ptrString(notes)
		}
		if err := s.Returns.Update(ctx, tx, req); err != nil {
			return dbErr("update return request", err)
		}

		if err := s.notifier.Notify(ctx, tx, req.BuyerID, domain.NotifyReturnApproved,
			domain.ReturnRequestRef(req.ID), msgReturnApproved(refund), map[string]any{"refund": refund}); err != nil {
			return err
		}
		if err := s.notifier.Notify(ctx, tx, item.SellerID, domain.NotifyReturnSellerPenalty,
			domain.ReturnRequestRef(req.ID), msgReturnSellerPenalty(refund, penalty),
			map[string]any{"refund": refund, "penalty_points": penalty}); err != nil {
			return err
		}
		if pendingResale {
			if err := s.notifier.Notify(ctx, tx, item.SellerID, domain.NotifyReturnNeedsApproval,
				domain.ReturnRequestRef(req.ID), msgReturnNeedsApproval(), nil); err != nil {
				return err
			}
		}
		if err := s.notifier.OrderChanged(ctx, tx, order); err != nil {
			return err
		}

		result = &ports.ReturnSettlement{
			Request:       req,
			Products:      rows,
			Refund:        refund,
			Restocked:     restocked,
			PenaltyPoints: penalty,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("return_id", requestID.String()).
		Int64("refund", result.Refund).
		Int64("restocked", result.Restocked).
		Int64("penalty_points", result.PenaltyPoints).
		Msg("return approved")

	return result, nil
}

// Reject closes an open return without moving money or stock.
func (s *ReturnServiceImpl) Reject(ctx context.Context, actor domain.Actor, requestID uuid.UUID, reason string) (*domain.ReturnRequest, error) {
	if err := authorize(actor, domain.CapSettleReturn); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("rejection reason is required")
	}

	var req *domain.ReturnRequest
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = s.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if !req.Status.IsOpen() {
			return apperror.ErrInvalidStateTransition("return", string(req.Status), "reject")
		}

		now := s.now()
		req.Status = domain.ReturnStatusRejected
		req.RejectionReason = ptrString(reason)
		req.ProcessedBy = ptrUUID(actor.UserID)
		req.ProcessedAt = ptrTime(now)
		req.UpdatedAt = now
		if err := s.Returns.Update(ctx, tx, req); err != nil {
			return dbErr("update return request", err)
		}
		return s.notifier.Notify(ctx, tx, req.BuyerID, domain.NotifyReturnRejected,
			domain.ReturnRequestRef(req.ID), msgReturnRejected(reason), nil)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("return_id", req.ID.String()).Msg("return rejected")
	return req, nil
}

// DecideReturnedProduct records the seller's resale decision for OPEN_BOX
// or USED units.
func (s *ReturnServiceImpl) DecideReturnedProduct(ctx context.Context, actor domain.Actor, returnedProductID uuid.UUID, approve bool) (*domain.ReturnedProduct, error) {
	if err := authorize(actor, domain.CapApproveResale); err != nil {
		return nil, err
	}

	var rp *domain.ReturnedProduct
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		rp, err = s.Returns.GetReturnedProductForUpdate(ctx, tx, returnedProductID)
		if err != nil {
			return dbErr("lock returned product", err)
		}
		if rp == nil {
			return apperror.ErrNotFound("returned product")
		}
		if rp.SellerID != actor.UserID {
			return apperror.ErrNotOwner("returned product")
		}
		if rp.SellerApproval != domain.SellerApprovalPending {
			return apperror.ErrInvalidStateTransition("returned product", string(rp.SellerApproval), "decide")
		}

		rp.SellerApproval = domain.SellerApprovalRejected
		if approve {
			rp.SellerApproval = domain.SellerApprovalApproved
			rp.IsSellable = true
		}
		rp.UpdatedAt = s.now()
		if err := s.Returns.UpdateReturnedProduct(ctx, tx, rp); err != nil {
			return dbErr("update returned product", err)
		}
		return s.notifier.Notify(ctx, tx, rp.SellerID, domain.NotifyReturnResaleDecision,
			domain.ReturnRequestRef(rp.ReturnRequestID), msgReturnResaleDecision(rp), nil)
	})
	if err != nil {
		return nil, err
	}
	return rp, nil
}

// Get returns a request with its returned products. It is visible to the
// buyer, the item's seller and admins.
func (s *ReturnServiceImpl) Get(ctx context.Context, actor domain.Actor, requestID uuid.UUID) (*domain.ReturnRequest, []domain.ReturnedProduct, error) {
	req, err := s.Returns.GetByID(ctx, nil, requestID)
	if err != nil {
		return nil, nil, dbErr("get return request", err)
	}
	if req == nil {
		return nil, nil, apperror.ErrNotFound("return request")
	}
	if !actor.IsAdmin() && req.BuyerID != actor.UserID {
		sellerID, err := s.sellerOf(ctx, nil, req)
		if err != nil {
			return nil, nil, err
		}
		if sellerID != actor.UserID {
			return nil, nil, apperror.ErrNotOwner("return request")
		}
	}

	rows, err := s.Returns.ListReturnedProducts(ctx, nil, req.ID)
	if err != nil {
		return nil, nil, dbErr("list returned products", err)
	}
	return req, rows, nil
}

func (s *ReturnServiceImpl) lockRequest(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ReturnRequest, error) {
	req, err := s.Returns.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, dbErr("lock return request", err)
	}
	if req == nil {
		return nil, apperror.ErrNotFound("return request")
	}
	return req, nil
}

// sellerOf resolves the seller of the request's order item.
func (s *ReturnServiceImpl) sellerOf(ctx context.Context, tx pgx.Tx, req *domain.ReturnRequest) (uuid.UUID, error) {
	order, err := s.Orders.GetByID(ctx, tx, req.OrderID)
	if err != nil {
		return uuid.Nil, dbErr("get order", err)
	}
	if order == nil {
		return uuid.Nil, apperror.ErrNotFound("order")
	}
	item := order.Item(req.OrderItemID)
	if item == nil {
		return uuid.Nil, apperror.ErrNotFound("order item")
	}
	return item.SellerID, nil
}
