package service

import (
	"context"
	"fmt"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderServiceImpl implements ports.OrderService.
type OrderServiceImpl struct {
	*engine
}

// NewOrderService creates a new OrderServiceImpl.
func NewOrderService(d Deps) *OrderServiceImpl {
	return &OrderServiceImpl{engine: newEngine(d)}
}

func orderHoldRef(o *domain.Order) string { return "ORDER_HOLD:" + o.Number }

func orderRef(o *domain.Order, suffix string) string { return "ORDER:" + o.Number + ":" + suffix }

// Checkout turns the buyer's cart into a CREATED order with its total held in escrow.
func (s *OrderServiceImpl) Checkout(ctx context.Context, req ports.CheckoutRequest) (*domain.Order, error) {
	if req.DeliveryFee < 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	var order *domain.Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		buyer, err := s.Users.GetByID(ctx, tx, req.BuyerID)
		if err != nil {
			return dbErr("get buyer", err)
		}
		if buyer == nil {
			return apperror.ErrNotFound("user")
		}
		if buyer.Shipping == nil {
			return apperror.ErrMissingShippingLocation()
		}

		lines, err := s.Carts.ListLines(ctx, tx, req.BuyerID)
		if err != nil {
			return dbErr("list cart", err)
		}
		if len(lines) == 0 {
			return apperror.ErrEmptyCart()
		}

		productIDs := make([]uuid.UUID, 0, len(lines))
		for _, l := range lines {
			if l.Quantity <= 0 {
				return apperror.Validation("cart quantities must be positive")
			}
			productIDs = append(productIDs, l.ProductID)
		}
		products, err := s.lockProducts(ctx, tx, productIDs...)
		if err != nil {
			return err
		}

		now := s.now()
		order = &domain.Order{
			ID:          uuid.New(),
			Number:      domain.NewOrderNumber(now),
			BuyerID:     req.BuyerID,
			DeliveryFee: req.DeliveryFee,
			Status:      domain.OrderStatusCreated,
			EscrowMode:  domain.EscrowBuyerWallet,
			Shipping:    *buyer.Shipping,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		requested := make(map[uuid.UUID]int64, len(lines))
		for _, l := range lines {
			p := products[l.ProductID]
			requested[p.ID] += l.Quantity
			if requested[p.ID] > p.Stock {
				return apperror.ErrInsufficientStock(p.NameEN)
			}
			item := domain.NewOrderItem(order.ID, p.ID, p.SellerID, l.Quantity, p.CurrentPrice(now))
			order.Items = append(order.Items, item)
			order.TotalAmount += item.LineTotal
		}
		order.TotalAmount += req.DeliveryFee

		wallets, err := s.ledger.Lock(ctx, tx, req.BuyerID)
		if err != nil {
			return err
		}
		if wallets[req.BuyerID].Spendable() < order.TotalAmount {
			return apperror.ErrInsufficientFunds()
		}

		if err := s.Orders.Create(ctx, tx, order); err != nil {
			return dbErr("create order", err)
		}
		if err := s.ledger.Hold(ctx, tx, wallets[req.BuyerID], order.TotalAmount,
			orderHoldRef(order), "escrow for order "+order.Number); err != nil {
			return err
		}
		for _, it := range order.Items {
			if err := s.stock.Adjust(ctx, tx, products[it.ProductID], -it.Quantity, domain.StockReasonCheckout); err != nil {
				return err
			}
		}
		if err := s.Carts.Clear(ctx, tx, req.BuyerID); err != nil {
			return dbErr("clear cart", err)
		}

		if err := s.notifier.Notify(ctx, tx, order.BuyerID, domain.NotifyOrderCreated,
			domain.OrderRef(order.ID), msgOrderCreated(order), nil); err != nil {
			return err
		}
		return s.notifier.OrderChanged(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("order_id", order.ID.String()).
		Str("number", order.Number).
		Str("buyer_id", order.BuyerID.String()).
		Int64("total", order.TotalAmount).
		Msg("order created")

	return order, nil
}

// Complete pays out a delivered order once its dispute window has passed.
func (s *OrderServiceImpl) Complete(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	var order *domain.Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		order, err = s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusDelivered {
			return apperror.ErrInvalidStateTransition("order", string(order.Status), "complete")
		}
		if order.DeliveredAt == nil {
			return apperror.ErrMissingDeliveryTimestamp()
		}
		now := s.now()
		if now.Before(order.DisputeDeadline(s.Settings.DisputeWindow)) {
			return apperror.ErrWindowStillOpen()
		}

		open, err := s.Returns.CountOpenForOrder(ctx, tx, order.ID)
		if err != nil {
			return dbErr("count open returns", err)
		}
		if open > 0 {
			return apperror.ErrInvalidStateTransition("order", "DELIVERED with open returns", "complete")
		}

		sellers := order.GrossBySeller()
		holder := s.escrowHolder(order)
		userIDs := []uuid.UUID{holder, s.Settings.PlatformUserID}
		for _, g := range sellers {
			userIDs = append(userIDs, g.SellerID)
		}
		wallets, err := s.ledger.Lock(ctx, tx, userIDs...)
		if err != nil {
			return err
		}
		escrow := wallets[holder]
		platform := wallets[s.Settings.PlatformUserID]

		for _, g := range sellers {
			if err := s.paySeller(ctx, tx, order, g, escrow, wallets[g.SellerID], platform); err != nil {
				return err
			}
		}

		if err := s.ledger.Settle(ctx, tx, heldToBalance(escrow, platform, Movement{
			Type:        domain.TransactionTypeFee,
			Amount:      order.DeliveryFee,
			Reference:   orderRef(order, "DELIVERY"),
			Description: "delivery fee for order " + order.Number,
		})); err != nil {
			return err
		}
		if err := s.ledger.Mark(ctx, tx, escrow, Movement{
			Type:        domain.TransactionTypeEscrowRelease,
			Amount:      order.EscrowRemaining(),
			Reference:   orderRef(order, "RELEASE"),
			Description: "escrow released for order " + order.Number,
		}); err != nil {
			return err
		}

		order.Status = domain.OrderStatusCompleted
		order.CompletedAt = ptrTime(now)
		order.UpdatedAt = now
		if err := s.Orders.Update(ctx, tx, order); err != nil {
			return dbErr("update order", err)
		}

		if err := s.notifier.Notify(ctx, tx, order.BuyerID, domain.NotifyOrderCompleted,
			domain.OrderRef(order.ID), msgOrderCompleted(order), nil); err != nil {
			return err
		}
		return s.notifier.OrderChanged(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("order_id", order.ID.String()).
		Str("number", order.Number).
		Int("sellers", len(order.GrossBySeller())).
		Msg("order completed")

	return order, nil
}

// paySeller settles one seller's share of a completed order.
func (s *OrderServiceImpl) paySeller(ctx context.Context, tx pgx.Tx, order *domain.Order, g domain.SellerGross, escrow, seller, platform *domain.Wallet) error {
	fee := s.Settings.Fee(g.Gross)
	net := g.Gross - fee
	key := g.SellerID.String()

	if err := s.ledger.Settle(ctx, tx, heldToBalance(escrow, seller, Movement{
		Type:        domain.TransactionTypePayment,
		Amount:      net,
		Reference:   orderRef(order, "PAYOUT:"+key),
		Description: "payout for order " + order.Number,
	})); err != nil {
		return err
	}
	if err := s.ledger.Settle(ctx, tx, heldToBalance(escrow, platform, Movement{
		Type:        domain.TransactionTypeFee,
		Amount:      fee,
		Reference:   orderRef(order, "FEE:"+key),
		Description: "platform fee for order " + order.Number,
	})); err != nil {
		return err
	}

	if points := s.Settings.Points(net); points > 0 {
		change, err := s.Users.AdjustPoints(ctx, tx, g.SellerID, points)
		if err != nil {
			return dbErr("award points", err)
		}
		if change.After >= s.Settings.VerificationThreshold {
			verified, err := s.Users.MarkVerifiedSeller(ctx, tx, g.SellerID)
			if err != nil {
				return dbErr("mark verified seller", err)
			}
			if verified {
				if err := s.notifier.Notify(ctx, tx, g.SellerID, domain.NotifySellerVerified,
					domain.UserRef(g.SellerID), msgSellerVerified(), map[string]any{"points": change.After}); err != nil {
					return err
				}
			}
		}
	}

	return s.notifier.Notify(ctx, tx, g.SellerID, domain.NotifySellerPayment, domain.OrderRef(order.ID),
		msgSellerPayment(order, net, fee), map[string]any{"gross": g.Gross, "fee": fee, "net": net})
}

// AutoComplete completes delivered orders whose dispute window has passed.
func (s *OrderServiceImpl) AutoComplete(ctx context.Context, limit int) (ports.SweepResult, error) {
	var res ports.SweepResult
	ids, err := s.Orders.ListDueForCompletion(ctx, s.now().Add(-s.Settings.DisputeWindow), limit)
	if err != nil {
		return res, dbErr("list orders due for completion", err)
	}

	for _, id := range ids {
		_, err := s.Complete(ctx, id)
		switch code := apperror.CodeOf(err); {
		case err == nil:
			res.Processed++
		case code == "STA_001" || code == "WIN_002":
			res.Skipped++
		default:
			res.Failed++
			s.Log.Warn().Err(err).Str("order_id", id.String()).Msg("auto-complete failed")
		}
	}
	return res, nil
}

// Cancel cancels an undelivered order with the tiered penalty.
func (s *OrderServiceImpl) Cancel(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*ports.RefundResult, error) {
	if err := authorize(actor, domain.CapCancelOrder); err != nil {
		return nil, err
	}

	var result *ports.RefundResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && order.BuyerID != actor.UserID {
			return apperror.ErrNotOwner("order")
		}
		if !order.Cancellable() {
			return apperror.ErrInvalidStateTransition("order", string(order.Status), "cancel")
		}

		now := s.now()
		rate := domain.CancellationPenaltyRate(now.Sub(order.CreatedAt))
		refund, penalty := domain.RefundSplit(order.EscrowRemaining()-order.DeliveryFee, rate)

		if err := s.unwind(ctx, tx, order, refund, penalty, domain.StockReasonOrderCancelled, "CANCEL"); err != nil {
			return err
		}

		order.Status = domain.OrderStatusCancelled
		order.CancelledAt = ptrTime(now)
		order.UpdatedAt = now
		if err := s.Orders.Update(ctx, tx, order); err != nil {
			return dbErr("update order", err)
		}

		if err := s.notifyParties(ctx, tx, order, domain.NotifyOrderCancelled, msgOrderCancelled(order, refund, penalty),
			map[string]any{"refund": refund, "penalty": penalty}); err != nil {
			return err
		}

		result = &ports.RefundResult{
			Order:       order,
			Refund:      refund,
			Penalty:     penalty,
			RetainedFee: order.DeliveryFee,
			PenaltyRate: rate,
		}
		return s.notifier.OrderChanged(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("order_id", orderID.String()).
		Int64("refund", result.Refund).
		Int64("penalty", result.Penalty).
		Str("penalty_rate", result.PenaltyRate.String()).
		Msg("order cancelled")

	return result, nil
}

// RefundDelivered refunds a delivered order inside its dispute window.
func (s *OrderServiceImpl) RefundDelivered(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*ports.RefundResult, error) {
	if err := authorize(actor, domain.CapRefundOrder); err != nil {
		return nil, err
	}

	var result *ports.RefundResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && order.BuyerID != actor.UserID {
			return apperror.ErrNotOwner("order")
		}
		if order.Status != domain.OrderStatusDelivered {
			return apperror.ErrInvalidStateTransition("order", string(order.Status), "refund")
		}
		if order.DeliveredAt == nil {
			return apperror.ErrMissingDeliveryTimestamp()
		}
		now := s.now()
		if !order.InDisputeWindow(now, s.Settings.DisputeWindow) {
			return apperror.ErrWindowExpired("refund")
		}
		open, err := s.Returns.CountOpenForOrder(ctx, tx, order.ID)
		if err != nil {
			return dbErr("count open returns", err)
		}
		if open > 0 {
			return apperror.ErrInvalidStateTransition("order", "DELIVERED with open returns", "refund")
		}

		rate := s.Settings.DeliveredRefundPenaltyRate
		refund, penalty := domain.RefundSplit(order.EscrowRemaining()-order.DeliveryFee, rate)

		if err := s.unwind(ctx, tx, order, refund, penalty, domain.StockReasonOrderRefunded, "REFUND"); err != nil {
			return err
		}

		order.Status = domain.OrderStatusRefunded
		order.UpdatedAt = now
		if err := s.Orders.Update(ctx, tx, order); err != nil {
			return dbErr("update order", err)
		}

		if err := s.notifyParties(ctx, tx, order, domain.NotifyOrderRefunded, msgOrderRefunded(order, refund),
			map[string]any{"refund": refund, "penalty": penalty}); err != nil {
			return err
		}

		result = &ports.RefundResult{
			Order:       order,
			Refund:      refund,
			Penalty:     penalty,
			RetainedFee: order.DeliveryFee,
			PenaltyRate: rate,
		}
		return s.notifier.OrderChanged(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("order_id", orderID.String()).
		Int64("refund", result.Refund).
		Int64("penalty", result.Penalty).
		Msg("delivered order refunded")

	return result, nil
}

// unwind empties an order's remaining escrow (refund to the buyer, penalty
// and delivery fee to the platform) and puts unreturned units back in stock.
func (s *OrderServiceImpl) unwind(ctx context.Context, tx pgx.Tx, order *domain.Order, refund, penalty int64, reason domain.StockReason, kind string) error {
	productIDs := make([]uuid.UUID, 0, len(order.Items))
	for _, it := range order.Items {
		productIDs = append(productIDs, it.ProductID)
	}
	products, err := s.lockProducts(ctx, tx, productIDs...)
	if err != nil {
		return err
	}

	holder := s.escrowHolder(order)
	wallets, err := s.ledger.Lock(ctx, tx, holder, order.BuyerID, s.Settings.PlatformUserID)
	if err != nil {
		return err
	}
	escrow := wallets[holder]
	platform := wallets[s.Settings.PlatformUserID]

	moves := []Settlement{
		heldToBalance(escrow, wallets[order.BuyerID], Movement{
			Type:        domain.TransactionTypeRefund,
			Amount:      refund,
			Reference:   orderRef(order, kind),
			Description: "refund for order " + order.Number,
		}),
		heldToBalance(escrow, platform, Movement{
			Type:        domain.TransactionTypePenalty,
			Amount:      penalty,
			Reference:   orderRef(order, kind+":PENALTY"),
			Description: "penalty retained for order " + order.Number,
		}),
		heldToBalance(escrow, platform, Movement{
			Type:        domain.TransactionTypeFee,
			Amount:      order.DeliveryFee,
			Reference:   orderRef(order, "DELIVERY"),
			Description: "delivery fee retained for order " + order.Number,
		}),
	}
	for _, m := range moves {
		if err := s.ledger.Settle(ctx, tx, m); err != nil {
			return err
		}
	}

	for _, it := range order.Items {
		returned, err := s.Returns.SumRequestedQuantity(ctx, tx, it.ID)
		if err != nil {
			return dbErr("sum returned quantity", err)
		}
		if err := s.stock.Adjust(ctx, tx, products[it.ProductID], it.Quantity-returned, reason); err != nil {
			return err
		}
	}
	return nil
}

// AdvanceStatus moves an order one step along CREATED→PROCESSING→SHIPPED→DELIVERED.
// Sellers of the order move it to PROCESSING and SHIPPED; only the assigned
// courier marks it DELIVERED. Admins may do either.
func (s *OrderServiceImpl) AdvanceStatus(ctx context.Context, actor domain.Actor, orderID uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	if err := authorize(actor, domain.CapAdvanceOrder); err != nil {
		return nil, err
	}

	var order *domain.Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		order, err = s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanAdvanceTo(next) {
			return apperror.ErrInvalidStateTransition("order", string(order.Status), fmt.Sprintf("advance to %s", next))
		}

		if !actor.IsAdmin() {
			switch next {
			case domain.OrderStatusDelivered:
				if actor.Role != domain.RoleCourier {
					return apperror.ErrForbidden()
				}
				if order.AssignedCourierID == nil || *order.AssignedCourierID != actor.UserID {
					return apperror.ErrNotAssigned()
				}
			default:
				if !order.HasSeller(actor.UserID) {
					return apperror.ErrNotOwner("order")
				}
			}
		}

		now := s.now()
		order.Status = next
		order.UpdatedAt = now
		if next == domain.OrderStatusDelivered {
			order.DeliveredAt = ptrTime(now)
		}
		if err := s.Orders.Update(ctx, tx, order); err != nil {
			return dbErr("update order", err)
		}

		if err := s.notifier.Notify(ctx, tx, order.BuyerID, domain.NotifyOrderStatusChanged,
			domain.OrderRef(order.ID), msgOrderStatusChanged(order), map[string]any{"status": next}); err != nil {
			return err
		}
		return s.notifier.OrderChanged(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("order_id", order.ID.String()).
		Str("status", string(order.Status)).
		Str("actor_id", actor.UserID.String()).
		Msg("order status advanced")

	return order, nil
}

// AssignCourier records the calling courier as the order's deliverer.
func (s *OrderServiceImpl) AssignCourier(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error) {
	if err := authorize(actor, domain.CapClaimDelivery); err != nil {
		return nil, err
	}

	var order *domain.Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		order, err = s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusProcessing && order.Status != domain.OrderStatusShipped {
			return apperror.ErrInvalidStateTransition("order", string(order.Status), "assign courier to")
		}
		if order.AssignedCourierID != nil && *order.AssignedCourierID != actor.UserID {
			return apperror.ErrNotAssigned()
		}

		now := s.now()
		order.AssignedCourierID = ptrUUID(actor.UserID)
		order.AssignedAt = ptrTime(now)
		order.UpdatedAt = now
		if err := s.Orders.Update(ctx, tx, order); err != nil {
			return dbErr("update order", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder returns an order to its buyer, its sellers, its courier or an admin.
func (s *OrderServiceImpl) GetOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error) {
	if err := authorize(actor, domain.CapViewOrder); err != nil {
		return nil, err
	}
	order, err := s.Orders.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, dbErr("get order", err)
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}

	switch {
	case actor.IsAdmin(), order.BuyerID == actor.UserID, order.HasSeller(actor.UserID):
		return order, nil
	case order.AssignedCourierID != nil && *order.AssignedCourierID == actor.UserID:
		return order, nil
	}
	return nil, apperror.ErrNotOwner("order")
}

// notifyParties notifies the buyer and every seller of the order.
func (s *OrderServiceImpl) notifyParties(ctx context.Context, tx pgx.Tx, order *domain.Order, typ domain.NotificationType, msg Message, extra map[string]any) error {
	if err := s.notifier.Notify(ctx, tx, order.BuyerID, typ, domain.OrderRef(order.ID), msg, extra); err != nil {
		return err
	}
	for _, g := range order.GrossBySeller() {
		if err := s.notifier.Notify(ctx, tx, g.SellerID, typ, domain.OrderRef(order.ID), msg, extra); err != nil {
			return err
		}
	}
	return nil
}
