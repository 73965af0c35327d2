package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuctionServiceImpl implements ports.AuctionService.
type AuctionServiceImpl struct {
	*engine
}

// NewAuctionService creates a new AuctionServiceImpl.
func NewAuctionService(d Deps) *AuctionServiceImpl {
	return &AuctionServiceImpl{engine: newEngine(d)}
}

func bidHoldRef(auctionID, bidID uuid.UUID) string {
	return domain.AuctionHoldPrefix(auctionID) + "BID:" + bidID.String()
}

// Create drafts an auction for one of the seller's products and reserves its stock.
func (s *AuctionServiceImpl) Create(ctx context.Context, actor domain.Actor, req ports.CreateAuctionRequest) (*domain.Auction, error) {
	if err := authorize(actor, domain.CapManageOwnAuction); err != nil {
		return nil, err
	}

	now := s.now()
	a := &domain.Auction{
		ID:              uuid.New(),
		SellerID:        actor.UserID,
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		StartPrice:      req.StartPrice,
		ReservePrice:    req.ReservePrice,
		BuyNowPrice:     req.BuyNowPrice,
		MinIncrement:    req.MinIncrement,
		StartAt:         req.StartAt.UTC(),
		EndAt:           req.EndAt.UTC(),
		AntiSnipeWindow: req.AntiSnipeWindow,
		Extension:       req.Extension,
		Status:          domain.AuctionStatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if a.Quantity == 0 {
		a.Quantity = 1
	}
	if a.MinIncrement == 0 {
		a.MinIncrement = s.Settings.DefaultMinIncrement
	}
	if a.AntiSnipeWindow == 0 {
		a.AntiSnipeWindow = s.Settings.DefaultAntiSnipeWindow
	}
	if a.Extension == 0 {
		a.Extension = s.Settings.DefaultExtension
	}
	if a.Title == "" {
		return nil, apperror.Validation("title is required")
	}
	if err := a.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if a.StartAt.Before(now) {
		return nil, apperror.Validation("start time must not be in the past")
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		products, err := s.lockProducts(ctx, tx, a.ProductID)
		if err != nil {
			return err
		}
		product := products[a.ProductID]
		if product.SellerID != actor.UserID {
			return apperror.ErrNotOwner("product")
		}

		if err := s.Auctions.Create(ctx, tx, a); err != nil {
			return dbErr("create auction", err)
		}
		if err := s.stock.Adjust(ctx, tx, product, -a.Quantity, domain.StockReasonAuctionReserved); err != nil {
			return err
		}
		return s.notifier.AuctionChanged(ctx, tx, a)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("auction_id", a.ID.String()).
		Str("seller_id", a.SellerID.String()).
		Int64("quantity", a.Quantity).
		Msg("auction drafted")

	return a, nil
}

// Submit sends a draft for review.
func (s *AuctionServiceImpl) Submit(ctx context.Context, actor domain.Actor, auctionID uuid.UUID) (*domain.Auction, error) {
	if err := authorize(actor, domain.CapManageOwnAuction); err != nil {
		return nil, err
	}

	var a *domain.Auction
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		a, err = s.lockAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if a.SellerID != actor.UserID {
			return apperror.ErrNotOwner("auction")
		}
		if a.Status != domain.AuctionStatusDraft {
			return apperror.ErrInvalidStateTransition("auction", string(a.Status), "submit")
		}

		a.Status = domain.AuctionStatusSubmitted
		a.UpdatedAt = s.now()
		if err := s.Auctions.Update(ctx, tx, a); err != nil {
			return dbErr("update auction", err)
		}
		if err := s.notifier.Notify(ctx, tx, a.SellerID, domain.NotifyAuctionSubmitted,
			domain.AuctionRef(a.ID), msgAuctionSubmitted(a), nil); err != nil {
			return err
		}
		return s.notifier.AuctionChanged(ctx, tx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Review approves or rejects a submitted auction. Rejection returns the
// reserved stock.
func (s *AuctionServiceImpl) Review(ctx context.Context, actor domain.Actor, auctionID uuid.UUID, req ports.ReviewAuctionRequest) (*domain.Auction, error) {
	if err := authorize(actor, domain.CapReviewAuction); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if !req.Approve && reason == "" {
		return nil, apperror.Validation("rejection reason is required")
	}

	var a *domain.Auction
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		a, err = s.lockAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if a.Status != domain.AuctionStatusSubmitted {
			return apperror.ErrInvalidStateTransition("auction", string(a.Status), "review")
		}

		now := s.now()
		a.UpdatedAt = now
		var typ domain.NotificationType
		var msg Message
		if req.Approve {
			a.Status = domain.AuctionStatusApproved
			a.ApprovedAt = ptrTime(now)
			a.ApprovedBy = ptrUUID(actor.UserID)
			typ, msg = domain.NotifyAuctionApproved, msgAuctionApproved(a)
		} else {
			if err := s.releaseStock(ctx, tx, a); err != nil {
				return err
			}
			a.Status = domain.AuctionStatusRejected
			a.RejectionReason = ptrString(reason)
			typ, msg = domain.NotifyAuctionRejected, msgAuctionRejected(a, reason)
		}

		if err := s.Auctions.Update(ctx, tx, a); err != nil {
			return dbErr("update auction", err)
		}
		if err := s.notifier.Notify(ctx, tx, a.SellerID, typ, domain.AuctionRef(a.ID), msg, nil); err != nil {
			return err
		}
		return s.notifier.AuctionChanged(ctx, tx, a)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("auction_id", a.ID.String()).
		Str("status", string(a.Status)).
		Str("admin_id", actor.UserID.String()).
		Msg("auction reviewed")

	return a, nil
}

// PlaceBid accepts a bid on a live auction. The bidder's full amount is held
// unless they already lead, in which case only the raise is held. The
// displaced leader's hold is released.
func (s *AuctionServiceImpl) PlaceBid(ctx context.Context, actor domain.Actor, auctionID uuid.UUID, amount int64) (*ports.BidResult, error) {
	if err := authorize(actor, domain.CapBid); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	var result *ports.BidResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		a, err := s.lockAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		now := s.now()
		if a.DueForActivation(now) {
			if err := s.activate(ctx, tx, a, now); err != nil {
				return err
			}
		}
		if a.Status != domain.AuctionStatusActive {
			return apperror.ErrInvalidStateTransition("auction", string(a.Status), "bid on")
		}
		if !now.Before(a.EndAt) {
			return apperror.ErrWindowExpired("bidding")
		}
		if !a.IsLive(now) {
			return apperror.ErrInvalidStateTransition("auction", "not started", "bid on")
		}
		if a.SellerID == actor.UserID {
			return apperror.ErrForbidden()
		}

		bids, err := s.Auctions.ListBids(ctx, tx, a.ID)
		if err != nil {
			return dbErr("list bids", err)
		}
		leader := domain.Leader(bids)
		selfLeading := leader != nil && leader.BidderID == actor.UserID
		if minAllowed := a.MinNextBid(leader); amount < minAllowed {
			return apperror.ErrBidTooLow(domain.FormatAmount(minAllowed))
		}
		if selfLeading && amount <= leader.Amount {
			return apperror.ErrBidMustExceedCurrent()
		}

		userIDs := []uuid.UUID{actor.UserID}
		if leader != nil && !selfLeading {
			userIDs = append(userIDs, leader.BidderID)
		}
		wallets, err := s.ledger.Lock(ctx, tx, userIDs...)
		if err != nil {
			return err
		}

		bid := domain.Bid{
			ID:        uuid.New(),
			AuctionID: a.ID,
			BidderID:  actor.UserID,
			Amount:    amount,
			CreatedAt: now,
		}
		newHold := amount
		if selfLeading {
			newHold = amount - leader.Amount
		}
		if err := s.ledger.Hold(ctx, tx, wallets[actor.UserID], newHold,
			bidHoldRef(a.ID, bid.ID), "bid on auction "+a.Title); err != nil {
			return err
		}

		if leader != nil && !selfLeading {
			prev := wallets[leader.BidderID]
			if err := s.releaseBidder(ctx, tx, a, prev, "OUTBID:"+bid.ID.String()); err != nil {
				return err
			}
			if err := s.notifier.Notify(ctx, tx, leader.BidderID, domain.NotifyAuctionOutbid,
				domain.AuctionRef(a.ID), msgAuctionOutbid(a, amount), map[string]any{"amount": amount}); err != nil {
				return err
			}
		}

		if err := s.Auctions.CreateBid(ctx, tx, &bid); err != nil {
			return dbErr("create bid", err)
		}

		extended := a.ShouldExtend(now)
		if extended {
			a.EndAt = a.EndAt.Add(a.Extension)
		}
		a.UpdatedAt = now
		if err := s.Auctions.Update(ctx, tx, a); err != nil {
			return dbErr("update auction", err)
		}

		if err := s.notifier.Notify(ctx, tx, a.SellerID, domain.NotifyAuctionNewBid,
			domain.AuctionRef(a.ID), msgAuctionNewBid(a, amount), map[string]any{"amount": amount}); err != nil {
			return err
		}
		if err := s.notifier.BidPlaced(ctx, tx, a, &bid); err != nil {
			return err
		}

		result = &ports.BidResult{Bid: bid, Auction: a, Held: newHold, Extended: extended}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("auction_id", auctionID.String()).
		Str("bidder_id", actor.UserID.String()).
		Int64("amount", amount).
		Bool("extended", result.Extended).
		Msg("bid placed")

	return result, nil
}

// AdminClose ends an active auction now, selling to the highest bid that
// meets the reserve.
func (s *AuctionServiceImpl) AdminClose(ctx context.Context, actor domain.Actor, auctionID uuid.UUID) (*ports.CloseResult, error) {
	if err := authorize(actor, domain.CapCloseAuction); err != nil {
		return nil, err
	}

	var result *ports.CloseResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		a, err := s.lockAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if a.Status != domain.AuctionStatusActive {
			return apperror.ErrInvalidStateTransition("auction", string(a.Status), "close")
		}
		result, err = s.close(ctx, tx, a)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logClose(result)
	return result, nil
}

// CloseDue closes active auctions whose end time has passed.
func (s *AuctionServiceImpl) CloseDue(ctx context.Context, limit int) (ports.SweepResult, error) {
	var res ports.SweepResult
	ids, err := s.Auctions.ListDueForClosing(ctx, s.now(), limit)
	if err != nil {
		return res, dbErr("list auctions due for closing", err)
	}

	for _, id := range ids {
		var result *ports.CloseResult
		err := s.inTx(ctx, func(tx pgx.Tx) error {
			a, err := s.lockAuction(ctx, tx, id)
			if err != nil {
				return err
			}
			// A late bid may have extended the end since the listing.
			if a.Status != domain.AuctionStatusActive || s.now().Before(a.EndAt) {
				return nil
			}
			result, err = s.close(ctx, tx, a)
			return err
		})
		switch {
		case err != nil:
			res.Failed++
			s.Log.Warn().Err(err).Str("auction_id", id.String()).Msg("auction close failed")
		case result == nil:
			res.Skipped++
		default:
			res.Processed++
			s.logClose(result)
		}
	}
	return res, nil
}

// close settles a locked ACTIVE auction.
func (s *AuctionServiceImpl) close(ctx context.Context, tx pgx.Tx, a *domain.Auction) (*ports.CloseResult, error) {
	bids, err := s.Auctions.ListBids(ctx, tx, a.ID)
	if err != nil {
		return nil, dbErr("list bids", err)
	}
	var winner *domain.Bid
	if leader := domain.Leader(bids); leader != nil && a.MeetsReserve(leader.Amount) {
		winner = leader
	}

	if winner == nil {
		if err := s.releaseStock(ctx, tx, a); err != nil {
			return nil, err
		}
	}

	bidders := domain.Bidders(bids)
	wallets, err := s.ledger.Lock(ctx, tx, bidders...)
	if err != nil {
		return nil, err
	}
	for _, bidder := range bidders {
		if winner != nil && bidder == winner.BidderID {
			continue
		}
		if err := s.releaseBidder(ctx, tx, a, wallets[bidder], "CLOSE:"+bidder.String()); err != nil {
			return nil, err
		}
		if err := s.notifier.Notify(ctx, tx, bidder, domain.NotifyAuctionLost,
			domain.AuctionRef(a.ID), msgAuctionLost(a), nil); err != nil {
			return nil, err
		}
	}

	now := s.now()
	result := &ports.CloseResult{Auction: a, Winner: winner}
	a.Status = domain.AuctionStatusEnded
	a.EndedAt = ptrTime(now)
	a.UpdatedAt = now

	if winner == nil {
		if err := s.notifier.Notify(ctx, tx, a.SellerID, domain.NotifyAuctionNoSale,
			domain.AuctionRef(a.ID), msgAuctionNoSale(a), nil); err != nil {
			return nil, err
		}
	} else {
		w := wallets[winner.BidderID]
		held, err := s.ledger.Outstanding(ctx, tx, w, domain.AuctionHoldPrefix(a.ID))
		if err != nil {
			return nil, err
		}
		if held != winner.Amount {
			return nil, apperror.InternalError(fmt.Errorf("winner holds %d on auction %s, expected %d", held, a.ID, winner.Amount))
		}
		if err := s.ledger.Mark(ctx, tx, w, Movement{
			Type:        domain.TransactionTypeEscrowHold,
			Amount:      winner.Amount,
			Reference:   domain.AuctionHoldPrefix(a.ID) + "ESCROW",
			Description: "winning bid becomes order escrow",
		}); err != nil {
			return nil, err
		}

		order, err := s.createLotOrder(ctx, tx, a, winner.BidderID, winner.Amount, domain.EscrowBuyerWallet)
		if err != nil {
			return nil, err
		}
		result.Order = order
		a.WinnerID = ptrUUID(winner.BidderID)
		a.OrderID = ptrUUID(order.ID)

		if err := s.notifier.Notify(ctx, tx, winner.BidderID, domain.NotifyAuctionWon,
			domain.AuctionRef(a.ID), msgAuctionWon(a, winner.Amount, order), map[string]any{"order_id": order.ID}); err != nil {
			return nil, err
		}
		if err := s.notifier.Notify(ctx, tx, a.SellerID, domain.NotifyAuctionSold,
			domain.AuctionRef(a.ID), msgAuctionSold(a, winner.Amount), map[string]any{"order_id": order.ID}); err != nil {
			return nil, err
		}
	}

	if err := s.Auctions.Update(ctx, tx, a); err != nil {
		return nil, dbErr("update auction", err)
	}
	if err := s.notifier.AuctionChanged(ctx, tx, a); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AuctionServiceImpl) logClose(r *ports.CloseResult) {
	ev := s.Log.Info().Str("auction_id", r.Auction.ID.String())
	if r.Winner != nil {
		ev = ev.Str("winner_id", r.Winner.BidderID.String()).Int64("amount", r.Winner.Amount)
	}
	ev.Bool("sold", r.Winner != nil).Msg("auction closed")
}

// BuyNow sells the auction at its buy-now price to the first buyer, before
// any bid. The price moves from the buyer's balance into platform escrow.
func (s *AuctionServiceImpl) BuyNow(ctx context.Context, actor domain.Actor, auctionID uuid.UUID) (*domain.Order, error) {
	if err := authorize(actor, domain.CapBuyNow); err != nil {
		return nil, err
	}

	var order *domain.Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		a, err := s.lockAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		now := s.now()
		if a.DueForActivation(now) {
			if err := s.activate(ctx, tx, a, now); err != nil {
				return err
			}
		}
		if !a.IsLive(now) {
			return apperror.ErrInvalidStateTransition("auction", string(a.Status), "buy now")
		}
		if a.BuyNowPrice == nil {
			return apperror.Validation("auction has no buy-now price")
		}
		if a.SellerID == actor.UserID {
			return apperror.ErrForbidden()
		}
		bids, err := s.Auctions.ListBids(ctx, tx, a.ID)
		if err != nil {
			return dbErr("list bids", err)
		}
		if len(bids) > 0 {
			return apperror.ErrInvalidStateTransition("auction", "with bids", "buy now")
		}

		price := *a.BuyNowPrice
		wallets, err := s.ledger.Lock(ctx, tx, actor.UserID, s.Settings.PlatformUserID)
		if err != nil {
			return err
		}
		if err := s.ledger.Settle(ctx, tx, Settlement{
			From:       wallets[actor.UserID],
			FromBucket: domain.BucketBalance,
			To:         wallets[s.Settings.PlatformUserID],
			ToBucket:   domain.BucketHeld,
			Movement: Movement{
				Type:        domain.TransactionTypePayment,
				Amount:      price,
				Reference:   domain.AuctionHoldPrefix(a.ID) + "BUY_NOW",
				Description: "buy-now purchase of " + a.Title,
			},
		}); err != nil {
			return err
		}

		order, err = s.createLotOrder(ctx, tx, a, actor.UserID, price, domain.EscrowPlatformWallet)
		if err != nil {
			return err
		}

		a.Status = domain.AuctionStatusEnded
		a.EndedAt = ptrTime(now)
		a.UpdatedAt = now
		a.WinnerID = ptrUUID(actor.UserID)
		a.OrderID = ptrUUID(order.ID)
		if err := s.Auctions.Update(ctx, tx, a); err != nil {
			return dbErr("update auction", err)
		}

		if err := s.notifier.Notify(ctx, tx, actor.UserID, domain.NotifyAuctionBought,
			domain.AuctionRef(a.ID), msgAuctionBought(a, price, order), map[string]any{"order_id": order.ID}); err != nil {
			return err
		}
		if err := s.notifier.Notify(ctx, tx, a.SellerID, domain.NotifyAuctionSoldBuyNow,
			domain.AuctionRef(a.ID), msgAuctionSoldBuyNow(a, price), map[string]any{"order_id": order.ID}); err != nil {
			return err
		}
		return s.notifier.AuctionChanged(ctx, tx, a)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("auction_id", auctionID.String()).
		Str("buyer_id", actor.UserID.String()).
		Str("order_id", order.ID.String()).
		Int64("price", order.TotalAmount).
		Msg("auction bought now")

	return order, nil
}

// Cancel withdraws an auction. Admins may cancel any open auction; sellers
// only their own, before it goes live and while it has no bids.
func (s *AuctionServiceImpl) Cancel(ctx context.Context, actor domain.Actor, auctionID uuid.UUID) (*domain.Auction, error) {
	if !actor.Can(domain.CapCancelAnyAuction) && !actor.Can(domain.CapManageOwnAuction) {
		return nil, apperror.ErrForbidden()
	}

	var a *domain.Auction
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		a, err = s.lockAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if a.Status.IsTerminal() {
			return apperror.ErrInvalidStateTransition("auction", string(a.Status), "cancel")
		}

		bids, err := s.Auctions.ListBids(ctx, tx, a.ID)
		if err != nil {
			return dbErr("list bids", err)
		}
		if !actor.Can(domain.CapCancelAnyAuction) {
			if a.SellerID != actor.UserID {
				return apperror.ErrNotOwner("auction")
			}
			if a.Status == domain.AuctionStatusActive {
				return apperror.ErrInvalidStateTransition("auction", string(a.Status), "cancel")
			}
			if len(bids) > 0 {
				return apperror.ErrInvalidStateTransition("auction", "with bids", "cancel")
			}
		}

		if err := s.releaseStock(ctx, tx, a); err != nil {
			return err
		}

		bidders := domain.Bidders(bids)
		wallets, err := s.ledger.Lock(ctx, tx, bidders...)
		if err != nil {
			return err
		}
		for _, bidder := range bidders {
			if err := s.releaseBidder(ctx, tx, a, wallets[bidder], "CANCEL:"+bidder.String()); err != nil {
				return err
			}
		}

		now := s.now()
		a.Status = domain.AuctionStatusCancelled
		a.CancelledAt = ptrTime(now)
		a.CancelledBy = ptrUUID(actor.UserID)
		a.UpdatedAt = now
		if err := s.Auctions.Update(ctx, tx, a); err != nil {
			return dbErr("update auction", err)
		}

		if err := s.notifier.Notify(ctx, tx, a.SellerID, domain.NotifyAuctionCancelled,
			domain.AuctionRef(a.ID), msgAuctionCancelled(a), nil); err != nil {
			return err
		}
		if leader := domain.Leader(bids); leader != nil {
			if err := s.notifier.Notify(ctx, tx, leader.BidderID, domain.NotifyAuctionCancelled,
				domain.AuctionRef(a.ID), msgAuctionCancelled(a), nil); err != nil {
				return err
			}
		}
		return s.notifier.AuctionChanged(ctx, tx, a)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("auction_id", a.ID.String()).
		Str("actor_id", actor.UserID.String()).
		Msg("auction cancelled")

	return a, nil
}

// ActivateIfDue moves an APPROVED auction to ACTIVE once its start time has
// passed. It reports whether this call made the change.
func (s *AuctionServiceImpl) ActivateIfDue(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, bool, error) {
	var a *domain.Auction
	var activated bool
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		a, err = s.lockAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		now := s.now()
		if !a.DueForActivation(now) {
			return nil
		}
		activated = true
		return s.activate(ctx, tx, a, now)
	})
	if err != nil {
		return nil, false, err
	}
	return a, activated, nil
}

// ActivateDue activates every approved auction whose start time has passed.
func (s *AuctionServiceImpl) ActivateDue(ctx context.Context, limit int) (ports.SweepResult, error) {
	var res ports.SweepResult
	ids, err := s.Auctions.ListDueForActivation(ctx, s.now(), limit)
	if err != nil {
		return res, dbErr("list auctions due for activation", err)
	}
	for _, id := range ids {
		_, activated, err := s.ActivateIfDue(ctx, id)
		switch {
		case err != nil:
			res.Failed++
			s.Log.Warn().Err(err).Str("auction_id", id.String()).Msg("auction activation failed")
		case activated:
			res.Processed++
		default:
			res.Skipped++
		}
	}
	return res, nil
}

// Get returns the auction with its ordered bids, activating it first if due.
func (s *AuctionServiceImpl) Get(ctx context.Context, auctionID uuid.UUID) (*ports.AuctionView, error) {
	a, _, err := s.ActivateIfDue(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	bids, err := s.Auctions.ListBids(ctx, nil, auctionID)
	if err != nil {
		return nil, dbErr("list bids", err)
	}
	if bids == nil {
		bids = []domain.Bid{}
	}
	leader := domain.Leader(bids)
	return &ports.AuctionView{
		Auction: a,
		Bids:    bids,
		Leader:  leader,
		MinNext: a.MinNextBid(leader),
	}, nil
}

func (s *AuctionServiceImpl) activate(ctx context.Context, tx pgx.Tx, a *domain.Auction, now time.Time) error {
	a.Status = domain.AuctionStatusActive
	a.UpdatedAt = now
	if err := s.Auctions.Update(ctx, tx, a); err != nil {
		return dbErr("update auction", err)
	}
	if err := s.notifier.Notify(ctx, tx, a.SellerID, domain.NotifyAuctionStarted,
		domain.AuctionRef(a.ID), msgAuctionStarted(a), nil); err != nil {
		return err
	}
	s.Log.Info().Str("auction_id", a.ID.String()).Msg("auction activated")
	return s.notifier.AuctionChanged(ctx, tx, a)
}

// releaseBidder returns whatever the wallet still holds on the auction.
func (s *AuctionServiceImpl) releaseBidder(ctx context.Context, tx pgx.Tx, a *domain.Auction, w *domain.Wallet, suffix string) error {
	held, err := s.ledger.Outstanding(ctx, tx, w, domain.AuctionHoldPrefix(a.ID))
	if err != nil {
		return err
	}
	return s.ledger.Release(ctx, tx, w, held, domain.AuctionHoldPrefix(a.ID)+suffix, "bid released on auction "+a.Title)
}

// releaseStock returns the reserved units to the product.
func (s *AuctionServiceImpl) releaseStock(ctx context.Context, tx pgx.Tx, a *domain.Auction) error {
	products, err := s.lockProducts(ctx, tx, a.ProductID)
	if err != nil {
		return err
	}
	return s.stock.Adjust(ctx, tx, products[a.ProductID], a.Quantity, domain.StockReasonAuctionReleased)
}

// createLotOrder creates the order for an auction sale at the lot price,
// with no delivery fee.
func (s *AuctionServiceImpl) createLotOrder(ctx context.Context, tx pgx.Tx, a *domain.Auction, buyerID uuid.UUID, price int64, mode domain.EscrowMode) (*domain.Order, error) {
	buyer, err := s.Users.GetByID(ctx, tx, buyerID)
	if err != nil {
		return nil, dbErr("get buyer", err)
	}

	now := s.now()
	order := &domain.Order{
		ID:          uuid.New(),
		Number:      domain.NewOrderNumber(now),
		BuyerID:     buyerID,
		TotalAmount: price,
		Status:      domain.OrderStatusCreated,
		EscrowMode:  mode,
		AuctionID:   ptrUUID(a.ID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if buyer != nil && buyer.Shipping != nil {
		order.Shipping = *buyer.Shipping
	}
	order.Items = []domain.OrderItem{domain.NewLotItem(order.ID, a.ProductID, a.SellerID, a.Quantity, price)}

	if err := s.Orders.Create(ctx, tx, order); err != nil {
		return nil, dbErr("create order", err)
	}
	if err := s.notifier.OrderChanged(ctx, tx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *AuctionServiceImpl) lockAuction(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Auction, error) {
	a, err := s.Auctions.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, dbErr("lock auction", err)
	}
	if a == nil {
		return nil, apperror.ErrNotFound("auction")
	}
	return a, nil
}
