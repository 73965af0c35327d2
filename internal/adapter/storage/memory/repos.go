package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func lessID(a, b uuid.UUID) bool {
	return strings.Compare(a.String(), b.String()) < 0
}

// --- Wallets ---

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct{ s *Store }

func (s *Store) Wallets() *WalletRepo { return &WalletRepo{s: s} }

func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	return r.s.do(tx, func(st *state) error {
		for _, existing := range st.wallets {
			if existing.UserID == w.UserID {
				return ports.ErrDuplicateKey
			}
		}
		st.wallets[w.ID] = *w
		return nil
	})
}

func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	var out *domain.Wallet
	err := r.s.do(nil, func(st *state) error {
		out = st.walletOf(userID)
		return nil
	})
	return out, err
}

func (r *WalletRepo) GetByUserIDsForUpdate(ctx context.Context, tx pgx.Tx, userIDs []uuid.UUID) (map[uuid.UUID]*domain.Wallet, error) {
	out := make(map[uuid.UUID]*domain.Wallet, len(userIDs))
	err := r.s.do(tx, func(st *state) error {
		for _, id := range userIDs {
			if w := st.walletOf(id); w != nil {
				out[id] = w
			}
		}
		return nil
	})
	return out, err
}

func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	return r.s.do(tx, func(st *state) error {
		cur, ok := st.wallets[w.ID]
		if !ok {
			return fmt.Errorf("wallet %s not found", w.ID)
		}
		cur.Balance = w.Balance
		cur.HeldBalance = w.HeldBalance
		cur.UpdatedAt = w.UpdatedAt
		st.wallets[w.ID] = cur
		return nil
	})
}

func (r *WalletRepo) SetActive(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, active bool) error {
	return r.s.do(tx, func(st *state) error {
		cur, ok := st.wallets[walletID]
		if !ok {
			return fmt.Errorf("wallet %s not found", walletID)
		}
		cur.IsActive = active
		st.wallets[walletID] = cur
		return nil
	})
}

func (st *state) walletOf(userID uuid.UUID) *domain.Wallet {
	for _, w := range st.wallets {
		if w.UserID == userID {
			cp := w
			return &cp
		}
	}
	return nil
}

// --- Ledger ---

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct{ s *Store }

func (s *Store) Transactions() *TransactionRepo { return &TransactionRepo{s: s} }

func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	return r.s.do(tx, func(st *state) error {
		for _, existing := range st.transactions {
			if existing.WalletID == t.WalletID && existing.Type == t.Type && existing.Reference == t.Reference {
				return ports.ErrDuplicateKey
			}
		}
		st.transactions = append(st.transactions, *t)
		return nil
	})
}

func (r *TransactionRepo) GetByReference(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, txType domain.TransactionType, reference string) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := r.s.do(tx, func(st *state) error {
		for _, t := range st.transactions {
			if t.WalletID == walletID && t.Type == txType && t.Reference == reference {
				cp := t
				out = &cp
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *TransactionRepo) SumHeldByPrefix(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, prefix string) (int64, error) {
	var sum int64
	err := r.s.do(tx, func(st *state) error {
		for _, t := range st.transactions {
			if t.WalletID == walletID && strings.HasPrefix(t.Reference, prefix) {
				sum += t.HeldDelta
			}
		}
		return nil
	})
	return sum, err
}

func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var result []domain.Transaction
	err := r.s.do(nil, func(st *state) error {
		for _, t := range st.transactions {
			if t.WalletID != params.WalletID {
				continue
			}
			if params.Type != nil && t.Type != *params.Type {
				continue
			}
			if params.From != nil && t.CreatedAt.Before(*params.From) {
				continue
			}
			if params.To != nil && !t.CreatedAt.Before(*params.To) {
				continue
			}
			result = append(result, t)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start < 0 || start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- Users ---

// UserRepo implements ports.UserRepository.
type UserRepo struct{ s *Store }

func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Put inserts or replaces a user. Profiles are owned elsewhere; this seeds them.
func (r *UserRepo) Put(u domain.User) {
	_ = r.s.do(nil, func(st *state) error {
		st.users[u.ID] = u
		return nil
	})
}

func (r *UserRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	var out *domain.User
	err := r.s.do(tx, func(st *state) error {
		if u, ok := st.users[id]; ok {
			out = &u
		}
		return nil
	})
	return out, err
}

func (r *UserRepo) AdjustPoints(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (domain.PointsChange, error) {
	var change domain.PointsChange
	err := r.s.do(tx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return fmt.Errorf("user %s not found", id)
		}
		change.Before = u.Points
		u.Points += delta
		if u.Points < 0 {
			u.Points = 0
		}
		change.After = u.Points
		st.users[id] = u
		return nil
	})
	return change, err
}

func (r *UserRepo) MarkVerifiedSeller(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	var changed bool
	err := r.s.do(tx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return fmt.Errorf("user %s not found", id)
		}
		changed = !u.IsVerifiedSeller
		u.IsVerifiedSeller = true
		st.users[id] = u
		return nil
	})
	return changed, err
}

// --- Products and carts ---

// ProductRepo implements ports.ProductRepository.
type ProductRepo struct{ s *Store }

func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }

// Put inserts or replaces a product.
func (r *ProductRepo) Put(p domain.Product) {
	_ = r.s.do(nil, func(st *state) error {
		st.products[p.ID] = p
		return nil
	})
}

func (r *ProductRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Product, error) {
	var out *domain.Product
	err := r.s.do(tx, func(st *state) error {
		if p, ok := st.products[id]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

func (r *ProductRepo) GetManyForUpdate(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	out := make(map[uuid.UUID]*domain.Product, len(ids))
	err := r.s.do(tx, func(st *state) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				out[id] = &p
			}
		}
		return nil
	})
	return out, err
}

func (r *ProductRepo) UpdateStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, stock int64) error {
	return r.s.do(tx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return fmt.Errorf("product %s not found", id)
		}
		p.Stock = stock
		st.products[id] = p
		return nil
	})
}

func (r *ProductRepo) ClearExpiredSales(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.s.do(nil, func(st *state) error {
		for id, p := range st.products {
			if p.SalePrice != nil && p.SaleEndsAt != nil && !now.Before(*p.SaleEndsAt) {
				p.SalePrice = nil
				p.SaleEndsAt = nil
				p.UpdatedAt = now
				st.products[id] = p
				n++
			}
		}
		return nil
	})
	return n, err
}

// CartRepo implements ports.CartRepository.
type CartRepo struct{ s *Store }

func (s *Store) Carts() *CartRepo { return &CartRepo{s: s} }

// Put sets the quantity of a product in a buyer's cart.
func (r *CartRepo) Put(line domain.CartLine) {
	_ = r.s.do(nil, func(st *state) error {
		lines := st.carts[line.BuyerID]
		for i := range lines {
			if lines[i].ProductID == line.ProductID {
				updated := append([]domain.CartLine(nil), lines...)
				updated[i] = line
				st.carts[line.BuyerID] = updated
				return nil
			}
		}
		st.carts[line.BuyerID] = append(append([]domain.CartLine(nil), lines...), line)
		return nil
	})
}

func (r *CartRepo) ListLines(ctx context.Context, tx pgx.Tx, buyerID uuid.UUID) ([]domain.CartLine, error) {
	var out []domain.CartLine
	err := r.s.do(tx, func(st *state) error {
		out = append(out, st.carts[buyerID]...)
		return nil
	})
	return out, err
}

func (r *CartRepo) Clear(ctx context.Context, tx pgx.Tx, buyerID uuid.UUID) error {
	return r.s.do(tx, func(st *state) error {
		delete(st.carts, buyerID)
		return nil
	})
}

func (r *CartRepo) ClampToStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, stock int64) (int64, error) {
	var touched int64
	err := r.s.do(tx, func(st *state) error {
		for buyer, lines := range st.carts {
			var kept []domain.CartLine
			changed := false
			for _, l := range lines {
				if l.ProductID == productID && l.Quantity > stock {
					changed = true
					touched++
					if stock <= 0 {
						continue
					}
					l.Quantity = stock
				}
				kept = append(kept, l)
			}
			if changed {
				st.carts[buyer] = kept
			}
		}
		return nil
	})
	return touched, err
}

// --- Orders ---

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct{ s *Store }

func (s *Store) Orders() *OrderRepo { return &OrderRepo{s: s} }

func copyOrder(o domain.Order) *domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return &o
}

func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	return r.s.do(tx, func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return ports.ErrDuplicateKey
		}
		for _, existing := range st.orders {
			if existing.Number == o.Number {
				return ports.ErrDuplicateKey
			}
		}
		st.orders[o.ID] = *copyOrder(*o)
		return nil
	})
}

func (r *OrderRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.do(tx, func(st *state) error {
		if o, ok := st.orders[id]; ok {
			out = copyOrder(o)
		}
		return nil
	})
	return out, err
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	return r.GetByID(ctx, tx, id)
}

// Update stores the order header; items keep their stored refunds.
func (r *OrderRepo) Update(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	return r.s.do(tx, func(st *state) error {
		cur, ok := st.orders[o.ID]
		if !ok {
			return fmt.Errorf("order %s not found", o.ID)
		}
		updated := *copyOrder(*o)
		updated.Items = cur.Items
		st.orders[o.ID] = updated
		return nil
	})
}

func (r *OrderRepo) UpdateItemRefund(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, refunded int64) error {
	return r.s.do(tx, func(st *state) error {
		for id, o := range st.orders {
			for i := range o.Items {
				if o.Items[i].ID == itemID {
					updated := copyOrder(o)
					updated.Items[i].RefundedAmount = refunded
					st.orders[id] = *updated
					return nil
				}
			}
		}
		return fmt.Errorf("order item %s not found", itemID)
	})
}

func (r *OrderRepo) ListDueForCompletion(ctx context.Context, deliveredBefore time.Time, limit int) ([]uuid.UUID, error) {
	var due []domain.Order
	err := r.s.do(nil, func(st *state) error {
		for _, o := range st.orders {
			if o.Status == domain.OrderStatusDelivered && o.DeliveredAt != nil && !o.DeliveredAt.After(deliveredBefore) {
				due = append(due, o)
			}
		}
		return nil
	})
	sort.Slice(due, func(i, j int) bool { return due[i].DeliveredAt.Before(*due[j].DeliveredAt) })
	return firstIDs(due, limit, func(o domain.Order) uuid.UUID { return o.ID }), err
}

func firstIDs[T any](rows []T, limit int, id func(T) uuid.UUID) []uuid.UUID {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		out = append(out, id(row))
	}
	return out
}

// --- Auctions ---

// AuctionRepo implements ports.AuctionRepository.
type AuctionRepo struct{ s *Store }

func (s *Store) Auctions() *AuctionRepo { return &AuctionRepo{s: s} }

func (r *AuctionRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.Auction) error {
	return r.s.do(tx, func(st *state) error {
		if _, ok := st.auctions[a.ID]; ok {
			return ports.ErrDuplicateKey
		}
		st.auctions[a.ID] = *a
		return nil
	})
}

func (r *AuctionRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Auction, error) {
	var out *domain.Auction
	err := r.s.do(tx, func(st *state) error {
		if a, ok := st.auctions[id]; ok {
			out = &a
		}
		return nil
	})
	return out, err
}

func (r *AuctionRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Auction, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *AuctionRepo) Update(ctx context.Context, tx pgx.Tx, a *domain.Auction) error {
	return r.s.do(tx, func(st *state) error {
		if _, ok := st.auctions[a.ID]; !ok {
			return fmt.Errorf("auction %s not found", a.ID)
		}
		st.auctions[a.ID] = *a
		return nil
	})
}

func (r *AuctionRepo) ListBids(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) ([]domain.Bid, error) {
	var out []domain.Bid
	err := r.s.do(tx, func(st *state) error {
		out = append(out, st.bids[auctionID]...)
		return nil
	})
	domain.SortBids(out)
	return out, err
}

func (r *AuctionRepo) CreateBid(ctx context.Context, tx pgx.Tx, b *domain.Bid) error {
	return r.s.do(tx, func(st *state) error {
		st.bids[b.AuctionID] = append(append([]domain.Bid(nil), st.bids[b.AuctionID]...), *b)
		return nil
	})
}

func (r *AuctionRepo) ListDueForActivation(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.listDue(limit, func(a domain.Auction) bool { return a.DueForActivation(now) })
}

func (r *AuctionRepo) ListDueForClosing(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.listDue(limit, func(a domain.Auction) bool {
		return a.Status == domain.AuctionStatusActive && !now.Before(a.EndAt)
	})
}

func (r *AuctionRepo) listDue(limit int, due func(domain.Auction) bool) ([]uuid.UUID, error) {
	var rows []domain.Auction
	err := r.s.do(nil, func(st *state) error {
		for _, a := range st.auctions {
			if due(a) {
				rows = append(rows, a)
			}
		}
		return nil
	})
	sort.Slice(rows, func(i, j int) bool { return lessID(rows[i].ID, rows[j].ID) })
	return firstIDs(rows, limit, func(a domain.Auction) uuid.UUID { return a.ID }), err
}

// --- Returns ---

// ReturnRepo implements ports.ReturnRepository.
type ReturnRepo struct{ s *Store }

func (s *Store) Returns() *ReturnRepo { return &ReturnRepo{s: s} }

func copyReturn(r domain.ReturnRequest) *domain.ReturnRequest {
	r.Inspection = append(domain.Breakdown(nil), r.Inspection...)
	return &r
}

func (r *ReturnRepo) Create(ctx context.Context, tx pgx.Tx, req *domain.ReturnRequest) error {
	return r.s.do(tx, func(st *state) error {
		if _, ok := st.returns[req.ID]; ok {
			return ports.ErrDuplicateKey
		}
		st.returns[req.ID] = *copyReturn(*req)
		return nil
	})
}

func (r *ReturnRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ReturnRequest, error) {
	var out *domain.ReturnRequest
	err := r.s.do(tx, func(st *state) error {
		if req, ok := st.returns[id]; ok {
			out = copyReturn(req)
		}
		return nil
	})
	return out, err
}

func (r *ReturnRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ReturnRequest, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *ReturnRepo) Update(ctx context.Context, tx pgx.Tx, req *domain.ReturnRequest) error {
	return r.s.do(tx, func(st *state) error {
		if _, ok := st.returns[req.ID]; !ok {
			return fmt.Errorf("return request %s not found", req.ID)
		}
		st.returns[req.ID] = *copyReturn(*req)
		return nil
	})
}

func (r *ReturnRepo) SumRequestedQuantity(ctx context.Context, tx pgx.Tx, orderItemID uuid.UUID) (int64, error) {
	var sum int64
	err := r.s.do(tx, func(st *state) error {
		for _, req := range st.returns {
			if req.OrderItemID == orderItemID && req.Status != domain.ReturnStatusRejected {
				sum += req.Quantity
			}
		}
		return nil
	})
	return sum, err
}

func (r *ReturnRepo) CountOpenForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int64, error) {
	var n int64
	err := r.s.do(tx, func(st *state) error {
		for _, req := range st.returns {
			if req.OrderID == orderID && req.Status.IsOpen() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *ReturnRepo) CreateReturnedProduct(ctx context.Context, tx pgx.Tx, rp *domain.ReturnedProduct) error {
	return r.s.do(tx, func(st *state) error {
		for _, existing := range st.returnedProducts {
			if existing.ReturnRequestID == rp.ReturnRequestID && existing.Condition == rp.Condition {
				return ports.ErrDuplicateKey
			}
		}
		st.returnedProducts[rp.ID] = *rp
		return nil
	})
}

func (r *ReturnRepo) ListReturnedProducts(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) ([]domain.ReturnedProduct, error) {
	var out []domain.ReturnedProduct
	err := r.s.do(tx, func(st *state) error {
		for _, rp := range st.returnedProducts {
			if rp.ReturnRequestID == requestID {
				out = append(out, rp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Condition < out[j].Condition })
	return out, err
}

func (r *ReturnRepo) GetReturnedProductForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ReturnedProduct, error) {
	var out *domain.ReturnedProduct
	err := r.s.do(tx, func(st *state) error {
		if rp, ok := st.returnedProducts[id]; ok {
			out = &rp
		}
		return nil
	})
	return out, err
}

func (r *ReturnRepo) UpdateReturnedProduct(ctx context.Context, tx pgx.Tx, rp *domain.ReturnedProduct) error {
	return r.s.do(tx, func(st *state) error {
		if _, ok := st.returnedProducts[rp.ID]; !ok {
			return fmt.Errorf("returned product %s not found", rp.ID)
		}
		st.returnedProducts[rp.ID] = *rp
		return nil
	})
}

// --- Notifications, outbox, audit ---

// NotificationRepo implements ports.NotificationRepository.
type NotificationRepo struct{ s *Store }

func (s *Store) Notifications() *NotificationRepo { return &NotificationRepo{s: s} }

func (r *NotificationRepo) Create(ctx context.Context, tx pgx.Tx, n *domain.Notification) error {
	return r.s.do(tx, func(st *state) error {
		st.notifications = append(st.notifications, *n)
		return nil
	})
}

// ListForUser returns the user's notifications, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := r.s.do(nil, func(st *state) error {
		for i := len(st.notifications) - 1; i >= 0; i-- {
			if st.notifications[i].UserID == userID {
				out = append(out, st.notifications[i])
				if limit > 0 && len(out) == limit {
					break
				}
			}
		}
		return nil
	})
	return out, err
}

// OutboxRepo implements ports.OutboxRepository.
type OutboxRepo struct{ s *Store }

func (s *Store) Outbox() *OutboxRepo { return &OutboxRepo{s: s} }

func (r *OutboxRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.OutboxEvent) error {
	return r.s.do(tx, func(st *state) error {
		st.outbox = append(st.outbox, *e)
		return nil
	})
}

func (r *OutboxRepo) ClaimPending(ctx context.Context, tx pgx.Tx, limit, maxAttempts int) ([]domain.OutboxEvent, error) {
	var out []domain.OutboxEvent
	err := r.s.do(tx, func(st *state) error {
		for _, e := range st.outbox {
			if e.PublishedAt != nil || e.Attempts >= maxAttempts {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	return r.update(tx, id, func(e *domain.OutboxEvent) {
		e.Attempts++
		e.PublishedAt = &at
	})
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) error {
	return r.update(tx, id, func(e *domain.OutboxEvent) {
		e.Attempts++
		e.LastError = &reason
	})
}

func (r *OutboxRepo) update(tx pgx.Tx, id uuid.UUID, fn func(e *domain.OutboxEvent)) error {
	return r.s.do(tx, func(st *state) error {
		for i := range st.outbox {
			if st.outbox[i].ID == id {
				fn(&st.outbox[i])
				return nil
			}
		}
		return fmt.Errorf("outbox event %s not found", id)
	})
}

// Pending returns every unpublished event in append order.
func (r *OutboxRepo) Pending() []domain.OutboxEvent {
	var out []domain.OutboxEvent
	_ = r.s.do(nil, func(st *state) error {
		for _, e := range st.outbox {
			if e.PublishedAt == nil {
				out = append(out, e)
			}
		}
		return nil
	})
	return out
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct{ s *Store }

func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }

func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	return r.s.do(nil, func(st *state) error {
		st.audit = append(st.audit, *entry)
		return nil
	})
}

// Entries returns every audit entry in insertion order.
func (r *AuditRepo) Entries() []domain.AuditLog {
	var out []domain.AuditLog
	_ = r.s.do(nil, func(st *state) error {
		out = append(out, st.audit...)
		return nil
	})
	return out
}

// LedgerEntries returns every entry of the wallet in insertion order.
func (r *TransactionRepo) LedgerEntries(walletID uuid.UUID) []domain.Transaction {
	var out []domain.Transaction
	_ = r.s.do(nil, func(st *state) error {
		for _, t := range st.transactions {
			if t.WalletID == walletID {
				out = append(out, t)
			}
		}
		return nil
	})
	return out
}

var (
	_ ports.WalletRepository       = (*WalletRepo)(nil)
	_ ports.TransactionRepository  = (*TransactionRepo)(nil)
	_ ports.UserRepository         = (*UserRepo)(nil)
	_ ports.ProductRepository      = (*ProductRepo)(nil)
	_ ports.CartRepository         = (*CartRepo)(nil)
	_ ports.OrderRepository        = (*OrderRepo)(nil)
	_ ports.AuctionRepository      = (*AuctionRepo)(nil)
	_ ports.ReturnRepository       = (*ReturnRepo)(nil)
	_ ports.NotificationRepository = (*NotificationRepo)(nil)
	_ ports.OutboxRepository       = (*OutboxRepo)(nil)
	_ ports.AuditRepository        = (*AuditRepo)(nil)
	_ ports.DBTransactor           = (*Store)(nil)
)
