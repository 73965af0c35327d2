package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionWalletStatus   AuditAction = "WALLET_STATUS"
	AuditActionOrderComplete  AuditAction = "ORDER_COMPLETE"
	AuditActionOrderCancel    AuditAction = "ORDER_CANCEL"
	AuditActionOrderRefund    AuditAction = "ORDER_REFUND"
	AuditActionOrderAdvance   AuditAction = "ORDER_ADVANCE"
	AuditActionAuctionReview  AuditAction = "AUCTION_REVIEW"
	AuditActionAuctionClose   AuditAction = "AUCTION_CLOSE"
	AuditActionAuctionCancel  AuditAction = "AUCTION_CANCEL"
	AuditActionReturnInspect  AuditAction = "RETURN_INSPECT"
	AuditActionReturnSettle   AuditAction = "RETURN_SETTLE"
	AuditActionScheduledSweep AuditAction = "SCHEDULED_SWEEP"
)

// AuditLog records a single privileged action.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	ActorRole    Role        `json:"actor_role"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
