package domain

import (
	"github.com/google/uuid"
)

// Role is the closed set of actor roles.
type Role string

const (
	RoleBuyer   Role = "BUYER"
	RoleSeller  Role = "SELLER"
	RoleCourier Role = "COURIER"
	RoleAdmin   Role = "ADMIN"
	RoleSystem  Role = "SYSTEM" // scheduler and other in-process triggers
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleCourier, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Capability is a single permission checked at an entry point.
type Capability string

const (
	CapManageWallet      Capability = "wallet:manage"
	CapAdministerWallets Capability = "wallet:administer"
	CapCheckout          Capability = "order:checkout"
	CapCancelOrder       Capability = "order:cancel"
	CapRefundOrder       Capability = "order:refund"
	CapAdvanceOrder      Capability = "order:advance"
	CapClaimDelivery     Capability = "order:claim-delivery"
	CapCompleteOrder     Capability = "order:complete"
	CapViewOrder         Capability = "order:view"
	CapBid               Capability = "auction:bid"
	CapBuyNow            Capability = "auction:buy-now"
	CapManageOwnAuction  Capability = "auction:manage-own"
	CapReviewAuction     Capability = "auction:review"
	CapCloseAuction      Capability = "auction:close"
	CapCancelAnyAuction  Capability = "auction:cancel-any"
	CapRequestReturn     Capability = "return:request"
	CapInspectReturn     Capability = "return:inspect"
	CapSettleReturn      Capability = "return:settle"
	CapApproveResale     Capability = "return:approve-resale"
	CapReadNotifications Capability = "notification:read"
	CapRunScheduledJobs  Capability = "system:scheduled-jobs"
)

var roleCapabilities = map[Role][]Capability{
	RoleBuyer: {
		CapManageWallet, CapCheckout, CapCancelOrder, CapRefundOrder, CapViewOrder,
		CapBid, CapBuyNow, CapRequestReturn, CapReadNotifications,
	},
	RoleSeller: {
		CapManageWallet, CapCheckout, CapCancelOrder, CapRefundOrder, CapViewOrder,
		CapAdvanceOrder, CapBid, CapBuyNow, CapManageOwnAuction, CapRequestReturn,
		CapApproveResale, CapReadNotifications,
	},
	RoleCourier: {
		CapManageWallet, CapAdvanceOrder, CapClaimDelivery, CapViewOrder, CapReadNotifications,
	},
	RoleAdmin: {
		CapManageWallet, CapAdministerWallets, CapCancelOrder, CapRefundOrder, CapAdvanceOrder,
		CapCompleteOrder, CapViewOrder, CapReviewAuction, CapCloseAuction, CapCancelAnyAuction,
		CapInspectReturn, CapSettleReturn, CapReadNotifications,
	},
	RoleSystem: {
		CapCompleteOrder, CapCloseAuction, CapRunScheduledJobs,
	},
}

// Can is the single authorization check for every entry point.
func Can(role Role, c Capability) bool {
	for _, granted := range roleCapabilities[role] {
		if granted == c {
			return true
		}
	}
	return false
}

// Actor is the authenticated caller of a business operation.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// SystemActor is the identity used by scheduled jobs.
var SystemActor = Actor{Role: RoleSystem}

// Can reports whether the actor's role grants c.
func (a Actor) Can(c Capability) bool {
	return Can(a.Role, c)
}

// IsAdmin reports whether the actor is a platform administrator.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
