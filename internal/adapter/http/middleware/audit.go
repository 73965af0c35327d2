package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action   domain.AuditAction
	resource string
	param    string
}

// auditedRoutes maps "METHOD route-pattern" to the action it records.
var auditedRoutes = map[string]auditRoute{
	"PUT /api/v1/admin/wallets/:user_id/status": {domain.AuditActionWalletStatus, "wallet", "user_id"},
	"POST /api/v1/orders/:id/complete":          {domain.AuditActionOrderComplete, "order", "id"},
	"POST /api/v1/orders/:id/cancel":            {domain.AuditActionOrderCancel, "order", "id"},
	"POST /api/v1/orders/:id/refund":            {domain.AuditActionOrderRefund, "order", "id"},
	"POST /api/v1/orders/:id/status":            {domain.AuditActionOrderAdvance, "order", "id"},
	"POST /api/v1/auctions/:id/review":          {domain.AuditActionAuctionReview, "auction", "id"},
	"POST /api/v1/auctions/:id/close":           {domain.AuditActionAuctionClose, "auction", "id"},
	"POST /api/v1/auctions/:id/cancel":          {domain.AuditActionAuctionCancel, "auction", "id"},
	"POST /api/v1/returns/:id/inspection":       {domain.AuditActionReturnInspect, "return_request", "id"},
	"POST /api/v1/returns/:id/approve":          {domain.AuditActionReturnSettle, "return_request", "id"},
	"POST /api/v1/returns/:id/reject":           {domain.AuditActionReturnSettle, "return_request", "id"},
}

// AuditLog records successful privileged writes after the handler has run.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		route, ok := mapRouteToAction(c.Request.Method, c.FullPath())
		if !ok {
			return
		}

		entry := domain.AuditLog{
			ID:           uuid.New(),
			Action:       route.action,
			ResourceType: route.resource,
			ResourceID:   c.Param(route.param),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if actor, ok := ActorFrom(c); ok {
			id := actor.UserID
			entry.ActorID = &id
			entry.ActorRole = actor.Role
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapRouteToAction(method, fullPath string) (auditRoute, bool) {
	r, ok := auditedRoutes[method+" "+fullPath]
	return r, ok
}
