package handler

import (
	"escrow-marketplace/internal/adapter/http/middleware"
	redisStore "escrow-marketplace/internal/adapter/storage/redis"
	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc       ports.WalletService
	OrderSvc        ports.OrderService
	AuctionSvc      ports.AuctionService
	ReturnSvc       ports.ReturnService
	NotificationSvc ports.NotificationService
	TokenSvc        ports.TokenService
	AuctionFeed     ports.AuctionFeed          // nil = live auction feed disabled
	RateLimitStore  *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers  []ports.HealthChecker
	AuditSvc        ports.AuditService // nil = audit logging disabled
	BidsPerMinute   int
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep: storage + Redis + event bus)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rules := middleware.DefaultRateLimitRules(deps.BidsPerMinute)

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}
	can := middleware.RequireCapability

	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	// --- Wallet ---
	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallet := v1.Group("/wallets/me", can(domain.CapManageWallet))
	{
		wallet.GET("", rl("read"), walletHandler.GetWallet)
		wallet.POST("/deposits", rl("wallet_movement"), walletHandler.Deposit)
		wallet.POST("/withdrawals", rl("wallet_movement"), walletHandler.Withdraw)
		wallet.GET("/transactions", rl("read"), walletHandler.ListTransactions)
	}

	admin := v1.Group("/admin", rl("admin"))
	{
		admin.PUT("/wallets/:user_id/status", can(domain.CapAdministerWallets), walletHandler.SetStatus)
	}

	// --- Orders ---
	orderHandler := NewOrderHandler(deps.OrderSvc)
	returnHandler := NewReturnHandler(deps.ReturnSvc)
	v1.POST("/orders", rl("checkout"), can(domain.CapCheckout), orderHandler.Checkout)
	orders := v1.Group("/orders/:id")
	{
		orders.GET("", rl("read"), can(domain.CapViewOrder), orderHandler.Get)
		orders.POST("/cancel", rl("checkout"), can(domain.CapCancelOrder), orderHandler.Cancel)
		orders.POST("/refund", rl("checkout"), can(domain.CapRefundOrder), orderHandler.Refund)
		orders.POST("/status", rl("admin"), can(domain.CapAdvanceOrder), orderHandler.Advance)
		orders.POST("/assign", rl("admin"), can(domain.CapClaimDelivery), orderHandler.AssignCourier)
		orders.POST("/complete", rl("admin"), can(domain.CapCompleteOrder), orderHandler.Complete)
		orders.POST("/returns", rl("returns"), can(domain.CapRequestReturn), returnHandler.RequestWholeOrder)
	}

	// --- Auctions ---
	auctionHandler := NewAuctionHandler(deps.AuctionSvc, deps.AuctionFeed, deps.Logger)
	v1.POST("/auctions", rl("admin"), can(domain.CapManageOwnAuction), auctionHandler.Create)
	auctions := v1.Group("/auctions/:id")
	{
		auctions.GET("", rl("read"), auctionHandler.Get)
		auctions.GET("/ws", auctionHandler.Watch)
		auctions.POST("/submit", rl("admin"), can(domain.CapManageOwnAuction), auctionHandler.Submit)
		auctions.POST("/review", rl("admin"), can(domain.CapReviewAuction), auctionHandler.Review)
		auctions.POST("/bids", rl("bids"), can(domain.CapBid), auctionHandler.PlaceBid)
		auctions.POST("/buy-now", rl("bids"), can(domain.CapBuyNow), auctionHandler.BuyNow)
		auctions.POST("/close", rl("admin"), can(domain.CapCloseAuction), auctionHandler.Close)
		// Sellers cancel their own auctions, admins any; the service decides.
		auctions.POST("/cancel", rl("admin"), auctionHandler.Cancel)
	}

	// --- Returns ---
	v1.POST("/returns", rl("returns"), can(domain.CapRequestReturn), returnHandler.Request)
	returns := v1.Group("/returns/:id")
	{
		returns.GET("", rl("read"), returnHandler.Get)
		returns.POST("/inspection", rl("admin"), can(domain.CapInspectReturn), returnHandler.Inspect)
		returns.POST("/approve", rl("admin"), can(domain.CapSettleReturn), returnHandler.Approve)
		returns.POST("/reject", rl("admin"), can(domain.CapSettleReturn), returnHandler.Reject)
	}
	v1.POST("/returned-products/:id/decision", rl("returns"), can(domain.CapApproveResale), returnHandler.DecideResale)

	// --- Notifications ---
	notificationHandler := NewNotificationHandler(deps.NotificationSvc)
	v1.GET("/notifications", rl("read"), can(domain.CapReadNotifications), notificationHandler.List)

	return r
}
