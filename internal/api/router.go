package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mitra-labs/predcore/internal/api/handler"
	"github.com/mitra-labs/predcore/internal/api/middleware"
	"github.com/mitra-labs/predcore/internal/audit"
	"github.com/mitra-labs/predcore/internal/auth"
	"github.com/mitra-labs/predcore/internal/config"
	"github.com/mitra-labs/predcore/internal/merkle"
	"github.com/mitra-labs/predcore/internal/service"
	"github.com/mitra-labs/predcore/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	Verifier   *auth.Verifier
	Groups     *service.GroupService
	Events     *service.EventService
	Betting    *service.BettingService
	Settlement *service.SettlementService
	Reports    *service.ReportService
	Committer  *merkle.Committer
	Audit      *audit.Logger
	Hub        *ws.Hub
	Cfg        *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	groupH := handler.NewGroupHandler(deps.Groups)
	eventH := handler.NewEventHandler(deps.Events)
	betH := handler.NewBetHandler(deps.Betting)
	walletH := handler.NewWalletHandler(deps.Betting)
	settlementH := handler.NewSettlementHandler(deps.Settlement)
	merkleH := handler.NewMerkleHandler(deps.Committer, deps.Audit)
	reportH := handler.NewReportHandler(deps.Reports)

	// ── Signature middleware, one instance per protected action ──────────────
	sig := func(action string) gin.HandlerFunc { return middleware.SignatureMiddleware(deps.Verifier, action) }

	// ── Rate limiters ─────────────────────────────────────────────────────────
	betRL := middleware.RateLimitMiddleware(30)    // 30 req/s per IP for bet endpoints
	walletRL := middleware.RateLimitMiddleware(10) // 10 req/s per IP for wallet-moving endpoints

	api := r.Group("/api")
	{
		// ── Groups ─────────────────────────────────────────────────────────────
		groups := api.Group("/groups")
		{
			groups.POST("", sig("create_group"), groupH.CreateGroup)
			groups.GET("/mine", groupH.ListMyGroups)
			groups.POST("/:id/members", sig("invite_member"), groupH.InviteMember)
			groups.DELETE("/:id", sig("delete_group"), groupH.DeleteGroup)

			// ── Events nested under a group ────────────────────────────────────
			groups.POST("/:id/events", sig("create_event"), eventH.CreateEvent)
			groups.GET("/:id/events", eventH.ListGroupEvents)

			// ── Balance / deposit / withdraw nested under a group ──────────────
			groups.GET("/:id/balance", walletH.GetBalance)
			groups.POST("/:id/deposit", walletRL, sig("deposit_funds"), walletH.Deposit)
			groups.POST("/:id/withdraw", walletRL, sig("withdraw_funds"), walletH.Withdraw)
		}

		// ── Events (public reads, signed mutations) ───────────────────────────
		events := api.Group("/events")
		{
			events.GET("/:id/prices", eventH.GetEventPrices)
			events.DELETE("/:id", sig("delete_event"), eventH.DeleteEvent)
			events.POST("/:id/settle", sig("settle_event"), eventH.SettleEvent)
			events.POST("/:id/votes", sig("submit_consensus_vote"), settlementH.SubmitVote)
			events.POST("/:id/bets", betRL, sig("place_bet"), betH.PlaceBet)
			events.GET("/:id/bets/:betId/proof", merkleH.GetProof)
		}

		// ── Payouts ────────────────────────────────────────────────────────────
		payouts := api.Group("/payouts")
		{
			payouts.POST("/:id/claim", walletRL, sig("claim_winnings"), walletH.ClaimWinnings)
		}

		// ── Finance report ─────────────────────────────────────────────────────
		api.GET("/reports/finance", reportH.GetFinanceReport)
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	// No authentication is required to subscribe to public event channels;
	// an optional ?wallet= auto-joins that wallet's private user:{wallet}
	// channel (spec §6 streaming-channel contract — publishers scope what a
	// user channel receives, so the handshake itself needs no signature).
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request, c.Query("wallet"))
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In development all origins are allowed; in production only the
// configured allow-list.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := make(map[string]bool)
			for _, o := range strings.Split(cfg.Server.AllowedOrigins, ",") {
				if o = strings.TrimSpace(o); o != "" {
					allowed[o] = true
				}
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
