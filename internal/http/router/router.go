package router

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-escrow/internal/app"
	"github.com/ignatzorin/freelance-escrow/internal/config"
	"github.com/ignatzorin/freelance-escrow/internal/http/handlers"
	"github.com/ignatzorin/freelance-escrow/internal/http/middleware"
	"github.com/ignatzorin/freelance-escrow/internal/metrics"
	"github.com/ignatzorin/freelance-escrow/internal/storage"
	"github.com/ignatzorin/freelance-escrow/internal/ws"
)

// Handlers собирает все HTTP хэндлеры приложения.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Wallet       *handlers.WalletHandler
	Job          *handlers.JobHandler
	Project      *handlers.ProjectHandler
	Dispute      *handlers.DisputeHandler
	Arbitrator   *handlers.ArbitratorHandler
	Reputation   *handlers.ReputationHandler
	Notification *handlers.NotificationHandler
	Admin        *handlers.AdminHandler
	Health       *handlers.HealthHandler
	WS           *handlers.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessTokenParser, m *metrics.Metrics) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	if m != nil {
		r.Use(m.Middleware())
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	api.GET("/ws", h.WS.Handle)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	// Публичные маршруты
	api.GET("/arbitrators/active", h.Arbitrator.ListActive)
	api.GET("/users/:id/reputation", middleware.UUIDValidator("id"), h.Reputation.GetReputation)
	api.GET("/jobs/:id", middleware.UUIDValidator("id"), h.Job.GetJob)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.GET("/wallet/balances", h.Wallet.Balances)
		protected.POST("/wallet/deposit", h.Wallet.Deposit)

		protected.POST("/jobs", middleware.RequireRole("client"), h.Job.CreateJob)

		protected.POST("/projects", middleware.RequireRole("client"), h.Project.StartProject)
		protected.GET("/projects/my", h.Project.ListMine)
		protected.GET("/projects/:id", middleware.UUIDValidator("id"), h.Project.GetProject)
		protected.POST("/projects/:id/fund", middleware.UUIDValidator("id"), h.Project.Fund)
		protected.GET("/projects/:id/escrow", middleware.UUIDValidator("id"), h.Project.Escrow)
		protected.POST("/projects/:id/milestones/:index/complete", middleware.UUIDValidator("id"), h.Project.CompleteMilestone)
		protected.POST("/projects/:id/milestones/:index/approve", middleware.UUIDValidator("id"), h.Project.ApproveMilestone)
		protected.POST("/projects/:id/milestones/:index/dispute", middleware.UUIDValidator("id"), h.Project.DisputeMilestone)

		protected.GET("/disputes/assigned", h.Dispute.ListAssigned)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), h.Dispute.GetDispute)
		protected.POST("/disputes/:id/evidence", middleware.UUIDValidator("id"), h.Dispute.SubmitEvidence)
		protected.POST("/disputes/:id/evidence/upload", middleware.UUIDValidator("id"), h.Dispute.UploadEvidence)
		protected.POST("/disputes/:id/voting", middleware.UUIDValidator("id"), h.Dispute.StartVoting)
		protected.POST("/disputes/:id/votes", middleware.UUIDValidator("id"), h.Dispute.Vote)
		protected.POST("/disputes/:id/finalize", middleware.UUIDValidator("id"), h.Dispute.Finalize)

		protected.POST("/arbitrators/register", middleware.RequireRole("arbitrator"), h.Arbitrator.Register)
		protected.DELETE("/arbitrators/:address", middleware.UUIDValidator("address"), h.Arbitrator.Deregister)

		protected.POST("/feedback", h.Reputation.SubmitFeedback)

		protected.PUT("/notifications/opt-outs/:category", h.Notification.OptOut)
		protected.DELETE("/notifications/opt-outs/:category", h.Notification.OptIn)

		protected.GET("/admin/params", h.Admin.GetParams)
		protected.PUT("/admin/params", h.Admin.UpdateParams)
		protected.PUT("/admin/references/:component", h.Admin.SetReference)
	}

	return r
}

// NewHandlers собирает хэндлеры из компонентов приложения. db равен nil для хранилища в памяти.
func NewHandlers(a *app.App, evidence *storage.EvidenceStorage, hub *ws.Hub, db *sqlx.DB, driver string) Handlers {
	return Handlers{
		Auth:         handlers.NewAuthHandler(a.Auth),
		Wallet:       handlers.NewWalletHandler(a.Wallets),
		Job:          handlers.NewJobHandler(a.Jobs),
		Project:      handlers.NewProjectHandler(a.Projects, a.Ledger),
		Dispute:      handlers.NewDisputeHandler(a.Disputes, evidence, a.Registry),
		Arbitrator:   handlers.NewArbitratorHandler(a.Pool),
		Reputation:   handlers.NewReputationHandler(a.Reputation),
		Notification: handlers.NewNotificationHandler(a.Notifications),
		Admin:        handlers.NewAdminHandler(a.Registry),
		Health:       handlers.NewHealthHandler(db, driver),
		WS:           handlers.NewWSHandler(hub, a.Tokens),
	}
}
