package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/bonusfinder-backend/internal/http/handlers"
	httpMW "github.com/yungbote/bonusfinder-backend/internal/http/middleware"
	"github.com/yungbote/bonusfinder-backend/internal/observability"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	RequestTimeout time.Duration
	ScrapeToken    string

	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler     *httpH.AuthHandler
	UserHandler     *httpH.UserHandler
	ShopHandler     *httpH.ShopHandler
	EvaluateHandler *httpH.EvaluateHandler
	ProposalHandler *httpH.ProposalHandler
	ScrapeHandler   *httpH.ScrapeHandler
	AdminHandler    *httpH.AdminHandler
	JobHandler      *httpH.JobHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachRequestContext(cfg.RequestTimeout))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health & metrics
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	am := cfg.AuthMiddleware
	optional, required, admin := []gin.HandlerFunc{}, []gin.HandlerFunc{}, []gin.HandlerFunc{}
	if am != nil {
		optional = []gin.HandlerFunc{am.OptionalAuth()}
		required = []gin.HandlerFunc{am.RequireAuth()}
		admin = []gin.HandlerFunc{am.RequireAuth(), am.RequireAdmin()}
	}

	// Public reads
	if cfg.ShopHandler != nil {
		r.GET("/shop_names", cfg.ShopHandler.ShopNames)
		r.GET("/api/shops", cfg.ShopHandler.ListShops)
		r.GET("/api/shops/:id/rates", cfg.ShopHandler.Rates)
		r.GET("/api/shops/:id/programs/:program_id/history", cfg.ShopHandler.RateHistory)
	}
	if cfg.EvaluateHandler != nil {
		r.POST("/evaluate", append(optional, cfg.EvaluateHandler.Evaluate)...)
	}

	// Auth
	if cfg.AuthHandler != nil {
		r.POST("/api/login", cfg.AuthHandler.Login)
		r.POST("/api/register", cfg.AuthHandler.Register)
	}

	// User
	if cfg.UserHandler != nil {
		r.GET("/api/user/status", append(optional, cfg.UserHandler.Status)...)
		r.POST("/api/user/favorites/:program_id", append(required, cfg.UserHandler.AddFavorite)...)
		r.DELETE("/api/user/favorites/:program_id", append(required, cfg.UserHandler.RemoveFavorite)...)
	}

	// Proposals
	if cfg.ProposalHandler != nil {
		h := cfg.ProposalHandler
		r.POST("/proposals/new", append(required, h.Create)...)
		r.POST("/api/proposals/url", append(required, h.CreateURL)...)
		r.GET("/api/proposals", append(required, h.ListPending)...)
		r.GET("/api/proposals/:proposal_id", append(required, h.Get)...)
		r.POST("/vote/:proposal_id", append(required, h.Vote)...)
		r.POST("/approve/:proposal_id", append(admin, h.Approve)...)
		r.POST("/reject/:proposal_id", append(admin, h.Reject)...)
	}

	// Remote scrapers
	if cfg.ScrapeHandler != nil {
		r.POST("/api/scrape-results", httpMW.RequireScrapeToken(cfg.ScrapeToken), cfg.ScrapeHandler.Submit)
	}

	// Admin
	if cfg.AdminHandler != nil {
		h := cfg.AdminHandler
		r.POST("/api/admin/shops/merge", append(admin, h.MergeShops)...)
		r.POST("/api/admin/variants/rescore", append(admin, h.RescoreVariants)...)
		r.POST("/api/admin/coupons/expire", append(admin, h.ExpireCoupons)...)
		r.POST("/api/admin/ingest", append(admin, h.IngestSource)...)
	}
	if cfg.JobHandler != nil {
		r.GET("/api/jobs/:id", append(admin, cfg.JobHandler.GetJob)...)
		r.POST("/api/jobs/:id/cancel", append(admin, cfg.JobHandler.CancelJob)...)
	}

	return r
}
