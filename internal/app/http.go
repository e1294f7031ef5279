package app

import (
	"gorm.io/gorm"

	httpserver "github.com/yungbote/bonusfinder-backend/internal/http"
	httpH "github.com/yungbote/bonusfinder-backend/internal/http/handlers"
	httpMW "github.com/yungbote/bonusfinder-backend/internal/http/middleware"
	"github.com/yungbote/bonusfinder-backend/internal/observability"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

func wireServer(db *gorm.DB, log *logger.Logger, cfg Config, s Services, metrics *observability.Metrics) *httpserver.Server {
	log.Info("Wiring HTTP server...")
	return httpserver.NewServer(httpserver.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    cfg.ServiceName,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		ScrapeToken:    cfg.ScrapeToken,

		AuthMiddleware: httpMW.NewAuthMiddleware(log, s.Auth),

		AuthHandler:     httpH.NewAuthHandler(log, s.Auth, cfg.AllowRegister),
		UserHandler:     httpH.NewUserHandler(log, s.User),
		ShopHandler:     httpH.NewShopHandler(log, s.ShopQuery),
		EvaluateHandler: httpH.NewEvaluateHandler(log, s.Evaluation),
		ProposalHandler: httpH.NewProposalHandler(log, s.Proposal),
		ScrapeHandler:   httpH.NewScrapeHandler(log, s.Ingestion),
		AdminHandler:    httpH.NewAdminHandler(log, s.Identity, s.Jobs),
		JobHandler:      httpH.NewJobHandler(log, s.Jobs),
		HealthHandler:   httpH.NewHealthHandler(db),
	})
}
