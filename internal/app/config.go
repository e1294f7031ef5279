package app

import (
	"strings"
	"time"

	"github.com/yungbote/bonusfinder-backend/internal/platform/envutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

const defaultJWTSecret = "defaultsecret"

type Config struct {
	Env         string
	ServiceName string
	Version     string

	Port           string
	RequestTimeout time.Duration
	CORSOrigins    []string

	JWTSecretKey   string
	AccessTokenTTL time.Duration
	AllowRegister  bool
	ScrapeToken    string

	ScheduleFile     string
	RunLightWorker   bool
	RunScheduler     bool
	HeavyConcurrency int

	FeedTimeout  time.Duration
	FeedParallel int
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Env:         envutil.String("APP_ENV", "development", log),
		ServiceName: envutil.String("SERVICE_NAME", "bonusfinder-api", log),
		Version:     envutil.String("APP_VERSION", "dev", log),

		Port:           envutil.String("PORT", "8080", log),
		RequestTimeout: envutil.Seconds("REQUEST_TIMEOUT_SECONDS", 30*time.Second),
		CORSOrigins:    envutil.List("CORS_ALLOWED_ORIGINS"),

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", defaultJWTSecret, log),
		AccessTokenTTL: envutil.Seconds("ACCESS_TOKEN_TTL", 24*time.Hour),
		AllowRegister:  envutil.Bool("ALLOW_REGISTER", false),
		ScrapeToken:    envutil.String("SCRAPE_TOKEN", "", nil),

		ScheduleFile:     envutil.String("JOB_SCHEDULE_FILE", "config/schedule.yaml", log),
		RunLightWorker:   envutil.Bool("RUN_LIGHT_WORKER", true),
		RunScheduler:     envutil.Bool("RUN_SCHEDULER", true),
		HeavyConcurrency: envutil.Int("HEAVY_WORKER_CONCURRENCY", 1),

		FeedTimeout:  envutil.Seconds("FEED_TIMEOUT_SECONDS", 20*time.Second),
		FeedParallel: envutil.Int("FEED_PARALLEL", 4),
	}
	if cfg.HeavyConcurrency < 1 {
		cfg.HeavyConcurrency = 1
	}
	if cfg.FeedParallel < 1 {
		cfg.FeedParallel = 1
	}
	if cfg.JWTSecretKey == defaultJWTSecret && cfg.IsProduction() {
		log.Warn("JWT_SECRET_KEY is unset in production; tokens use the default secret")
	}
	if cfg.ScrapeToken == "" {
		log.Info("SCRAPE_TOKEN not set; /api/scrape-results is disabled")
	}
	return cfg
}

func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
