package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/bonusfinder-backend/internal/platform/envutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func gormConfig(level gormLogger.LogLevel) *gorm.Config {
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLog,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	}
}

// NewPostgresService opens the primary database. DB_DRIVER=sqlite with
// SQLITE_PATH runs against a local file instead, for development.
func NewPostgresService(logg *logger.Logger) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	if envutil.String("DB_DRIVER", "postgres", logg) == "sqlite" {
		path := envutil.String("SQLITE_PATH", "bonusfinder.db", logg)
		db, err := OpenSQLite(path, gormLogger.Warn)
		if err != nil {
			return nil, err
		}
		serviceLog.Warn("Using sqlite database", "path", path)
		return &PostgresService{db: db, log: serviceLog}, nil
	}

	postgresHost := envutil.String("POSTGRES_HOST", "localhost", logg)
	postgresPort := envutil.String("POSTGRES_PORT", "5432", logg)
	postgresUser := envutil.String("POSTGRES_USER", "postgres", logg)
	postgresPassword := envutil.String("POSTGRES_PASSWORD", "", logg)
	postgresName := envutil.String("POSTGRES_NAME", "bonusfinder", logg)

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser,
		postgresPassword,
		postgresHost,
		postgresPort,
		postgresName,
	)

	db, err := OpenPostgres(dsn, gormLogger.Warn)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(envutil.Int("POSTGRES_MAX_OPEN_CONNS", 20))
	sqlDB.SetMaxIdleConns(envutil.Int("POSTGRES_MAX_IDLE_CONNS", 5))
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

// AutoMigrateAll migrates every model and then creates the partial indexes
// gorm tags cannot express.
func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Running migrations")
	if err := AutoMigrateAll(s.db); err != nil {
		return err
	}
	return EnsureIndexes(s.db)
}

func OpenPostgres(dsn string, level gormLogger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(level))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return db, nil
}

// OpenSQLite opens a sqlite database with the same gorm settings as Postgres.
// A single connection keeps in-memory databases coherent.
func OpenSQLite(dsn string, level gormLogger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(level))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
