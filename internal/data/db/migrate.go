package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.AllModels()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// EnsureIndexes creates the partial and expression indexes that back the
// single-open-rate and single-active-name rules.
func EnsureIndexes(db *gorm.DB) error {
	if err := EnsureRateIndexes(db); err != nil {
		return err
	}
	if err := EnsureShopIndexes(db); err != nil {
		return err
	}
	return EnsureJobIndexes(db)
}

func EnsureRateIndexes(db *gorm.DB) error {
	nullCategory := `COALESCE(category_id, '00000000-0000-0000-0000-000000000000'::uuid)`
	if db.Dialector.Name() != "postgres" {
		nullCategory = `COALESCE(category_id, '')`
	}
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_shop_program_rate_open
		ON shop_program_rate (shop_id, program_id, ` + nullCategory + `)
		WHERE valid_to IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_shop_program_rate_open: %w", err)
	}
	return nil
}

func EnsureShopIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_shop_main_active_name
		ON shop_main (canonical_name_lower)
		WHERE status = 'active';
	`).Error; err != nil {
		return fmt.Errorf("create idx_shop_main_active_name: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_shops_name_lower ON shops (lower(name));`).Error; err != nil {
		return fmt.Errorf("create idx_shops_name_lower: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_proposal_pending_shop
		ON proposal (shop_id, user_id)
		WHERE status = 'pending';
	`).Error; err != nil {
		return fmt.Errorf("create idx_proposal_pending_shop: %w", err)
	}
	return nil
}

func EnsureJobIndexes(db *gorm.DB) error {
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_job_run_claim ON job_run (queue, status, created_at);`).Error; err != nil {
		return fmt.Errorf("create idx_job_run_claim: %w", err)
	}
	return nil
}
