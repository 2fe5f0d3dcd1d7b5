package database

import (
	"errors"
	"time"

	"github.com/vibeboardhq/vibeboard/backend/internal/products"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillClaimStatus = "2026-05-12_backfill_claim_status"
	migrationClearOrphanOwners   = "2026-06-30_clear_owner_without_claim"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillClaimStatus, apply: backfillClaimStatus},
		{name: migrationClearOrphanOwners, apply: clearOwnerWithoutClaim},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows created before claim tracking carry an empty status; they mean the
// same thing as none.
func backfillClaimStatus(db *gorm.DB) error {
	return db.Model(&products.Product{}).
		Where("claim_status = '' OR claim_status IS NULL").
		Update("claim_status", products.ClaimStatusNone).Error
}

// An owner id without at least a pending claim is an invariant violation
// left behind by early claim handling; clear it so the owner-is-null claim
// guard works.
func clearOwnerWithoutClaim(db *gorm.DB) error {
	return db.Model(&products.Product{}).
		Where("owner_id IS NOT NULL AND claim_status = ?", products.ClaimStatusNone).
		Update("owner_id", gorm.Expr("NULL")).Error
}
