package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"github.com/vibeboardhq/vibeboard/backend/internal/chronicles"
	"github.com/vibeboardhq/vibeboard/backend/internal/identity"
	"github.com/vibeboardhq/vibeboard/backend/internal/products"
	"github.com/vibeboardhq/vibeboard/backend/internal/profiles"
	"github.com/vibeboardhq/vibeboard/backend/internal/shorturls"
	"github.com/vibeboardhq/vibeboard/backend/internal/votes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&products.Product{},
		&products.Screenshot{},
		&votes.Vote{},
		&profiles.MakerProfile{},
		&shorturls.ShortURL{},
		&chronicles.Chronicle{},
		&identity.Identity{},
		&identity.Role{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
