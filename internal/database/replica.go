package database

import (
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/middleware"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// ConnectReadReplica registers DATABASE_READ_URL on db as a read replica.
// Plain queries are then served by the replica while writes, transactions
// and locking reads stay on the primary. It is a no-op when no replica is
// configured.
func ConnectReadReplica(db *gorm.DB, cfg *config.Config) error {
	if cfg.DatabaseReadURL == "" {
		return nil
	}

	replicaCfg := *cfg
	replicaCfg.DatabaseURL = cfg.DatabaseReadURL
	if replicaCfg.DatabaseDriver() != cfg.DatabaseDriver() {
		return fmt.Errorf("DATABASE_READ_URL must use the same driver as DATABASE_URL")
	}

	resolver := dbresolver.Register(dbresolver.Config{
		Replicas: []gorm.Dialector{Dialector(&replicaCfg)},
		Policy:   dbresolver.RandomPolicy{},
	}).
		SetMaxOpenConns(positiveOr(cfg.DBMaxOpenConns, 25)).
		SetMaxIdleConns(positiveOr(cfg.DBMaxIdleConns, 5)).
		SetConnMaxLifetime(time.Duration(positiveOr(cfg.DBConnMaxLifetimeMinutes, 5)) * time.Minute)

	if err := db.Use(resolver); err != nil {
		return fmt.Errorf("connect read replica: %w", err)
	}
	middleware.Logger.Info("read replica connected", slog.String("driver", replicaCfg.DatabaseDriver()))
	return nil
}

// Primary pins a query to the primary connection, for reads that must see
// a write made moments earlier.
func Primary(db *gorm.DB) *gorm.DB {
	return db.Clauses(dbresolver.Write)
}
