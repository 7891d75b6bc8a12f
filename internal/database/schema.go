package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// PersistentModels lists the gorm models owned by the blog schema, parents
// before children.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Follow{},
		&models.Notification{},
	}
}

// Schema modes selected by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan is what ApplySchema will do for a configuration.
type SchemaPlan struct {
	Mode        string
	Environment string
	RunSQL      bool
	AutoMigrate bool
}

// SchemaStatus is a SchemaPlan plus the migration state of the database.
type SchemaStatus struct {
	SchemaPlan
	Applied []MigrationRecord
	Pending []Migration
}

func schemaMode(cfg *config.Config) string {
	if mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)); mode != "" {
		return mode
	}
	return SchemaModeHybrid
}

func prodLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// PlanSchema decides between SQL migrations and AutoMigrate. SQL migrations
// are PostgreSQL only, so SQLite always auto-migrates. Production refuses
// bare AutoMigrate unless DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE is set.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{Mode: schemaMode(cfg), Environment: cfg.Env}
	switch plan.Mode {
	case SchemaModeHybrid, SchemaModeSQL, SchemaModeAuto:
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}

	if cfg.DatabaseDriver() == config.DriverSQLite {
		if plan.Mode == SchemaModeSQL {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=sql requires a PostgreSQL DATABASE_URL")
		}
		plan.AutoMigrate = true
		return plan, nil
	}

	switch plan.Mode {
	case SchemaModeSQL:
		plan.RunSQL = true
	case SchemaModeAuto:
		if prodLike(cfg.Env) && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.AutoMigrate = true
	case SchemaModeHybrid:
		plan.RunSQL = true
		plan.AutoMigrate = !prodLike(cfg.Env)
	}
	return plan, nil
}

// ApplySchema brings db up to date according to PlanSchema.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.RunSQL {
		n, err := NewMigrator(db).Up(ctx)
		if err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		if n > 0 {
			middleware.Logger.InfoContext(ctx, "sql migrations applied", slog.Int("count", n))
		}
	}

	if plan.AutoMigrate {
		middleware.Logger.InfoContext(ctx, "running gorm automigrate",
			slog.String("mode", plan.Mode), slog.String("env", plan.Environment))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports the plan and, when SQL migrations are in play,
// which versions are applied and pending. Nothing is changed.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan}
	if !plan.RunSQL {
		return status, nil
	}

	m := NewMigrator(db)
	if status.Applied, err = m.Applied(ctx); err != nil {
		return nil, err
	}
	if status.Pending, err = m.Pending(ctx); err != nil {
		return nil, err
	}
	return status, nil
}
