// Package database opens the primary and replica gorm connections and owns
// the blog schema.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the primary connection opened by Connect.
var DB *gorm.DB

// slowQuery is the latency above which statements are logged at warn.
const slowQuery = 200 * time.Millisecond

// queryLogger sends gorm's output through slog so that SQL lines carry the
// request id and caller attached by the HTTP middleware.
type queryLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

// NewQueryLogger returns a gorm logger writing to l at level.
func NewQueryLogger(l *slog.Logger, level logger.LogLevel) logger.Interface {
	return &queryLogger{log: l, level: level, slow: slowQuery}
}

func (q *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *q
	cp.level = level
	return &cp
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= logger.Info {
		q.log.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= logger.Warn {
		q.log.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= logger.Error {
		q.log.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// Trace logs failed statements, slow statements, and at Info level every
// statement. A missing row is not a failure.
func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		level slog.Level
		msg   string
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && q.level >= logger.Error:
		level, msg = slog.LevelError, "query failed"
	case q.slow > 0 && elapsed > q.slow && q.level >= logger.Warn:
		level, msg = slog.LevelWarn, "slow query"
	case q.level >= logger.Info:
		level, msg = slog.LevelInfo, "query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if level == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	q.log.LogAttrs(ctx, level, msg, attrs...)
}

// ConnectOptions controls the side effects of opening a connection.
type ConnectOptions struct {
	ApplySchema bool
}

// Connect opens the primary and any read replica and applies the schema.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectWithOptions(cfg, ConnectOptions{ApplySchema: true})
}

// Dialector picks postgres or sqlite from DATABASE_URL. File-backed SQLite
// gets a busy timeout and WAL so concurrent requests queue instead of
// failing with SQLITE_BUSY.
func Dialector(cfg *config.Config) gorm.Dialector {
	dsn := cfg.DatabaseDSN()
	if cfg.DatabaseDriver() == config.DriverPostgres {
		return postgres.Open(dsn)
	}
	if dsn != ":memory:" && !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	}
	return sqlite.Open(dsn)
}

func open(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(Dialector(cfg), &gorm.Config{
		Logger: NewQueryLogger(middleware.Logger, logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

// ConnectWithOptions opens the primary connection described by cfg, then
// the replica named by DATABASE_READ_URL if there is one.
func ConnectWithOptions(cfg *config.Config, opts ConnectOptions) (*gorm.DB, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s database: %w", cfg.DatabaseDriver(), err)
	}
	middleware.Logger.Info("database connected", slog.String("driver", cfg.DatabaseDriver()))

	if opts.ApplySchema {
		if err := ApplySchema(context.Background(), db, cfg); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
		middleware.Logger.Info("database schema ready", slog.String("mode", schemaMode(cfg)))
	}

	if err := ConnectReadReplica(db, cfg); err != nil {
		return nil, err
	}

	DB = db
	return DB, nil
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}

	maxOpen := positiveOr(cfg.DBMaxOpenConns, 25)
	maxIdle := positiveOr(cfg.DBMaxIdleConns, 5)
	lifetime := time.Duration(positiveOr(cfg.DBConnMaxLifetimeMinutes, 5)) * time.Minute

	// Every connection to ":memory:" is a separate database.
	if cfg.DatabaseDriver() == config.DriverSQLite && cfg.DatabaseDSN() == ":memory:" {
		maxOpen, maxIdle = 1, 1
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)
	return nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// IsPostgres reports whether db talks to PostgreSQL.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
