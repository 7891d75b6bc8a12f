package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/middleware"

	"gorm.io/gorm"
)

// Migration is one versioned PostgreSQL schema change loaded from a
// NNNNNN_name.up.sql / NNNNNN_name.down.sql pair.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var builtin = mustLoadMigrations(migrationFS, "migrations")

func mustLoadMigrations(fsys fs.FS, dir string) []Migration {
	ms, err := LoadMigrations(fsys, dir)
	if err != nil {
		panic(err)
	}
	return ms
}

// Migrations returns the embedded migrations in version order.
func Migrations() []Migration {
	return append([]Migration(nil), builtin...)
}

// LoadMigrations reads every up/down pair in dir. A file that does not
// follow the naming scheme, a missing down script or a repeated version is
// an error.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		base := strings.TrimSuffix(name, ".up.sql")
		num, label, ok := strings.Cut(base, "_")
		if !ok || label == "" {
			return nil, fmt.Errorf("migration %s: expected NNNNNN_name.up.sql", name)
		}
		version, err := strconv.Atoi(num)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: invalid version %q", name, num)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration %s: version %d already used by %s", name, version, prev)
		}
		seen[version] = name

		up, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		down, err := fs.ReadFile(fsys, path.Join(dir, base+".down.sql"))
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script: %w", name, err)
		}
		out = append(out, Migration{Version: version, Name: label, Up: string(up), Down: string(down)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

// Migrator applies and rolls back SQL migrations, recording each applied
// version in schema_migrations in the same transaction as its script.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
	log        *slog.Logger
}

// NewMigrator returns a migrator for ms, or for the embedded migrations when
// ms is empty.
func NewMigrator(db *gorm.DB, ms ...Migration) *Migrator {
	if len(ms) == 0 {
		ms = builtin
	}
	return &Migrator{db: db, migrations: ms, log: middleware.Logger}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

// Applied returns the recorded migrations in version order.
func (m *Migrator) Applied(ctx context.Context) ([]MigrationRecord, error) {
	if !m.db.Migrator().HasTable(&MigrationRecord{}) {
		return nil, nil
	}
	var records []MigrationRecord
	if err := Primary(m.db).WithContext(ctx).Order("version ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return records, nil
}

// Pending returns the migrations not yet recorded. A recorded version that
// no migration knows about means the database is ahead of this binary.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	records, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[int]bool, len(m.migrations))
	for _, mig := range m.migrations {
		known[mig.Version] = true
	}
	applied := make(map[int]bool, len(records))
	var unknown []string
	for _, r := range records {
		applied[r.Version] = true
		if !known[r.Version] {
			unknown = append(unknown, fmt.Sprintf("%06d", r.Version))
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("schema_migrations has versions this build does not know: %s", strings.Join(unknown, ", "))
	}

	var pending []Migration
	for _, mig := range m.migrations {
		if !applied[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies every pending migration in order and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for i, mig := range pending {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.Up).Error; err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{Version: mig.Version, Name: mig.Name}).Error
		})
		if err != nil {
			return i, fmt.Errorf("apply %s: %w", mig, err)
		}
		m.log.InfoContext(ctx, "migration applied", slog.String("migration", mig.String()))
	}
	return len(pending), nil
}

// Down rolls back version, which must be the newest applied migration.
func (m *Migrator) Down(ctx context.Context, version int) error {
	records, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no migrations have been applied")
	}
	if latest := records[len(records)-1].Version; latest != version {
		return fmt.Errorf("can only roll back the newest migration %06d, not %06d", latest, version)
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == version {
			target = &m.migrations[i]
		}
	}
	if target == nil {
		return fmt.Errorf("migration %06d not found", version)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(target.Down).Error; err != nil {
			return err
		}
		return tx.Delete(&MigrationRecord{}, "version = ?", version).Error
	})
	if err != nil {
		return fmt.Errorf("roll back %s: %w", target, err)
	}
	m.log.InfoContext(ctx, "migration rolled back", slog.String("migration", target.String()))
	return nil
}
