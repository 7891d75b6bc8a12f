// Command inkctl is the Inkwell administration tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/drafts"
	"inkwell/internal/legacy"
	"inkwell/internal/repository"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

var (
	loadConfig = config.LoadConfig
	connectDB  = database.Connect
	// connectRaw opens the database without applying the schema.
	connectRaw = func(cfg *config.Config) (*gorm.DB, error) {
		return database.ConnectWithOptions(cfg, database.ConnectOptions{})
	}
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "inkctl",
		Usage: "Administer an Inkwell deployment",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Override DATABASE_URL",
				EnvVars: []string{"INKCTL_DATABASE_URL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "import-legacy",
				Usage:     "Import a legacy JSON data directory",
				ArgsUsage: "<dir>",
				Action:    importLegacyCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "report",
						Aliases: []string{"r"},
						Usage:   "Write a YAML import report to this file (- for stdout)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of blog decoding workers (defaults to IMPORT_WORKERS)",
					},
				},
			},
			{
				Name:  "users",
				Usage: "Inspect user accounts",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List user accounts",
						Action: listUsersCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "limit",
								Usage: "Maximum number of users to print",
								Value: 100,
							},
							&cli.IntFlag{
								Name:  "offset",
								Usage: "Number of users to skip",
							},
						},
					},
				},
			},
			schemaCommand(),
			{
				Name:  "drafts",
				Usage: "Maintain the draft store",
				Subcommands: []*cli.Command{
					{
						Name:   "purge",
						Usage:  "Delete drafts that have not been saved recently",
						Action: purgeDraftsCommand,
						Flags: []cli.Flag{
							&cli.DurationFlag{
								Name:     "older-than",
								Usage:    "Delete drafts last saved longer ago than this",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "dir",
								Usage: "Draft store directory (defaults to DRAFTS_DIR)",
							},
						},
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func openDatabase(c *cli.Context) (*config.Config, *gorm.DB, error) {
	return openDatabaseWith(c, connectDB)
}

func openDatabaseWith(c *cli.Context, connect func(*config.Config) (*gorm.DB, error)) (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	if url := c.String("database-url"); url != "" {
		cfg.DatabaseURL = url
	}
	db, err := connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func importLegacyCommand(c *cli.Context) error {
	dir := c.Args().First()
	if dir == "" {
		return errors.New("import-legacy requires a data directory")
	}

	cfg, db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	workers := c.Int("workers")
	if workers <= 0 {
		workers = cfg.ImportWorkers
	}

	importer := legacy.NewImporter(
		repository.NewUserRepository(db),
		repository.NewPostRepository(db),
		repository.NewFollowRepository(db),
		repository.NewNotificationRepository(db),
		legacy.WithWorkers(workers),
		legacy.WithLogger(slog.Default()),
	)

	report, err := importer.Run(c.Context, dir)
	if err != nil {
		return fmt.Errorf("import %s: %w", dir, err)
	}

	out := c.App.Writer
	fmt.Fprintf(out, "users: %d imported, %d skipped, %d failed, %d upgraded\n",
		report.Users.Imported, report.Users.Skipped, report.Users.Failed, report.Users.Upgraded)
	fmt.Fprintf(out, "posts: %d imported, %d skipped, %d failed, %d upgraded\n",
		report.Posts.Imported, report.Posts.Skipped, report.Posts.Failed, report.Posts.Upgraded)
	fmt.Fprintf(out, "follows: %d imported, %d skipped, %d failed\n",
		report.Follows.Imported, report.Follows.Skipped, report.Follows.Failed)
	fmt.Fprintf(out, "notifications: %d imported, %d failed\n",
		report.Notifications.Imported, report.Notifications.Failed)

	return writeReport(c.String("report"), out, report)
}

func writeReport(path string, stdout io.Writer, report *legacy.Report) error {
	switch path {
	case "":
		return nil
	case "-":
		return report.WriteYAML(stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.WriteYAML(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

func listUsersCommand(c *cli.Context) error {
	_, db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	users, err := repository.NewUserRepository(db).List(c.Context, c.Int("limit"), c.Int("offset"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tCREATED\tCREDENTIAL")
	for _, u := range users {
		credential := "current"
		if u.NeedsCredentialUpgrade() {
			credential = "legacy"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", u.Username, u.CreatedAt.UTC().Format(time.RFC3339), credential)
	}
	return w.Flush()
}

func purgeDraftsCommand(c *cli.Context) error {
	olderThan := c.Duration("older-than")
	if olderThan < 0 {
		return errors.New("--older-than must not be negative")
	}

	dir := c.String("dir")
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		dir = cfg.DraftsDir
	}

	store, err := drafts.Open(drafts.Options{Dir: dir, Logger: slog.Default()})
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	purged, err := store.Purge(c.Context, time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "purged %d drafts from %s\n", purged, dir)
	return nil
}
