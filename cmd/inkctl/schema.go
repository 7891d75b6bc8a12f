package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"inkwell/internal/database"

	"github.com/urfave/cli/v2"
)

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Inspect and migrate the database schema",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show the schema plan and pending SQL migrations",
				Action: schemaStatusCommand,
			},
			{
				Name:   "up",
				Usage:  "Apply the schema according to DB_SCHEMA_MODE",
				Action: schemaUpCommand,
			},
			{
				Name:      "down",
				Usage:     "Roll back the newest SQL migration",
				ArgsUsage: "<version>",
				Action:    schemaDownCommand,
			},
		},
	}
}

func schemaStatusCommand(c *cli.Context) error {
	cfg, db, err := openDatabaseWith(c, connectRaw)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	status, err := database.GetSchemaStatus(c.Context, db, cfg)
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "mode: %s\nsql migrations: %t\nautomigrate: %t\n",
		status.Mode, status.RunSQL, status.AutoMigrate)
	if !status.RunSQL {
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tAPPLIED")
	for _, r := range status.Applied {
		fmt.Fprintf(w, "%06d_%s\t%s\n", r.Version, r.Name, r.AppliedAt.UTC().Format(time.RFC3339))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(w, "%s\tpending\n", m)
	}
	return w.Flush()
}

func schemaUpCommand(c *cli.Context) error {
	cfg, db, err := openDatabaseWith(c, connectRaw)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	if err := database.ApplySchema(c.Context, db, cfg); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "schema up to date")
	return nil
}

func schemaDownCommand(c *cli.Context) error {
	arg := c.Args().First()
	if arg == "" {
		return errors.New("schema down requires a migration version")
	}
	version, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("invalid migration version %q", arg)
	}

	_, db, err := openDatabaseWith(c, connectRaw)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	if err := database.NewMigrator(db).Down(c.Context, version); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "rolled back %06d\n", version)
	return nil
}
