package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osse101/riddlegroup/internal/config"
	"github.com/osse101/riddlegroup/internal/database"
	"github.com/osse101/riddlegroup/internal/logger"
	"github.com/osse101/riddlegroup/migrations"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "up":
		err = run(migrateUp)
	case "status":
		err = run(migrateStatus)
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: migrate <command>")
	fmt.Println("Commands:")
	fmt.Println("  up      Apply all pending migrations")
	fmt.Println("  status  Show applied and pending migrations")
}

type command func(ctx context.Context, pool *pgxpool.Pool) error

func run(cmd command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.InitLogger(logger.NewConfig(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName, cfg.Version, cfg.Environment, false))

	ctx := context.Background()
	pool, err := database.NewPool(ctx, database.PoolConfig{
		ConnString: cfg.GetDBConnString(),
		MaxConns:   cfg.DBMaxConns,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	return cmd(ctx, pool)
}

func migrateUp(ctx context.Context, pool *pgxpool.Pool) error {
	return database.Migrate(ctx, pool, migrations.FS)
}

func migrateStatus(ctx context.Context, pool *pgxpool.Pool) error {
	statuses, err := database.MigrationStatus(ctx, pool, migrations.FS)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tPATH")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
	}
	return w.Flush()
}
