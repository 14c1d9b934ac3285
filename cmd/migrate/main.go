package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"storefront.dev/internal/migrate"
	"storefront.dev/internal/obs"
	migrations "storefront.dev/ops/migrations"
)

func main() {
	var (
		dsn            = flag.String("dsn", os.Getenv("STOREFRONT_DATABASE_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "", "directory of SQL migrations (default: embedded)")
		seedsPath      = flag.String("seeds", "", "directory of SQL seeds (default: embedded)")
	)
	flag.Parse()
	log := obs.Logger()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or STOREFRONT_DATABASE_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status]")
	}

	schema, seeds := migrations.Schema(), migrations.Seeds()
	if *migrationsPath != "" {
		schema = os.DirFS(*migrationsPath)
	}
	if *seedsPath != "" {
		seeds = os.DirFS(*seedsPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.WithError(err).Fatal("open db")
	}
	defer db.Close()

	err = run(ctx, migrate.NewManager(db, schema, seeds), flag.Arg(0))
	if err != nil {
		log.WithError(err).Fatalf("migrate %s", flag.Arg(0))
	}
}

func run(ctx context.Context, mgr *migrate.Manager, cmd string) error {
	switch cmd {
	case "up":
		return mgr.Up(ctx)
	case "down":
		return mgr.Down(ctx)
	case "seed":
		return mgr.Seed(ctx)
	case "status":
		history, err := mgr.Status(ctx)
		if err != nil {
			return err
		}
		for _, item := range history {
			fmt.Println(item)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

