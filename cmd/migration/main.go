package main

import (
	"errors"
	"flag"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jt828/token-ledger/internal/config"
	"github.com/jt828/token-ledger/pkg/observability"
	"github.com/jt828/token-ledger/pkg/observability/implementation"
)

func main() {
	configPath := flag.String("config", "", "config file (defaults to LEDGER_CONFIG)")
	source := flag.String("source", "file://migrations", "migration source URL")
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps to migrate (0 = all)")
	flag.Parse()

	log, err := implementation.NewZapLogger("info")
	if err != nil {
		panic(err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config", observability.Err(err))
	}
	if cfg.Database.DSN == "" {
		log.Fatal("database.dsn is required (LEDGER_DATABASE_DSN)")
	}

	m, err := migrate.New(*source, cfg.Database.DSN)
	if err != nil {
		log.Fatal("failed to create migrate instance", observability.Err(err))
	}
	defer m.Close()

	switch *direction {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	default:
		log.Fatal("unknown direction", observability.String("direction", *direction))
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal("migration failed", observability.Err(err))
	}

	version, dirty, _ := m.Version()
	log.Info("migration completed", observability.Int64("version", int64(version)), observability.Bool("dirty", dirty))
}
