// Command seed loads resellers and products from a YAML seed file into the
// configured PostgreSQL database.
package main

import (
	"context"
	"flag"
	"log"

	"reseller-ledger-backend/internal/config"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository/memory"
	"reseller-ledger-backend/internal/repository/postgres"
)

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	seedPath := flag.String("seed", "config/seed.yaml", "Path to seed data")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	if cfg.Database.Driver == "memory" {
		log.Fatalf("Nothing to seed: the memory driver reads %s at startup", cfg.Database.SeedFile)
	}

	resellers, products, err := memory.ReadSeed(*seedPath)
	if err != nil {
		log.Fatalf("Failed to read seed data: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.Database.Driver, cfg.GetDatabaseConnectionString(), 10)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := postgres.Seed(ctx, db, resellers, products); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
}
