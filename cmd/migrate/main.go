package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/brandpilot/brandpilot/infrastructure/adapter/postgres"
	"github.com/brandpilot/brandpilot/infrastructure/bootstrap"
	"github.com/brandpilot/brandpilot/infrastructure/config"
)

func main() {
	mode := flag.String("mode", "up", "migration mode: up or down")
	domainsFile := flag.String("domains", "", "YAML file of domains to seed after migrating up (defaults to DOMAINS_FILE)")
	flag.Parse()

	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	switch strings.ToLower(*mode) {
	case "up":
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatalf("migration up failed: %v", err)
		}
		log.Println("Migration up completed successfully")

		path := *domainsFile
		if path == "" {
			path = os.Getenv("DOMAINS_FILE")
		}
		if path == "" {
			return
		}
		specs, err := config.LoadDomains(path)
		if err != nil {
			log.Fatalf("failed to load domains: %v", err)
		}
		if err := bootstrap.SeedDomains(ctx, postgres.NewStore(db).Domains(), specs, time.Now().UTC()); err != nil {
			log.Fatalf("failed to seed domains: %v", err)
		}
		log.Printf("Seeded %d domains from %s", len(specs), path)
	case "down":
		if err := postgres.Drop(ctx, db); err != nil {
			log.Fatalf("migration down failed: %v", err)
		}
		log.Println("Migration down completed successfully")
	default:
		log.Fatalf("unknown mode: %s", *mode)
	}
}
