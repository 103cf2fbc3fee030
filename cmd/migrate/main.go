package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/GreenityClub/Unitree-sub000/internal/infra/config"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/database"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := database.Migrate(cfg.Postgres.DSN(), *direction); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Printf("migrations applied (%s)", *direction)
}
