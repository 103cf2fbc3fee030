package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/GreenityClub/Unitree-sub000/internal/infra/app"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/config"
)

func main() {
	syncAll := flag.Bool("sync-all", false, "run one consistency sync over every user and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	worker, err := app.NewWorker(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init worker: %v", err)
	}

	if *syncAll {
		report := worker.SyncAll(ctx)
		worker.Close()
		if err := json.NewEncoder(os.Stdout).Encode(report); err != nil {
			log.Fatalf("failed to write report: %v", err)
		}
		return
	}

	if err := worker.RunSweeper(ctx); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
