package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"truckplanner/internal/activities"
	"truckplanner/internal/config"
	"truckplanner/internal/controller"
	"truckplanner/internal/logging"
	"truckplanner/internal/planapi"
	"truckplanner/internal/storage"
	"truckplanner/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Logger: tlog.NewStructuredLogger(logger)})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)

	backend, err := planapi.New(cfg.APIBaseURL, planapi.WithTimeouts(planapi.Timeouts{
		Presign:  cfg.PresignTimeout,
		Preview:  cfg.PreviewTimeout,
		Upload:   cfg.UploadTimeout,
		Optimize: cfg.OptimizeTimeout,
		Export:   cfg.ExportTimeout,
	}))
	if err != nil {
		log.Fatal(err)
	}
	var audit controller.RunRecorder
	if cfg.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		repo := storage.NewRunAuditRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal(err)
		}
		audit = repo
	}
	activities.Register(w, activities.New(cfg, backend, audit))

	log.Printf("truckplanner worker listening on %s queue=%s backend=%s", cfg.TemporalAddress, cfg.TemporalTaskQueue, cfg.APIBaseURL)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
