package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"truckplanner/internal/api"
	"truckplanner/internal/config"
	"truckplanner/internal/controller"
	"truckplanner/internal/logging"
	"truckplanner/internal/planapi"
	"truckplanner/internal/storage"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	defaults, err := config.LoadPlanningDefaults(cfg.DefaultsFile)
	if err != nil {
		log.Fatal(err)
	}
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

	opts := controller.Options{Defaults: defaults, DownloadDir: cfg.DownloadDir, Logger: logger}
	if cfg.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		if err == nil {
			repo := storage.NewRunAuditRepo(db)
			if err = repo.EnsureSchema(ctx); err == nil {
				opts.Recorder = repo
			}
			defer db.Close()
		}
		cancel()
		if err != nil {
			logger.Warn("run audit disabled", "err", err)
		}
	}
	ctrl := controller.New(backend, opts)

	srvOpts := api.Options{Logger: logger}
	tc, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Logger: tlog.NewStructuredLogger(logger)})
	if err != nil {
		logger.Warn("temporal unavailable, /runs disabled", "addr", cfg.TemporalAddress, "err", err)
	} else {
		defer tc.Close()
		srvOpts.Temporal = tc
	}

	h := api.NewServer(cfg, ctrl, backend, srvOpts)
	log.Printf("truckplanner api listening on %s backend=%s", cfg.APIAddr, cfg.APIBaseURL)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
