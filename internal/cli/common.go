package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tclient "go.temporal.io/sdk/client"

	"truckplanner/internal/config"
	"truckplanner/internal/controller"
	"truckplanner/internal/logging"
	"truckplanner/internal/planapi"
	"truckplanner/internal/storage"
	"truckplanner/internal/workflows"
)

// env is everything a command needs, built from the environment and the
// global flags.
type env struct {
	cfg      config.Config
	defaults config.PlanningDefaults
	client   *planapi.Client
	log      *slog.Logger
	db       *storage.DB
}

func (e *env) Close() {
	e.db.Close()
}

func loadEnv() (*env, error) {
	cfg := config.Load()
	if apiURL != "" {
		cfg.APIBaseURL = strings.TrimRight(apiURL, "/")
	}
	if downloadDir != "" {
		cfg.DownloadDir = downloadDir
	}
	if defaultsFile != "" {
		cfg.DefaultsFile = defaultsFile
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	defaults, err := config.LoadPlanningDefaults(cfg.DefaultsFile)
	if err != nil {
		return nil, err
	}
	client, err := planapi.New(cfg.APIBaseURL, planapi.WithTimeouts(planapi.Timeouts{
		Presign:  cfg.PresignTimeout,
		Preview:  cfg.PreviewTimeout,
		Upload:   cfg.UploadTimeout,
		Optimize: cfg.OptimizeTimeout,
		Export:   cfg.ExportTimeout,
	}))
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, defaults: defaults, client: client, log: log}
	if cfg.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			log.Warn("run audit disabled", "err", err)
		} else {
			e.db = db
		}
	}
	return e, nil
}

func (e *env) newController() *controller.Controller {
	opts := controller.Options{
		Defaults:    e.defaults,
		DownloadDir: e.cfg.DownloadDir,
		Logger:      e.log,
	}
	if e.db != nil {
		repo := storage.NewRunAuditRepo(e.db)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			e.log.Warn("run audit disabled", "err", err)
		} else {
			opts.Recorder = repo
		}
	}
	return controller.New(e.client, opts)
}

// dialTemporal is replaced in tests.
var dialTemporal = func(cfg config.Config) (workflows.Starter, func(), error) {
	c, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		return nil, nil, fmt.Errorf("dial temporal at %s: %w", cfg.TemporalAddress, err)
	}
	return c, c.Close, nil
}

// stepError carries the controller's status line as its message.
type stepError struct {
	status string
	err    error
}

func (e *stepError) Error() string { return e.status }
func (e *stepError) Unwrap() error { return e.err }

func stepFailed(c *controller.Controller, err error) error {
	msg := c.Status().Message
	if !strings.HasPrefix(msg, "Error: ") {
		msg = "Error: " + planapi.Message(err)
	}
	return &stepError{status: msg, err: err}
}

// FormatError renders an error for stderr; status lines are shown as is.
func FormatError(err error) string {
	var se *stepError
	if errors.As(err, &se) {
		return errorColor.Sprint(se.status)
	}
	return errorColor.Sprintf("Error: %v", err)
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
