package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"truckplanner/internal/config"
	"truckplanner/internal/logging"
	"truckplanner/internal/models"
	"truckplanner/internal/planapi"
	"truckplanner/internal/util"
)

// RunRecorder receives one audit record per optimize or export attempt.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec models.RunRecord) error
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(context.Context, models.RunRecord) error { return nil }

type Options struct {
	Defaults    config.PlanningDefaults
	DownloadDir string
	Logger      *slog.Logger
	Recorder    RunRecorder
}

// Controller drives upload → preview → optimize → export for one user. It is
// safe for concurrent callers; network calls run outside the lock and their
// results are dropped when a newer file selection has happened meanwhile.
type Controller struct {
	store    *ConfigurationStore
	uploads  *UploadCoordinator
	previews *PreviewFetcher
	runner   *OptimizationRunner
	exports  *ExportCoordinator
	log      *slog.Logger
	recorder RunRecorder

	mu         sync.Mutex
	generation uint64
	genCtx     context.Context
	genCancel  context.CancelFunc
	session    models.UploadSession
	file       []byte
	preview    *models.PreviewResult
	bundle     *models.ResultBundle
	optimizing bool
	status     Status
	history    []Phase
	exported   []models.ExportedFile
}

func New(api Backend, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Defaults.Planning.PlanningWhse == "" {
		opts.Defaults = config.DefaultPlanningDefaults()
	}
	c := &Controller{
		store:    NewConfigurationStore(opts.Defaults),
		uploads:  NewUploadCoordinator(api, opts.Defaults.Planning.KeyPrefix),
		previews: NewPreviewFetcher(api),
		runner:   NewOptimizationRunner(api),
		exports:  NewExportCoordinator(api, opts.DownloadDir),
		log:      opts.Logger,
		recorder: opts.Recorder,
	}
	c.genCtx, c.genCancel = context.WithCancel(context.Background())
	c.resetLocked(models.UploadSession{Status: models.UploadIdle})
	return c
}

func (c *Controller) Config() *ConfigurationStore { return c.store }

// SelectFile starts a new session: any in-flight attempt is cancelled and its
// eventual result discarded; storage key, preview and results are cleared.
func (c *Controller) SelectFile(fileName, contentType string, data []byte) models.UploadSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genCancel()
	c.genCtx, c.genCancel = context.WithCancel(context.Background())
	if contentType == "" {
		contentType = models.XLSXContentType
	}
	c.generation++
	c.resetLocked(models.UploadSession{
		SessionID:   uuid.NewString(),
		Generation:  c.generation,
		FileName:    fileName,
		ContentType: contentType,
		Status:      models.UploadIdle,
	})
	c.file = data
	c.log.Info("file selected", "session_id", c.session.SessionID, "file", fileName, "bytes", len(data), "generation", c.generation)
	return c.session
}

func (c *Controller) resetLocked(s models.UploadSession) {
	c.session = s
	c.file = nil
	c.preview = nil
	c.bundle = nil
	c.optimizing = false
	c.exported = nil
	c.status = Status{Phase: PhaseIdle}
	c.history = []Phase{PhaseIdle}
}

func (c *Controller) setPhaseLocked(p Phase, msg string) {
	if c.status.Phase != p {
		c.history = append(c.history, p)
	}
	c.status = Status{Phase: p, Message: msg}
}

func (c *Controller) failLocked(step string, err error) {
	st := errorStatus(err)
	c.setPhaseLocked(PhaseError, st.Message)
	c.log.Warn("step failed", "session_id", c.session.SessionID, "step", step, "kind", planapi.Classify(err), "err", err)
}

// progressPhase is the phase implied by data already held.
func (c *Controller) progressPhaseLocked() (Phase, string) {
	switch {
	case c.bundle != nil:
		return PhaseComplete, msgOptimized
	case c.preview != nil:
		return PhaseUploaded, msgPreviewed
	case c.session.HasStorageKey():
		return PhaseUploaded, msgUploaded
	default:
		return PhaseIdle, ""
	}
}

func (c *Controller) staleLocked(gen uint64) bool {
	return gen != c.generation
}

// attemptLocked derives a context that is also cancelled by the next
// file selection.
func (c *Controller) attemptLocked(ctx context.Context) (context.Context, context.CancelFunc) {
	attemptCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.genCtx, cancel)
	return attemptCtx, func() {
		stop()
		cancel()
	}
}

// Upload presigns and transfers the selected file.
func (c *Controller) Upload(ctx context.Context) error {
	c.mu.Lock()
	if c.session.FileName == "" || c.file == nil {
		c.mu.Unlock()
		return util.ErrNoFileSelected
	}
	if c.session.Status == models.UploadPresigning || c.session.Status == models.UploadUploading {
		c.mu.Unlock()
		return fmt.Errorf("upload: %w", util.ErrInProgress)
	}
	gen := c.generation
	attemptCtx, cancel := c.attemptLocked(ctx)
	fileName, contentType, data := c.session.FileName, c.session.ContentType, c.file
	c.session.Status = models.UploadPresigning
	c.session.Error = ""
	c.setPhaseLocked(PhasePresigning, msgPresigning)
	c.mu.Unlock()
	defer cancel()

	key, target, err := c.uploads.RequestUploadTarget(attemptCtx, fileName, contentType)

	c.mu.Lock()
	if c.staleLocked(gen) {
		c.mu.Unlock()
		return util.ErrStale
	}
	if err != nil {
		c.uploadFailedLocked("presign", err)
		c.mu.Unlock()
		return err
	}
	c.session.Status = models.UploadUploading
	c.setPhaseLocked(PhaseUploading, msgUploading)
	c.mu.Unlock()

	err = c.uploads.UploadBytes(attemptCtx, target, fileName, contentType, data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen) {
		return util.ErrStale
	}
	if err != nil {
		c.uploadFailedLocked("upload", err)
		return err
	}
	c.session.StorageKey = key
	c.session.Status = models.UploadUploaded
	c.setPhaseLocked(PhaseUploaded, msgUploaded)
	c.log.Info("upload complete", "session_id", c.session.SessionID, "storage_key", key)
	return nil
}

func (c *Controller) uploadFailedLocked(step string, err error) {
	c.failLocked(step, err)
	c.session.Status = models.UploadError
	c.session.Error = c.status.Message
}

// FetchPreview requests parsed metadata for the uploaded file.
func (c *Controller) FetchPreview(ctx context.Context) (*models.PreviewResult, error) {
	c.mu.Lock()
	if c.session.Status != models.UploadUploaded {
		c.mu.Unlock()
		return nil, util.ErrNotUploaded
	}
	gen, key := c.generation, c.session.StorageKey
	sheet := c.store.Planning().SheetName
	c.setPhaseLocked(PhaseUploaded, msgPreviewing)
	attemptCtx, cancel := c.attemptLocked(ctx)
	c.mu.Unlock()
	defer cancel()

	p, err := c.previews.FetchPreview(attemptCtx, key, sheet)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen) {
		return nil, util.ErrStale
	}
	if err != nil {
		c.failLocked("preview", err)
		return nil, err
	}
	c.preview = p
	c.setPhaseLocked(PhaseUploaded, msgPreviewed)
	c.log.Info("preview ready", "session_id", c.session.SessionID, "rows", p.RowCount, "missing", p.MissingRequiredColumns)
	return p, nil
}

// UploadAndPreview is the single "Upload & Preview" action.
func (c *Controller) UploadAndPreview(ctx context.Context) (*models.PreviewResult, error) {
	if err := c.Upload(ctx); err != nil {
		return nil, err
	}
	return c.FetchPreview(ctx)
}

func (c *Controller) canOptimizeLocked() error {
	switch {
	case !c.session.HasStorageKey():
		return util.ErrNotUploaded
	case c.preview == nil || c.preview.StorageKey != c.session.StorageKey:
		return util.ErrNoPreview
	case !c.preview.ReadyToOptimize():
		return fmt.Errorf("%w: %v", util.ErrMissingColumns, c.preview.MissingRequiredColumns)
	}
	return nil
}

// CanOptimize is true iff a storage key and a preview exist and the preview
// reports no missing required columns.
func (c *Controller) CanOptimize() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canOptimizeLocked() == nil
}

// CanExport depends only on the storage key.
func (c *Controller) CanExport() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.HasStorageKey()
}

// Optimize submits the current configuration. On failure the previous result
// bundle stays in place.
func (c *Controller) Optimize(ctx context.Context) (*models.ResultBundle, error) {
	c.mu.Lock()
	if err := c.canOptimizeLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.optimizing {
		c.mu.Unlock()
		return nil, fmt.Errorf("optimization: %w", util.ErrInProgress)
	}
	cfg, params := c.store.Snapshot(), c.store.Planning()
	if err := cfg.Validate(); err != nil {
		c.failLocked("validate", err)
		c.mu.Unlock()
		return nil, err
	}
	gen, key, sessionID := c.generation, c.session.StorageKey, c.session.SessionID
	c.optimizing = true
	c.setPhaseLocked(PhaseOptimizing, msgOptimizing)
	attemptCtx, cancel := c.attemptLocked(ctx)
	c.mu.Unlock()
	defer cancel()

	start := time.Now()
	bundle, err := c.runner.Run(attemptCtx, key, params, cfg)
	rec := models.RunRecord{
		RunID:        uuid.NewString(),
		SessionID:    sessionID,
		Step:         "optimize",
		StorageKey:   key,
		PlanningWhse: params.PlanningWhse,
		Status:       "ok",
		Duration:     time.Since(start),
	}
	if err != nil {
		rec.Status, rec.ErrorKind = "failed", string(planapi.Classify(err))
	} else {
		rec.TruckCount = len(bundle.Trucks)
	}
	c.record(ctx, rec)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen) {
		return nil, util.ErrStale
	}
	c.optimizing = false
	if err != nil {
		c.failLocked("optimize", err)
		return nil, err
	}
	c.bundle = bundle
	c.setPhaseLocked(PhaseComplete, msgOptimized)
	c.log.Info("optimization complete", "session_id", sessionID, "trucks", len(bundle.Trucks), "assignments", len(bundle.Assignments))
	return bundle, nil
}

// Export downloads one artifact into the download directory.
func (c *Controller) Export(ctx context.Context, kind models.ExportKind) (models.ExportedFile, error) {
	if _, ok := models.ParseExportKind(string(kind)); !ok {
		return models.ExportedFile{}, fmt.Errorf("unknown export kind %q", kind)
	}
	c.mu.Lock()
	if !c.session.HasStorageKey() {
		c.mu.Unlock()
		return models.ExportedFile{}, util.ErrNotUploaded
	}
	gen, key, sessionID := c.generation, c.session.StorageKey, c.session.SessionID
	sheet := c.store.Planning().SheetName
	// A running optimize owns the status line until it finishes.
	quiet := c.optimizing
	if !quiet {
		c.status.Message = exportingMessage(kind)
	}
	attemptCtx, cancel := c.attemptLocked(ctx)
	c.mu.Unlock()
	defer cancel()

	start := time.Now()
	f, err := c.exports.ExportArtifact(attemptCtx, kind, key, sheet)
	rec := models.RunRecord{
		RunID:      uuid.NewString(),
		SessionID:  sessionID,
		Step:       "export:" + string(kind),
		StorageKey: key,
		Status:     "ok",
		Duration:   time.Since(start),
	}
	if err != nil {
		rec.Status, rec.ErrorKind = "failed", string(planapi.Classify(err))
	}
	c.record(ctx, rec)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen) {
		return models.ExportedFile{}, util.ErrStale
	}
	if err != nil {
		if quiet || c.optimizing {
			c.log.Warn("export failed during optimize", "session_id", sessionID, "kind", kind, "err", err)
			return models.ExportedFile{}, err
		}
		c.failLocked("export", err)
		return models.ExportedFile{}, err
	}
	c.exported = append(c.exported, f)
	if quiet || c.optimizing {
		c.log.Info("export saved", "session_id", sessionID, "kind", kind, "path", f.Path, "sheets", f.Sheets)
		return f, nil
	}
	phase := c.status.Phase
	if phase == PhaseError {
		phase, _ = c.progressPhaseLocked()
	}
	c.setPhaseLocked(phase, exportedMessage(f))
	c.log.Info("export saved", "session_id", sessionID, "kind", kind, "path", f.Path, "sheets", f.Sheets)
	return f, nil
}

func (c *Controller) record(ctx context.Context, rec models.RunRecord) {
	if err := c.recorder.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		c.log.Warn("run audit failed", "run_id", rec.RunID, "err", err)
	}
}

// State is a point-in-time copy of everything the controller holds.
type State struct {
	Session     models.UploadSession  `json:"session"`
	Status      Status                `json:"status"`
	History     []Phase               `json:"history"`
	Preview     *models.PreviewResult `json:"preview,omitempty"`
	Results     *models.ResultBundle  `json:"results,omitempty"`
	Exports     []models.ExportedFile `json:"exports,omitempty"`
	Config      map[string]string     `json:"config"`
	CanOptimize bool                  `json:"can_optimize"`
	CanExport   bool                  `json:"can_export"`
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		Session:     c.session,
		Status:      c.status,
		History:     append([]Phase(nil), c.history...),
		Preview:     c.preview,
		Results:     c.bundle,
		Exports:     append([]models.ExportedFile(nil), c.exported...),
		Config:      c.store.Fields(),
		CanOptimize: c.canOptimizeLocked() == nil,
		CanExport:   c.session.HasStorageKey(),
	}
	return st
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) Results() *models.ResultBundle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bundle
}

// IsStale reports whether err means the call was superseded by a reselection.
func IsStale(err error) bool {
	return errors.Is(err, util.ErrStale)
}
