package activities

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.temporal.io/sdk/temporal"

	"truckplanner/internal/config"
	"truckplanner/internal/controller"
	"truckplanner/internal/models"
	"truckplanner/internal/planapi"
	"truckplanner/internal/util"
)

type Activities struct {
	cfg      config.Config
	uploads  *controller.UploadCoordinator
	previews *controller.PreviewFetcher
	runner   *controller.OptimizationRunner
	api      controller.Backend
	audit    controller.RunRecorder
}

// New wires the activities to one backend client. audit may be nil when no
// database is configured.
func New(cfg config.Config, api controller.Backend, audit controller.RunRecorder) *Activities {
	return &Activities{
		cfg:      cfg,
		uploads:  controller.NewUploadCoordinator(api, ""),
		previews: controller.NewPreviewFetcher(api),
		runner:   controller.NewOptimizationRunner(api),
		api:      api,
		audit:    audit,
	}
}

// backendFailure turns a client error into a non-retryable application error
// whose message is what a user would see in the status line.
func backendFailure(err error) error {
	if err == nil {
		return nil
	}
	return temporal.NewNonRetryableApplicationError(planapi.Message(err), string(planapi.Classify(err)), nil)
}

func (a *Activities) PresignActivity(ctx context.Context, in PresignInput) (PresignOutput, error) {
	up := a.uploads
	if in.KeyPrefix != "" {
		up = controller.NewUploadCoordinator(a.api, in.KeyPrefix)
	}
	key, target, err := up.RequestUploadTarget(ctx, in.FileName, in.ContentType)
	if err != nil {
		return PresignOutput{}, backendFailure(err)
	}
	return PresignOutput{Key: key, Target: target}, nil
}

func (a *Activities) UploadActivity(ctx context.Context, in UploadInput) (UploadOutput, error) {
	data, err := os.ReadFile(in.FilePath)
	if err != nil {
		return UploadOutput{}, temporal.NewNonRetryableApplicationError(fmt.Sprintf("read %s: %v", in.FilePath, err), "input", nil)
	}
	name := in.FileName
	if name == "" {
		name = filepath.Base(in.FilePath)
	}
	if err := a.uploads.UploadBytes(ctx, in.Target, name, in.ContentType, data); err != nil {
		return UploadOutput{}, backendFailure(err)
	}
	return UploadOutput{Bytes: len(data), SHA256: util.SHA256Hex(data)}, nil
}

func (a *Activities) PreviewActivity(ctx context.Context, in PreviewInput) (PreviewOutput, error) {
	p, err := a.previews.FetchPreview(ctx, in.StorageKey, in.SheetName)
	if err != nil {
		return PreviewOutput{}, backendFailure(err)
	}
	return PreviewOutput{Preview: *p}, nil
}

func (a *Activities) OptimizeActivity(ctx context.Context, in OptimizeInput) (OptimizeOutput, error) {
	b, err := a.runner.Run(ctx, in.StorageKey, in.Params, in.Weights)
	if err != nil {
		return OptimizeOutput{}, backendFailure(err)
	}
	return OptimizeOutput{Bundle: *b}, nil
}

// ExportActivity saves the artifact under <download dir>/<run id>/.
func (a *Activities) ExportActivity(ctx context.Context, in ExportInput) (ExportOutput, error) {
	if _, ok := models.ParseExportKind(string(in.Kind)); !ok {
		return ExportOutput{}, temporal.NewNonRetryableApplicationError(fmt.Sprintf("unknown export kind %q", in.Kind), "input", nil)
	}
	dir := util.SafeJoin(a.cfg.DownloadDir, in.RunID)
	f, err := controller.NewExportCoordinator(a.api, dir).ExportArtifact(ctx, in.Kind, in.StorageKey, in.SheetName)
	if err != nil {
		return ExportOutput{}, backendFailure(err)
	}
	return ExportOutput{File: f}, nil
}

func (a *Activities) LogRunActivity(ctx context.Context, in LogRunInput) error {
	if a.audit == nil {
		return nil
	}
	return a.audit.RecordRun(ctx, in.Record)
}

func (a *Activities) WriteRunSummaryActivity(ctx context.Context, in WriteRunSummaryInput) error {
	_ = ctx
	outPath := filepath.Join(util.SafeJoin(a.cfg.DownloadDir, in.RunID), "run_summary.json")
	return util.WriteJSONAtomic(outPath, in.Summary)
}
