package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"truckplanner/internal/models"
	"truckplanner/internal/planapi"
	"truckplanner/internal/util"
)

// Backend is the subset of the planning API the workflow needs.
type Backend interface {
	Presign(ctx context.Context, req planapi.PresignRequest) (planapi.PresignResponse, error)
	UploadToBlob(ctx context.Context, target models.UploadTarget, fileName, contentType string, r io.Reader) error
	Preview(ctx context.Context, req planapi.PreviewRequest) (models.PreviewResult, error)
	Optimize(ctx context.Context, req planapi.OptimizeRequest) (models.ResultBundle, error)
	Export(ctx context.Context, kind models.ExportKind, req planapi.ExportRequest) (planapi.Artifact, error)
}

// UploadCoordinator obtains a presigned target and transfers the file to it.
type UploadCoordinator struct {
	api       Backend
	keyPrefix string
}

func NewUploadCoordinator(api Backend, keyPrefix string) *UploadCoordinator {
	return &UploadCoordinator{api: api, keyPrefix: keyPrefix}
}

func (u *UploadCoordinator) RequestUploadTarget(ctx context.Context, fileName, contentType string) (string, models.UploadTarget, error) {
	out, err := u.api.Presign(ctx, planapi.PresignRequest{
		Filename:         fileName,
		ContentType:      contentType,
		KeyPrefix:        u.keyPrefix,
		ExpiresInSeconds: models.DefaultPresignExpiry,
	})
	if err != nil {
		return "", models.UploadTarget{}, err
	}
	return out.Key, out.Presigned, nil
}

func (u *UploadCoordinator) UploadBytes(ctx context.Context, target models.UploadTarget, fileName, contentType string, data []byte) error {
	return u.api.UploadToBlob(ctx, target, fileName, contentType, bytes.NewReader(data))
}

type PreviewFetcher struct {
	api Backend
}

func NewPreviewFetcher(api Backend) *PreviewFetcher {
	return &PreviewFetcher{api: api}
}

func (p *PreviewFetcher) FetchPreview(ctx context.Context, storageKey, sheetName string) (*models.PreviewResult, error) {
	out, err := p.api.Preview(ctx, planapi.PreviewRequest{
		S3Key:         storageKey,
		SheetName:     sheetName,
		MaxSampleRows: models.DefaultSampleRows,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type OptimizationRunner struct {
	api Backend
}

func NewOptimizationRunner(api Backend) *OptimizationRunner {
	return &OptimizationRunner{api: api}
}

// Run validates cfg, then submits one optimize request. Multi-stop is sent
// as false while the control is disabled.
func (o *OptimizationRunner) Run(ctx context.Context, storageKey string, params models.PlanningParams, cfg models.WeightConfig) (*models.ResultBundle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bundle, err := o.api.Optimize(ctx, planapi.OptimizeRequest{
		S3Key:          storageKey,
		PlanningWhse:   params.PlanningWhse,
		AllowMultiStop: params.AllowMultiStop && MultiStopEnabled,
		WeightConfig:   cfg,
		SheetName:      params.SheetName,
	})
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

// ExportCoordinator fetches a generated workbook and saves it to dir under
// the fixed name for its kind.
type ExportCoordinator struct {
	api Backend
	dir string
}

func NewExportCoordinator(api Backend, dir string) *ExportCoordinator {
	return &ExportCoordinator{api: api, dir: dir}
}

func (e *ExportCoordinator) ExportArtifact(ctx context.Context, kind models.ExportKind, storageKey, sheetName string) (models.ExportedFile, error) {
	art, err := e.api.Export(ctx, kind, planapi.ExportRequest{S3Key: storageKey, SheetName: sheetName})
	if err != nil {
		return models.ExportedFile{}, err
	}
	path := util.SafeJoin(e.dir, kind.Filename())
	if err := util.WriteFileAtomic(path, art.Data); err != nil {
		return models.ExportedFile{}, &planapi.ExportError{Kind: kind, Err: fmt.Errorf("save %s: %w", kind.Filename(), err)}
	}
	return models.ExportedFile{
		Kind:     kind,
		Path:     path,
		Filename: kind.Filename(),
		Bytes:    len(art.Data),
		SHA256:   util.SHA256Hex(art.Data),
		Sheets:   art.Sheets,
	}, nil
}
