package activities

import "truckplanner/internal/models"

type PresignInput struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	KeyPrefix   string `json:"key_prefix,omitempty"`
}

type PresignOutput struct {
	Key    string              `json:"key"`
	Target models.UploadTarget `json:"target"`
}

type UploadInput struct {
	FilePath    string              `json:"file_path"`
	FileName    string              `json:"file_name"`
	ContentType string              `json:"content_type"`
	Target      models.UploadTarget `json:"target"`
}

type UploadOutput struct {
	Bytes  int    `json:"bytes"`
	SHA256 string `json:"sha256"`
}

type PreviewInput struct {
	StorageKey string `json:"storage_key"`
	SheetName  string `json:"sheet_name,omitempty"`
}

type PreviewOutput struct {
	Preview models.PreviewResult `json:"preview"`
}

type OptimizeInput struct {
	StorageKey string                `json:"storage_key"`
	Params     models.PlanningParams `json:"params"`
	Weights    models.WeightConfig   `json:"weights"`
}

type OptimizeOutput struct {
	Bundle models.ResultBundle `json:"bundle"`
}

type ExportInput struct {
	RunID      string            `json:"run_id"`
	StorageKey string            `json:"storage_key"`
	Kind       models.ExportKind `json:"kind"`
	SheetName  string            `json:"sheet_name,omitempty"`
}

type ExportOutput struct {
	File models.ExportedFile `json:"file"`
}

type LogRunInput struct {
	Record models.RunRecord `json:"record"`
}

type WriteRunSummaryInput struct {
	RunID   string         `json:"run_id"`
	Summary map[string]any `json:"summary"`
}
