package workflows

import "truckplanner/internal/models"

type PlanRunInput struct {
	RunID        string              `json:"run_id"`
	FilePath     string              `json:"file_path"`
	FileName     string              `json:"file_name,omitempty"`
	ContentType  string              `json:"content_type,omitempty"`
	KeyPrefix    string              `json:"key_prefix,omitempty"`
	SheetName    string              `json:"sheet_name,omitempty"`
	PlanningWhse string              `json:"planning_whse"`
	Weights      models.WeightConfig `json:"weights"`
	// Exports run after optimization, or right after preview when the
	// upload is blocked by missing columns.
	Exports                []models.ExportKind `json:"exports,omitempty"`
	UploadTimeoutSeconds   int                 `json:"upload_timeout_seconds,omitempty"`
	OptimizeTimeoutSeconds int                 `json:"optimize_timeout_seconds,omitempty"`
	ExportTimeoutSeconds   int                 `json:"export_timeout_seconds,omitempty"`
}

const (
	RunCompleted = "completed"
	RunBlocked   = "blocked"
	RunFailed    = "failed"
)

type PlanRunStatus struct {
	RunID      string                `json:"run_id"`
	Phase      string                `json:"phase"`
	Message    string                `json:"message"`
	History    []string              `json:"history"`
	StorageKey string                `json:"storage_key,omitempty"`
	Missing    []string              `json:"missing_required_columns,omitempty"`
	TruckCount int                   `json:"truck_count"`
	Exports    []models.ExportedFile `json:"exports,omitempty"`
}

type PlanRunResult struct {
	Status     string                `json:"status"`
	Message    string                `json:"message"`
	StorageKey string                `json:"storage_key,omitempty"`
	Preview    *models.PreviewResult `json:"preview,omitempty"`
	Bundle     *models.ResultBundle  `json:"bundle,omitempty"`
	Exports    []models.ExportedFile `json:"exports,omitempty"`
}
