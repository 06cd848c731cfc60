package planapi

import "truckplanner/internal/models"

type PresignRequest struct {
	Filename         string `json:"filename"`
	ContentType      string `json:"content_type"`
	KeyPrefix        string `json:"key_prefix,omitempty"`
	ExpiresInSeconds int    `json:"expires_in_seconds,omitempty"`
}

type PresignResponse struct {
	Key       string              `json:"key"`
	Presigned models.UploadTarget `json:"presigned"`
}

type PreviewRequest struct {
	S3Key         string `json:"s3_key"`
	SheetName     string `json:"sheet_name,omitempty"`
	MaxSampleRows int    `json:"max_sample_rows,omitempty"`
}

type OptimizeRequest struct {
	S3Key          string              `json:"s3_key"`
	PlanningWhse   string              `json:"planning_whse"`
	AllowMultiStop bool                `json:"allow_multi_stop"`
	WeightConfig   models.WeightConfig `json:"weight_config"`
	SheetName      string              `json:"sheet_name,omitempty"`
}

type ExportRequest struct {
	S3Key     string `json:"s3_key"`
	SheetName string `json:"sheet_name,omitempty"`
}

// Artifact is a downloaded workbook that has been opened and inspected.
type Artifact struct {
	Kind   models.ExportKind
	Data   []byte
	Sheets []string
}

type Health struct {
	Status string `json:"status"`
	Env    string `json:"env"`
}

type customersResponse struct {
	Customers []string `json:"customers"`
}

type customersUpdate struct {
	Customers []string `json:"customers"`
}

type customersUpdateResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}
