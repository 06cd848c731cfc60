package controller

import (
	"fmt"

	"truckplanner/internal/models"
	"truckplanner/internal/planapi"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePresigning Phase = "presigning"
	PhaseUploading  Phase = "uploading"
	PhaseUploaded   Phase = "uploaded"
	PhaseOptimizing Phase = "optimizing"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

// Status is the single human-readable status line plus the phase behind it.
type Status struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message"`
}

func (s Status) String() string { return s.Message }

const (
	msgPresigning = "Presigning..."
	msgUploading  = "Uploading to S3..."
	msgUploaded   = "Uploaded"
	msgPreviewing = "Generating preview..."
	msgPreviewed  = "Uploaded and previewed"
	msgOptimizing = "Optimizing..."
	msgOptimized  = "Optimization complete"
)

func errorStatus(err error) Status {
	return Status{Phase: PhaseError, Message: "Error: " + planapi.Message(err)}
}

func exportingMessage(kind models.ExportKind) string {
	return fmt.Sprintf("Exporting %s...", kind)
}

func exportedMessage(f models.ExportedFile) string {
	return fmt.Sprintf("Exported %s", f.Filename)
}
