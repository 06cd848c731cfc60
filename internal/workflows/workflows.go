package workflows

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"truckplanner/internal/activities"
	"truckplanner/internal/models"
)

const QueryGetPlanRunStatus = "GetPlanRunStatus"

// Phase names mirror the interactive controller.
const (
	phaseIdle       = "idle"
	phasePresigning = "presigning"
	phaseUploading  = "uploading"
	phaseUploaded   = "uploaded"
	phaseOptimizing = "optimizing"
	phaseComplete   = "complete"
	phaseError      = "error"
)

func noRetry(timeout time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
}

// PlanRunWorkflow runs upload, preview, optimize and the requested exports
// for one local file. Backend failures end the run with status "failed"
// rather than a workflow error; missing columns end it as "blocked".
func PlanRunWorkflow(ctx workflow.Context, input PlanRunInput) (PlanRunResult, error) {
	status := PlanRunStatus{RunID: input.RunID, Phase: phaseIdle, History: []string{phaseIdle}}
	if err := workflow.SetQueryHandler(ctx, QueryGetPlanRunStatus, func() (PlanRunStatus, error) {
		return status, nil
	}); err != nil {
		return PlanRunResult{}, err
	}
	logger := workflow.GetLogger(ctx)

	setPhase := func(phase, msg string) {
		if status.Phase != phase {
			status.History = append(status.History, phase)
		}
		status.Phase, status.Message = phase, msg
	}
	result := PlanRunResult{}
	fail := func(err error) (PlanRunResult, error) {
		setPhase(phaseError, "Error: "+failureMessage(err))
		result.Status, result.Message = RunFailed, status.Message
		writeSummary(ctx, input, status, result)
		return result, nil
	}

	if err := input.Weights.Validate(); err != nil {
		return fail(err)
	}
	fileName := input.FileName
	if fileName == "" {
		fileName = filepathBase(input.FilePath)
	}
	contentType := input.ContentType
	if contentType == "" {
		contentType = models.XLSXContentType
	}

	setPhase(phasePresigning, "Presigning...")
	var pre activities.PresignOutput
	presignCtx := workflow.WithActivityOptions(ctx, noRetry(10*time.Second))
	if err := workflow.ExecuteActivity(presignCtx, "PresignActivity", activities.PresignInput{
		FileName:    fileName,
		ContentType: contentType,
		KeyPrefix:   input.KeyPrefix,
	}).Get(ctx, &pre); err != nil {
		return fail(err)
	}

	setPhase(phaseUploading, "Uploading to S3...")
	uploadCtx := workflow.WithActivityOptions(ctx, noRetry(durationOrDefault(input.UploadTimeoutSeconds, 300)))
	if err := workflow.ExecuteActivity(uploadCtx, "UploadActivity", activities.UploadInput{
		FilePath:    input.FilePath,
		FileName:    fileName,
		ContentType: contentType,
		Target:      pre.Target,
	}).Get(ctx, nil); err != nil {
		return fail(err)
	}
	status.StorageKey, result.StorageKey = pre.Key, pre.Key
	setPhase(phaseUploaded, "Uploaded")

	var pv activities.PreviewOutput
	previewCtx := workflow.WithActivityOptions(ctx, noRetry(15*time.Second))
	if err := workflow.ExecuteActivity(previewCtx, "PreviewActivity", activities.PreviewInput{
		StorageKey: pre.Key,
		SheetName:  input.SheetName,
	}).Get(ctx, &pv); err != nil {
		return fail(err)
	}
	result.Preview = &pv.Preview
	setPhase(phaseUploaded, "Uploaded and previewed")

	blocked := !pv.Preview.ReadyToOptimize()
	if blocked {
		status.Missing = pv.Preview.MissingRequiredColumns
		status.Message = "Missing required columns: " + strings.Join(status.Missing, ", ")
		logger.Info("plan run blocked", "run_id", input.RunID, "missing", status.Missing)
	} else {
		setPhase(phaseOptimizing, "Optimizing...")
		params := models.PlanningParams{PlanningWhse: input.PlanningWhse, SheetName: input.SheetName}
		start := workflow.Now(ctx)
		var opt activities.OptimizeOutput
		optCtx := workflow.WithActivityOptions(ctx, noRetry(durationOrDefault(input.OptimizeTimeoutSeconds, 300)))
		err := workflow.ExecuteActivity(optCtx, "OptimizeActivity", activities.OptimizeInput{
			StorageKey: pre.Key,
			Params:     params,
			Weights:    input.Weights,
		}).Get(ctx, &opt)
		logRun(ctx, input, models.RunRecord{
			Step:         "optimize",
			StorageKey:   pre.Key,
			PlanningWhse: params.PlanningWhse,
			TruckCount:   len(opt.Bundle.Trucks),
			Duration:     workflow.Now(ctx).Sub(start),
		}, err)
		if err != nil {
			return fail(err)
		}
		result.Bundle = &opt.Bundle
		status.TruckCount = len(opt.Bundle.Trucks)
		setPhase(phaseComplete, "Optimization complete")
	}

	exportCtx := workflow.WithActivityOptions(ctx, noRetry(durationOrDefault(input.ExportTimeoutSeconds, 120)))
	for _, kind := range input.Exports {
		status.Message = fmt.Sprintf("Exporting %s...", kind)
		start := workflow.Now(ctx)
		var out activities.ExportOutput
		err := workflow.ExecuteActivity(exportCtx, "ExportActivity", activities.ExportInput{
			RunID:      input.RunID,
			StorageKey: pre.Key,
			Kind:       kind,
			SheetName:  input.SheetName,
		}).Get(ctx, &out)
		logRun(ctx, input, models.RunRecord{
			Step:       "export:" + string(kind),
			StorageKey: pre.Key,
			Duration:   workflow.Now(ctx).Sub(start),
		}, err)
		if err != nil {
			return fail(err)
		}
		status.Exports = append(status.Exports, out.File)
		status.Message = "Exported " + out.File.Filename
	}
	result.Exports = status.Exports

	if blocked {
		result.Status = RunBlocked
	} else {
		result.Status = RunCompleted
	}
	result.Message = status.Message
	writeSummary(ctx, input, status, result)
	return result, nil
}

// logRun is best effort; an audit failure never fails the run.
func logRun(ctx workflow.Context, input PlanRunInput, rec models.RunRecord, stepErr error) {
	rec.SessionID = input.RunID
	rec.Status = "ok"
	if stepErr != nil {
		rec.Status = "failed"
		rec.ErrorKind = failureKind(stepErr)
	}
	logCtx := workflow.WithActivityOptions(ctx, noRetry(30*time.Second))
	if err := workflow.ExecuteActivity(logCtx, "LogRunActivity", activities.LogRunInput{Record: rec}).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("run audit failed", "run_id", input.RunID, "step", rec.Step, "err", err)
	}
}

func writeSummary(ctx workflow.Context, input PlanRunInput, status PlanRunStatus, result PlanRunResult) {
	summaryCtx := workflow.WithActivityOptions(ctx, noRetry(30*time.Second))
	_ = workflow.ExecuteActivity(summaryCtx, "WriteRunSummaryActivity", activities.WriteRunSummaryInput{
		RunID: input.RunID,
		Summary: map[string]any{
			"run_id":       input.RunID,
			"file":         input.FilePath,
			"status":       result.Status,
			"message":      result.Message,
			"storage_key":  status.StorageKey,
			"history":      status.History,
			"truck_count":  status.TruckCount,
			"missing":      status.Missing,
			"exports":      status.Exports,
			"generated_at": workflow.Now(ctx),
		},
	}).Get(ctx, nil)
}

func failureMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	var valErr *models.ValidationError
	if errors.As(err, &valErr) {
		return valErr.Error()
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return "request timed out"
	}
	return err.Error()
}

func failureKind(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Type()
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return "timeout"
	}
	return "transport"
}

// WorkflowID derives a readable workflow id for a run.
func WorkflowID(filePath, runID string) string {
	return "planrun-" + sanitizeID(filepathBase(filePath)) + "-" + runID
}

func filepathBase(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) == 0 {
		return path
	}
	return parts[len(parts)-1]
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
