package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"truckplanner/internal/activities"
	"truckplanner/internal/models"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func newPlanRunEnv() *testsuite.TestWorkflowEnvironment {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PlanRunWorkflow)
	registerActivityName(env, "PresignActivity", func(context.Context, activities.PresignInput) (activities.PresignOutput, error) {
		return activities.PresignOutput{}, nil
	})
	registerActivityName(env, "UploadActivity", func(context.Context, activities.UploadInput) (activities.UploadOutput, error) {
		return activities.UploadOutput{}, nil
	})
	registerActivityName(env, "PreviewActivity", func(context.Context, activities.PreviewInput) (activities.PreviewOutput, error) {
		return activities.PreviewOutput{}, nil
	})
	registerActivityName(env, "OptimizeActivity", func(context.Context, activities.OptimizeInput) (activities.OptimizeOutput, error) {
		return activities.OptimizeOutput{}, nil
	})
	registerActivityName(env, "ExportActivity", func(context.Context, activities.ExportInput) (activities.ExportOutput, error) {
		return activities.ExportOutput{}, nil
	})
	registerActivityName(env, "LogRunActivity", func(context.Context, activities.LogRunInput) error { return nil })
	registerActivityName(env, "WriteRunSummaryActivity", func(context.Context, activities.WriteRunSummaryInput) error { return nil })
	env.OnActivity("LogRunActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("WriteRunSummaryActivity", mock.Anything, mock.Anything).Return(nil)
	return env
}

func planRunInput() PlanRunInput {
	return PlanRunInput{
		RunID:        "r1",
		FilePath:     "/tmp/plan.xlsx",
		PlanningWhse: "ZAC",
		Weights:      models.DefaultWeightConfig(),
		Exports:      []models.ExportKind{models.ExportStandard},
	}
}

func presignOK(env *testsuite.TestWorkflowEnvironment) {
	env.OnActivity("PresignActivity", mock.Anything, activities.PresignInput{FileName: "plan.xlsx", ContentType: models.XLSXContentType}).
		Return(activities.PresignOutput{Key: "uploads/abc123.xlsx", Target: models.UploadTarget{URL: "http://blob"}}, nil)
	env.OnActivity("UploadActivity", mock.Anything, mock.Anything).Return(activities.UploadOutput{Bytes: 10}, nil)
}

func queryStatus(t *testing.T, env *testsuite.TestWorkflowEnvironment) PlanRunStatus {
	t.Helper()
	v, err := env.QueryWorkflow(QueryGetPlanRunStatus)
	require.NoError(t, err)
	var st PlanRunStatus
	require.NoError(t, v.Get(&st))
	return st
}

func TestPlanRunWorkflowSuccess(t *testing.T) {
	env := newPlanRunEnv()
	presignOK(env)
	env.OnActivity("PreviewActivity", mock.Anything, activities.PreviewInput{StorageKey: "uploads/abc123.xlsx"}).
		Return(activities.PreviewOutput{Preview: models.PreviewResult{Headers: []string{"SO", "Line", "Weight"}, RowCount: 120, MissingRequiredColumns: []string{}}}, nil)
	env.OnActivity("OptimizeActivity", mock.Anything, mock.Anything).
		Return(activities.OptimizeOutput{Bundle: models.ResultBundle{Trucks: []models.Truck{{TruckNumber: 1, TotalWeight: 51000.4}}}}, nil)
	env.OnActivity("ExportActivity", mock.Anything, activities.ExportInput{RunID: "r1", StorageKey: "uploads/abc123.xlsx", Kind: models.ExportStandard}).
		Return(activities.ExportOutput{File: models.ExportedFile{Kind: models.ExportStandard, Filename: "truck_optimization_results.xlsx"}}, nil)

	env.ExecuteWorkflow(PlanRunWorkflow, planRunInput())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PlanRunResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, RunCompleted, out.Status)
	require.Equal(t, "Exported truck_optimization_results.xlsx", out.Message)
	require.Equal(t, "uploads/abc123.xlsx", out.StorageKey)
	require.Len(t, out.Bundle.Trucks, 1)
	require.Len(t, out.Exports, 1)

	st := queryStatus(t, env)
	require.Equal(t, []string{"idle", "presigning", "uploading", "uploaded", "optimizing", "complete"}, st.History)
	require.Equal(t, 1, st.TruckCount)
	env.AssertExpectations(t)
}

func TestPlanRunWorkflowBlockedByMissingColumns(t *testing.T) {
	env := newPlanRunEnv()
	presignOK(env)
	env.OnActivity("PreviewActivity", mock.Anything, mock.Anything).
		Return(activities.PreviewOutput{Preview: models.PreviewResult{Headers: []string{"SO", "Line"}, MissingRequiredColumns: []string{"Weight"}}}, nil)
	env.OnActivity("ExportActivity", mock.Anything, mock.Anything).
		Return(activities.ExportOutput{File: models.ExportedFile{Filename: "truck_optimization_results.xlsx"}}, nil)

	env.ExecuteWorkflow(PlanRunWorkflow, planRunInput())
	require.NoError(t, env.GetWorkflowError())

	var out PlanRunResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, RunBlocked, out.Status)
	require.Nil(t, out.Bundle)
	require.Len(t, out.Exports, 1)

	st := queryStatus(t, env)
	require.Equal(t, []string{"Weight"}, st.Missing)
	require.NotContains(t, st.History, "optimizing")
}

func TestPlanRunWorkflowPresignFailure(t *testing.T) {
	env := newPlanRunEnv()
	env.OnActivity("PresignActivity", mock.Anything, mock.Anything).
		Return(activities.PresignOutput{}, temporal.NewNonRetryableApplicationError("AWS_S3_BUCKET_UPLOADS not configured", "server", nil))

	env.ExecuteWorkflow(PlanRunWorkflow, planRunInput())
	require.NoError(t, env.GetWorkflowError())

	var out PlanRunResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, RunFailed, out.Status)
	require.Equal(t, "Error: AWS_S3_BUCKET_UPLOADS not configured", out.Message)
	require.Equal(t, []string{"idle", "presigning", "error"}, queryStatus(t, env).History)
}

func TestPlanRunWorkflowRejectsInvalidWeights(t *testing.T) {
	env := newPlanRunEnv()
	in := planRunInput()
	in.Weights.OtherMin = in.Weights.OtherMax + 1

	env.ExecuteWorkflow(PlanRunWorkflow, in)
	require.NoError(t, env.GetWorkflowError())

	var out PlanRunResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, RunFailed, out.Status)
	require.Contains(t, out.Message, "Error: invalid weight config")
	require.Empty(t, out.StorageKey)
}

func TestWorkflowID(t *testing.T) {
	require.Equal(t, "planrun-week-12-plan-xlsx-abc", WorkflowID("/data/Week_12 Plan.xlsx", "abc"))
}
