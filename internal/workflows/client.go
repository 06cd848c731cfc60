package workflows

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

// Starter is the part of the Temporal client used to start and inspect runs.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// StartPlanRun starts PlanRunWorkflow and returns its workflow id. A run id
// is generated when the input has none.
func StartPlanRun(ctx context.Context, s Starter, taskQueue string, in PlanRunInput) (string, error) {
	if in.FilePath == "" {
		return "", fmt.Errorf("file path is required")
	}
	if in.RunID == "" {
		in.RunID = uuid.NewString()
	}
	we, err := s.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       WorkflowID(in.FilePath, in.RunID),
		TaskQueue:                                taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, PlanRunWorkflow, in)
	if err != nil {
		return "", fmt.Errorf("start plan run: %w", err)
	}
	return we.GetID(), nil
}

func QueryPlanRun(ctx context.Context, s Starter, workflowID string) (PlanRunStatus, error) {
	var st PlanRunStatus
	resp, err := s.QueryWorkflow(ctx, workflowID, "", QueryGetPlanRunStatus)
	if err != nil {
		return st, fmt.Errorf("query plan run %s: %w", workflowID, err)
	}
	if err := resp.Get(&st); err != nil {
		return st, fmt.Errorf("decode plan run status: %w", err)
	}
	return st, nil
}
