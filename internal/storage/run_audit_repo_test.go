package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"truckplanner/internal/models"
)

type fakeExec struct {
	sql  []string
	args [][]any
	err  error
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestInsertPassesRecordFields(t *testing.T) {
	fx := &fakeExec{}
	repo := &RunAuditRepo{db: fx}
	err := repo.RecordRun(context.Background(), models.RunRecord{
		RunID:        "6f1c1f0e-8d53-4c59-9d0c-1a9b6b1f5a10",
		SessionID:    "s1",
		Step:         "optimize",
		StorageKey:   "uploads/abc123.xlsx",
		PlanningWhse: "ZAC",
		Status:       "ok",
		TruckCount:   3,
		Duration:     1500 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Len(t, fx.sql, 1)
	require.True(t, strings.Contains(fx.sql[0], "INSERT INTO plan_runs"))
	require.Equal(t, []any{
		"6f1c1f0e-8d53-4c59-9d0c-1a9b6b1f5a10", "s1", "optimize", "uploads/abc123.xlsx", "ZAC", "ok", "", 3, int64(1500),
	}, fx.args[0])
}

func TestInsertWrapsError(t *testing.T) {
	repo := &RunAuditRepo{db: &fakeExec{err: errors.New("connection refused")}}
	err := repo.Insert(context.Background(), models.RunRecord{Step: "export:standard", Status: "failed"})
	require.ErrorContains(t, err, "insert plan run: connection refused")
	require.ErrorContains(t, repo.EnsureSchema(context.Background()), "create plan_runs")
}
