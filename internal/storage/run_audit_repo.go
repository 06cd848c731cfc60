package storage

import (
	"context"
	"fmt"

	"truckplanner/internal/models"
)

const runAuditSchema = `
CREATE TABLE IF NOT EXISTS plan_runs(
  run_id        uuid PRIMARY KEY,
  session_id    text NOT NULL DEFAULT '',
  step          text NOT NULL,
  storage_key   text NOT NULL DEFAULT '',
  planning_whse text,
  status        text NOT NULL,
  error_kind    text,
  truck_count   integer NOT NULL DEFAULT 0,
  duration_ms   bigint NOT NULL DEFAULT 0,
  created_at    timestamptz NOT NULL DEFAULT NOW()
)`

// RunAuditRepo appends one row per optimize or export attempt. Rows are
// never read back by the planner.
type RunAuditRepo struct {
	db execer
}

func NewRunAuditRepo(db *DB) *RunAuditRepo {
	return &RunAuditRepo{db: db.Pool}
}

func (r *RunAuditRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, runAuditSchema); err != nil {
		return fmt.Errorf("create plan_runs: %w", err)
	}
	return nil
}

func (r *RunAuditRepo) Insert(ctx context.Context, rec models.RunRecord) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO plan_runs(run_id, session_id, step, storage_key, planning_whse, status, error_kind, truck_count, duration_ms)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, $3, $4, NULLIF($5,''), $6, NULLIF($7,''), $8, $9)`,
		rec.RunID, rec.SessionID, rec.Step, rec.StorageKey, rec.PlanningWhse, rec.Status, rec.ErrorKind, rec.TruckCount, rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert plan run: %w", err)
	}
	return nil
}

// RecordRun lets the repo serve as the controller's run recorder.
func (r *RunAuditRepo) RecordRun(ctx context.Context, rec models.RunRecord) error {
	return r.Insert(ctx, rec)
}
