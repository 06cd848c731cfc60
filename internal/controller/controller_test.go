package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"truckplanner/internal/config"
	"truckplanner/internal/models"
	"truckplanner/internal/planapi"
	"truckplanner/internal/planapi/planapitest"
	"truckplanner/internal/util"
)

type recordingRecorder struct {
	mu   sync.Mutex
	recs []models.RunRecord
}

func (r *recordingRecorder) RecordRun(_ context.Context, rec models.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func newTestController(t *testing.T, b *planapitest.Backend) (*Controller, string, *recordingRecorder) {
	t.Helper()
	api, err := planapi.New(b.URL())
	require.NoError(t, err)
	dir := t.TempDir()
	rec := &recordingRecorder{}
	c := New(api, Options{
		Defaults:    config.DefaultPlanningDefaults(),
		DownloadDir: dir,
		Recorder:    rec,
	})
	return c, dir, rec
}

func TestSuccessfulRunVisitsEveryPhase(t *testing.T) {
	b := planapitest.New(t)
	c, _, rec := newTestController(t, b)
	ctx := context.Background()

	c.SelectFile("plan.xlsx", "", []byte("xlsx"))
	require.Equal(t, []Phase{PhaseIdle}, c.State().History)

	p, err := c.UploadAndPreview(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"SO", "Line", "Weight"}, p.Headers)
	require.Equal(t, 120, p.RowCount)

	st := c.State()
	require.Equal(t, planapitest.DefaultKey, st.Session.StorageKey)
	require.Equal(t, models.UploadUploaded, st.Session.Status)
	require.Equal(t, "Uploaded and previewed", st.Status.Message)
	require.True(t, st.CanOptimize)
	require.True(t, st.CanExport)

	bundle, err := c.Optimize(ctx)
	require.NoError(t, err)
	require.Len(t, bundle.Trucks, 1)

	st = c.State()
	require.Equal(t, []Phase{PhaseIdle, PhasePresigning, PhaseUploading, PhaseUploaded, PhaseOptimizing, PhaseComplete}, st.History)
	require.Equal(t, "Optimization complete", st.Status.String())
	require.Same(t, bundle, c.Results())

	require.Len(t, rec.recs, 1)
	require.Equal(t, "optimize", rec.recs[0].Step)
	require.Equal(t, 1, rec.recs[0].TruckCount)
	require.Equal(t, "ZAC", rec.recs[0].PlanningWhse)

	blob := b.RequestsTo(planapitest.BlobPath)
	require.Len(t, blob, 1)
	require.Equal(t, "plan.xlsx", blob[0].FileName)
	require.Equal(t, "xlsx", string(blob[0].FileData))
}

func TestMissingColumnsKeepOptimizeDisabled(t *testing.T) {
	b := planapitest.New(t)
	b.Handle("/upload/preview", func(w http.ResponseWriter, r *http.Request) {
		p := planapitest.DefaultPreview()
		p["missingRequiredColumns"] = []string{"Weight"}
		planapitest.WriteJSON(w, http.StatusOK, p)
	})
	c, _, _ := newTestController(t, b)

	c.SelectFile("plan.xlsx", "", []byte("xlsx"))
	_, err := c.UploadAndPreview(context.Background())
	require.NoError(t, err)
	require.False(t, c.CanOptimize())
	require.True(t, c.CanExport())

	_, err = c.Optimize(context.Background())
	require.ErrorIs(t, err, util.ErrMissingColumns)
	require.Empty(t, b.RequestsTo("/optimize"))
}

func TestExportEnabledWithoutPreview(t *testing.T) {
	b := planapitest.New(t)
	c, _, _ := newTestController(t, b)

	require.False(t, c.CanExport())
	c.SelectFile("plan.xlsx", "", []byte("xlsx"))
	require.NoError(t, c.Upload(context.Background()))

	require.True(t, c.CanExport())
	require.False(t, c.CanOptimize())
	_, err := c.Optimize(context.Background())
	require.ErrorIs(t, err, util.ErrNoPreview)
}

func TestStandardExportWritesFixedFilename(t *testing.T) {
	b := planapitest.New(t)
	b.Handle("/upload/presign", func(w http.ResponseWriter, r *http.Request) {
		planapitest.WriteJSON(w, http.StatusOK, map[string]any{
			"key":       "k1",
			"presigned": map[string]any{"url": b.URL() + planapitest.BlobPath, "fields": map[string]string{"key": "k1"}},
		})
	})
	c, dir, rec := newTestController(t, b)
	c.SelectFile("plan.xlsx", "", []byte("xlsx"))
	require.NoError(t, c.Upload(context.Background()))

	f, err := c.Export(context.Background(), models.ExportStandard)
	require.NoError(t, err)
	require.Equal(t, "truck_optimization_results.xlsx", f.Filename)
	require.Equal(t, filepath.Join(dir, "truck_optimization_results.xlsx"), f.Path)
	require.Equal(t, []string{"Truck Summary"}, f.Sheets)
	_, err = os.Stat(f.Path)
	require.NoError(t, err)

	reqs := b.RequestsTo("/export/trucks")
	require.Len(t, reqs, 1)
	require.Equal(t, http.MethodPost, reqs[0].Method)
	require.JSONEq(t, `{"s3_key":"k1"}`, string(reqs[0].Body))
	require.Equal(t, "Exported truck_optimization_results.xlsx", c.Status().Message)
	require.Equal(t, "export:standard", rec.recs[0].Step)
}

func TestBlobForbiddenSetsErrorStatus(t *testing.T) {
	b := planapitest.New(t)
	b.Handle(planapitest.BlobPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("Forbidden"))
	})
	c, _, _ := newTestController(t, b)
	c.SelectFile("plan.xlsx", "", []byte("xlsx"))

	err := c.Upload(context.Background())
	var ue *planapi.UploadError
	require.ErrorAs(t, err, &ue)

	st := c.State()
	require.Equal(t, "Error: S3 upload failed: 403 Forbidden", st.Status.Message)
	require.Equal(t, PhaseError, st.Status.Phase)
	require.Equal(t, models.UploadError, st.Session.Status)
	require.Empty(t, st.Session.StorageKey)
	require.False(t, st.CanExport)
}

func TestPresignDetailSurfacesInStatus(t *testing.T) {
	b := planapitest.New(t)
	b.Handle("/upload/presign", func(w http.ResponseWriter, r *http.Request) {
		planapitest.WriteDetail(w, http.StatusServiceUnavailable, "AWS_S3_BUCKET_UPLOADS not configured")
	})
	c, _, _ := newTestController(t, b)
	c.SelectFile("plan.xlsx", "", []byte("xlsx"))

	require.Error(t, c.Upload(context.Background()))
	require.Equal(t, "Error: AWS_S3_BUCKET_UPLOADS not configured", c.Status().Message)
	require.Empty(t, b.RequestsTo(planapitest.BlobPath))
}

func TestSelectFileResetsEverything(t *testing.T) {
	b := planapitest.New(t)
	c, _, _ := newTestController(t, b)
	ctx := context.Background()

	c.SelectFile("plan.xlsx", "", []byte("xlsx"))
	_, err := c.UploadAndPreview(ctx)
	require.NoError(t, err)
	_, err = c.Optimize(ctx)
	require.NoError(t, err)

	first := c.State().Session
	s := c.SelectFile("plan-v2.xlsx", "", []byte("xlsx2"))
	require.NotEqual(t, first.SessionID, s.SessionID)
	require.Greater(t, s.Generation, first.Generation)

	st := c.State()
	require.Empty(t, st.Session.StorageKey)
	require.Nil(t, st.Preview)
	require.Nil(t, st.Results)
	require.Equal(t, []Phase{PhaseIdle}, st.History)
	require.False(t, st.CanOptimize)
	require.False(t, st.CanExport)
}

func TestReselectDiscardsInFlightUpload(t *testing.T) {
	b := planapitest.New(t)
	started := make(chan struct{})
	var once sync.Once
	b.Handle("/upload/presign", func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		planapitest.WriteJSON(w, http.StatusOK, map[string]any{
			"key":       "uploads/old.xlsx",
			"presigned": map[string]any{"url": b.URL() + planapitest.BlobPath, "fields": map[string]string{}},
		})
	})
	c, _, _ := newTestController(t, b)
	c.SelectFile("old.xlsx", "", []byte("old"))

	done := make(chan error, 1)
	go func() { done <- c.Upload(context.Background()) }()
	<-started
	c.SelectFile("new.xlsx", "", []byte("new"))

	select {
	case err := <-done:
		require.True(t, IsStale(err), "expected stale error, got %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("superseded upload was not cancelled")
	}

	st := c.State()
	require.Equal(t, "new.xlsx", st.Session.FileName)
	require.Equal(t, models.UploadIdle, st.Session.Status)
	require.Empty(t, st.Session.StorageKey)
	require.Equal(t, PhaseIdle, st.Status.Phase)
}

func TestInvalidWeightsBlockOptimize(t *testing.T) {
	b := planapitest.New(t)
	c, _, _ := newTestController(t, b)
	c.SelectFile("plan.xlsx", "", []byte("xlsx"))
	_, err := c.UploadAndPreview(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Config().SetField(FieldTexasMin, "60000"))
	_, err = c.Optimize(context.Background())
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Contains(t, c.Status().Message, "Error: invalid weight config")
	require.Empty(t, b.RequestsTo("/optimize"))
}

func TestFailedOptimizeKeepsPreviousBundle(t *testing.T) {
	b := planapitest.New(t)
	c, _, _ := newTestController(t, b)
	ctx := context.Background()
	c.SelectFile("plan.xlsx", "", []byte("xlsx"))
	_, err := c.UploadAndPreview(ctx)
	require.NoError(t, err)
	first, err := c.Optimize(ctx)
	require.NoError(t, err)

	b.Handle("/optimize", func(w http.ResponseWriter, r *http.Request) {
		planapitest.WriteDetail(w, http.StatusBadRequest, "Planning Whse column is required")
	})
	_, err = c.Optimize(ctx)
	require.Error(t, err)
	require.Same(t, first, c.Results())
	require.Equal(t, "Error: Planning Whse column is required", c.Status().Message)

	// A later successful export returns the phase to complete.
	_, err = c.Export(ctx, models.ExportDHLoadList)
	require.NoError(t, err)
	require.Equal(t, PhaseComplete, c.Status().Phase)
}

func TestExportFailureUpdatesStatus(t *testing.T) {
	b := planapitest.New(t)
	b.Handle("/export/dh-load-list", func(w http.ResponseWriter, r *http.Request) {
		planapitest.WriteDetail(w, http.StatusInternalServerError, "Failed to read Excel from S3")
	})
	c, dir, rec := newTestController(t, b)
	c.SelectFile("plan.xlsx", "", []byte("xlsx"))
	require.NoError(t, c.Upload(context.Background()))

	_, err := c.Export(context.Background(), models.ExportDHLoadList)
	var ee *planapi.ExportError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "Error: Failed to read Excel from S3", c.Status().Message)
	_, statErr := os.Stat(filepath.Join(dir, "dh_load_list.xlsx"))
	require.True(t, errors.Is(statErr, os.ErrNotExist))
	require.Equal(t, "failed", rec.recs[0].Status)
	require.Equal(t, string(planapi.KindServer), rec.recs[0].ErrorKind)
}

func TestOptimizeSendsSnapshotWithMultiStopOff(t *testing.T) {
	b := planapitest.New(t)
	c, _, _ := newTestController(t, b)
	c.SelectFile("plan.xlsx", "", []byte("xlsx"))
	_, err := c.UploadAndPreview(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Config().SetField(FieldPlanningWhse, " HOU "))
	require.NoError(t, c.Config().SetField(FieldOtherMax, "49000"))
	_, err = c.Optimize(context.Background())
	require.NoError(t, err)

	var sent planapi.OptimizeRequest
	require.NoError(t, json.Unmarshal(b.RequestsTo("/optimize")[0].Body, &sent))
	require.Equal(t, "HOU", sent.PlanningWhse)
	require.False(t, sent.AllowMultiStop)
	require.Equal(t, 49000.0, sent.WeightConfig.OtherMax)
	require.Equal(t, planapitest.DefaultKey, sent.S3Key)
}

func TestActionsRequireFile(t *testing.T) {
	b := planapitest.New(t)
	c, _, _ := newTestController(t, b)
	require.ErrorIs(t, c.Upload(context.Background()), util.ErrNoFileSelected)
	_, err := c.FetchPreview(context.Background())
	require.ErrorIs(t, err, util.ErrNotUploaded)
	_, err = c.Export(context.Background(), models.ExportStandard)
	require.ErrorIs(t, err, util.ErrNotUploaded)
	_, err = c.Export(context.Background(), models.ExportKind("csv"))
	require.Error(t, err)
	require.Empty(t, b.Requests())
}

func blockOptimize(b *planapitest.Backend) (started, release chan struct{}) {
	started, release = make(chan struct{}), make(chan struct{})
	var once sync.Once
	b.Handle("/optimize", func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		select {
		case <-release:
		case <-r.Context().Done():
		}
		planapitest.WriteJSON(w, http.StatusOK, planapitest.DefaultBundle())
	})
	return started, release
}

func TestSecondOptimizeReportsInProgress(t *testing.T) {
	b := planapitest.New(t)
	started, release := blockOptimize(b)
	c, _, _ := newTestController(t, b)
	c.SelectFile("plan.xlsx", "", []byte("xlsx"))
	_, err := c.UploadAndPreview(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Optimize(context.Background())
		done <- err
	}()
	<-started

	_, err = c.Optimize(context.Background())
	require.ErrorIs(t, err, util.ErrInProgress)
	close(release)
	require.NoError(t, <-done)
}

func TestExportDuringOptimizeLeavesStatusAlone(t *testing.T) {
	b := planapitest.New(t)
	started, release := blockOptimize(b)
	b.Handle("/export/trucks", func(w http.ResponseWriter, r *http.Request) {
		planapitest.WriteDetail(w, http.StatusInternalServerError, "Failed to read Excel from S3")
	})
	c, _, _ := newTestController(t, b)
	c.SelectFile("plan.xlsx", "", []byte("xlsx"))
	_, err := c.UploadAndPreview(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Optimize(context.Background())
		done <- err
	}()
	<-started

	_, err = c.Export(context.Background(), models.ExportStandard)
	var ee *planapi.ExportError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, Status{Phase: PhaseOptimizing, Message: "Optimizing..."}, c.Status())

	close(release)
	require.NoError(t, <-done)
	st := c.State()
	require.Equal(t, []Phase{PhaseIdle, PhasePresigning, PhaseUploading, PhaseUploaded, PhaseOptimizing, PhaseComplete}, st.History)
	require.Equal(t, "Optimization complete", st.Status.Message)
}
