package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"truckplanner/internal/config"
	"truckplanner/internal/controller"
	"truckplanner/internal/planapi"
	"truckplanner/internal/planapi/planapitest"
	"truckplanner/internal/workflows"
)

type fakeRun struct {
	tclient.WorkflowRun
	id string
}

func (r fakeRun) GetID() string { return r.id }

type statusValue struct{ st workflows.PlanRunStatus }

func (v statusValue) HasValue() bool { return true }
func (v statusValue) Get(ptr interface{}) error {
	*(ptr.(*workflows.PlanRunStatus)) = v.st
	return nil
}

type fakeStarter struct {
	inputs []workflows.PlanRunInput
	status workflows.PlanRunStatus
}

func (f *fakeStarter) ExecuteWorkflow(_ context.Context, opts tclient.StartWorkflowOptions, _ interface{}, args ...interface{}) (tclient.WorkflowRun, error) {
	f.inputs = append(f.inputs, args[0].(workflows.PlanRunInput))
	return fakeRun{id: opts.ID}, nil
}

func (f *fakeStarter) QueryWorkflow(context.Context, string, string, string, ...interface{}) (converter.EncodedValue, error) {
	return statusValue{st: f.status}, nil
}

type cliEnv struct {
	backend *planapitest.Backend
	dir     string
}

func setupCLI(t *testing.T) *cliEnv {
	t.Helper()
	color.NoColor = true
	t.Setenv("TRUCKPLANNER_POSTGRES_URL", "")
	t.Setenv("TRUCKPLANNER_LOG_LEVEL", "error")
	t.Setenv("TRUCKPLANNER_API_URL", "")
	t.Setenv("VITE_API_URL", "")
	return &cliEnv{backend: planapitest.New(t), dir: t.TempDir()}
}

// execute runs the root command with flag state reset between calls.
func (e *cliEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput, apiURL, downloadDir, defaultsFile = false, "", "", ""
	runWhse, runSheet, runSets, runExports, runWorkbook, runNoOptimize = "", "", nil, nil, "", false
	submitWhse, submitSheet, submitSets, submitExports = "", "", nil, nil
	if f := rootCmd.Flags().Lookup("help"); f != nil {
		_ = f.Value.Set("false")
	}

	full := append([]string{}, args...)
	full = append(full,
		"--api-url", e.backend.URL(),
		"--download-dir", e.dir,
		"--defaults", filepath.Join(e.dir, "missing.toml"),
	)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(full)
	err := rootCmd.Execute()
	return buf.String(), err
}

func (e *cliEnv) writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(e.dir, "plan.xlsx")
	require.NoError(t, os.WriteFile(path, planapitest.Workbook("Orders"), 0o644))
	return path
}

func TestRootCommandHelp(t *testing.T) {
	e := setupCLI(t)
	out, err := e.execute(t, "--help")
	require.NoError(t, err)
	require.Contains(t, out, "truckplanner")
	require.Contains(t, out, "Planning:")
	require.Contains(t, out, "Headless Runs:")
}

func TestRunCommandFullFlow(t *testing.T) {
	e := setupCLI(t)
	in := e.writeInput(t)
	snap := filepath.Join(e.dir, "snap", "results.xlsx")

	out, err := e.execute(t, "run", in, "--set", "texas_max=53000", "--whse", "HOU", "--export", "standard", "--xlsx", snap)
	require.NoError(t, err)
	require.Contains(t, out, "Uploaded and previewed")
	require.Contains(t, out, "Optimization complete")
	require.Contains(t, out, "51000")
	require.Contains(t, out, "Exported truck_optimization_results.xlsx")

	_, err = os.Stat(filepath.Join(e.dir, "truck_optimization_results.xlsx"))
	require.NoError(t, err)
	_, err = os.Stat(snap)
	require.NoError(t, err)

	var sent planapi.OptimizeRequest
	require.NoError(t, json.Unmarshal(e.backend.RequestsTo("/optimize")[0].Body, &sent))
	require.Equal(t, 53000.0, sent.WeightConfig.TexasMax)
	require.Equal(t, "HOU", sent.PlanningWhse)
	require.False(t, sent.AllowMultiStop)
}

func TestRunCommandSkipsOptimizeOnMissingColumns(t *testing.T) {
	e := setupCLI(t)
	e.backend.Handle("/upload/preview", func(w http.ResponseWriter, r *http.Request) {
		p := planapitest.DefaultPreview()
		p["missingRequiredColumns"] = []string{"Weight"}
		planapitest.WriteJSON(w, http.StatusOK, p)
	})
	out, err := e.execute(t, "run", e.writeInput(t))
	require.NoError(t, err)
	require.Contains(t, out, "Optimize disabled, missing columns: Weight")
	require.Empty(t, e.backend.RequestsTo("/optimize"))
}

func TestRunCommandReportsStatusLine(t *testing.T) {
	e := setupCLI(t)
	e.backend.Handle(planapitest.BlobPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("Forbidden"))
	})
	_, err := e.execute(t, "run", e.writeInput(t))
	require.Error(t, err)
	require.Equal(t, "Error: S3 upload failed: 403 Forbidden", FormatError(err))
}

func TestRunCommandJSON(t *testing.T) {
	e := setupCLI(t)
	out, err := e.execute(t, "run", e.writeInput(t), "--json")
	require.NoError(t, err)
	var st controller.State
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.Equal(t, controller.PhaseComplete, st.Status.Phase)
	require.True(t, st.CanExport)
	require.Len(t, st.Results.Trucks, 1)
}

func TestRunCommandRejectsBadSettings(t *testing.T) {
	e := setupCLI(t)
	in := e.writeInput(t)
	_, err := e.execute(t, "run", in, "--set", "texas_max")
	require.ErrorContains(t, err, "expected field=value")
	_, err = e.execute(t, "run", in, "--export", "pdf")
	require.ErrorContains(t, err, "unknown export kind")
	require.Empty(t, e.backend.Requests())
}

func TestPreviewCommand(t *testing.T) {
	e := setupCLI(t)
	out, err := e.execute(t, "preview", e.writeInput(t))
	require.NoError(t, err)
	require.Contains(t, out, "Rows: 120")
	require.Contains(t, out, "SO, Line, Weight")
	require.Contains(t, out, "2500.5")
	require.Empty(t, e.backend.RequestsTo("/optimize"))
}

func TestBackendCommands(t *testing.T) {
	e := setupCLI(t)
	out, err := e.execute(t, "health")
	require.NoError(t, err)
	require.Contains(t, out, "is ok")

	out, err = e.execute(t, "customers", "list")
	require.NoError(t, err)
	require.Contains(t, out, "gamtex")

	out, err = e.execute(t, "customers", "set", "a,b", "c")
	require.NoError(t, err)
	require.Contains(t, out, "Saved 3 customers")
}

func TestConfigCommandPrintsTOML(t *testing.T) {
	e := setupCLI(t)
	out, err := e.execute(t, "config")
	require.NoError(t, err)
	require.Contains(t, out, "[planning]")
	require.Contains(t, out, "[weights]")
	require.Contains(t, out, "texas_max = 52000")
	require.Contains(t, out, "ZAC")
}

func TestSubmitAndStatus(t *testing.T) {
	e := setupCLI(t)
	fake := &fakeStarter{status: workflows.PlanRunStatus{
		Phase:      "complete",
		Message:    "Optimization complete",
		History:    []string{"idle", "presigning", "uploading", "uploaded", "optimizing", "complete"},
		TruckCount: 4,
	}}
	prev := dialTemporal
	dialTemporal = func(config.Config) (workflows.Starter, func(), error) { return fake, func() {}, nil }
	t.Cleanup(func() { dialTemporal = prev })

	in := e.writeInput(t)
	out, err := e.execute(t, "submit", in, "--set", "load_target_pct=0.95", "--export", "dh-load-list")
	require.NoError(t, err)
	require.Contains(t, out, "Started plan run planrun-plan-xlsx-")
	require.Len(t, fake.inputs, 1)
	require.Equal(t, in, fake.inputs[0].FilePath)
	require.Equal(t, 0.95, fake.inputs[0].Weights.LoadTargetPct)
	require.Equal(t, "ZAC", fake.inputs[0].PlanningWhse)
	require.Len(t, fake.inputs[0].Exports, 1)

	out, err = e.execute(t, "status", "planrun-plan-xlsx-1")
	require.NoError(t, err)
	require.Contains(t, out, "Optimization complete")
	require.Contains(t, out, "Trucks: 4")

	_, err = e.execute(t, "submit", in, "--set", "texas_min=99999")
	require.ErrorContains(t, err, "invalid weight config")
	require.Len(t, fake.inputs, 1)
}
