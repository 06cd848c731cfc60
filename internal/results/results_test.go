package results

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"truckplanner/internal/models"
	"truckplanner/internal/planapi/planapitest"
)

func defaultBundle(t *testing.T) *models.ResultBundle {
	t.Helper()
	raw, err := json.Marshal(planapitest.DefaultBundle())
	require.NoError(t, err)
	var b models.ResultBundle
	require.NoError(t, json.Unmarshal(raw, &b))
	return &b
}

func TestTruckRowsRoundWeight(t *testing.T) {
	rows := TruckRows(defaultBundle(t))
	require.Len(t, rows, 1)
	require.Equal(t, []string{"1", "Red Dot Corporation", "Houston", "TX", "51000", "47000/52000", "2", "14", "50%", "Late"}, rows[0])
}

func TestAssignmentRows(t *testing.T) {
	rows := AssignmentRows(defaultBundle(t))
	require.Len(t, rows, 2)
	require.Equal(t, []string{"1", "1001", "1", "Red Dot Corporation", "Houston, TX", "10/10", "2501", "25005", "96 (OW)", "Yes"}, rows[0])
	require.Equal(t, "4/6", rows[1][5])
	require.Equal(t, "48", rows[1][8])
	require.Equal(t, "No", rows[1][9])
}

func TestSectionsKeepBackendOrder(t *testing.T) {
	sums := Sections(defaultBundle(t))
	require.Len(t, sums, 4)
	var names []string
	for _, s := range sums {
		names = append(names, s.Bucket)
	}
	// encoding/json writes map keys sorted, which fixes the order here.
	require.Equal(t, []string{"Late", "NearDue", "NotDue", "WithinWindow"}, names)
	require.Equal(t, []int{1}, sums[0].Trucks)
	require.InDelta(t, 51000.4, sums[0].TotalWeight, 1e-9)
	require.Equal(t, []string{"Late", "1", "51000", "1"}, SectionRows(defaultBundle(t))[0])
}

func TestMetricRowsSorted(t *testing.T) {
	rows := MetricRows(defaultBundle(t))
	require.Equal(t, [][]string{{"duration_ms", "12"}, {"rows", "2"}}, rows)
}

func TestRender(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, defaultBundle(t)))
	out := buf.String()
	require.Contains(t, out, "Trucks (1)")
	require.Contains(t, out, "Late: 1 trucks, 51000 lbs")
	require.Contains(t, out, "#1 Red Dot Corporation (Houston, TX) 51000 lbs")
	require.Contains(t, out, "96 (OW)")
	require.Contains(t, out, "duration_ms")

	buf.Reset()
	require.NoError(t, Render(&buf, &models.ResultBundle{}))
	require.Equal(t, "No results.", strings.TrimSpace(buf.String()))
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.xlsx")
	require.NoError(t, WriteWorkbook(defaultBundle(t), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{SheetTrucks, SheetAssignments, SheetSections, SheetMetrics}, f.GetSheetList())

	v, err := f.GetCellValue(SheetTrucks, "E2")
	require.NoError(t, err)
	require.Equal(t, "51000", v)
	v, err = f.GetCellValue(SheetAssignments, "E3")
	require.NoError(t, err)
	require.Equal(t, "Houston, TX", v)

	require.Error(t, WriteWorkbook(nil, path))
}
