// Package results projects an optimization ResultBundle into display tables
// and renders them to a terminal or a local workbook.
package results

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"truckplanner/internal/models"
)

var (
	TruckHeaders      = []string{"#", "Customer", "City", "State", "Total Wt", "Min/Max", "Lines", "Pieces", "Overwidth%", "Priority"}
	AssignmentHeaders = []string{"Truck #", "SO", "Line", "Customer", "Dest", "Pieces", "Wt/Pc", "Total Wt", "Width", "Late"}
	SectionHeaders    = []string{"Bucket", "Trucks", "Total Wt", "Truck #s"}
)

func rounded(v float64) string {
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}

func plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// TruckRows returns one row per truck in bundle order.
func TruckRows(b *models.ResultBundle) [][]string {
	if b == nil {
		return nil
	}
	rows := make([][]string, 0, len(b.Trucks))
	for _, t := range b.Trucks {
		rows = append(rows, []string{
			strconv.Itoa(t.TruckNumber),
			t.CustomerName,
			t.CustomerCity,
			t.CustomerState,
			rounded(t.TotalWeight),
			plain(t.MinWeight) + "/" + plain(t.MaxWeight),
			strconv.Itoa(t.TotalLines),
			strconv.Itoa(t.TotalPieces),
			fmt.Sprintf("%.0f%%", t.PercentOverwidth),
			string(t.PriorityBucket),
		})
	}
	return rows
}

func AssignmentRows(b *models.ResultBundle) [][]string {
	if b == nil {
		return nil
	}
	rows := make([][]string, 0, len(b.Assignments))
	for _, a := range b.Assignments {
		width := plain(a.Width)
		if a.IsOverwidth {
			width += " (OW)"
		}
		rows = append(rows, []string{
			strconv.Itoa(a.TruckNumber),
			a.SO,
			a.Line,
			a.CustomerName,
			a.CustomerCity + ", " + a.CustomerState,
			fmt.Sprintf("%d/%d", a.PiecesOnTransport, a.TotalReadyPieces),
			rounded(a.WeightPerPiece),
			rounded(a.TotalWeight),
			width,
			yesNo(a.IsLate),
		})
	}
	return rows
}

// SectionSummary is one bucket of the sections map with its trucks totalled.
type SectionSummary struct {
	Bucket      string
	Trucks      []int
	TotalWeight float64
}

// Sections summarises buckets in the order the backend sent them.
func Sections(b *models.ResultBundle) []SectionSummary {
	if b == nil {
		return nil
	}
	weight := make(map[int]float64, len(b.Trucks))
	for _, t := range b.Trucks {
		weight[t.TruckNumber] = t.TotalWeight
	}
	out := make([]SectionSummary, 0, b.Sections.Len())
	for _, key := range b.Sections.Keys() {
		s := SectionSummary{Bucket: key, Trucks: b.Sections.Get(key)}
		for _, n := range s.Trucks {
			s.TotalWeight += weight[n]
		}
		out = append(out, s)
	}
	return out
}

func SectionRows(b *models.ResultBundle) [][]string {
	sums := Sections(b)
	rows := make([][]string, 0, len(sums))
	for _, s := range sums {
		nums := ""
		for i, n := range s.Trucks {
			if i > 0 {
				nums += ","
			}
			nums += strconv.Itoa(n)
		}
		rows = append(rows, []string{s.Bucket, strconv.Itoa(len(s.Trucks)), rounded(s.TotalWeight), nums})
	}
	return rows
}

// MetricRows lists metrics sorted by name.
func MetricRows(b *models.ResultBundle) [][]string {
	if b == nil || len(b.Metrics) == 0 {
		return nil
	}
	keys := make([]string, 0, len(b.Metrics))
	for k := range b.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, formatMetric(b.Metrics[k])})
	}
	return rows
}

func formatMetric(v any) string {
	switch x := v.(type) {
	case float64:
		return plain(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
