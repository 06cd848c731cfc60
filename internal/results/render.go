package results

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"truckplanner/internal/models"
)

var (
	headingColor = color.New(color.FgBlue, color.Bold)
	dimColor     = color.New(color.FgHiBlack)

	bucketColors = map[string]*color.Color{
		string(models.BucketLate):         color.New(color.FgRed, color.Bold),
		string(models.BucketNearDue):      color.New(color.FgYellow, color.Bold),
		string(models.BucketWithinWindow): color.New(color.FgGreen),
		string(models.BucketNotDue):       color.New(color.FgCyan),
	}
)

func bucketColor(name string) *color.Color {
	if c, ok := bucketColors[name]; ok {
		return c
	}
	return headingColor
}

// WriteTable writes headers and rows aligned with tabwriter.
func WriteTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(headers, "\t")); err != nil {
		return err
	}
	sep := make([]string, len(headers))
	for i, h := range headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	if _, err := fmt.Fprintln(tw, strings.Join(sep, "\t")); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(r, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Render prints the truck summary, section buckets with their trucks, the
// assignment table and metrics.
func Render(w io.Writer, b *models.ResultBundle) error {
	if b == nil || b.Empty() {
		_, err := dimColor.Fprintln(w, "No results.")
		return err
	}

	_, _ = headingColor.Fprintf(w, "Trucks (%d)\n", len(b.Trucks))
	if err := WriteTable(w, TruckHeaders, TruckRows(b)); err != nil {
		return err
	}

	byNumber := make(map[int]models.Truck, len(b.Trucks))
	for _, t := range b.Trucks {
		byNumber[t.TruckNumber] = t
	}
	for _, s := range Sections(b) {
		fmt.Fprintln(w)
		_, _ = bucketColor(s.Bucket).Fprintf(w, "%s: %d trucks, %s lbs\n", s.Bucket, len(s.Trucks), rounded(s.TotalWeight))
		for _, n := range s.Trucks {
			t := byNumber[n]
			fmt.Fprintf(w, "  #%d %s (%s, %s) %s lbs\n", n, t.CustomerName, t.CustomerCity, t.CustomerState, rounded(t.TotalWeight))
		}
	}

	fmt.Fprintln(w)
	_, _ = headingColor.Fprintf(w, "Assignments (%d)\n", len(b.Assignments))
	if err := WriteTable(w, AssignmentHeaders, AssignmentRows(b)); err != nil {
		return err
	}

	if m := MetricRows(b); len(m) > 0 {
		fmt.Fprintln(w)
		_, _ = headingColor.Fprintln(w, "Metrics")
		return WriteTable(w, []string{"Metric", "Value"}, m)
	}
	return nil
}
