package results

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"truckplanner/internal/models"
	"truckplanner/internal/util"
)

const (
	SheetTrucks      = "Trucks"
	SheetAssignments = "Assignments"
	SheetSections    = "Sections"
	SheetMetrics     = "Metrics"
)

// BuildWorkbook lays the displayed tables out one per sheet.
func BuildWorkbook(b *models.ResultBundle) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetTrucks); err != nil {
		_ = f.Close()
		return nil, err
	}
	tables := []struct {
		sheet   string
		headers []string
		rows    [][]string
	}{
		{SheetTrucks, TruckHeaders, TruckRows(b)},
		{SheetAssignments, AssignmentHeaders, AssignmentRows(b)},
		{SheetSections, SectionHeaders, SectionRows(b)},
		{SheetMetrics, []string{"Metric", "Value"}, MetricRows(b)},
	}
	for i, tbl := range tables {
		if i > 0 {
			if _, err := f.NewSheet(tbl.sheet); err != nil {
				_ = f.Close()
				return nil, err
			}
		}
		if err := writeSheet(f, tbl.sheet, tbl.headers, tbl.rows); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sheet %s: %w", tbl.sheet, err)
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]string) error {
	if err := f.SetSheetRow(sheet, "A1", toCells(headers)); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, toCells(r)); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func toCells(row []string) *[]any {
	cells := make([]any, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return &cells
}

// WriteWorkbook saves a snapshot of the displayed tables to path.
func WriteWorkbook(b *models.ResultBundle, path string) error {
	if b == nil {
		return fmt.Errorf("no results to write")
	}
	f, err := BuildWorkbook(b)
	if err != nil {
		return err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("encode workbook: %w", err)
	}
	return util.WriteFileAtomic(path, buf.Bytes())
}
