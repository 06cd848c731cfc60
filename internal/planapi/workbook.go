package planapi

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// inspectWorkbook opens an export body and returns its sheet names. Bodies
// that are not xlsx workbooks are rejected.
func inspectWorkbook(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Op: "export", Err: fmt.Errorf("empty workbook")}
	}
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Op: "export", Err: fmt.Errorf("not an xlsx workbook: %w", err)}
	}
	defer wb.Close()
	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, &DecodeError{Op: "export", Err: fmt.Errorf("workbook has no sheets")}
	}
	return sheets, nil
}
