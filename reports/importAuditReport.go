package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/models"
	"github.com/xuri/excelize/v2"
)

type ImportAuditRow struct {
	ImportedAt    string `json:"imported_at"`
	ImportType    string `json:"import_type"`
	Result        string `json:"result"`
	FieldsUpdated string `json:"fields_updated"`
	ErrorDetails  string `json:"error_details"`
	UserName      string `json:"user_name"`
}

func buildImportAuditRows(entries []*models.ImportAuditEntry) []ImportAuditRow {
	rows := make([]ImportAuditRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, ImportAuditRow{
			ImportedAt:    e.CreatedAt.Format(time.RFC3339),
			ImportType:    e.ImportType,
			Result:        e.Result,
			FieldsUpdated: string(e.FieldsUpdatedJSON),
			ErrorDetails:  e.ErrorDetails,
			UserName:      e.UserName,
		})
	}
	return rows
}

// ExportImportAuditExcel writes the activity's import history as a workbook.
func ExportImportAuditExcel(ctx context.Context, activityId int, w io.Writer) error {
	entries, err := models.ListImportAuditEntries(ctx, activityId)
	if err != nil {
		return err
	}
	rows := buildImportAuditRows(entries)

	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	// Add headers
	f.SetCellValue(sheetName, "A1", "ImportedAt")
	f.SetCellValue(sheetName, "B1", "ImportType")
	f.SetCellValue(sheetName, "C1", "Result")
	f.SetCellValue(sheetName, "D1", "FieldsUpdated")
	f.SetCellValue(sheetName, "E1", "ErrorDetails")
	f.SetCellValue(sheetName, "F1", "UserName")

	// Add data
	for i, r := range rows {
		f.SetCellValue(sheetName, "A"+fmt.Sprint(i+2), r.ImportedAt)
		f.SetCellValue(sheetName, "B"+fmt.Sprint(i+2), r.ImportType)
		f.SetCellValue(sheetName, "C"+fmt.Sprint(i+2), r.Result)
		f.SetCellValue(sheetName, "D"+fmt.Sprint(i+2), r.FieldsUpdated)
		f.SetCellValue(sheetName, "E"+fmt.Sprint(i+2), r.ErrorDetails)
		f.SetCellValue(sheetName, "F"+fmt.Sprint(i+2), r.UserName)
	}

	return f.Write(w)
}
