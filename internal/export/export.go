// Package export encodes contacts as an xlsx spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/sakif/contact-insight/internal/apperror"
	"github.com/sakif/contact-insight/internal/model"
)

const (
	// FileName is the name offered to the browser for the download.
	FileName = "contacts.xlsx"
	// SheetName is the single sheet in the workbook.
	SheetName = "ContactsSheet"
	// ContentType is the MIME type of an xlsx workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Header is the first row of the sheet.
var Header = []string{"Name", "Phone"}

// Rows flattens contacts into the sheet's rows, header first. Absent fields are
// replaced by the model placeholders.
func Rows(contacts []model.Contact) [][]string {
	rows := make([][]string, 0, len(contacts)+1)
	rows = append(rows, Header)
	for _, c := range contacts {
		rows = append(rows, []string{c.DisplayName(), c.DisplayPhone()})
	}
	return rows
}

// Write encodes contacts as a workbook with one sheet and writes it to w.
// Every failure is reported as an apperror.ErrExport kind.
func Write(w io.Writer, contacts []model.Contact) error {
	if err := write(w, contacts); err != nil {
		return apperror.ExportFailed(err)
	}
	return nil
}

func write(w io.Writer, contacts []model.Contact) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("export: closing workbook: %w", cerr)
		}
	}()

	// A new workbook starts with "Sheet1"; rename it rather than add a second.
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("export: naming sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("export: opening stream writer: %w", err)
	}

	for i, row := range Rows(contacts) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("export: addressing row %d: %w", i+1, err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("export: writing row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export: flushing sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: writing workbook: %w", err)
	}
	return nil
}
