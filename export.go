package scandoc

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// ExportFormat selects how tables are exported next to the output.
type ExportFormat string

const (
	ExportNone ExportFormat = ""
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

// ExportTables writes tables into dir and returns the files written. CSV
// gives one file per table named <base>_page<P>_table<N>.csv, with P the
// 1-based page and N the 1-based position in tables. XLSX gives a single
// <base>_tables.xlsx with one sheet per table.
func ExportTables(tables []ReconciledTable, dir, base string, format ExportFormat) ([]string, error) {
	if len(tables) == 0 || format == ExportNone {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create export directory")
	}

	switch format {
	case ExportCSV:
		return exportCSV(tables, dir, base)
	case ExportXLSX:
		path, err := exportXLSX(tables, dir, base)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
	return nil, errors.Errorf("unknown table export format %q", format)
}

func exportCSV(tables []ReconciledTable, dir, base string) ([]string, error) {
	var written []string
	for i, t := range tables {
		path := filepath.Join(dir, fmt.Sprintf("%s_page%d_table%d.csv", base, t.Page+1, i+1))
		if err := writeCSV(path, t.Rows); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return f.Close()
}

// exportXLSX writes each table to its own sheet, with a bold shaded header
// row when the table has one.
func exportXLSX(tables []ReconciledTable, dir, base string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9D9D9"}},
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to create header style")
	}

	for i, t := range tables {
		sheet := fmt.Sprintf("Page%d_Table%d", t.Page+1, i+1)
		if _, err := f.NewSheet(sheet); err != nil {
			return "", errors.Wrapf(err, "failed to create sheet %s", sheet)
		}

		for r, row := range t.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return "", errors.Wrap(err, "invalid cell coordinates")
			}
			values := make([]interface{}, len(row))
			for c, v := range row {
				values[c] = v
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return "", errors.Wrapf(err, "failed to write row %d of %s", r+1, sheet)
			}
		}

		if t.Header && t.NumCols() > 0 {
			last, err := excelize.CoordinatesToCellName(t.NumCols(), 1)
			if err != nil {
				return "", errors.Wrap(err, "invalid cell coordinates")
			}
			if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
				return "", errors.Wrapf(err, "failed to style header of %s", sheet)
			}
		}
	}

	// NewFile starts with a default sheet
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", errors.Wrap(err, "failed to remove default sheet")
	}
	f.SetActiveSheet(0)

	path := filepath.Join(dir, base+"_tables.xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", errors.Wrapf(err, "failed to save %s", path)
	}
	return path, nil
}
