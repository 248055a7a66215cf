package tabular

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	apperrors "rfmseg/internal/errors"
)

// Sheet is one worksheet of an exported workbook
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]interface{}
}

// ReadXLSX loads a worksheet as a Table. An empty sheet name selects the first
// sheet of the workbook. Cell values are read raw so date cells arrive as
// Excel serial numbers rather than locale-formatted strings.
func ReadXLSX(path, sheet string) (*Table, error) {
	const op = "tabular.ReadXLSX"

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewInputError(op, "failed to open "+path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewInputError(op, path+" has no worksheets", nil)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewInputError(op, fmt.Sprintf("failed to read sheet %q of %s", sheet, path), err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewInputError(op, fmt.Sprintf("sheet %q of %s is empty", sheet, path), nil)
	}

	slog.Debug("Read worksheet",
		slog.String("file_path", path),
		slog.String("sheet_name", sheet),
		slog.Int("total_rows", len(rows)))

	return NewTable(path, rows[0], rows[1:]), nil
}

// WriteWorkbook writes the sheets to an XLSX file in order, replacing
// the default sheet excelize creates.
func WriteWorkbook(path string, sheets []Sheet, logger *slog.Logger) error {
	const op = "tabular.WriteWorkbook"
	if logger == nil {
		logger = slog.Default()
	}
	if len(sheets) == 0 {
		return apperrors.NewValidationError(op, "workbook needs at least one sheet")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				return apperrors.NewStorageError(op, "failed to name sheet "+sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return apperrors.NewStorageError(op, "failed to add sheet "+sheet.Name, err)
		}

		header := make([]interface{}, len(sheet.Headers))
		for j, h := range sheet.Headers {
			header[j] = h
		}
		if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
			return apperrors.NewStorageError(op, "failed to write header of "+sheet.Name, err)
		}

		for r, row := range sheet.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return apperrors.NewStorageError(op, "invalid cell coordinates", err)
			}
			values := row
			if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
				return apperrors.NewStorageError(op, fmt.Sprintf("failed to write row %d of %s", r+1, sheet.Name), err)
			}
		}
	}
	f.SetActiveSheet(0)

	logger.Info("Writing workbook",
		slog.String("file_path", path),
		slog.Int("sheet_count", len(sheets)))

	return writeAtomic(op, path, func(w io.Writer) error {
		return f.Write(w)
	})
}
