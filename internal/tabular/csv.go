package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "rfmseg/internal/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// Table is a parsed CSV file addressed by header name
type Table struct {
	Path    string
	Headers []string
	Records [][]string
	index   map[string]int
}

// NewTable indexes headers so columns can be looked up by name
func NewTable(path string, headers []string, records [][]string) *Table {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	return &Table{Path: path, Headers: headers, Records: records, index: index}
}

// Column returns the index of the named column
func (t *Table) Column(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// RequireColumns resolves every name to its index or fails naming the first absent column
func (t *Table) RequireColumns(op string, names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		col, ok := t.index[name]
		if !ok {
			return nil, apperrors.NewInputError(op,
				fmt.Sprintf("%s: missing required column %q", t.Path, name), nil)
		}
		idx[i] = col
	}
	return idx, nil
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Records)
}

// Field returns the trimmed cell at row/col, empty when the row is short
func (t *Table) Field(row, col int) string {
	rec := t.Records[row]
	if col < 0 || col >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[col])
}

// ReadCSV loads a whole CSV file. The first record is the header row.
func ReadCSV(path string) (*Table, error) {
	const op = "tabular.ReadCSV"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewInputError(op, "failed to open "+path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, apperrors.NewInputError(op, path+" is empty", nil)
	}
	if err != nil {
		return nil, apperrors.NewInputError(op, "failed to read header of "+path, err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewInputError(op, "failed to parse "+path, err)
	}

	return NewTable(path, headers, records), nil
}

// WriteCSV writes the file atomically: the records go to a temporary file in
// the target directory which is renamed over filePath only on success.
func WriteCSV(filePath string, options WriteOptions, logger *slog.Logger) error {
	const op = "tabular.WriteCSV"
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(options.Records)))

	return writeAtomic(op, filePath, func(w io.Writer) error {
		if options.BOMPrefix {
			if _, err := w.Write(utf8BOM); err != nil {
				return fmt.Errorf("failed to write BOM: %w", err)
			}
		}

		writer := csv.NewWriter(w)
		if len(options.Headers) > 0 {
			if err := writer.Write(options.Headers); err != nil {
				return fmt.Errorf("failed to write headers: %w", err)
			}
		}
		for i, record := range options.Records {
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write record %d: %w", i, err)
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

// writeAtomic creates the parent directory, streams content into a temporary
// sibling file and renames it into place.
func writeAtomic(op, filePath string, write func(io.Writer) error) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewStorageError(op, "failed to create directory "+dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return apperrors.NewStorageError(op, "failed to create temp file", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return apperrors.NewStorageError(op, "failed to write "+filePath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return apperrors.NewStorageError(op, "failed to close "+filePath, err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return apperrors.NewStorageError(op, "failed to move "+filePath+" into place", err)
	}
	return nil
}
