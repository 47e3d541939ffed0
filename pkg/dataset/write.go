package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Record is a row type that can be written as CSV.
type Record interface {
	Header() []string
	Fields() []string
}

// Write stores rows at path in the format implied by its extension, creating
// parent directories as needed.
func Write[T Record](path string, rows []T) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	mkErr := os.MkdirAll(filepath.Dir(path), 0o755)
	if mkErr != nil {
		return fmt.Errorf("create output dir: %w", mkErr)
	}

	switch format {
	case FormatCSV:
		err = writeCSV(path, rows)
	case FormatJSON:
		err = writeJSON(path, rows, false)
	case FormatJSONL:
		err = writeJSON(path, rows, true)
	case FormatParquet:
		err = writeParquet(path, rows)
	}

	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func writeCSV[T Record](path string, rows []T) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	w := csv.NewWriter(f)

	var zero T

	writeErr := w.Write(zero.Header())
	if writeErr != nil {
		return writeErr
	}

	for _, row := range rows {
		writeErr = w.Write(row.Fields())
		if writeErr != nil {
			return writeErr
		}
	}

	w.Flush()

	return w.Error()
}

func writeJSON[T any](path string, rows []T, lines bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)

	if lines {
		for _, row := range rows {
			encErr := enc.Encode(row)
			if encErr != nil {
				return encErr
			}
		}
	} else {
		if rows == nil {
			rows = []T{}
		}

		enc.SetIndent("", "  ")

		encErr := enc.Encode(rows)
		if encErr != nil {
			return encErr
		}
	}

	return bw.Flush()
}

// WriteTable stores a generic table as CSV, JSON or JSON lines.
func WriteTable(path string, t *Table) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	mkErr := os.MkdirAll(filepath.Dir(path), 0o755)
	if mkErr != nil {
		return fmt.Errorf("create output dir: %w", mkErr)
	}

	switch format {
	case FormatCSV:
		rows := make([]tableRow, len(t.Rows))
		for i, r := range t.Rows {
			rows[i] = tableRow{columns: t.Columns, row: r}
		}

		err = writeTableCSV(path, t.Columns, rows)
	case FormatJSON, FormatJSONL:
		err = writeJSON(path, t.Rows, format == FormatJSONL)
	default:
		err = fmt.Errorf("%w: generic tables cannot be written as %s", ErrUnsupportedFormat, format)
	}

	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

type tableRow struct {
	columns []string
	row     Row
}

func (tr tableRow) Fields() []string {
	out := make([]string, len(tr.columns))
	for i, col := range tr.columns {
		out[i] = AsString(tr.row[col])
	}

	return out
}

func writeTableCSV(path string, header []string, rows []tableRow) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	w := csv.NewWriter(f)

	writeErr := w.Write(header)
	if writeErr != nil {
		return writeErr
	}

	for _, row := range rows {
		writeErr = w.Write(row.Fields())
		if writeErr != nil {
			return writeErr
		}
	}

	w.Flush()

	return w.Error()
}
