// Package dataset reads and writes the tabular inputs and outputs of the
// pipeline (CSV, JSON, JSON lines and Parquet) and maps their columns onto
// typed records through explicit schemas.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Supported formats.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
)

// ErrUnsupportedFormat is returned for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// Table is an in-memory table with an ordered header.
type Table struct {
	Columns []string
	Rows    []Row
}

// FormatOf derives the table format from a path's extension.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ReadTable loads a table, choosing the reader by file extension.
func ReadTable(path string) (*Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	var table *Table

	switch format {
	case FormatCSV:
		table, err = readCSV(path)
	case FormatJSON:
		table, err = readJSON(path)
	case FormatJSONL:
		table, err = readJSONL(path)
	case FormatParquet:
		table, err = readParquet(path)
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return table, nil
}

func readCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReader(f))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	table := &Table{Columns: header}

	for {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return nil, readErr
		}

		row := make(Row, len(header))

		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}

		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func readJSON(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var records []map[string]any

	err = dec.Decode(&records)
	if err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	return tableFromRecords(records), nil
}

func readJSONL(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	dec.UseNumber()

	var records []map[string]any

	for {
		var rec map[string]any

		decErr := dec.Decode(&rec)
		if errors.Is(decErr, io.EOF) {
			break
		}

		if decErr != nil {
			return nil, fmt.Errorf("decode line %d: %w", len(records)+1, decErr)
		}

		records = append(records, rec)
	}

	return tableFromRecords(records), nil
}

// tableFromRecords builds the header from the union of record keys. Keys new
// to a record are appended in sorted order.
func tableFromRecords(records []map[string]any) *Table {
	table := &Table{Rows: make([]Row, 0, len(records))}
	seen := map[string]struct{}{}

	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			if _, ok := seen[k]; !ok {
				keys = append(keys, k)
			}
		}

		sort.Strings(keys)

		for _, k := range keys {
			seen[k] = struct{}{}
			table.Columns = append(table.Columns, k)
		}

		table.Rows = append(table.Rows, Row(rec))
	}

	return table
}
