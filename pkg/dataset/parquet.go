package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

const parquetBatch = 256

// readParquet reads any flat Parquet file, including files written by pandas
// or pyarrow. Leaf columns nested under a LIST are collected into []string
// cells named after their top-level column.
func readParquet(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	leaves := pf.Schema().Columns()
	names := make([]string, len(leaves))
	isList := make([]bool, len(leaves))
	table := &Table{}
	seen := map[string]struct{}{}

	for i, path := range leaves {
		names[i] = path[0]
		isList[i] = len(path) > 1

		if _, ok := seen[path[0]]; !ok {
			seen[path[0]] = struct{}{}
			table.Columns = append(table.Columns, path[0])
		}
	}

	for _, rg := range pf.RowGroups() {
		readErr := readRowGroup(rg, names, isList, table)
		if readErr != nil {
			return nil, readErr
		}
	}

	return table, nil
}

func readRowGroup(rg parquet.RowGroup, names []string, isList []bool, table *Table) error {
	rows := rg.Rows()
	defer rows.Close()

	buf := make([]parquet.Row, parquetBatch)

	for {
		n, err := rows.ReadRows(buf)

		for _, prow := range buf[:n] {
			table.Rows = append(table.Rows, convertRow(prow, names, isList))
		}

		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read rows: %w", err)
		}

		if n == 0 {
			return nil
		}
	}
}

func convertRow(prow parquet.Row, names []string, isList []bool) Row {
	row := make(Row, len(names))

	for _, v := range prow {
		col := v.Column()
		if col < 0 || col >= len(names) {
			continue
		}

		name := names[col]

		if isList[col] {
			items, _ := row[name].([]string)
			if items == nil {
				items = []string{}
			}

			if !v.IsNull() {
				items = append(items, AsString(parquetValue(v)))
			}

			row[name] = items

			continue
		}

		row[name] = parquetValue(v)
	}

	return row
}

func parquetValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}

	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

func writeParquet[T any](path string, rows []T) error {
	err := parquet.WriteFile(path, rows)
	if err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}

	return nil
}

// ReadParquetRecords reads a Parquet file written by this package back into
// typed records.
func ReadParquetRecords[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}

	return rows, nil
}
