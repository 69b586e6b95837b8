package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is an ordered table assembled column-first: callers declare
// the columns once and append rows positionally.
type Dataset struct {
	columns []string
	rows    [][]string
}

// NewDataset declares the column order for a tabular export.
func NewDataset(columns ...string) *Dataset {
	return &Dataset{columns: columns}
}

// Append adds a row. Missing trailing values render as empty cells and
// surplus values are dropped.
func (d *Dataset) Append(values ...string) {
	row := make([]string, len(d.columns))
	copy(row, values)
	d.rows = append(d.rows, row)
}

// Columns returns the declared column names.
func (d *Dataset) Columns() []string { return d.columns }

// Len returns the number of appended rows.
func (d *Dataset) Len() int { return len(d.rows) }

// CSVExporter renders datasets as CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render writes the column header followed by every appended row.
func (e *CSVExporter) Render(data *Dataset) ([]byte, error) {
	if data == nil || len(data.columns) == 0 {
		return nil, fmt.Errorf("csv requires at least one column")
	}
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(data.columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := writer.WriteAll(data.rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}
