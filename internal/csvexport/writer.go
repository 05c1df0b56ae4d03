// Package csvexport renders extracted records as CSV for spreadsheet tools
// that do not read xlsx.
package csvexport

import (
	"bytes"
	"encoding/csv"
	"io"

	"trialscope/internal/domain"
)

// BOM is the UTF-8 byte order mark Excel on Windows needs to detect UTF-8.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// ContentType is the MIME type of the generated file.
const ContentType = "text/csv; charset=utf-8"

// Writer wraps csv.Writer for exporting extracted records.
type Writer struct {
	csv     *csv.Writer
	columns []string
}

// NewWriter creates a Writer that writes CSV with the given columns to w.
func NewWriter(w io.Writer, columns []string) *Writer {
	return &Writer{csv: csv.NewWriter(w), columns: columns}
}

// WriteHeader writes the column names.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(w.columns)
}

// WriteRecords writes one row per record. Missing keys become empty fields.
func (w *Writer) WriteRecords(records []domain.ExtractedRecord) error {
	for i := range records {
		if err := w.csv.Write(recordToRow(records[i], w.columns)); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func recordToRow(rec domain.ExtractedRecord, columns []string) []string {
	row := make([]string, len(columns))
	for i, col := range columns {
		row[i] = rec.Text(col)
	}
	return row
}

// ToCSV renders records with a BOM and a header row built from the union of
// their keys.
func ToCSV(records []domain.ExtractedRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(BOM)

	w := NewWriter(&buf, domain.UnionKeys(records))
	if err := w.WriteHeader(); err != nil {
		return nil, err
	}
	if err := w.WriteRecords(records); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
