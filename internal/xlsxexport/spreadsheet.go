// Package xlsxexport renders extracted records as an Excel workbook.
package xlsxexport

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"trialscope/internal/domain"
)

// SheetName is the name of the single results sheet.
const SheetName = "Results"

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	minColWidth = 12
	maxColWidth = 60
)

// ToSpreadsheet writes records to a single-sheet workbook. The header row is
// the union of record keys in first-appearance order; a record missing a key
// gets an empty cell. Records are not modified.
func ToSpreadsheet(records []domain.ExtractedRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// NewFile starts with "Sheet1"; rename it so the workbook has exactly one sheet.
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	headers := domain.UnionKeys(records)
	widths := make([]int, len(headers))

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return nil, fmt.Errorf("writing header %q: %w", h, err)
		}
		widths[i] = utf8.RuneCountInString(h)
	}

	for r, rec := range records {
		row := r + 2
		for i, h := range headers {
			v, ok := rec.Get(h)
			if !ok {
				continue
			}
			text := domain.FormatValue(v)
			if text == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if err := f.SetCellValue(SheetName, cell, cellValue(v, text)); err != nil {
				return nil, fmt.Errorf("writing row %d: %w", row, err)
			}
			if n := utf8.RuneCountInString(text); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetName, col, col, clampWidth(w))
	}
	if len(headers) > 0 {
		_ = f.SetPanes(SheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// cellValue keeps JSON numbers and booleans typed so the sheet stores them
// as numeric and boolean cells. Everything else is written as text.
func cellValue(v any, text string) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return text
	case bool, float64, int, int64:
		return t
	default:
		return text
	}
}

func clampWidth(n int) float64 {
	switch {
	case n < minColWidth:
		return minColWidth
	case n > maxColWidth:
		return maxColWidth
	default:
		return float64(n + 2)
	}
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename replaces characters unsafe in a Content-Disposition
// filename with underscores and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// SearchFilename names the export of a search batch:
// PubMed_<first query word>_<yymmdd>.xlsx.
func SearchFilename(query string, now time.Time) string {
	word := "results"
	if fields := strings.Fields(query); len(fields) > 0 {
		if s := SanitizeFilename(fields[0]); s != "" {
			word = s
		}
	}
	return fmt.Sprintf("PubMed_%s_%s.xlsx", word, now.Format("060102"))
}

// DocumentFilename names the export of a document batch.
func DocumentFilename(now time.Time) string {
	return fmt.Sprintf("PDF_Analysis_%s.xlsx", now.Format("060102"))
}

// SelectedFilename names the export of a row subset.
func SelectedFilename(now time.Time) string {
	return fmt.Sprintf("Selected_%s.xlsx", now.Format("060102"))
}

// Filename picks the export name for a batch source.
func Filename(source domain.SourceKind, query string, now time.Time) string {
	if source == domain.SourceDocument {
		return DocumentFilename(now)
	}
	return SearchFilename(query, now)
}

// TextFilename names the download of a document's extracted text.
func TextFilename(filename string) string {
	return filename + ".txt"
}
