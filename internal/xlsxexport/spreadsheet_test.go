package xlsxexport_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"trialscope/internal/domain"
	"trialscope/internal/xlsxexport"
)

func parse(t *testing.T, raw string) domain.ExtractedRecord {
	t.Helper()
	var rec domain.ExtractedRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return rec
}

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{xlsxexport.SheetName}, f.GetSheetList())
	rows, err := f.GetRows(xlsxexport.SheetName)
	require.NoError(t, err)
	return rows
}

func TestToSpreadsheet_RoundTrip(t *testing.T) {
	records := []domain.ExtractedRecord{
		parse(t, `{"Title":"A","PMID":"1"}`),
		parse(t, `{"Title":"B","Error":"bad"}`),
	}

	data, err := xlsxexport.ToSpreadsheet(records)
	require.NoError(t, err)

	rows := readRows(t, data)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Title", "PMID", "Error"}, rows[0])
	assert.Equal(t, []string{"A", "1"}, rows[1], "trailing empty cells are trimmed by GetRows")
	assert.Equal(t, []string{"B", "", "bad"}, rows[2])
}

func TestToSpreadsheet_ColumnUnionFirstAppearance(t *testing.T) {
	records := []domain.ExtractedRecord{
		parse(t, `{"B":"1","A":"2"}`),
		parse(t, `{"C":"3","A":"4"}`),
		parse(t, `{"D":"5","B":"6"}`),
	}

	data, err := xlsxexport.ToSpreadsheet(records)
	require.NoError(t, err)

	rows := readRows(t, data)
	assert.Equal(t, []string{"B", "A", "C", "D"}, rows[0])
	assert.Equal(t, []string{"", "4", "3"}, rows[2])
	assert.Equal(t, []string{"6", "", "", "5"}, rows[3])
}

func TestToSpreadsheet_Subset(t *testing.T) {
	all := []domain.ExtractedRecord{
		parse(t, `{"Title":"A","PMID":"1"}`),
		parse(t, `{"Title":"B","Filename":"b.pdf"}`),
	}

	data, err := xlsxexport.ToSpreadsheet(all[1:])
	require.NoError(t, err)

	rows := readRows(t, data)
	assert.Equal(t, []string{"Title", "Filename"}, rows[0], "columns come from the subset only")
}

func TestToSpreadsheet_ValueFormatting(t *testing.T) {
	records := []domain.ExtractedRecord{
		parse(t, `{"Number of Subjects Studied":120,"Results Available":true,"Other Authors":["Doe J","Roe K"],"Control":null}`),
	}

	data, err := xlsxexport.ToSpreadsheet(records)
	require.NoError(t, err)

	rows := readRows(t, data)
	assert.Equal(t, []string{"120", "TRUE", `["Doe J","Roe K"]`}, rows[1])
}

func TestToSpreadsheet_TypedCells(t *testing.T) {
	records := []domain.ExtractedRecord{
		parse(t, `{"Number of Subjects Studied":120,"Intervention Dose":2.5,"Results Available":true,"PMID":"12345"}`),
	}

	data, err := xlsxexport.ToSpreadsheet(records)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	cellType := func(cell string) excelize.CellType {
		ct, err := f.GetCellType(xlsxexport.SheetName, cell)
		require.NoError(t, err)
		return ct
	}
	value := func(cell string) string {
		v, err := f.GetCellValue(xlsxexport.SheetName, cell)
		require.NoError(t, err)
		return v
	}

	assert.NotEqual(t, excelize.CellTypeSharedString, cellType("A2"), "JSON numbers are numeric cells")
	assert.NotEqual(t, excelize.CellTypeInlineString, cellType("A2"))
	assert.Equal(t, "120", value("A2"))
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType("B2"))
	assert.Equal(t, "2.5", value("B2"))
	assert.Equal(t, excelize.CellTypeBool, cellType("C2"))
	assert.Equal(t, excelize.CellTypeSharedString, cellType("D2"), "string PMIDs stay text")
	assert.Equal(t, "12345", value("D2"))
}

func TestToSpreadsheet_DoesNotMutate(t *testing.T) {
	rec := parse(t, `{"Title":"A"}`)
	before, _ := json.Marshal(rec)

	_, err := xlsxexport.ToSpreadsheet([]domain.ExtractedRecord{rec})
	require.NoError(t, err)

	after, _ := json.Marshal(rec)
	assert.Equal(t, before, after)
}

func TestToSpreadsheet_Empty(t *testing.T) {
	data, err := xlsxexport.ToSpreadsheet(nil)
	require.NoError(t, err)
	assert.Empty(t, readRows(t, data))
}

func TestFilenames(t *testing.T) {
	now := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "PubMed_aspirin_240309.xlsx", xlsxexport.SearchFilename("aspirin stroke prevention", now))
	assert.Equal(t, "PubMed_COVID-19_240309.xlsx", xlsxexport.SearchFilename("COVID-19 vaccine", now))
	assert.Equal(t, "PubMed_results_240309.xlsx", xlsxexport.SearchFilename("  ", now))
	assert.Equal(t, "PubMed_results_240309.xlsx", xlsxexport.SearchFilename("(((", now))
	assert.Equal(t, "PDF_Analysis_240309.xlsx", xlsxexport.DocumentFilename(now))
	assert.Equal(t, "Selected_240309.xlsx", xlsxexport.SelectedFilename(now))
	assert.Equal(t, "PDF_Analysis_240309.xlsx", xlsxexport.Filename(domain.SourceDocument, "x", now))
	assert.Equal(t, "PubMed_x_240309.xlsx", xlsxexport.Filename(domain.SourceSearch, "x", now))
	assert.Equal(t, "trial.pdf.txt", xlsxexport.TextFilename("trial.pdf"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c", xlsxexport.SanitizeFilename("a  b/c"))
	assert.Len(t, xlsxexport.SanitizeFilename(string(bytes.Repeat([]byte("x"), 150))), 100)
}
