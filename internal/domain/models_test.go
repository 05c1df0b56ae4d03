package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialscope/internal/domain"
)

func TestUpload_Extension(t *testing.T) {
	assert.Equal(t, "pdf", domain.Upload{Filename: "Trial.PDF"}.Extension())
	assert.Equal(t, "jpeg", domain.Upload{Filename: "scan.v2.jpeg"}.Extension())
	assert.Equal(t, "", domain.Upload{Filename: "README"}.Extension())
	assert.Equal(t, "", domain.Upload{Filename: "dot."}.Extension())
}

func TestRawItem_Label(t *testing.T) {
	assert.Equal(t, "PMID 42", domain.SearchItem(domain.SearchRecord{PMID: "42"}).Label())
	assert.Equal(t, "a.pdf", domain.DocumentItem(domain.Upload{Filename: "a.pdf"}).Label())
	assert.Equal(t, "", domain.SearchItem(domain.SearchRecord{}).Label())
	assert.True(t, domain.DocumentItem(domain.Upload{}).IsDocument())
	assert.False(t, domain.SearchItem(domain.SearchRecord{}).IsDocument())
}

func TestSearchRecord_Text(t *testing.T) {
	text := domain.SearchRecord{PMID: "1", Title: "Aspirin"}.Text()
	assert.Contains(t, text, `"pmid": "1"`)
	assert.Contains(t, text, `"title": "Aspirin"`)
}

func TestParseBatchMode(t *testing.T) {
	m, err := domain.ParseBatchMode("")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchMode(""), m)

	m, err = domain.ParseBatchMode(" Append ")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeAppend, m)

	_, err = domain.ParseBatchMode("merge")
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}

func TestParseProvider(t *testing.T) {
	p, err := domain.ParseProvider("Claude")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderAnthropic, p)

	_, err = domain.ParseProvider("gemini")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestItemError(t *testing.T) {
	assert.Equal(t, "item 2 (a.pdf): boom", domain.ItemError{Index: 2, Source: "a.pdf", Message: "boom"}.Error())
	assert.Equal(t, "item 1: boom", domain.ItemError{Index: 1, Message: "boom"}.Error())
}

func TestExtractionError_Unwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := error(&domain.ExtractionError{Cause: cause})
	assert.ErrorIs(t, err, domain.ErrExtractionFailure)
	assert.ErrorIs(t, err, cause)
}
