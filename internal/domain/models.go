package domain

import (
	"encoding/json"
	"strings"
)

// Author is one author of a PubMed article.
type Author struct {
	LastName       string `json:"last_name,omitempty"`
	ForeName       string `json:"fore_name,omitempty"`
	Initials       string `json:"initials,omitempty"`
	CollectiveName string `json:"collective_name,omitempty"`
	Affiliation    string `json:"affiliation,omitempty"`
}

// SearchRecord is the bibliographic metadata of one PubMed article as
// returned by the literature search.
type SearchRecord struct {
	PMID             string   `json:"pmid"`
	Title            string   `json:"title"`
	Abstract         string   `json:"abstract,omitempty"`
	Authors          []Author `json:"authors,omitempty"`
	Journal          string   `json:"journal,omitempty"`
	JournalAbbrev    string   `json:"journal_abbrev,omitempty"`
	PublicationDate  string   `json:"publication_date,omitempty"`
	DOI              string   `json:"doi,omitempty"`
	PMCID            string   `json:"pmcid,omitempty"`
	PublicationTypes []string `json:"publication_types,omitempty"`
	MeSHTerms        []string `json:"mesh_terms,omitempty"`
	Language         string   `json:"language,omitempty"`
}

// Text renders the record as the user content of an extraction call.
func (r SearchRecord) Text() string {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return r.Title + "\n\n" + r.Abstract
	}
	return string(b)
}

// Upload is a user-submitted file awaiting ingestion.
type Upload struct {
	Filename string
	Data     []byte
}

// Extension returns the lower-cased extension without the dot.
func (u Upload) Extension() string {
	i := strings.LastIndex(u.Filename, ".")
	if i < 0 || i == len(u.Filename)-1 {
		return ""
	}
	return strings.ToLower(u.Filename[i+1:])
}

// DocumentText is the text extracted from an uploaded file.
type DocumentText struct {
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	PageCount int    `json:"page_count"`
	Method    string `json:"method,omitempty"`
	Language  string `json:"language,omitempty"`
}

// ExtractedText is the auxiliary copy of a document's text kept by a session.
type ExtractedText struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// RawItem is one unit of batch input: either a search record or an upload.
type RawItem struct {
	Kind   SourceKind
	Record *SearchRecord
	Upload *Upload
}

// SearchItem wraps a search record as a batch item.
func SearchItem(rec SearchRecord) RawItem {
	return RawItem{Kind: SourceSearch, Record: &rec}
}

// DocumentItem wraps an upload as a batch item.
func DocumentItem(u Upload) RawItem {
	return RawItem{Kind: SourceDocument, Upload: &u}
}

// IsDocument reports whether the item is a full document rather than a
// bibliographic record.
func (i RawItem) IsDocument() bool {
	return i.Kind == SourceDocument
}

// Label identifies the item in failure messages.
func (i RawItem) Label() string {
	switch {
	case i.Upload != nil:
		return i.Upload.Filename
	case i.Record != nil && i.Record.PMID != "":
		return "PMID " + i.Record.PMID
	default:
		return ""
	}
}

// ProviderSettings holds the completion provider chosen for a session.
type ProviderSettings struct {
	Provider Provider `json:"provider"`
	Model    string   `json:"model"`
	APIKey   string   `json:"-"`
}
