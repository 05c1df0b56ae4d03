package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Schema field names, in prompt order.
const (
	FieldTitle                   = "Title"
	FieldPMID                    = "PMID"
	FieldFullTextLink            = "Full Text Link"
	FieldSubjectOfStudy          = "Subject of Study"
	FieldDiseaseState            = "Disease State"
	FieldNumberOfSubjects        = "Number of Subjects Studied"
	FieldTypeOfStudy             = "Type of Study"
	FieldStudyDesign             = "Study Design"
	FieldIntervention            = "Intervention"
	FieldInterventionDose        = "Intervention Dose"
	FieldInterventionDosageForm  = "Intervention Dosage Form"
	FieldControl                 = "Control"
	FieldPrimaryEndpoint         = "Primary Endpoint"
	FieldPrimaryEndpointResult   = "Primary Endpoint Result"
	FieldSecondaryEndpoints      = "Secondary Endpoints"
	FieldSafetyEndpoints         = "Safety Endpoints"
	FieldResultsAvailable        = "Results Available"
	FieldPrimaryEndpointMet      = "Primary Endpoint Met"
	FieldStatisticalSignificance = "Statistical Significance"
	FieldClinicalSignificance    = "Clinical Significance"
	FieldConclusion              = "Conclusion"
	FieldMainAuthor              = "Main Author"
	FieldOtherAuthors            = "Other Authors"
	FieldJournalName             = "Journal Name"
	FieldDateOfPublication       = "Date of Publication"
	FieldError                   = "Error"

	// FieldFilename is added by the orchestrator to document-sourced records.
	FieldFilename = "Filename"
)

// SchemaFields lists the fields the model is asked to return.
var SchemaFields = []string{
	FieldTitle, FieldPMID, FieldFullTextLink, FieldSubjectOfStudy, FieldDiseaseState,
	FieldNumberOfSubjects, FieldTypeOfStudy, FieldStudyDesign, FieldIntervention,
	FieldInterventionDose, FieldInterventionDosageForm, FieldControl, FieldPrimaryEndpoint,
	FieldPrimaryEndpointResult, FieldSecondaryEndpoints, FieldSafetyEndpoints,
	FieldResultsAvailable, FieldPrimaryEndpointMet, FieldStatisticalSignificance,
	FieldClinicalSignificance, FieldConclusion, FieldMainAuthor, FieldOtherAuthors,
	FieldJournalName, FieldDateOfPublication, FieldError,
}

// ExtractedRecord is the structured output of one extraction call. Keys keep
// the order in which they were emitted and any key may be missing. Values are
// decoded JSON (string, json.Number, bool, nil, []any, map[string]any).
type ExtractedRecord struct {
	keys   []string
	values map[string]any
}

// NewExtractedRecord returns an empty record.
func NewExtractedRecord() ExtractedRecord {
	return ExtractedRecord{values: make(map[string]any)}
}

// Set stores v under key. A new key is appended after the existing ones; an
// existing key keeps its position.
func (r *ExtractedRecord) Set(key string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value stored under key.
func (r ExtractedRecord) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Text returns the cell text for key, or "" when the key is missing.
func (r ExtractedRecord) Text(key string) string {
	v, ok := r.values[key]
	if !ok {
		return ""
	}
	return FormatValue(v)
}

// Keys returns the record's keys in order.
func (r ExtractedRecord) Keys() []string {
	return slices.Clone(r.keys)
}

// Len returns the number of keys.
func (r ExtractedRecord) Len() int {
	return len(r.keys)
}

// Clone returns a copy that shares no key slice or top-level map with r.
func (r ExtractedRecord) Clone() ExtractedRecord {
	out := ExtractedRecord{
		keys:   slices.Clone(r.keys),
		values: make(map[string]any, len(r.values)),
	}
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

// MarshalJSON writes the record as a JSON object in key order.
func (r ExtractedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order. Numbers are kept as
// json.Number so "12" and 12 both survive unchanged.
func (r *ExtractedRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected a JSON object, got %v", tok)
	}

	rec := NewExtractedRecord()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decoding %q: %w", key, err)
		}
		rec.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = rec
	return nil
}

// FormatValue renders a decoded JSON value as spreadsheet cell text.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// UnionKeys returns every key used by records, in order of first appearance.
func UnionKeys(records []ExtractedRecord) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, r := range records {
		for _, k := range r.keys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}
