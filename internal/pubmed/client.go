// Package pubmed searches PubMed through the NCBI E-utilities API.
package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"trialscope/internal/config"
	"trialscope/internal/domain"
)

const defaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// Client implements port.LiteratureSearcher against ESearch and EFetch.
type Client struct {
	baseURL        string
	email          string
	apiKey         string
	tool           string
	filter         string
	defaultResults int
	maxResults     int
	client         *http.Client
}

// NewClient creates a PubMed client from config.
func NewClient(cfg config.PubMedConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return NewClientWithEndpoint(cfg, baseURL)
}

// NewClientWithEndpoint creates a client pointing at a custom base URL (for testing).
func NewClientWithEndpoint(cfg config.PubMedConfig, baseURL string) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	defaultResults := cfg.DefaultResults
	if defaultResults <= 0 {
		defaultResults = 20
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 400
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		email:          cfg.Email,
		apiKey:         cfg.APIKey,
		tool:           cfg.Tool,
		filter:         cfg.Filter,
		defaultResults: defaultResults,
		maxResults:     maxResults,
		client:         &http.Client{Timeout: timeout},
	}
}

// ClampResults bounds a requested result count to [1, max]; zero or
// negative selects the default.
func (c *Client) ClampResults(n int) int {
	switch {
	case n <= 0:
		return c.defaultResults
	case n > c.maxResults:
		return c.maxResults
	default:
		return n
	}
}

// BuildQuery appends the clinical-trial filter to the user query.
func (c *Client) BuildQuery(query string) string {
	query = strings.TrimSpace(query)
	if c.filter == "" {
		return query
	}
	return query + " AND (" + c.filter + ")"
}

// Search runs ESearch for the filtered query and fetches the matching
// articles in relevance order. No hits yields an empty slice and no error.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	term := c.BuildQuery(query)
	retmax := c.ClampResults(maxResults)

	ids, err := c.esearch(ctx, term, retmax)
	if err != nil {
		return nil, fmt.Errorf("%w: esearch: %w", domain.ErrAcquisitionFailure, err)
	}
	log.Debug().Str("term", term).Int("hits", len(ids)).Msg("pubmed.Search: esearch complete")
	if len(ids) == 0 {
		return []domain.SearchRecord{}, nil
	}

	records, err := c.efetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: efetch: %w", domain.ErrAcquisitionFailure, err)
	}
	return orderByIDs(records, ids), nil
}

func (c *Client) commonParams() url.Values {
	v := url.Values{}
	v.Set("db", "pubmed")
	if c.tool != "" {
		v.Set("tool", c.tool)
	}
	if c.email != "" {
		v.Set("email", c.email)
	}
	if c.apiKey != "" {
		v.Set("api_key", c.apiKey)
	}
	return v
}

type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
	Error string `json:"error"`
}

func (c *Client) esearch(ctx context.Context, term string, retmax int) ([]string, error) {
	params := c.commonParams()
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(retmax))
	params.Set("retmode", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/esearch.fcgi?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling esearch response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("esearch error: %s", resp.Error)
	}
	if resp.Result.Error != "" {
		return nil, fmt.Errorf("esearch error: %s", resp.Result.Error)
	}
	return resp.Result.IDList, nil
}

func (c *Client) efetch(ctx context.Context, ids []string) ([]domain.SearchRecord, error) {
	params := c.commonParams()
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "xml")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/efetch.fcgi", strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var set articleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("unmarshaling efetch response: %w", err)
	}
	records := make([]domain.SearchRecord, 0, len(set.Articles))
	for i := range set.Articles {
		records = append(records, set.Articles[i].toRecord())
	}
	return records, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling E-utilities: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("E-utilities error (status %d): %s", resp.StatusCode, truncate(string(body), 300))
	}
	return body, nil
}

// orderByIDs returns records in ESearch order. Records EFetch returned for
// ids not in the list are kept at the end.
func orderByIDs(records []domain.SearchRecord, ids []string) []domain.SearchRecord {
	byID := make(map[string]domain.SearchRecord, len(records))
	var extra []domain.SearchRecord
	for _, r := range records {
		if _, dup := byID[r.PMID]; dup || r.PMID == "" {
			extra = append(extra, r)
			continue
		}
		byID[r.PMID] = r
	}
	out := make([]domain.SearchRecord, 0, len(records))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
			delete(byID, id)
		}
	}
	for _, r := range records {
		if _, ok := byID[r.PMID]; ok {
			out = append(out, r)
			delete(byID, r.PMID)
		}
	}
	return append(out, extra...)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
