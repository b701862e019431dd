// Package scraper talks to the external job-scraping service and turns
// its heterogeneous rows into canonical job records.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"jobscout_bot/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const maxResponseBytes = 10 * 1024 * 1024

// Client calls the scraping service's search endpoint.
type Client struct {
	client  HTTPClient
	baseURL string
	timeout time.Duration
}

// NewClient creates a Client for the scraping service at baseURL.
func NewClient(client HTTPClient, baseURL string) *Client {
	return &Client{
		client:  client,
		baseURL: baseURL,
		timeout: 60 * time.Second,
	}
}

type searchRequest struct {
	SiteName      []string `json:"site_name"`
	SearchTerm    string   `json:"search_term,omitempty"`
	Location      string   `json:"location,omitempty"`
	Distance      int      `json:"distance"`
	IsRemote      bool     `json:"is_remote"`
	JobType       string   `json:"job_type,omitempty"`
	ResultsWanted int      `json:"results_wanted"`
	CountryIndeed string   `json:"country_indeed"`
	Offset        int      `json:"offset"`
	HoursOld      int      `json:"hours_old,omitempty"`
}

type searchResponse struct {
	Jobs []RawJob `json:"jobs"`
}

// Search fetches up to wanted raw rows starting at offset.
func (c *Client) Search(ctx context.Context, filters model.FilterSet, sources []string, country string, wanted, offset int) ([]RawJob, error) {
	if len(sources) == 0 {
		sources = model.DefaultSources
	}
	if country == "" {
		country = "usa"
	}
	distance := filters.Distance
	if distance == 0 {
		distance = 50
	}

	reqBody := searchRequest{
		SiteName:      sources,
		SearchTerm:    filters.Keywords,
		Location:      filters.Location,
		Distance:      distance,
		IsRemote:      filters.Remote != nil && *filters.Remote,
		JobType:       filters.JobType,
		ResultsWanted: wanted,
		CountryIndeed: country,
		Offset:        offset,
		HoursOld:      filters.HoursOld,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Jobs, nil
}

// Service combines the scraping client with normalization, returning
// deduplicated canonical rows.
type Service struct {
	client *Client
}

// NewService creates a Service on top of client.
func NewService(client *Client) *Service {
	return &Service{client: client}
}

// Search runs an upstream search and normalizes the result.
func (s *Service) Search(ctx context.Context, filters model.FilterSet, sources []string, country string, wanted, offset int) ([]model.JobRecord, error) {
	raws, err := s.client.Search(ctx, filters, sources, country, wanted, offset)
	if err != nil {
		return nil, fmt.Errorf("scraper search: %w", err)
	}
	return Normalize(raws), nil
}
