// Package fx fetches exchange rates and caches them per user with a
// 24-hour staleness bound.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobscout_bot/internal/model"
)

// DefaultBaseURL is the public rate endpoint used when none is
// configured.
const DefaultBaseURL = "https://api.exchangerate.host/latest"

// rateTTL is how long a fetched rate snapshot stays fresh.
const rateTTL = 24 * 3600

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches rate tables from the FX service.
type Client struct {
	client  HTTPClient
	baseURL string
	timeout time.Duration
}

// NewClient creates a Client for the FX service at baseURL.
func NewClient(client HTTPClient, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client:  client,
		baseURL: baseURL,
		timeout: 10 * time.Second,
	}
}

// FetchRates returns the rate table for the given base currency. Any
// malformed, empty, or partially non-numeric payload fails the whole
// fetch; there are no partial results.
func (c *Client) FetchRates(ctx context.Context, base string) (map[string]float64, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		base = "USD"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?base="+url.QueryEscape(base), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var payload struct {
		Rates map[string]any `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("no rates in payload")
	}

	rates := make(map[string]float64, len(payload.Rates))
	for k, v := range payload.Rates {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("non-numeric rate for %s", k)
		}
		rates[strings.ToUpper(k)] = f
	}
	return rates, nil
}

// Cache applies the staleness policy on top of a Client, mutating the
// user record in place. The caller persists the record.
type Cache struct {
	client *Client
	log    *slog.Logger
	now    func() time.Time
}

// NewCache creates a Cache backed by client.
func NewCache(client *Client, log *slog.Logger) *Cache {
	return &Cache{client: client, log: log, now: time.Now}
}

// EnsureRates returns the user's rate table, refreshing it when empty
// or older than 24 hours. A failed refresh never discards existing
// rates: the failure reason is recorded on the record and whatever is
// cached (possibly nothing) is returned.
func (c *Cache) EnsureRates(ctx context.Context, u *model.UserRecord) map[string]float64 {
	now := c.now().Unix()
	if len(u.FXRates) > 0 && now-u.FXTimestamp <= rateTTL {
		return u.FXRates
	}

	rates, err := c.client.FetchRates(ctx, u.BaseCurrency)
	if err != nil {
		c.log.Warn("fx refresh failed", "base", u.BaseCurrency, "error", err)
		u.FXError = fmt.Sprintf("rate refresh failed: %v", err)
		if u.FXRates == nil {
			u.FXRates = map[string]float64{}
		}
		return u.FXRates
	}

	u.FXRates = rates
	u.FXTimestamp = now
	u.FXError = ""
	return u.FXRates
}
