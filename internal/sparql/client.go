package sparql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"llbot/internal/textutil"
)

const entityPrefix = "http://www.wikidata.org/entity/"

// Client runs SELECT queries against a SPARQL endpoint.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a client for endpoint.
func NewClient(endpoint, userAgent string, timeout time.Duration) *Client {
	return &Client{
		endpoint:  endpoint,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 3,
		backoff:    2 * time.Second,
	}
}

// --- SPARQL 1.1 JSON results ---

type results struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]binding `json:"bindings"`
	} `json:"results"`
}

type binding struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Row maps each bound variable to its formatted value.
type Row map[string]string

// Query executes query and returns its rows. Entity URIs are shortened to
// their qid.
func (c *Client) Query(ctx context.Context, query string) ([]Row, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.backoff
			log.Warn().Int("attempt", attempt+1).Dur("backoff", backoff).Msg("Retrying SPARQL query")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		rows, retryable, err := c.doRequest(ctx, query)
		if err == nil {
			return rows, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable {
			break
		}
	}

	return nil, fmt.Errorf("sparql query: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, query string) ([]Row, bool, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("endpoint call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("retryable error (status %d): %s", resp.StatusCode, textutil.Truncate(string(body), 300))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("endpoint error (status %d): %s", resp.StatusCode, textutil.Truncate(string(body), 300))
	}

	var res results
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, false, fmt.Errorf("unmarshal results: %w", err)
	}

	rows := make([]Row, 0, len(res.Results.Bindings))
	for _, b := range res.Results.Bindings {
		row := make(Row, len(b))
		for name, v := range b {
			row[name] = formatValue(v)
		}
		rows = append(rows, row)
	}

	log.Debug().Int("rows", len(rows)).Msg("SPARQL query complete")
	return rows, false, nil
}

func formatValue(b binding) string {
	if b.Type == "uri" {
		return strings.TrimPrefix(b.Value, entityPrefix)
	}
	return b.Value
}
