package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultDatasetteTimeout = 30 * time.Second

// DatasetteClient implements the Store interface for remote Datasette
// instances running the datasette-insert plugin.
type DatasetteClient struct {
	baseURL  string
	apiToken string
	client   *resty.Client
}

// NewDatasetteClient creates a new DatasetteClient instance
func NewDatasetteClient(baseURL, apiToken string) *DatasetteClient {
	return &DatasetteClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		client:   resty.New().SetTimeout(defaultDatasetteTimeout),
	}
}

// Connect validates the base URL. No request is made.
func (c *DatasetteClient) Connect() error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base URL %q: scheme must be http or https", c.baseURL)
	}
	return nil
}

// CreateTable is a no-op; the insert plugin creates tables on first insert.
func (c *DatasetteClient) CreateTable(string) error {
	return nil
}

// BatchInsert sends records to the Datasette insert API
func (c *DatasetteClient) BatchInsert(ctx context.Context, database string, table string, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(u.Path, "-/insert", database, table)

	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("pk", "id").
		SetQueryParam("replace", "1").
		SetBody(map[string]any{"rows": records})
	if c.apiToken != "" {
		req.SetAuthToken(c.apiToken)
	}

	resp, err := req.Post(u.String())
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsSuccess() {
		return nil
	}

	var errResp map[string]any
	if err := json.Unmarshal(resp.Body(), &errResp); err != nil {
		return fmt.Errorf("request failed with status %d", resp.StatusCode())
	}
	return fmt.Errorf("API error (status %d): %v", resp.StatusCode(), errResp)
}

// Close is a no-op for the HTTP client
func (c *DatasetteClient) Close() error {
	return nil
}
