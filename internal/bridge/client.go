package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client talks to the automation bridge running next to the host application.
// The bridge executes document operations the worker cannot perform itself;
// everything else (retry, classification, validation, reporting) stays here.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(cfg *Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.Endpoint, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Health checks that the bridge is up and has a host session.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// OpenModel opens the model and returns a document handle.
func (c *Client) OpenModel(ctx context.Context, req OpenModelRequest) (*Document, error) {
	var resp OpenModelResponse
	if err := c.post(ctx, "/documents/open", req, &resp); err != nil {
		return nil, err
	}
	if resp.DocumentID == "" {
		return nil, fmt.Errorf("bridge returned empty document id for %s", req.ModelPath)
	}
	return &Document{client: c, id: resp.DocumentID, isWorkshared: resp.IsWorkshared}, nil
}

// Document is an open model on the bridge side. All methods are synchronous;
// the host processes one document operation at a time.
type Document struct {
	client       *Client
	id           string
	isWorkshared bool
}

func (d *Document) ID() string {
	return d.id
}

func (d *Document) IsWorkshared() bool {
	return d.isWorkshared
}

// Close releases the document on the host. saveChanges is always false for
// worker runs; the worker never mutates the model.
func (d *Document) Close(ctx context.Context) error {
	return d.client.post(ctx, d.path("/close"), map[string]bool{"save_changes": false}, nil)
}

// PrintSets lists the document's view sheet sets.
func (d *Document) PrintSets(ctx context.Context) ([]PrintSet, error) {
	var sets []PrintSet
	if err := d.client.get(ctx, d.path("/printsets"), &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

// Sheets lists all sheets of the document, placeholders included.
func (d *Document) Sheets(ctx context.Context) ([]Sheet, error) {
	var sheets []Sheet
	if err := d.client.get(ctx, d.path("/sheets"), &sheets); err != nil {
		return nil, err
	}
	return sheets, nil
}

// Export renders a single sheet to the requested format.
func (d *Document) Export(ctx context.Context, req ExportRequest) error {
	return d.client.post(ctx, d.path("/export"), req, nil)
}

// CountElements counts placed instances of the given category.
func (d *Document) CountElements(ctx context.Context, category string) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := d.client.get(ctx, d.path("/elements/count?category="+url.QueryEscape(category)), &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Warnings lists the document's review warnings.
func (d *Document) Warnings(ctx context.Context) ([]Warning, error) {
	var warnings []Warning
	if err := d.client.get(ctx, d.path("/warnings"), &warnings); err != nil {
		return nil, err
	}
	return warnings, nil
}

// Views lists the document's views.
func (d *Document) Views(ctx context.Context) ([]View, error) {
	var views []View
	if err := d.client.get(ctx, d.path("/views"), &views); err != nil {
		return nil, err
	}
	return views, nil
}

// LinkedFiles lists the document's external references.
func (d *Document) LinkedFiles(ctx context.Context) ([]LinkedFile, error) {
	var links []LinkedFile
	if err := d.client.get(ctx, d.path("/links"), &links); err != nil {
		return nil, err
	}
	return links, nil
}

// Collect asks the host to run a memory collection pass. The host API leaks
// between heavy export calls; pacing collections keeps long runs alive.
func (d *Document) Collect(ctx context.Context) error {
	return d.client.post(ctx, d.path("/collect"), nil, nil)
}

func (d *Document) path(suffix string) string {
	return "/documents/" + d.id + suffix
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request data: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// surface the bridge's message text so error classification sees the
		// host's wording ("file is locked", "out of memory", ...)
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bridge %s %s failed with status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
