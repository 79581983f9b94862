// Package apiclient talks to the stockbook HTTP API on behalf of import clients.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/odyssey-erp/stockbook/internal/imports"
	"github.com/odyssey-erp/stockbook/internal/inventory"
	"github.com/odyssey-erp/stockbook/internal/platform/httpx"
)

// ErrAuth indicates the server rejected the caller's session or principal.
var ErrAuth = errors.New("apiclient: not authorized")

// StatusError is a non-success response that carries no usable payload.
type StatusError struct {
	Status  int
	Problem httpx.ProblemDetail
}

func (e *StatusError) Error() string {
	if e.Problem.Detail != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Problem.Detail)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// Unwrap maps well-known statuses onto sentinels callers already match on.
func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusConflict:
		return imports.ErrImportInProgress
	default:
		return nil
	}
}

// Client is an HTTP backend for the import gate.
type Client struct {
	baseURL    *url.URL
	session    string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New constructs a client for baseURL authenticating with a session token.
func New(baseURL, session string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	c := &Client{
		baseURL:    u,
		session:    strings.TrimSpace(session),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CatalogIndex fetches the tenant's SKU quantities and folder names.
func (c *Client) CatalogIndex(ctx context.Context) (inventory.Index, error) {
	var idx inventory.Index
	if err := c.doJSON(ctx, http.MethodGet, "/api/catalog/index", nil, &idx); err != nil {
		return inventory.Index{}, err
	}
	return idx, nil
}

// CreateFolders creates the named folders when missing.
func (c *Client) CreateFolders(ctx context.Context, names []string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/catalog/folders", inventory.CreateFoldersRequest{Names: names}, nil)
}

// Upload stores a file and returns its blob path.
func (c *Client) Upload(ctx context.Context, name string, data []byte) (string, error) {
	var out imports.UploadResponse
	if err := c.doMultipart(ctx, "/api/uploads", name, data, &out); err != nil {
		return "", err
	}
	return out.FilePath, nil
}

// Preview runs the server-side classifier over a file without writing anything.
func (c *Client) Preview(ctx context.Context, name string, data []byte) (imports.Scan, error) {
	var scan imports.Scan
	if err := c.doMultipart(ctx, "/api/imports/preview", name, data, &scan); err != nil {
		return imports.Scan{}, err
	}
	return scan, nil
}

// Reconcile invokes the engine. Both 200 and 422 bodies are reports; partial success is not
// an error.
func (c *Client) Reconcile(ctx context.Context, req imports.Request) (imports.Report, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return imports.Report{}, fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.send(ctx, http.MethodPost, "/api/imports/reconcile", "application/json", bytes.NewReader(body))
	if err != nil {
		return imports.Report{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		return imports.Report{}, statusError(resp)
	}
	var rep imports.Report
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		return imports.Report{}, fmt.Errorf("decode report: %w", err)
	}
	rep.Status = resp.StatusCode
	return rep, nil
}

func (c *Client) doJSON(ctx context.Context, method, p string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	resp, err := c.send(ctx, method, p, contentType, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decode(resp, out)
}

func (c *Client) doMultipart(ctx context.Context, p, name string, data []byte, out any) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", path.Base(name))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodPost, p, writer.FormDataContentType(), body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decode(resp, out)
}

func (c *Client) send(ctx context.Context, method, p, contentType string, body io.Reader) (*http.Response, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + p
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.session != "" {
		req.Header.Set("Authorization", "Bearer "+c.session)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, p, err)
	}
	return resp, nil
}

func decode(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	se := &StatusError{Status: resp.StatusCode}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&se.Problem)
	return se
}
