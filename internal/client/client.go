// Package client talks to the receipts API on behalf of a signed-in user and
// keeps the last loaded rows for offline search.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
	exportapi "github.com/MrJamesThe3rd/smartreceipts/internal/http/export"
	"github.com/MrJamesThe3rd/smartreceipts/internal/http/importcsv"
	receiptapi "github.com/MrJamesThe3rd/smartreceipts/internal/http/receipt"
	searchapi "github.com/MrJamesThe3rd/smartreceipts/internal/http/search"
	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
	"github.com/MrJamesThe3rd/smartreceipts/internal/search"
)

const apiPrefix = "/api/v1"

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
	session *auth.Session

	mu   sync.RWMutex
	rows []*receipt.Receipt
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, session *auth.Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		session: session,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	token := c.session.Token()
	if token == "" {
		return nil, auth.ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}

// send executes req. A 401 expires the session; any other non-2xx status
// becomes an *APIError.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()

	msg := readMessage(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		c.session.Expire()
		return nil, fmt.Errorf("%w: %s", auth.ErrUnauthorized, msg)
	}

	return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// readMessage extracts {"error": "..."} bodies and falls back to plain text.
func readMessage(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 64<<10))

	var body struct {
		Error string `json:"error"`
	}

	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return body.Error
	}

	return strings.TrimSpace(string(b))
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader

	contentType := ""

	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}

		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

func (c *Client) remember(rows []*receipt.Receipt) {
	c.mu.Lock()
	c.rows = rows
	c.mu.Unlock()
}

// Cached returns the rows of the last successful listing.
func (c *Client) Cached() []*receipt.Receipt {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.rows
}

// Grouped loads the library as display views.
func (c *Client) Grouped(ctx context.Context) ([]receipt.View, error) {
	var resp []receiptapi.ViewResponse
	if err := c.doJSON(ctx, http.MethodGet, "/receipts/", nil, &resp); err != nil {
		return nil, err
	}

	views := make([]receipt.View, 0, len(resp))

	var rows []*receipt.Receipt

	for _, vr := range resp {
		v := vr.View()
		rows = append(rows, v.Rows()...)
		views = append(views, v)
	}

	c.remember(rows)

	return views, nil
}

// Rows loads every row of the user, newest first.
func (c *Client) Rows(ctx context.Context) ([]*receipt.Receipt, error) {
	var resp []receiptapi.Response
	if err := c.doJSON(ctx, http.MethodGet, "/receipts/items", nil, &resp); err != nil {
		return nil, err
	}

	rows := make([]*receipt.Receipt, 0, len(resp))
	for _, r := range resp {
		rows = append(rows, r.Receipt())
	}

	c.remember(rows)

	return rows, nil
}

func (c *Client) Save(ctx context.Context, req receiptapi.SaveRequest) (*receiptapi.SaveResponse, error) {
	var resp receiptapi.SaveResponse
	if err := c.doJSON(ctx, http.MethodPost, "/receipts/", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) Update(ctx context.Context, id uuid.UUID, patch receipt.Patch) (*receipt.Receipt, error) {
	var resp receiptapi.Response
	if err := c.doJSON(ctx, http.MethodPatch, "/receipts/"+id.String(), receiptapi.NewPatchRequest(patch), &resp); err != nil {
		return nil, err
	}

	return resp.Receipt(), nil
}

func (c *Client) UpdateGroup(ctx context.Context, groupID uuid.UUID, patch receipt.Patch) ([]*receipt.Receipt, error) {
	var resp []receiptapi.Response
	if err := c.doJSON(ctx, http.MethodPatch, "/receipts/groups/"+groupID.String(), receiptapi.NewPatchRequest(patch), &resp); err != nil {
		return nil, err
	}

	rows := make([]*receipt.Receipt, 0, len(resp))
	for _, r := range resp {
		rows = append(rows, r.Receipt())
	}

	return rows, nil
}

func (c *Client) Delete(ctx context.Context, target receipt.DeleteTarget) error {
	switch {
	case target.RowID.Valid && !target.GroupID.Valid:
		return c.doJSON(ctx, http.MethodDelete, "/receipts/"+target.RowID.UUID.String(), nil, nil)
	case target.GroupID.Valid && !target.RowID.Valid:
		return c.doJSON(ctx, http.MethodDelete, "/receipts/groups/"+target.GroupID.UUID.String(), nil, nil)
	}

	return fmt.Errorf("%w: exactly one of row id or group id is required", receipt.ErrInvalidInput)
}

// Search asks the API first. When the API cannot be reached or fails with a
// server error, the rows of the last listing are searched locally and the
// outcome is marked as a fallback.
func (c *Client) Search(ctx context.Context, text string, limit int) (*search.Outcome, error) {
	q, err := search.Query{Text: text, Limit: limit}.Normalize()
	if err != nil {
		return nil, err
	}

	var resp searchapi.Response

	err = c.doJSON(ctx, http.MethodPost, "/search/", searchapi.Request{Query: q.Text, Limit: q.Limit}, &resp)
	if err == nil {
		if resp.Results == nil {
			resp.Results = []search.Result{}
		}

		return &search.Outcome{Results: resp.Results, Tier: resp.Tier, Fallback: resp.Fallback}, nil
	}

	if !shouldFallBack(err) {
		return nil, err
	}

	out, localErr := search.NewChain(nil, search.NewLocalStrategy(c.Cached())).Search(ctx, q)
	if localErr != nil {
		return nil, fmt.Errorf("%w; remote: %w", localErr, err)
	}

	out.Fallback = true

	return out, nil
}

func shouldFallBack(err error) bool {
	if errors.Is(err, auth.ErrUnauthorized) || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}

	return true
}

// Import uploads a CSV file of receipts.
func (c *Client) Import(ctx context.Context, fileName string, r io.Reader) (*importcsv.ImportResponse, error) {
	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}

	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading %s: %w", fileName, err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/import/", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out importcsv.ImportResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &out, nil
}

// ExportSummary previews the rows an export would contain.
func (c *Client) ExportSummary(ctx context.Context, req exportapi.Request) (*exportapi.MetadataResponse, error) {
	var resp exportapi.MetadataResponse
	if err := c.doJSON(ctx, http.MethodPost, "/export/", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// ExportArchive streams the zip archive of an export into w.
func (c *Client) ExportArchive(ctx context.Context, req exportapi.Request, w io.Writer) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/export/download", bytes.NewReader(b), "application/json")
	if err != nil {
		return err
	}

	resp, err := c.send(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("downloading archive: %w", err)
	}

	return nil
}
