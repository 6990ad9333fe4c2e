package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go-glsync/internal/features/connection"
	"go-glsync/internal/features/mapping"
	"go-glsync/internal/features/sync"
	"go-glsync/internal/features/syncerror"
	"go-glsync/internal/features/tables"
)

const userAgent = "glsyncctl/1.0"

// APIError is a non-2xx answer from the service
type APIError struct {
	Status   int
	Message  string
	Redirect string
}

func (e *APIError) Error() string {
	if e.Redirect != "" {
		return fmt.Sprintf("%s (see %s)", e.Message, e.Redirect)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsConflict reports whether err is a 409 from the service
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// Client talks to the glsync HTTP API
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			// the service answers 303 when no connection exists yet
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error    string `json:"error"`
			Redirect string `json:"redirect"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Redirect = payload.Redirect
		}
		// failed sync runs still carry their result
		if out != nil && resp.StatusCode == http.StatusBadGateway {
			_ = json.Unmarshal(raw, out)
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health/ready", nil, nil)
}

func (c *Client) ListConnections(ctx context.Context) ([]connection.Connection, error) {
	var out envelope[[]connection.Connection]
	err := c.do(ctx, http.MethodGet, "/api/connections", nil, &out)
	return out.Data, err
}

func (c *Client) CreateConnection(ctx context.Context, conn connection.Connection) (*connection.Connection, error) {
	var out envelope[connection.Connection]
	if err := c.do(ctx, http.MethodPost, "/api/connections", conn, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) TestConnection(ctx context.Context, id string) (*connection.TestResult, error) {
	var out connection.TestResult
	if err := c.do(ctx, http.MethodPost, "/api/connections/"+url.PathEscape(id)+"/test", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteConnection(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/connections/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListMappings(ctx context.Context, connectionID string) ([]mapping.Mapping, error) {
	q := url.Values{}
	if connectionID != "" {
		q.Set("connection_id", connectionID)
	}
	var out envelope[[]mapping.Mapping]
	err := c.do(ctx, http.MethodGet, withQuery("/api/mappings", q), nil, &out)
	return out.Data, err
}

func (c *Client) ToggleMapping(ctx context.Context, id string) (*mapping.Mapping, error) {
	var out mapping.Mapping
	if err := c.do(ctx, http.MethodPost, "/api/mappings/"+url.PathEscape(id)+"/toggle", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ChangeTargetTable(ctx context.Context, id, table string) (*mapping.Mapping, error) {
	var out mapping.Mapping
	body := map[string]string{"table": table}
	if err := c.do(ctx, http.MethodPut, "/api/mappings/"+url.PathEscape(id)+"/target-table", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TriggerSync returns the run result even when the remote call failed
func (c *Client) TriggerSync(ctx context.Context, mappingID string) (*sync.TriggerResult, error) {
	var out sync.TriggerResult
	err := c.do(ctx, http.MethodPost, "/api/sync/mappings/"+url.PathEscape(mappingID)+"/trigger", nil, &out)
	return &out, err
}

func (c *Client) ListStatuses(ctx context.Context) ([]sync.SyncStatus, error) {
	var out envelope[[]sync.SyncStatus]
	err := c.do(ctx, http.MethodGet, "/api/sync/status", nil, &out)
	return out.Data, err
}

func (c *Client) GetStatus(ctx context.Context, mappingID string) (*sync.SyncStatus, error) {
	var out sync.SyncStatus
	if err := c.do(ctx, http.MethodGet, "/api/sync/status/"+url.PathEscape(mappingID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStats accepts 7, 14, 30 or "all"
func (c *Client) GetStats(ctx context.Context, rangeValue string) (*sync.Stats, error) {
	q := url.Values{}
	if rangeValue != "" {
		q.Set("range", rangeValue)
	}
	var out sync.Stats
	if err := c.do(ctx, http.MethodGet, withQuery("/api/sync/stats", q), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListLogs(ctx context.Context, mappingID string, limit int) ([]sync.SyncLog, error) {
	q := url.Values{}
	if mappingID != "" {
		q.Set("mapping_id", mappingID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out envelope[[]sync.SyncLog]
	err := c.do(ctx, http.MethodGet, withQuery("/api/sync/logs", q), nil, &out)
	return out.Data, err
}

func (c *Client) ListErrors(ctx context.Context, mappingID string, includeResolved bool) ([]syncerror.SyncError, error) {
	q := url.Values{}
	if mappingID != "" {
		q.Set("mapping_id", mappingID)
	}
	if includeResolved {
		q.Set("include_resolved", "true")
	}
	var out envelope[[]syncerror.SyncError]
	err := c.do(ctx, http.MethodGet, withQuery("/api/sync/errors", q), nil, &out)
	return out.Data, err
}

func (c *Client) ResolveError(ctx context.Context, id, notes string) (*syncerror.SyncError, error) {
	var out syncerror.SyncError
	body := map[string]string{"notes": notes}
	if err := c.do(ctx, http.MethodPost, "/api/sync/errors/"+url.PathEscape(id)+"/resolve", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RetryError(ctx context.Context, id string) (*syncerror.RetryResult, error) {
	var out syncerror.RetryResult
	err := c.do(ctx, http.MethodPost, "/api/sync/errors/"+url.PathEscape(id)+"/retry", nil, &out)
	return &out, err
}

func (c *Client) ListTables(ctx context.Context) ([]tables.Table, error) {
	var out envelope[[]tables.Table]
	err := c.do(ctx, http.MethodGet, "/api/tables", nil, &out)
	return out.Data, err
}

func (c *Client) CreateTable(ctx context.Context, def tables.TableDefinition) (*tables.Table, error) {
	var out tables.Table
	if err := c.do(ctx, http.MethodPost, "/api/tables", def, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
