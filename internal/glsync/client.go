package glsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go-glsync/internal/config"
)

type Action string

const (
	ActionTestConnection Action = "testConnection"
	ActionSyncData       Action = "syncData"
	ActionRetryFailure   Action = "retry-failure"
)

// ErrTransport wraps every failure to reach the function or decode its answer
var ErrTransport = errors.New("glsync transport error")

// Request is the body of a named action call
type Request struct {
	Action       Action `json:"action"`
	ConnectionID string `json:"connectionId,omitempty"`
	MappingID    string `json:"mappingId,omitempty"`
	LogID        string `json:"logId,omitempty"`
	ErrorID      string `json:"errorId,omitempty"`
	RecordData   any    `json:"recordData,omitempty"`
}

// RecordFailure is a record-level failure reported back by a sync run
type RecordFailure struct {
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
	RecordData   any    `json:"record_data,omitempty"`
	Retryable    bool   `json:"retryable"`
}

type Response struct {
	Success          bool            `json:"success"`
	Error            string          `json:"error,omitempty"`
	RecordsProcessed *int            `json:"recordsProcessed,omitempty"`
	FailedRecords    *int            `json:"failedRecords,omitempty"`
	TotalRecords     *int            `json:"totalRecords,omitempty"`
	Errors           []RecordFailure `json:"errors,omitempty"`
	Details          map[string]any  `json:"details,omitempty"`
}

type Client interface {
	TestConnection(ctx context.Context, connectionID string) (*Response, error)
	SyncData(ctx context.Context, connectionID, mappingID, logID string) (*Response, error)
	RetryFailure(ctx context.Context, mappingID, errorID string, recordData any) (*Response, error)
}

// MaxResponseBytes caps how much of a function answer is read
const MaxResponseBytes int64 = 8 << 20

type HTTPClient struct {
	url        string
	serviceKey string
	httpClient *http.Client
	maxBody    int64
}

func NewClient(cfg *config.Config) Client {
	return &HTTPClient{
		url:        fmt.Sprintf("%s/functions/v1/%s", cfg.SupabaseURL, cfg.GlsyncFunction),
		serviceKey: cfg.SupabaseServiceKey,
		httpClient: &http.Client{
			Timeout: cfg.GlsyncTimeout,
		},
		maxBody: MaxResponseBytes,
	}
}

func (c *HTTPClient) TestConnection(ctx context.Context, connectionID string) (*Response, error) {
	return c.Invoke(ctx, Request{Action: ActionTestConnection, ConnectionID: connectionID})
}

func (c *HTTPClient) SyncData(ctx context.Context, connectionID, mappingID, logID string) (*Response, error) {
	return c.Invoke(ctx, Request{
		Action:       ActionSyncData,
		ConnectionID: connectionID,
		MappingID:    mappingID,
		LogID:        logID,
	})
}

func (c *HTTPClient) RetryFailure(ctx context.Context, mappingID, errorID string, recordData any) (*Response, error) {
	return c.Invoke(ctx, Request{
		Action:     ActionRetryFailure,
		MappingID:  mappingID,
		ErrorID:    errorID,
		RecordData: recordData,
	})
}

// Invoke posts one action call. A decoded {success:false} answer is not an error;
// only transport and decoding failures are.
func (c *HTTPClient) Invoke(ctx context.Context, body Request) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceKey)
		req.Header.Set("apikey", c.serviceKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}
	if int64(len(raw)) > c.maxBody {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrTransport, c.maxBody)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		if res.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: status %d: %s", ErrTransport, res.StatusCode, string(raw))
		}
		return nil, fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}

	if res.StatusCode >= 300 {
		if out.Error == "" {
			return nil, fmt.Errorf("%w: status %d", ErrTransport, res.StatusCode)
		}
		out.Success = false
	}

	return &out, nil
}

// Count dereferences the optional counters of a Response
func Count(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
