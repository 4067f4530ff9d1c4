// Package pollclient is the device-side library for the notification
// service: a thin HTTP client for the /v1 API plus a Poller that drives
// local unread state and reacts to forced session termination.
package pollclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Notification mirrors one feed entry as the server serializes it.
type Notification struct {
	ID     uuid.UUID       `json:"id"`
	Type   string          `json:"notificationType"`
	Title  string          `json:"title"`
	Body   string          `json:"body"`
	Data   json.RawMessage `json:"data,omitempty"`
	SentAt time.Time       `json:"sentAt"`
	ReadAt *time.Time      `json:"readAt,omitempty"`
}

const KickType = "session_kicked"

func (n Notification) IsKick() bool { return n.Type == KickType }

type PollResult struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
	HasKick       bool           `json:"hasKick"`
}

type SyncStatus struct {
	PendingCount int64      `json:"pendingCount"`
	FailedCount  int64      `json:"failedCount"`
	LastSyncAt   *time.Time `json:"lastSyncAt,omitempty"`
}

// APIError is a non-success envelope returned by the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New validates the endpoint configuration up front; a missing base URL or
// credential is fatal here rather than surfacing as per-tick poll failures.
func New(baseURL, bearerToken string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("pollclient: base URL is required")
	}
	if strings.TrimSpace(bearerToken) == "" {
		return nil, fmt.Errorf("pollclient: bearer token is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   bearerToken,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type PollQuery struct {
	UnreadOnly bool
	Limit      int
	Since      *time.Time
}

func (c *Client) Poll(ctx context.Context, q PollQuery) (*PollResult, error) {
	params := url.Values{}
	params.Set("unreadOnly", strconv.FormatBool(q.UnreadOnly))
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Since != nil {
		params.Set("since", q.Since.UTC().Format(time.RFC3339))
	}

	var out PollResult
	if err := c.do(ctx, http.MethodGet, "/v1/notifications/poll?"+params.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead returns the number of notifications the server actually marked,
// which may be fewer than len(ids).
func (c *Client) MarkRead(ctx context.Context, ids []uuid.UUID) (int, error) {
	var out struct {
		MarkedAsRead int `json:"markedAsRead"`
	}
	req := struct {
		IDs []uuid.UUID `json:"ids"`
	}{IDs: ids}
	if err := c.do(ctx, http.MethodPost, "/v1/notifications/read", req, &out); err != nil {
		return 0, err
	}
	return out.MarkedAsRead, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/sessions/logout", nil, nil)
}

func (c *Client) RegisterPushToken(ctx context.Context, token, platform string) error {
	req := struct {
		Token    string `json:"token"`
		Platform string `json:"platform"`
	}{Token: token, Platform: platform}
	return c.do(ctx, http.MethodPost, "/v1/sessions/push-token", req, nil)
}

// EnqueueSync queues offline mutations for later replay.
func (c *Client) EnqueueSync(ctx context.Context, ops []SyncOperation) ([]uuid.UUID, error) {
	req := struct {
		Operations []SyncOperation `json:"operations"`
	}{Operations: ops}
	var out struct {
		Queued int         `json:"queued"`
		IDs    []uuid.UUID `json:"ids"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/sync/queue", req, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

type SyncOperation struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SyncOutcome is the per-operation result list of one processing run.
type SyncOutcome struct {
	Processed int `json:"processed"`
	Synced    int `json:"synced"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Results   []struct {
		ID     uuid.UUID `json:"id"`
		Kind   string    `json:"kind"`
		Status string    `json:"status"`
		Error  string    `json:"error,omitempty"`
	} `json:"results"`
	SyncedAt time.Time `json:"syncedAt"`
}

func (c *Client) ProcessSync(ctx context.Context) (*SyncOutcome, error) {
	var out SyncOutcome
	if err := c.do(ctx, http.MethodPost, "/v1/sync/process", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSyncStatus(ctx context.Context) (*SyncStatus, error) {
	var out SyncStatus
	if err := c.do(ctx, http.MethodGet, "/v1/sync/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	if !env.Success || resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "error", Message: resp.Status}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	return nil
}
