// Package expo is a thin client for the Expo push HTTP API: ticket
// submission and delivery receipts. Batching policy lives with the caller;
// the client only refuses batches the API itself would reject.
package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// MaxBatch is the hard per-request cap of the push API, for both
	// messages and receipt ids.
	MaxBatch = 100

	StatusOK    = "ok"
	StatusError = "error"

	// ErrorDeviceNotRegistered marks a token the gateway considers gone
	// for good. The owning registration should be dropped.
	ErrorDeviceNotRegistered = "DeviceNotRegistered"

	sendPath     = "/--/api/v2/push/send"
	receiptsPath = "/--/api/v2/push/getReceipts"
)

// Message is one push request entry, wire-identical to the Expo schema.
type Message struct {
	To         string          `json:"to"`
	Title      string          `json:"title,omitempty"`
	Body       string          `json:"body,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Sound      string          `json:"sound,omitempty"`
	Badge      *int            `json:"badge,omitempty"`
	ChannelID  string          `json:"channelId,omitempty"`
	Priority   string          `json:"priority,omitempty"`
	TTL        int             `json:"ttl,omitempty"`
	Expiration int64           `json:"expiration,omitempty"`
}

// Ticket is the per-message acceptance result, positionally aligned with
// the submitted batch.
type Ticket struct {
	Status  string   `json:"status"`
	ID      string   `json:"id,omitempty"`
	Message string   `json:"message,omitempty"`
	Details *Details `json:"details,omitempty"`
}

// Receipt is the settled delivery outcome for an accepted ticket.
type Receipt struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Details *Details `json:"details,omitempty"`
}

type Details struct {
	Error         string `json:"error,omitempty"`
	ExpoPushToken string `json:"expoPushToken,omitempty"`
}

func (t Ticket) OK() bool  { return t.Status == StatusOK }
func (r Receipt) OK() bool { return r.Status == StatusOK }

// DeviceGone reports whether the receipt tells us the registration is dead.
func (r Receipt) DeviceGone() bool {
	return r.Status == StatusError && r.Details != nil && r.Details.Error == ErrorDeviceNotRegistered
}

type Client struct {
	baseURL     string
	accessToken string
	hc          *http.Client
}

// New builds a client against the given gateway base URL (typically
// https://exp.host). The access token is optional; when set it is sent as a
// bearer credential on every call.
func New(baseURL, accessToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		hc: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// SendMessages submits one batch and returns its tickets. The response is
// positionally aligned with the request; a length mismatch is reported as
// an error because the caller can no longer attribute outcomes.
func (c *Client) SendMessages(ctx context.Context, msgs []Message) ([]Ticket, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	if len(msgs) > MaxBatch {
		return nil, fmt.Errorf("expo: batch of %d exceeds the %d message cap", len(msgs), MaxBatch)
	}

	var out struct {
		Data   []Ticket `json:"data"`
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := c.post(ctx, sendPath, msgs, &out); err != nil {
		return nil, err
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("expo: send rejected: %s: %s", out.Errors[0].Code, out.Errors[0].Message)
	}
	if len(out.Data) != len(msgs) {
		return nil, fmt.Errorf("expo: got %d tickets for %d messages", len(out.Data), len(msgs))
	}
	return out.Data, nil
}

// GetReceipts resolves up to MaxBatch ticket ids. Ids the gateway has not
// settled yet are simply absent from the result.
func (c *Client) GetReceipts(ctx context.Context, ids []string) (map[string]Receipt, error) {
	if len(ids) == 0 {
		return map[string]Receipt{}, nil
	}
	if len(ids) > MaxBatch {
		return nil, fmt.Errorf("expo: receipt batch of %d exceeds the %d id cap", len(ids), MaxBatch)
	}

	req := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	var out struct {
		Data map[string]Receipt `json:"data"`
	}
	if err := c.post(ctx, receiptsPath, req, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = map[string]Receipt{}
	}
	return out.Data, nil
}

// Healthy probes the gateway for reachability. Any HTTP response counts;
// only transport-level failure is reported.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("expo: gateway unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	_ = resp.Body.Close()
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("expo: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("expo: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("expo: %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("expo: %s: decode response: %w", path, err)
	}
	return nil
}
