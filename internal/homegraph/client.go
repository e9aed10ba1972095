package homegraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const defaultRequestTimeout = 15 * time.Second

// Client calls the home graph API on behalf of the linked account.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient builds a client authorised by src. httpClient, if non-nil, is
// used as the transport base (tests pass an httptest client here).
func NewClient(ctx context.Context, baseURL string, src oauth2.TokenSource, httpClient *http.Client) *Client {
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	authed := oauth2.NewClient(ctx, src)
	authed.Timeout = defaultRequestTimeout
	return &Client{
		http:    authed,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewFromServiceAccount loads the key file and returns a ready client.
func NewFromServiceAccount(ctx context.Context, baseURL, keyFile string) (*Client, error) {
	sa, err := LoadServiceAccount(keyFile)
	if err != nil {
		return nil, err
	}
	src, err := sa.TokenSource(ctx, nil)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, baseURL, src, nil), nil
}

type reportStateRequest struct {
	RequestID   string        `json:"requestId"`
	AgentUserID string        `json:"agentUserId"`
	Payload     reportPayload `json:"payload"`
}

type reportPayload struct {
	Devices reportDevices `json:"devices"`
}

type reportDevices struct {
	States        map[string]map[string]any `json:"states,omitempty"`
	Notifications map[string]any            `json:"notifications,omitempty"`
}

type requestSyncRequest struct {
	AgentUserID string `json:"agentUserId"`
	Async       bool   `json:"async"`
}

// ReportState pushes device states (and optional notifications) for the
// agent user.
func (c *Client) ReportState(ctx context.Context, agentUserID string, states map[string]map[string]any, notifications map[string]any) error {
	body := reportStateRequest{
		RequestID:   uuid.NewString(),
		AgentUserID: agentUserID,
		Payload: reportPayload{Devices: reportDevices{
			States:        states,
			Notifications: notifications,
		}},
	}
	return c.post(ctx, "/devices:reportStateAndNotification", body)
}

// RequestSync asks the platform to re-fetch the device list.
func (c *Client) RequestSync(ctx context.Context, agentUserID string) error {
	return c.post(ctx, "/devices:requestSync", requestSyncRequest{AgentUserID: agentUserID, Async: true})
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best-effort detail
		return fmt.Errorf("%w: %s: status %d: %s", ErrRequestFailed, path, resp.StatusCode, snippet(msg))
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
	return nil
}
