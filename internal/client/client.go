package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/matheus3301/zapcrm/internal/status"
)

// Client talks to a running zapcrmd over its HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the daemon at addr (host:port).
func New(addr string) *Client {
	return &Client{
		baseURL: "http://" + addr,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Message mirrors the daemon's message wire format.
type Message struct {
	ID            int64  `json:"id"`
	TenantID      string `json:"tenant_id"`
	ContactID     string `json:"contact_id"`
	ProviderMsgID string `json:"provider_msg_id"`
	Direction     string `json:"direction"`
	Author        string `json:"author"`
	Body          string `json:"body"`
	DeliveryState string `json:"delivery_state"`
	CreatedAt     int64  `json:"created_at"`
}

// Contact mirrors the daemon's contact wire format.
type Contact struct {
	TenantID           string `json:"tenant_id"`
	ContactID          string `json:"contact_id"`
	Name               string `json:"name"`
	Unresolved         bool   `json:"unresolved"`
	Stage              string `json:"stage"`
	UnreadCount        int    `json:"unread_count"`
	LastMessageAt      int64  `json:"last_message_at"`
	LastMessagePreview string `json:"last_message_preview"`
}

// HistoryPage is one page of backfill.
type HistoryPage struct {
	Messages    []Message `json:"messages"`
	NextSinceID int64     `json:"next_since_id"`
}

// PauseStatus reports a tenant's automation gate.
type PauseStatus struct {
	TenantID string `json:"tenant_id"`
	Paused   bool   `json:"paused"`
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Connection returns a tenant's connection snapshot.
func (c *Client) Connection(ctx context.Context, tenantID string) (status.Snapshot, error) {
	var snap status.Snapshot
	err := c.get(ctx, "/v1/connection", url.Values{"tenant_id": {tenantID}}, &snap)
	return snap, err
}

// Connect asks the daemon to establish or resume a tenant's session.
func (c *Client) Connect(ctx context.Context, tenantID string) (status.Snapshot, error) {
	var snap status.Snapshot
	err := c.post(ctx, "/v1/connect", map[string]string{"tenant_id": tenantID}, &snap)
	return snap, err
}

// Send sends a text message as the human operator.
func (c *Client) Send(ctx context.Context, tenantID, contactID, body string) (Message, error) {
	var msg Message
	err := c.post(ctx, "/v1/send", map[string]string{
		"tenant_id":  tenantID,
		"contact_id": contactID,
		"body":       body,
	}, &msg)
	return msg, err
}

// History fetches a page of a conversation ordered by (created_at, id).
func (c *Client) History(ctx context.Context, tenantID, contactID string, sinceID int64, limit int) (HistoryPage, error) {
	var page HistoryPage
	q := url.Values{
		"tenant_id":  {tenantID},
		"contact_id": {contactID},
		"since_id":   {strconv.FormatInt(sinceID, 10)},
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	err := c.get(ctx, "/v1/history", q, &page)
	return page, err
}

// Contacts lists a tenant's contacts by recency.
func (c *Client) Contacts(ctx context.Context, tenantID string) ([]Contact, error) {
	var out struct {
		Contacts []Contact `json:"contacts"`
	}
	err := c.get(ctx, "/v1/contacts", url.Values{"tenant_id": {tenantID}}, &out)
	return out.Contacts, err
}

// MarkRead clears a contact's unread counter.
func (c *Client) MarkRead(ctx context.Context, tenantID, contactID string) error {
	return c.post(ctx, "/v1/contacts/read", map[string]string{
		"tenant_id":  tenantID,
		"contact_id": contactID,
	}, nil)
}

// SetStage moves a lead through the pipeline.
func (c *Client) SetStage(ctx context.Context, tenantID, contactID, stage string) (Contact, error) {
	var contact Contact
	err := c.post(ctx, "/v1/contacts/stage", map[string]string{
		"tenant_id":  tenantID,
		"contact_id": contactID,
		"stage":      stage,
	}, &contact)
	return contact, err
}

// CreateLead registers a contact manually from a phone number.
func (c *Client) CreateLead(ctx context.Context, tenantID, phone, name string) (Contact, error) {
	var contact Contact
	err := c.post(ctx, "/v1/leads", map[string]string{
		"tenant_id": tenantID,
		"phone":     phone,
		"name":      name,
	}, &contact)
	return contact, err
}

// SetPaused flips the automation gate.
func (c *Client) SetPaused(ctx context.Context, tenantID string, paused bool) error {
	return c.post(ctx, "/v1/automation/pause", map[string]any{
		"tenant_id": tenantID,
		"paused":    paused,
	}, nil)
}

// Paused reads the automation gate.
func (c *Client) Paused(ctx context.Context, tenantID string) (bool, error) {
	var ps PauseStatus
	err := c.get(ctx, "/v1/automation/pause-status", url.Values{"tenant_id": {tenantID}}, &ps)
	return ps.Paused, err
}
