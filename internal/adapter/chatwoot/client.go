// Package chatwoot implements the conversation platform port against the
// Chatwoot REST API, with per-hotel credentials resolved through the hotel
// context store.
package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mkiradani/daotomata-hotel-agent/internal/domain"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/hotelstore"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/platform"
	"github.com/mkiradani/daotomata-hotel-agent/internal/resilience"
)

// Client talks to per-hotel Chatwoot instances.
type Client struct {
	hotels     hotelstore.Store
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a Chatwoot client that resolves credentials per hotel.
func NewClient(hotels hotelstore.Store, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		hotels: hotels,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// SendMessage delivers a guest-visible message to a conversation.
func (c *Client) SendMessage(ctx context.Context, hotelID string, conversationID int, content string) (*platform.SendResult, error) {
	return c.sendMessage(ctx, hotelID, conversationID, content, false)
}

// SendPrivateNote attaches an operator-only note to a conversation.
func (c *Client) SendPrivateNote(ctx context.Context, hotelID string, conversationID int, content string) (*platform.SendResult, error) {
	return c.sendMessage(ctx, hotelID, conversationID, content, true)
}

func (c *Client) sendMessage(ctx context.Context, hotelID string, conversationID int, content string, private bool) (*platform.SendResult, error) {
	creds, err := c.credentials(ctx, hotelID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"content":      content,
		"message_type": "outgoing",
		"private":      private,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	path := fmt.Sprintf("/api/v1/accounts/%d/conversations/%d/messages", creds.AccountID, conversationID)
	resp, err := c.doRequest(ctx, creds, http.MethodPost, path, body)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	var result struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal send result: %w", err)
	}
	return &platform.SendResult{MessageID: result.ID}, nil
}

// SetStatus requests a conversation status transition via toggle_status.
func (c *Client) SetStatus(ctx context.Context, hotelID string, conversationID int, status string) error {
	creds, err := c.credentials(ctx, hotelID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	path := fmt.Sprintf("/api/v1/accounts/%d/conversations/%d/toggle_status", creds.AccountID, conversationID)
	if _, err := c.doRequest(ctx, creds, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("set status %s: %w", status, err)
	}
	return nil
}

// GetStatus reads the conversation's current status and assignee.
func (c *Client) GetStatus(ctx context.Context, hotelID string, conversationID int) (*platform.ConversationStatus, error) {
	creds, err := c.credentials(ctx, hotelID)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/api/v1/accounts/%d/conversations/%d", creds.AccountID, conversationID)
	resp, err := c.doRequest(ctx, creds, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	var result struct {
		Status string `json:"status"`
		Meta   struct {
			Assignee *struct {
				Name string `json:"name"`
			} `json:"assignee"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}

	status := &platform.ConversationStatus{Status: result.Status}
	if result.Meta.Assignee != nil {
		status.Assignee = result.Meta.Assignee.Name
	}
	return status, nil
}

// credentials resolves and validates the hotel's Chatwoot credentials.
func (c *Client) credentials(ctx context.Context, hotelID string) (*hotelstore.ChatwootCredentials, error) {
	hctx, err := c.hotels.GetHotelContext(ctx, hotelID)
	if err != nil {
		return nil, fmt.Errorf("hotel context %s: %w", hotelID, err)
	}
	creds := hctx.Chatwoot
	if creds == nil || creds.BaseURL == "" || creds.AccessToken == "" || creds.AccountID == 0 {
		return nil, fmt.Errorf("%w: hotel %s has no chatwoot credentials", domain.ErrConfiguration, hotelID)
	}
	return creds, nil
}

func (c *Client) doRequest(ctx context.Context, creds *hotelstore.ChatwootCredentials, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, creds.BaseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api_access_token", creds.AccessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("chatwoot API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
