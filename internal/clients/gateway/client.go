// Package gateway sends offers, voice calls and notices through the messaging provider's HTTP API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shiftfill/outreach/internal/entities"
	"golang.org/x/time/rate"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %v, body: %v", e.StatusCode, e.Body)
}

type messageRequest struct {
	To         string            `json:"to"`
	Body       string            `json:"body"`
	Params     map[string]string `json:"params,omitempty"`
	Reference  string            `json:"reference"`
	CampaignID string            `json:"campaign_id"`
	OpeningID  string            `json:"opening_id"`
}

type Client struct {
	baseURL     string
	apiKey      string
	httpClient  HTTPClient
	rateLimiter *rate.Limiter
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) SetHTTPClient(client HTTPClient) {
	c.httpClient = client
}

func (c *Client) SetRateLimit(maxRequestsPerSecond float64) {
	c.rateLimiter = rate.NewLimiter(rate.Limit(maxRequestsPerSecond), 1)
}

// Send delivers one outbound message. SMS go to /v1/messages and voice offers to /v1/calls.
func (c *Client) Send(ctx context.Context, msg entities.OutboundMessage) error {
	if msg.To == "" {
		return fmt.Errorf("no phone number for candidate %s", msg.CandidateID)
	}

	path := "/v1/messages"
	if msg.Channel == entities.ChannelVoice {
		path = "/v1/calls"
	}

	payload, err := json.Marshal(messageRequest{
		To:         msg.To,
		Body:       msg.Body,
		Params:     msg.Params,
		Reference:  reference(msg),
		CampaignID: msg.CampaignID,
		OpeningID:  msg.OpeningID,
	})
	if err != nil {
		return fmt.Errorf("error encoding request: %w", err)
	}

	_, err = c.sendRequest(ctx, http.MethodPost, c.baseURL+path, reference(msg), bytes.NewReader(payload))
	return err
}

// reference is stable per (campaign, candidate, channel, kind) so the provider can drop retried duplicates.
func reference(msg entities.OutboundMessage) string {
	return strings.Join([]string{msg.CampaignID, msg.CandidateID, string(msg.Channel), string(msg.Kind)}, ":")
}

func (c *Client) sendRequest(ctx context.Context, method string, url string, idempotencyKey string,
	body io.Reader) ([]byte, error) {

	if c.rateLimiter != nil {
		err := c.rateLimiter.Wait(ctx)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp)
}

func (c *Client) handleResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
