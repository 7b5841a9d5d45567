// Package messaging delivers text messages through an HTTP messaging gateway
// (WhatsApp-style) keyed by API token and sender device.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dukerupert/nudge/internal/delivery"
	"github.com/dukerupert/nudge/internal/model"
)

const channel = string(model.ChannelMessaging)

// Config holds gateway configuration.
type Config struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	Timeout  time.Duration
}

// Client posts templated messages to the gateway.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the gateway URL and API key are set.
func (c *Client) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

// DeviceID returns the default sender device.
func (c *Client) DeviceID() string {
	return c.cfg.DeviceID
}

type sendRequest struct {
	DeviceID string `json:"deviceId"`
	To       string `json:"to"`
	Message  string `json:"message"`
}

type sendResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Deliver sends renderedText to phoneNumber from deviceID. An empty deviceID
// uses the configured default. It never panics: every failure is an outcome.
func (c *Client) Deliver(ctx context.Context, deviceID, phoneNumber, renderedText string) delivery.Outcome {
	if !c.Configured() {
		return delivery.Failed(delivery.Configuration(channel, errors.New("messaging gateway not configured: missing URL or API key")))
	}
	if deviceID == "" {
		deviceID = c.cfg.DeviceID
	}
	if deviceID == "" {
		return delivery.Failed(delivery.Configuration(channel, errors.New("messaging gateway device id not configured")))
	}
	if phoneNumber == "" {
		return delivery.Skipped()
	}

	body, err := json.Marshal(sendRequest{DeviceID: deviceID, To: phoneNumber, Message: renderedText})
	if err != nil {
		return delivery.Failed(delivery.Transient(channel, fmt.Errorf("marshal message: %w", err)))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return delivery.Failed(delivery.Configuration(channel, fmt.Errorf("create request: %w", err)))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return delivery.Failed(delivery.Transient(channel, fmt.Errorf("gateway request: %w", err)))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return delivery.Failed(delivery.Transient(channel, fmt.Errorf("read gateway response: %w", err)))
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return delivery.Failed(delivery.Configuration(channel, fmt.Errorf("gateway rejected API key: status %d", resp.StatusCode)))
	}

	var sr sendResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return delivery.Failed(delivery.Transient(channel, fmt.Errorf("decode gateway response (status %d): %w", resp.StatusCode, err)))
	}
	if !sr.Success {
		reason := sr.Message
		if reason == "" {
			reason = sr.Error
		}
		return delivery.Failed(delivery.Transient(channel, fmt.Errorf("gateway returned failure (status %d): %s", resp.StatusCode, reason)))
	}

	return delivery.OK()
}
