package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/nudge/internal/delivery"
	"github.com/dukerupert/nudge/internal/model"
)

const (
	channel       = string(model.ChannelEmail)
	defaultAPIURL = "https://api.postmarkapp.com/email"
)

// Client sends transactional email through Postmark.
type Client struct {
	serverToken string
	fromEmail   string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL overrides the Postmark endpoint.
func WithAPIURL(url string) Option {
	return func(cl *Client) {
		cl.apiURL = url
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		apiURL:      defaultAPIURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token and sender are set.
func (c *Client) Configured() bool {
	return c.serverToken != "" && c.fromEmail != ""
}

type postmarkEmail struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream"`
}

type postmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

// Deliver sends a plain-text body to emailAddress. The HTML part is the same
// text with line breaks preserved.
func (c *Client) Deliver(ctx context.Context, emailAddress, subject, body string) delivery.Outcome {
	token, from, apiURL := c.serverToken, c.fromEmail, c.apiURL

	if token == "" || from == "" {
		return delivery.Failed(delivery.Configuration(channel, errors.New("email client not configured: missing server token or sender")))
	}
	if emailAddress == "" {
		return delivery.Skipped()
	}

	payload := postmarkEmail{
		From:          from,
		To:            emailAddress,
		Subject:       subject,
		TextBody:      body,
		HtmlBody:      "<p>" + strings.ReplaceAll(html.EscapeString(body), "\n", "<br>") + "</p>",
		MessageStream: "outbound",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return delivery.Failed(delivery.Transient(channel, fmt.Errorf("marshal email: %w", err)))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(data))
	if err != nil {
		return delivery.Failed(delivery.Transient(channel, fmt.Errorf("create request: %w", err)))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return delivery.Failed(delivery.Transient(channel, fmt.Errorf("send email: %w", err)))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return delivery.Failed(delivery.Configuration(channel, errors.New("postmark rejected server token")))
	}
	if resp.StatusCode >= 400 {
		var pr postmarkResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		json.Unmarshal(raw, &pr)
		return delivery.Failed(delivery.Transient(channel,
			fmt.Errorf("postmark API error: status %d code %d: %s", resp.StatusCode, pr.ErrorCode, pr.Message)))
	}

	return delivery.OK()
}
