package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/nudge/internal/delivery"
	"github.com/dukerupert/nudge/internal/model"
)

const channel = string(model.ChannelPush)

// ErrExpired is returned when a push subscription is no longer valid (404/410).
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON sent to the push service.
type Payload struct {
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	URL            string         `json:"url,omitempty"`
	Tag            string         `json:"tag,omitempty"`
	NotificationID int64          `json:"notification_id,omitempty"`
	Category       model.Category `json:"category,omitempty"`
	Priority       model.Priority `json:"-"`
}

// Config holds VAPID configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             time.Duration
	Timeout         time.Duration
}

// Service encrypts and posts payloads to browser push endpoints.
type Service struct {
	cfg        Config
	httpClient *http.Client
}

type Option func(*Service)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.httpClient = c
	}
}

// NewService creates a new push service with VAPID keys.
func NewService(cfg Config, opts ...Option) *Service {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Subscriber == "" {
		cfg.Subscriber = "mailto:noreply@nudge.app"
	}
	s := &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured returns true if both VAPID keys are set.
func (s *Service) Configured() bool {
	return s.cfg.VAPIDPublicKey != "" && s.cfg.VAPIDPrivateKey != ""
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.cfg.VAPIDPublicKey
}

// Deliver encrypts payload with the subscription's keys and posts it to the
// subscription endpoint. 404 and 410 responses are permanent failures; any
// other non-2xx response, network error or encryption failure is transient.
func (s *Service) Deliver(ctx context.Context, sub *model.PushSubscription, payload Payload) delivery.Outcome {
	cfg := s.cfg

	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return delivery.Failed(delivery.Configuration(channel, errors.New("VAPID keys not configured")))
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return delivery.Failed(delivery.Transient(channel, fmt.Errorf("marshal payload: %w", err)))
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      s.httpClient,
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.Subscriber,
		TTL:             int(cfg.TTL.Seconds()),
		Urgency:         urgency(payload.Priority),
	})
	if err != nil {
		return delivery.Failed(delivery.Transient(channel, fmt.Errorf("send push: %w", err)))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return delivery.Failed(delivery.Permanent(channel, fmt.Errorf("%w: status %d", ErrExpired, resp.StatusCode)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return delivery.Failed(delivery.Transient(channel, fmt.Errorf("push service returned %d", resp.StatusCode)))
	}
	return delivery.OK()
}

func urgency(p model.Priority) webpush.Urgency {
	switch p {
	case model.PriorityUrgent, model.PriorityHigh:
		return webpush.UrgencyHigh
	case model.PriorityLow:
		return webpush.UrgencyLow
	}
	return webpush.UrgencyNormal
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate P-256 key: %w", err)
	}

	publicKey = base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes())
	privateKey = base64.RawURLEncoding.EncodeToString(key.Bytes())

	return publicKey, privateKey, nil
}
