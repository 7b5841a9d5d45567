package model

import "time"

// MaxPushFailures is the consecutive failure count at which a subscription is deactivated.
const MaxPushFailures = 5

type PushSubscription struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	Endpoint      string     `json:"endpoint"`
	EndpointHash  string     `json:"endpoint_hash"`
	P256dhKey     string     `json:"p256dh_key"`
	AuthKey       string     `json:"auth_key"`
	DeviceLabel   string     `json:"device_label"`
	IsActive      bool       `json:"is_active"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	FailureCount  int        `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
