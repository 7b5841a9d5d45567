package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/nudge/internal/auth"
	"github.com/dukerupert/nudge/internal/delivery"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/notify"
	"github.com/dukerupert/nudge/internal/store"
)

// TestSender delivers the test push for POST /api/push/test.
type TestSender interface {
	SendTest(ctx context.Context, userID int64) (*notify.Result, error)
}

type PushHandler struct {
	pushStore      *store.PushStore
	vapidPublicKey string
	sender         TestSender
	logger         *slog.Logger
}

func NewPushHandler(ps *store.PushStore, vapidPublicKey string, sender TestSender, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, vapidPublicKey: vapidPublicKey, sender: sender, logger: logger}
}

// subscribeRequest accepts both the flat form and the browser's
// PushSubscription.toJSON() shape with nested keys.
type subscribeRequest struct {
	Endpoint    string `json:"endpoint"`
	P256dh      string `json:"p256dh"`
	Auth        string `json:"auth"`
	DeviceLabel string `json:"device_label"`
	Keys        struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.P256dh == "" {
		req.P256dh = req.Keys.P256dh
	}
	if req.Auth == "" {
		req.Auth = req.Keys.Auth
	}

	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}

	sub, err := h.pushStore.Register(userID, req.Endpoint, req.P256dh, req.Auth, req.DeviceLabel)
	if errors.Is(err, store.ErrEndpointOwned) {
		h.logger.Warn("push endpoint owned by another user", "user_id", userID, "endpoint_hash", store.EndpointHash(req.Endpoint))
		writeError(w, http.StatusConflict, "subscription belongs to another user")
		return
	}
	if err != nil {
		h.logger.Error("register push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	ok, err := h.pushStore.DeactivateForUser(id, userID)
	if err != nil {
		h.logger.Error("deactivate push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.vapidPublicKey == "" {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.vapidPublicKey})
}

// TestNotification handles POST /api/push/test
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	res, err := h.sender.SendTest(r.Context(), userID)
	if errors.Is(err, notify.ErrUnknownUser) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("test push send", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send test notification")
		return
	}

	resp := map[string]any{"sent": false, "status": delivery.StatusBlocked.String()}
	if res.Created() {
		out := res.Outcomes[model.ChannelPush]
		resp["notification_id"] = res.Notification.ID
		resp["sent"] = out.OK()
		resp["status"] = out.Status.String()
		if out.Err != nil {
			resp["error"] = out.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
