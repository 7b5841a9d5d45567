package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/nudge/internal/auth"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/store"
	ws "github.com/dukerupert/nudge/internal/websocket"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type NotificationHandler struct {
	store  *store.NotificationStore
	hub    *ws.Hub
	logger *slog.Logger
}

func NewNotificationHandler(s *store.NotificationStore, hub *ws.Hub, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{store: s, hub: hub, logger: logger}
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	q := r.URL.Query()
	f := store.NotificationFilter{
		UnreadOnly:     q.Get("unread") == "true",
		IncludeExpired: q.Get("include_expired") == "true",
		Limit:          defaultListLimit,
	}
	if c := q.Get("category"); c != "" {
		cat := model.Category(c)
		if !cat.Valid() {
			writeError(w, http.StatusBadRequest, "unknown category")
			return
		}
		f.Category = cat
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = min(n, maxListLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		f.Offset = n
	}

	notifications, err := h.store.List(userID, f)
	if err != nil {
		h.logger.Error("list notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

// UnreadCount handles GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.UnreadCount(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("count unread notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	ok, err := h.store.MarkRead(id, userID)
	if err != nil {
		h.logger.Error("mark notification read", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}

	if h.hub != nil {
		h.hub.Publish(userID, ws.NewMessage("notification", "read", id, nil))
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	n, err := h.store.MarkAllRead(userID)
	if err != nil {
		h.logger.Error("mark all notifications read", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to mark notifications read")
		return
	}

	if h.hub != nil && n > 0 {
		h.hub.Publish(userID, ws.NewMessage("notification", "read_all", 0, map[string]int64{"updated": n}))
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
