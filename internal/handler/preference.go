package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/nudge/internal/auth"
	"github.com/dukerupert/nudge/internal/preference"
)

type PreferenceHandler struct {
	resolver *preference.Resolver
	logger   *slog.Logger
}

func NewPreferenceHandler(resolver *preference.Resolver, logger *slog.Logger) *PreferenceHandler {
	return &PreferenceHandler{resolver: resolver, logger: logger}
}

// Get handles GET /api/preferences
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.resolver.Preferences(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// Update handles PATCH /api/preferences
func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch preference.Patch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	prefs, err := h.resolver.Update(auth.UserID(r.Context()), patch)
	if errors.Is(err, preference.ErrInvalid) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("update preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
