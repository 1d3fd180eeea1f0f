package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloudytech/loginguard/internal/models"
	"github.com/cloudytech/loginguard/internal/services"
	pkghttp "github.com/cloudytech/loginguard/pkg/http"
)

// SettingsServiceInterface defines the admin settings operations
type SettingsServiceInterface interface {
	Current(ctx context.Context) models.ProtectionSettings
	Update(ctx context.Context, settings models.ProtectionSettings) error
	ResetSessionTimeout(ctx context.Context, activity services.ActivityStore) error
}

// SettingsHandler exposes the administrative settings API
type SettingsHandler struct {
	service  SettingsServiceInterface
	activity services.ActivityStore
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(service SettingsServiceInterface, activity services.ActivityStore) *SettingsHandler {
	return &SettingsHandler{
		service:  service,
		activity: activity,
	}
}

// GetSettings returns the current protection settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings := h.service.Current(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(settings)
}

// UpdateSettings replaces the protection settings record
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.ProtectionSettings

	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.Update(r.Context(), settings); err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Invalid settings values")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(settings)
}

// ResetSessionTimeout restores the default idle timeout and clears all
// activity records
func (h *SettingsHandler) ResetSessionTimeout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetSessionTimeout(r.Context(), h.activity); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
