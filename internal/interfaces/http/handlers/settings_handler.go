package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"keystock.backend/internal/interfaces/http/response"
	"keystock.backend/internal/usecases"
)

type SettingsHandler struct {
	settings *usecases.SettingsUsecase
}

func NewSettingsHandler(settings *usecases.SettingsUsecase) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetSettings returns the low-stock notification config.
// GET /telegram/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	cfg, err := h.settings.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, cfg)
}

// UpdateSettings applies a partial config update.
// PUT /telegram/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var input usecases.SettingsInput
	if !bindBody(c, &input, false) {
		return
	}

	cfg, err := h.settings.Update(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, cfg)
}
