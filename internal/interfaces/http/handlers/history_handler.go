package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"keystock.backend/internal/interfaces/http/response"
	"keystock.backend/internal/usecases"
)

type HistoryHandler struct {
	history *usecases.HistoryUsecase
}

func NewHistoryHandler(history *usecases.HistoryUsecase) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// GlobalHistory returns every key event, oldest first.
// GET /history
func (h *HistoryHandler) GlobalHistory(c *gin.Context) {
	entries, err := h.history.GlobalHistory(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entries)
}

// Stats returns activation counts per day and per ISO week.
// GET /stats
func (h *HistoryHandler) Stats(c *gin.Context) {
	stats, err := h.history.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}
