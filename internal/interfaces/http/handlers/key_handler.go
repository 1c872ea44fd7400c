package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"keystock.backend/internal/domain/entities"
	"keystock.backend/internal/interfaces/http/response"
	"keystock.backend/internal/usecases"
)

// KeyHandler exposes the key registry. Keys are addressed by their key
// string in the path.
type KeyHandler struct {
	keys    *usecases.KeyUsecase
	history *usecases.HistoryUsecase
}

func NewKeyHandler(keys *usecases.KeyUsecase, history *usecases.HistoryUsecase) *KeyHandler {
	return &KeyHandler{keys: keys, history: history}
}

// CreateKeysRequest accepts a single key or a batch. Fields are decoded
// loosely so a batch with non-string entries still yields its valid keys.
type CreateKeysRequest struct {
	Key  interface{} `json:"key"`
	Keys interface{} `json:"keys"`
}

// candidates prefers the keys array over the single key. Non-string batch
// entries become empty strings, which never pass the key format check.
func (r CreateKeysRequest) candidates() []string {
	if list, ok := r.Keys.([]interface{}); ok {
		out := make([]string, 0, len(list))
		for _, entry := range list {
			s, _ := entry.(string)
			out = append(out, s)
		}
		return out
	}
	if s, ok := r.Key.(string); ok {
		return []string{s}
	}
	return nil
}

// MarkInUseRequest is the optional body of PUT /keys/:key/inuse
type MarkInUseRequest struct {
	AssignedTo *string `json:"assignedTo"`
}

// ListKeys returns keys filtered by the optional inUse and assignedTo query.
// GET /keys
func (h *KeyHandler) ListKeys(c *gin.Context) {
	var filter entities.KeyFilter
	if raw, ok := c.GetQuery("inUse"); ok {
		inUse := strings.EqualFold(raw, "true")
		filter.InUse = &inUse
	}
	if assignedTo, ok := c.GetQuery("assignedTo"); ok {
		filter.AssignedTo = &assignedTo
	}

	items, err := h.keys.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// CreateKeys adds one or many keys.
// POST /keys
func (h *KeyHandler) CreateKeys(c *gin.Context) {
	var input CreateKeysRequest
	if !bindBody(c, &input, true) {
		return
	}

	created, err := h.keys.Create(c.Request.Context(), input.candidates())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, created)
}

// AcquireFree hands out the oldest free key as plain text without claiming it.
// GET /keys/free
func (h *KeyHandler) AcquireFree(c *gin.Context) {
	key, err := h.keys.AcquireFree(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Text(c, http.StatusOK, key.Key)
}

// ListFree returns keys that are not in use.
// GET /keys/free/list
func (h *KeyHandler) ListFree(c *gin.Context) {
	items, err := h.keys.ListFree(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// ListActive returns keys that are in use.
// GET /keys/active/list
func (h *KeyHandler) ListActive(c *gin.Context) {
	items, err := h.keys.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Summary returns key counts by state.
// GET /keys/summary
func (h *KeyHandler) Summary(c *gin.Context) {
	summary, err := h.history.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// MarkInUse claims a key.
// PUT /keys/:key/inuse
func (h *KeyHandler) MarkInUse(c *gin.Context) {
	var input MarkInUseRequest
	if !bindBody(c, &input, true) {
		return
	}
	assignedTo := ""
	if input.AssignedTo != nil {
		assignedTo = *input.AssignedTo
	}

	key, err := h.keys.MarkInUse(c.Request.Context(), c.Param("key"), assignedTo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, key)
}

// Release frees a key.
// PUT /keys/:key/release
func (h *KeyHandler) Release(c *gin.Context) {
	key, err := h.keys.Release(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, key)
}

// Invalidate excludes a key from acquisition for good.
// PUT /keys/:key/invalidate
func (h *KeyHandler) Invalidate(c *gin.Context) {
	key, err := h.keys.Invalidate(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, key)
}

// DeleteKey removes a key and its history.
// DELETE /keys/:key
func (h *KeyHandler) DeleteKey(c *gin.Context) {
	if err := h.keys.Delete(c.Request.Context(), c.Param("key")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"success": true})
}

// History returns one key's events.
// GET /keys/:key/history
func (h *KeyHandler) History(c *gin.Context) {
	events, err := h.keys.History(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, events)
}
