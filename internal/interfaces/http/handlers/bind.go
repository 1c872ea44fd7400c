package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainerrors "keystock.backend/internal/domain/errors"
	"keystock.backend/internal/interfaces/http/response"
	"keystock.backend/pkg/logger"
)

const invalidBodyMessage = "invalid request body"

// bindBody decodes the JSON body into dst and writes a 400 on failure. An
// empty body is accepted when optional is set. Decoder details are logged,
// never returned to the client.
func bindBody(c *gin.Context, dst interface{}, optional bool) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	logger.Warn(c.Request.Context(), "Rejected request body",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	response.Error(c, domainerrors.BadRequest(invalidBodyMessage))
	return false
}
