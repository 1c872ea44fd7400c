package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"keystock.backend/internal/interfaces/http/response"
	"keystock.backend/pkg/logger"
	"keystock.backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// LockDuration is the time we hold the lock while processing
	LockDuration = 30 * time.Second
	// RetentionDuration is how long we keep the response
	RetentionDuration = 24 * time.Hour

	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"

	processingMarker = "processing"
)

var (
	redisEnabled = redis.Enabled
	redisGet     = redis.Get
	redisSet     = redis.Set
	redisSetNX   = redis.SetNX
	redisDel     = redis.Del
	redisIsMiss  = redis.IsMiss
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// cachedResponse is what a completed request leaves behind in redis
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

func storageKey(c *gin.Context, key string) string {
	return fmt.Sprintf("idempotency:%s:%s:%s", c.Request.Method, c.FullPath(), key)
}

// IdempotencyMiddleware replays the stored response when a request repeats an
// Idempotency-Key. It is a no-op without the header or without redis, and
// falls through when redis errors.
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || !redisEnabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		sk := storageKey(c, key)

		val, err := redisGet(ctx, sk)
		switch {
		case err == nil && val == processingMarker:
			response.ErrorWithError(c, http.StatusConflict, CodeIdempotencyConflict, "request already in progress")
			return
		case err == nil:
			var cached cachedResponse
			if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr != nil {
				logger.Warn(ctx, "Discarding unreadable idempotency entry", zap.String("key", key), zap.Error(jsonErr))
				_ = redisDel(ctx, sk)
				break
			}
			c.Header("X-Idempotency-Hit", "true")
			c.Data(cached.Status, cached.ContentType, []byte(cached.Body))
			c.Abort()
			return
		case !redisIsMiss(err):
			logger.Warn(ctx, "Idempotency cache unavailable", zap.Error(err))
			c.Next()
			return
		}

		locked, err := redisSetNX(ctx, sk, processingMarker, LockDuration)
		if err != nil || !locked {
			response.ErrorWithError(c, http.StatusConflict, CodeIdempotencyConflict, "request already in progress")
			return
		}

		w := &responseWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			_ = redisDel(ctx, sk)
			return
		}

		data, err := json.Marshal(cachedResponse{
			Status:      status,
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        w.body.String(),
		})
		if err == nil {
			err = redisSet(ctx, sk, string(data), RetentionDuration)
		}
		if err != nil {
			logger.Warn(ctx, "Failed to store idempotent response", zap.Error(err))
			_ = redisDel(ctx, sk)
		}
	}
}
