package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tally/backend/internal/infrastructure/cache"
	"github.com/tally/backend/internal/infrastructure/logger"
	"github.com/tally/backend/internal/interfaces/http/dto"
)

const (
	IdempotencyKeyHeader    = "Idempotency-Key"
	IdempotentReplayHeader  = "Idempotent-Replayed"
	MaxIdempotencyKeyLength = 255
)

// Idempotency replays the stored response of an earlier request that carried
// the same Idempotency-Key on the same route. Requests without the header
// pass through untouched. Outcomes a retry could change (5xx, 409, 429) are
// not stored.
func Idempotency(store cache.IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > MaxIdempotencyKeyLength || !printableASCII(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeInvalidInput,
				"Idempotency-Key must be printable and at most 255 characters",
				c.GetString(RequestIDKey),
			))
			return
		}

		ctx := c.Request.Context()
		scoped := c.Request.Method + " " + c.Request.URL.Path + " " + key

		stored, err := store.Begin(ctx, scoped, ttl)
		switch {
		case errors.Is(err, cache.ErrInFlight):
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeIdempotencyInFlight,
				"A request with this Idempotency-Key is still being processed",
				c.GetString(RequestIDKey),
			))
			return
		case err != nil:
			logger.L(ctx).Warn("Idempotency store unavailable, processing without replay protection",
				zap.Error(err))
			c.Next()
			return
		case stored != nil:
			c.Header(IdempotentReplayHeader, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		// The outcome is stored even if the client went away mid-request.
		bg := context.WithoutCancel(ctx)
		completed := false
		defer func() {
			if completed {
				return
			}
			// A panicking handler frees the key before the panic reaches Recovery.
			if err := store.Abort(bg, scoped); err != nil {
				logger.L(ctx).Warn("Failed to release idempotency key", zap.Error(err))
			}
		}()

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()
		completed = true

		status := rec.Status()
		if !replayable(status) {
			if err := store.Abort(bg, scoped); err != nil {
				logger.L(ctx).Warn("Failed to release idempotency key", zap.Error(err))
			}
			return
		}
		resp := cache.Response{
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		}
		if err := store.Finish(bg, scoped, resp, ttl); err != nil {
			logger.L(ctx).Warn("Failed to store idempotent response", zap.Error(err))
		}
	}
}

func replayable(status int) bool {
	switch {
	case status >= http.StatusInternalServerError:
		return false
	case status == http.StatusConflict, status == http.StatusTooManyRequests:
		return false
	default:
		return true
	}
}

type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
