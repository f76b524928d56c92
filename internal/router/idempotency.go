package router

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/blues/cfl/internal/cache"
	"github.com/blues/cfl/internal/handler"
	"github.com/blues/cfl/internal/logger"
	"github.com/gin-gonic/gin"
)

const (
	// IdempotencyHeader 客户端提供的幂等键
	IdempotencyHeader = "Idempotency-Key"
	// ReplayedHeader 标记重放的响应
	ReplayedHeader = "Idempotent-Replayed"
)

// IdempotencyStore 幂等存储，*cache.IdempotencyStore 实现
type IdempotencyStore interface {
	Reserve(ctx context.Context, key, fingerprint string) (bool, error)
	Get(ctx context.Context, key string) (*cache.IdempotencyRecord, error)
	Complete(ctx context.Context, key, fingerprint string, resp cache.StoredResponse) error
	Release(ctx context.Context, key string) error
}

// captureWriter 记录响应体以便保存
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idempotencyMiddleware 带 Idempotency-Key 的 POST 请求只执行一次，重复请求重放首次响应。
// 5xx 响应不保存，客户端可以用同一个键重试。
func idempotencyMiddleware(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if c.Request.Method != http.MethodPost || key == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			handler.ErrorResponse(c, http.StatusBadRequest, "读取请求体失败")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		fingerprint := requestFingerprint(c, body)

		ctx := c.Request.Context()
		reserved, err := store.Reserve(ctx, key, fingerprint)
		if err != nil {
			logger.Error("Idempotency reserve failed for key %s: %v", key, err)
			handler.ErrorResponse(c, http.StatusServiceUnavailable, "幂等存储不可用")
			c.Abort()
			return
		}
		if !reserved {
			replay(c, store, key, fingerprint)
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
				logger.Warn("Idempotency release failed for key %s: %v", key, err)
			}
			return
		}
		err = store.Complete(context.WithoutCancel(ctx), key, fingerprint, cache.StoredResponse{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		})
		if err != nil {
			logger.Error("Idempotency complete failed for key %s: %v", key, err)
		}
	}
}

// replay 处理重复的幂等键
func replay(c *gin.Context, store IdempotencyStore, key, fingerprint string) {
	defer c.Abort()

	rec, err := store.Get(c.Request.Context(), key)
	switch {
	case err != nil:
		logger.Error("Idempotency lookup failed for key %s: %v", key, err)
		handler.ErrorResponse(c, http.StatusServiceUnavailable, "幂等存储不可用")
	case rec == nil:
		handler.ErrorResponse(c, http.StatusConflict, "幂等键已过期，请重试")
	case rec.Fingerprint != fingerprint:
		handler.ErrorResponse(c, http.StatusUnprocessableEntity, "幂等键已用于其他请求")
	case rec.State != cache.StateCompleted || rec.Response == nil:
		handler.ErrorResponse(c, http.StatusConflict, "相同请求正在处理中")
	default:
		c.Header(ReplayedHeader, "true")
		c.Data(rec.Response.Status, rec.Response.ContentType, rec.Response.Body)
	}
}

// requestFingerprint 方法、路径、调用方与请求体的摘要
func requestFingerprint(c *gin.Context, body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.Request.Method))
	h.Write([]byte{0})
	h.Write([]byte(c.Request.URL.Path))
	h.Write([]byte{0})
	h.Write([]byte(c.GetHeader(handler.CallerHeader)))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
