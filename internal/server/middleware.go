package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HeaderRequestID はリクエストIDを運ぶヘッダー
const HeaderRequestID = "X-Request-ID"

const requestIDKey = "request_id"

// requestID はリクエストIDを付与するミドルウェア
// クライアントが指定した値があればそれを使う
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// accessLog はリクエストごとに1行のログを出力するミドルウェア
func accessLog(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"bytes":      c.Writer.Size(),
			"duration":   time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("リクエスト")
		case status >= http.StatusBadRequest:
			entry.Warn("リクエスト")
		default:
			entry.Info("リクエスト")
		}
	}
}

// recovery はパニックをログに記録して 500 を返すミドルウェア
func recovery(log *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, err any) {
		log.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"panic":      err,
		}).Error("ハンドラでパニックが発生しました")
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}
