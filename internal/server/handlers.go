package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reportserver/internal/report"
)

// ErrorResponse はエラー時のレスポンスボディ
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// handleIndex はルートパスのハンドラ
func (s *Server) handleIndex(c *gin.Context) {
	s.serveAsset(c, "/")
}

// handleFile はレポートルート配下のファイルを返すハンドラ
func (s *Server) handleFile(c *gin.Context) {
	if m := c.Request.Method; m != http.MethodGet && m != http.MethodHead {
		c.Header("Allow", "GET, HEAD")
		writeError(c, http.StatusMethodNotAllowed, "method_not_allowed", "このメソッドは使用できません")
		return
	}

	s.serveAsset(c, c.Request.URL.Path)
}

// serveAsset はファイルを解決して配信する
func (s *Server) serveAsset(c *gin.Context, urlPath string) {
	asset, err := s.responder.Open(urlPath)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrTraversal):
			// ルート外へのアクセスは存在しないファイルと区別しない
			s.log.WithField("request_id", c.GetString(requestIDKey)).
				WithField("path", urlPath).
				Warn("レポートルート外へのアクセスを拒否しました")
			writeError(c, http.StatusNotFound, "not_found", "指定されたファイルが見つかりません")
		case errors.Is(err, report.ErrNotFound):
			writeError(c, http.StatusNotFound, "not_found", "指定されたファイルが見つかりません")
		default:
			s.log.WithError(err).WithField("path", urlPath).Error("ファイルの読み込みに失敗しました")
			writeError(c, http.StatusInternalServerError, "internal_error", "ファイルを読み込めませんでした")
		}
		return
	}
	defer asset.Close()

	c.Header("Content-Type", asset.ContentType)
	http.ServeContent(c.Writer, c.Request, asset.Name, asset.ModTime, asset)
}

// writeError はエラーレスポンスを書き込む
func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	})
}
