package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"reportserver/internal/config"
	"reportserver/internal/report"
)

// defaultShutdownTimeout は設定で指定がない場合のシャットダウン待ち時間
const defaultShutdownTimeout = 5 * time.Second

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	log        *logrus.Logger
	responder  *report.Responder
	engine     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
	closeOnce  sync.Once
}

// route はルートテーブルの1エントリ
type route struct {
	method  string
	pattern string
	handler gin.HandlerFunc
}

// New は新しいServerインスタンスを作成する
// レポートルートはこの時点で開く
func New(cfg *config.Config, log *logrus.Logger) (*Server, error) {
	root := cfg.Report.Root
	if root == "" {
		root = cfg.Report.Dir
	}

	responder, err := report.New(root, cfg.Report.IndexFile)
	if err != nil {
		return nil, err
	}

	if log.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:    cfg,
		log:       log,
		responder: responder,
		engine:    gin.New(),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	return s, nil
}

// routes はルートテーブルを返す
// どのルートにも一致しないリクエストは handleFile が処理する
func (s *Server) routes() []route {
	return []route{
		{http.MethodGet, "/", s.handleIndex},
		{http.MethodHead, "/", s.handleIndex},
	}
}

// setupRoutes はミドルウェアとHTTPルートを設定する
func (s *Server) setupRoutes() {
	s.engine.Use(recovery(s.log), requestID(), accessLog(s.log))

	for _, r := range s.routes() {
		s.engine.Handle(r.method, r.pattern, r.handler)
	}
	s.engine.NoRoute(s.handleFile)
}

// Handler はサーバーのHTTPハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Listen は設定されたアドレスでリッスンを開始する
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.config.ServerAddress())
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}
	s.listener = ln
	return nil
}

// Addr はリッスンしているアドレスを返す
// Listen の前は nil
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		s.Close()
		return err
	}
	return s.Serve(ctx)
}

// Serve はコンテキストのキャンセルかシグナルを受けるまでリクエストを処理する
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("Listen が呼ばれていません")
	}

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		s.log.WithFields(logrus.Fields{
			"addr": s.listener.Addr().String(),
			"root": s.responder.Dir(),
		}).Info("HTTPサーバーを起動しています")
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの実行に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.log.Info("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.log.WithField("signal", sig.String()).Info("シグナルを受信しました")
	case err := <-shutdownCh:
		s.Close()
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.log.Info("サーバーをシャットダウンしています...")
	defer s.Close()

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.log.Info("サーバーが正常にシャットダウンされました")
	return nil
}

// Close はレポートルートを解放する
// 何度呼んでもよい
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if err := s.responder.Close(); err != nil {
			s.log.WithError(err).Warn("レポートルートの解放に失敗しました")
		}
	})
}
