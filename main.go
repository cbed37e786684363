package main

import (
	"context"
	"log"

	"reportserver/internal/config"
	"reportserver/internal/logging"
	"reportserver/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("ロガーの作成に失敗しました: %v", err)
	}

	// サーバーを作成
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("サーバーの作成に失敗しました")
	}

	// サーバーを起動
	if err := srv.Start(context.Background()); err != nil {
		logger.WithError(err).Fatal("サーバーの起動に失敗しました")
	}
}
