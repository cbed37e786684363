// Package logging はアプリケーションのロガーを組み立てます。
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"reportserver/internal/config"
)

// New はログ設定からロガーを作成する
// 出力先は標準エラー出力
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter は出力先を指定してロガーを作成する
func NewWithWriter(cfg config.LogConfig, w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("無効なログレベル: %w", err)
	}

	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("無効なログ形式: %q", cfg.Format)
	}

	return log, nil
}
