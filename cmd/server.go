// Package main はレポートサーバーコマンドの実装です
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reportserver/internal/config"
	"reportserver/internal/logging"
	"reportserver/internal/server"
)

// options はコマンドラインオプション
type options struct {
	configFile string
	host       string
	port       int
	dir        string
	logLevel   string
}

// overrides は指定されたオプションを設定の上書きに変換する
func (o *options) overrides() []config.Override {
	var out []config.Override
	if o.host != "" {
		out = append(out, func(c *config.Config) { c.Server.Host = o.host })
	}
	if o.port != 0 {
		out = append(out, func(c *config.Config) { c.Server.Port = o.port })
	}
	if o.dir != "" {
		out = append(out, func(c *config.Config) { c.Report.Dir = o.dir })
	}
	if o.logLevel != "" {
		out = append(out, func(c *config.Config) { c.Log.Level = o.logLevel })
	}
	return out
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Allure レポートを配信する HTTP サーバー",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", os.Getenv(config.EnvConfigFile), "YAML 設定ファイル")
	flags.StringVar(&opts.host, "host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
	flags.IntVar(&opts.port, "port", 0, "サーバーのポート (デフォルト: 5050)")
	flags.StringVar(&opts.dir, "dir", "", "レポートディレクトリ (デフォルト: allure-report)")
	flags.StringVar(&opts.logLevel, "log-level", "", "ログレベル (デフォルト: info)")

	return cmd
}

// run は設定を組み立ててサーバーを起動する
func run(ctx context.Context, opts *options) error {
	// 設定を読み込む（コマンドラインオプションで上書き）
	cfg, err := config.LoadFile(opts.configFile, opts.overrides()...)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("サーバーの作成に失敗しました: %w", err)
	}

	logger.Infof("レポートサーバーを起動します: %s", cfg.ServerAddress())
	return srv.Start(ctx)
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
