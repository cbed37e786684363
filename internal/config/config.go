package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// 環境変数名
const (
	EnvHost       = "SERVER_HOST"
	EnvPort       = "PORT"
	EnvReportDir  = "REPORT_DIR"
	EnvLogLevel   = "LOG_LEVEL"
	EnvLogFormat  = "LOG_FORMAT"
	EnvConfigFile = "REPORT_SERVER_CONFIG"
)

// 既定値
const (
	DefaultHost      = "0.0.0.0"
	DefaultPort      = 5050
	DefaultReportDir = "allure-report"
	DefaultIndexFile = "index.html"
)

var (
	// ErrInvalidPort はポート番号が整数でないか範囲外の場合に返される
	ErrInvalidPort = errors.New("無効なポート番号")
	// ErrReportRoot はレポートディレクトリが利用できない場合に返される
	ErrReportRoot = errors.New("レポートディレクトリを利用できません")
)

// Config はアプリケーション全体の設定を保持する構造体
// Load が返した後は変更しない
type Config struct {
	Server ServerConfig `yaml:"server"`
	Report ReportConfig `yaml:"report"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // 読み込みタイムアウト
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // 書き込みタイムアウト
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // シャットダウン待ち時間
}

// ReportConfig は配信するレポートディレクトリの設定
type ReportConfig struct {
	Dir       string `yaml:"dir"`        // 作業ディレクトリからの相対パスも可
	IndexFile string `yaml:"index_file"` // "/" で返すファイル

	// Root は Dir を絶対パスに解決したもの
	Root string `yaml:"-"`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level"`  // logrus のレベル名
	Format string `yaml:"format"` // text または json
}

// Override は環境変数の後に適用される上書き設定
type Override func(*Config)

// Default は既定値の設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Report: ReportConfig{
			Dir:       DefaultReportDir,
			IndexFile: DefaultIndexFile,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load は設定を読み込む
// 設定ファイルのパスは環境変数 REPORT_SERVER_CONFIG から取得する
func Load(overrides ...Override) (*Config, error) {
	return LoadFile(os.Getenv(EnvConfigFile), overrides...)
}

// LoadFile は既定値、設定ファイル、環境変数、上書き設定の順に適用して設定を組み立てる
// path が空の場合は設定ファイルを読まない
func LoadFile(path string, overrides ...Override) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	for _, o := range overrides {
		o(cfg)
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	if err := cfg.resolveRoot(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
// ファイルシステムは参照しない
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return errors.New("タイムアウトに負の値は指定できません")
	}

	// レポート設定の検証
	if c.Report.Dir == "" {
		return fmt.Errorf("%w: ディレクトリが指定されていません", ErrReportRoot)
	}
	if !filepath.IsLocal(c.Report.IndexFile) {
		return fmt.Errorf("無効なインデックスファイル名: %q", c.Report.IndexFile)
	}

	// ログ設定の検証
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("無効なログレベル: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("無効なログ形式: %q", c.Log.Format)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// applyFile はYAML設定ファイルの内容を適用する
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗: %s: %w", path, err)
	}
	return nil
}

// applyEnv は環境変数の値を適用する
func (c *Config) applyEnv() error {
	c.Server.Host = getEnvOrDefault(EnvHost, c.Server.Host)
	c.Report.Dir = getEnvOrDefault(EnvReportDir, c.Report.Dir)
	c.Log.Level = getEnvOrDefault(EnvLogLevel, c.Log.Level)
	c.Log.Format = getEnvOrDefault(EnvLogFormat, c.Log.Format)

	port, err := getEnvAsIntOrDefault(EnvPort, c.Server.Port)
	if err != nil {
		return err
	}
	c.Server.Port = port

	return nil
}

// resolveRoot はレポートディレクトリを絶対パスに解決し、存在を確認する
func (c *Config) resolveRoot() error {
	root, err := filepath.Abs(c.Report.Dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrReportRoot, c.Report.Dir, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrReportRoot, root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s はディレクトリではありません", ErrReportRoot, root)
	}

	c.Report.Root = root
	return nil
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
// 整数として解釈できない値はエラーにする
func getEnvAsIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: 環境変数 %s=%q は整数ではありません", ErrInvalidPort, key, value)
	}
	return intVal, nil
}
