// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port            string        // APIサーバーのポート番号
	GinMode         string        // Ginの実行モード (debug, release, test)
	ShutdownTimeout time.Duration // グレースフルシャットダウンの待ち時間

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り、* で全許可）

	// ジョブ/キュー設定
	QueueCapacity      int           // キューに保持できる未処理ジョブ数
	QueueBlockWhenFull bool          // 満杯時に空きを待つか（false ならすぐ 503）
	ProgressCapacity   int           // 進捗を追跡するジョブIDの上限
	SupervisorInterval time.Duration // ワーカー生存確認の間隔
	JobTimeout         time.Duration // 1ジョブあたりの実行期限（0 で無効）
	SumDelay           time.Duration // 加算ジョブの処理時間

	// 投入レート制限
	SubmitRateLimit float64 // POST /sum の秒間許可数（0 で無効）
	SubmitRateBurst int     // バースト許容数

	// ログ設定
	LogDir           string // ログ出力ディレクトリ
	LogFile          string // ログファイル名（日付が付与されます）
	LogRetentionDays int    // ログの保持日数
	LogLevel         string // ログレベル
	LogFormat        string // text または json
	LogOutput        string // file または stdout

	// メトリクス
	MetricsEnabled bool // /metrics を公開するか
}

var defaults = map[string]any{
	"PORT":                  "8000",
	"GIN_MODE":              "release",
	"SHUTDOWN_TIMEOUT":      "10s",
	"CORS_ALLOWED_ORIGINS":  "*",
	"QUEUE_CAPACITY":        10000,
	"QUEUE_BLOCK_WHEN_FULL": true,
	"PROGRESS_CAPACITY":     1000,
	"SUPERVISOR_INTERVAL":   "10s",
	"JOB_TIMEOUT":           "0s",
	"SUM_DELAY":             "9s",
	"SUBMIT_RATE_LIMIT":     0.0,
	"SUBMIT_RATE_BURST":     20,
	"LOG_DIR":               "logs",
	"LOG_FILE":              "maths.log",
	"LOG_RETENTION_DAYS":    7,
	"LOG_LEVEL":             "info",
	"LOG_FORMAT":            "text",
	"LOG_OUTPUT":            "file",
	"METRICS_ENABLED":       true,
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()
	return FromViper(newViper())
}

// FromViper は与えられた viper インスタンスから設定を組み立てます。
func FromViper(v *viper.Viper) (*Config, error) {
	config := &Config{
		Port:            v.GetString("PORT"),
		GinMode:         v.GetString("GIN_MODE"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),

		CORSAllowedOrigins: v.GetString("CORS_ALLOWED_ORIGINS"),

		QueueCapacity:      v.GetInt("QUEUE_CAPACITY"),
		QueueBlockWhenFull: v.GetBool("QUEUE_BLOCK_WHEN_FULL"),
		ProgressCapacity:   v.GetInt("PROGRESS_CAPACITY"),
		SupervisorInterval: v.GetDuration("SUPERVISOR_INTERVAL"),
		JobTimeout:         v.GetDuration("JOB_TIMEOUT"),
		SumDelay:           v.GetDuration("SUM_DELAY"),

		SubmitRateLimit: v.GetFloat64("SUBMIT_RATE_LIMIT"),
		SubmitRateBurst: v.GetInt("SUBMIT_RATE_BURST"),

		LogDir:           v.GetString("LOG_DIR"),
		LogFile:          v.GetString("LOG_FILE"),
		LogRetentionDays: v.GetInt("LOG_RETENTION_DAYS"),
		LogLevel:         strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:        strings.ToLower(v.GetString("LOG_FORMAT")),
		LogOutput:        strings.ToLower(v.GetString("LOG_OUTPUT")),

		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Default は環境変数を参照せず既定値だけで設定を返します。テストで利用します。
func Default() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	cfg, err := FromViper(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("QUEUE_CAPACITY must be positive, got %d", c.QueueCapacity)
	}
	if c.ProgressCapacity <= 0 {
		return fmt.Errorf("PROGRESS_CAPACITY must be positive, got %d", c.ProgressCapacity)
	}
	if c.SupervisorInterval <= 0 {
		return fmt.Errorf("SUPERVISOR_INTERVAL must be positive, got %s", c.SupervisorInterval)
	}
	if c.JobTimeout < 0 {
		return fmt.Errorf("JOB_TIMEOUT must not be negative, got %s", c.JobTimeout)
	}
	if c.SumDelay < 0 {
		return fmt.Errorf("SUM_DELAY must not be negative, got %s", c.SumDelay)
	}
	if c.SubmitRateLimit < 0 {
		return fmt.Errorf("SUBMIT_RATE_LIMIT must not be negative")
	}
	if c.SubmitRateLimit > 0 && c.SubmitRateBurst <= 0 {
		return fmt.Errorf("SUBMIT_RATE_BURST must be positive when rate limiting is enabled")
	}
	if c.LogRetentionDays < 0 {
		return fmt.Errorf("LOG_RETENTION_DAYS must not be negative")
	}
	switch c.LogOutput {
	case "file", "stdout":
	default:
		return fmt.Errorf("LOG_OUTPUT must be file or stdout, got %q", c.LogOutput)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// AllowedOrigins は CORS_ALLOWED_ORIGINS を配列に変換します。
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
