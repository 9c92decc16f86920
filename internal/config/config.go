// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ジョブ保存先
const (
	JobStoreSQL   = "sql"
	JobStoreRedis = "redis"
)

// ファイル保存先
const (
	StorageLocal = "local"
	StorageMinIO = "minio"
)

// 受付制限の上限（これを超える値は設定できない）
const (
	maxFilesLimit    = 3
	maxFileSizeLimit = 10 << 20
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ジョブ保存先
	JobStore          string        // sql または redis
	DBDriver          string        // sqlite または postgres
	DBURL             string        // DSN（sqlite はファイルパス）
	DBMaxConns        int32         // PostgreSQL 接続プールの最大数
	DBMinConns        int32         // PostgreSQL 接続プールの最小数
	DBMaxConnLifetime time.Duration // 接続の最大寿命
	DBMaxConnIdleTime time.Duration // 接続の最大アイドル時間
	DBDialTimeout     time.Duration // 接続確立のタイムアウト
	RedisURL          string        // JOB_STORE=redis のときの接続URL
	JobRetentionHours int           // Redis 保存時の保持時間（0 は無期限）

	// ファイル保存先
	StorageBackend string // local または minio
	UploadDir      string // local のルートディレクトリ
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
	MinIOPrefix    string // オブジェクトキーの接頭辞

	// 受付制限
	MaxFileSize int64    // 単一ファイルの最大サイズ（バイト）
	MaxFiles    int      // 1ジョブあたりの最大ファイル数
	Printers    []string // 受け付けるプリンタ識別子

	// ページ数算出
	PDFExactCount bool // pdfcpu による厳密なページ数算出を使うか

	// キュー設定
	QueueRedisURL string // 受付通知用 Asynq の Redis 接続URL（空なら通知しない）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// ジョブ保存先
		JobStore:          strings.ToLower(getEnv("JOB_STORE", JobStoreSQL)),
		DBDriver:          strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBURL:             getEnv("DB_URL", "smart-printer.db"),
		DBMaxConns:        int32(getEnvAsInt("DB_MAX_CONNS", 10)),
		DBMinConns:        int32(getEnvAsInt("DB_MIN_CONNS", 1)),
		DBMaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Hour),
		DBMaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 10*time.Minute),
		DBDialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 5*time.Second),
		RedisURL:          getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		JobRetentionHours: getEnvAsInt("JOB_RETENTION_HOURS", 0),

		// ファイル保存先
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal)),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:    getEnv("MINIO_BUCKET", "print-uploads"),
		MinIOUseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		MinIOPrefix:    getEnv("MINIO_PREFIX", ""),

		// 受付制限
		MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10485760), // 10MB
		MaxFiles:    getEnvAsInt("MAX_FILES", 3),
		Printers:    getEnvAsList("PRINTERS", []string{"printer-1", "printer-2", "printer-3"}),

		// ページ数算出
		PDFExactCount: getEnvAsBool("PDF_EXACT_COUNT", true),

		// キュー設定
		QueueRedisURL: getEnv("QUEUE_REDIS_URL", ""),
	}

	// 設定値の組み合わせを検証
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
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
	switch c.JobStore {
	case JobStoreSQL:
		switch c.DBDriver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("DB_DRIVER must be sqlite or postgres: %q", c.DBDriver)
		}
		if c.DBURL == "" {
			return fmt.Errorf("DB_URL is required")
		}
	case JobStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when JOB_STORE=redis")
		}
	default:
		return fmt.Errorf("JOB_STORE must be sql or redis: %q", c.JobStore)
	}

	switch c.StorageBackend {
	case StorageLocal:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required when STORAGE_BACKEND=local")
		}
	case StorageMinIO:
		if c.MinIOEndpoint == "" || c.MinIOBucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET are required when STORAGE_BACKEND=minio")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be local or minio: %q", c.StorageBackend)
	}

	if c.MaxFileSize <= 0 || c.MaxFileSize > maxFileSizeLimit {
		return fmt.Errorf("MAX_FILE_SIZE must be between 1 and %d: %d", maxFileSizeLimit, c.MaxFileSize)
	}
	if c.MaxFiles <= 0 || c.MaxFiles > maxFilesLimit {
		return fmt.Errorf("MAX_FILES must be between 1 and %d: %d", maxFilesLimit, c.MaxFiles)
	}
	if len(c.Printers) == 0 {
		return fmt.Errorf("PRINTERS must list at least one printer")
	}

	// 本番環境では通知先を必須にする
	if c.GinMode == "release" && c.QueueRedisURL == "" {
		return fmt.Errorf("QUEUE_REDIS_URL is required in release mode")
	}

	return nil
}

// JobRetention は Redis 保存時の保持期間です。
func (c *Config) JobRetention() time.Duration {
	if c.JobRetentionHours <= 0 {
		return 0
	}
	return time.Duration(c.JobRetentionHours) * time.Hour
}

// AllowedOrigins は CORS 許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList はカンマ区切りの環境変数を配列として取得します。
func getEnvAsList(key string, defaultValue []string) []string {
	values := splitList(os.Getenv(key))
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
