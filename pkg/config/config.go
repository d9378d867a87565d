package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// ドキュメントの入出力設定
	Documents DocumentsConfig

	// OCR設定
	OCR OCRConfig

	// ワーカー設定
	Worker WorkerConfig

	// 通知メール設定
	Mail MailConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DocumentsConfig はドキュメントの配置設定
type DocumentsConfig struct {
	InputRoot  string // 未処理ドキュメントのルートディレクトリ
	OutputRoot string // 成果物のルートディレクトリ
	WorkDir    string // 処理中の一時ファイル置き場
}

// OCRConfig は OCR 実行の設定
type OCRConfig struct {
	Binary   string
	Language string
}

// WorkerConfig はワーカーループの設定
type WorkerConfig struct {
	// ID はワーカーを識別する安定した文字列です。
	// 未指定の場合はプロセスごとにランダムな UUID を割り当てます
	ID string
	// SampleSize は claim 候補として取得する pending の件数です
	SampleSize int
	// IdleLimit は claim 失敗を連続何回まで許容するかです
	IdleLimit int
	// StaleThreshold は claimed をクラッシュとみなす経過時間です
	StaleThreshold time.Duration
}

// MailConfig は進捗通知メールの設定
type MailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "ocrspot"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "ocrspot"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Documents: DocumentsConfig{
			InputRoot:  getEnv("DOCS_INPUT_ROOT", "/var/lib/ocrspot/input"),
			OutputRoot: getEnv("DOCS_OUTPUT_ROOT", "/var/lib/ocrspot/output"),
			WorkDir:    getEnv("DOCS_WORK_DIR", os.TempDir()),
		},
		OCR: OCRConfig{
			Binary:   getEnv("OCR_BINARY", "ocrmypdf"),
			Language: getEnv("OCR_LANGUAGE", "jpn+eng"),
		},
		Worker: WorkerConfig{
			ID:             getEnv("WORKER_ID", ""),
			SampleSize:     getEnvAsInt("WORKER_SAMPLE_SIZE", 32),
			IdleLimit:      getEnvAsInt("WORKER_IDLE_LIMIT", 3),
			StaleThreshold: getEnvAsDuration("WORKER_STALE_THRESHOLD", time.Hour),
		},
		Mail: MailConfig{
			Enabled:  getEnvAsBool("MAIL_ENABLED", false),
			Host:     getEnv("MAIL_HOST", ""),
			Port:     getEnvAsInt("MAIL_PORT", 587),
			Username: getEnv("MAIL_USERNAME", ""),
			Password: getEnv("MAIL_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", ""),
			To:       getEnvAsList("MAIL_TO"),
		},
	}

	if cfg.Worker.ID == "" {
		cfg.Worker.ID = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate は設定の整合性を検証します。
// 不正な設定は起動時の致命的エラーとして扱われます
func (c *Config) Validate() error {
	if c.Documents.InputRoot == "" {
		return fmt.Errorf("DOCS_INPUT_ROOT が設定されていません")
	}
	if c.Documents.OutputRoot == "" {
		return fmt.Errorf("DOCS_OUTPUT_ROOT が設定されていません")
	}
	if c.Worker.SampleSize <= 0 {
		return fmt.Errorf("WORKER_SAMPLE_SIZE は正の整数である必要があります: %d", c.Worker.SampleSize)
	}
	if c.Worker.StaleThreshold <= 0 {
		return fmt.Errorf("WORKER_STALE_THRESHOLD は正の時間である必要があります: %s", c.Worker.StaleThreshold)
	}
	if c.Mail.Enabled {
		if c.Mail.Host == "" {
			return fmt.Errorf("MAIL_ENABLED の場合は MAIL_HOST が必要です")
		}
		if c.Mail.From == "" || len(c.Mail.To) == 0 {
			return fmt.Errorf("MAIL_ENABLED の場合は MAIL_FROM と MAIL_TO が必要です")
		}
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
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

// getEnvAsBool は環境変数を真偽値として取得します
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

// getEnvAsDuration は環境変数を時間として取得します（例: "30m", "1h"）
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

// getEnvAsList は環境変数をカンマ区切りのリストとして取得します
func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
