// Package config は環境変数と .env ファイルから設定を読み込む
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ストレージの種類
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// DefaultRecordTTL は解析記録の既定の保持期間
const DefaultRecordTTL = 720 * time.Hour

// Config はアプリケーション全体の設定を保持する
type Config struct {
	Database     DatabaseConfig
	OpenAI       OpenAIConfig
	Analysis     AnalysisConfig
	Notification NotificationConfig
	Server       ServerConfig
	Storage      StorageConfig
	Log          LogConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// OpenAIConfig は推論サービス設定（Embeddings + LLM）
type OpenAIConfig struct {
	APIKey               string
	BaseURL              string
	EmbeddingModel       string
	EmbeddingDimension   int
	LLMModel             string
	Timeout              time.Duration
	MaxRequestsPerMinute int
}

// AnalysisConfig は解析パイプラインの設定
type AnalysisConfig struct {
	RoutingConfidenceThreshold float64
	RecordTTL                  time.Duration
	ContentExcerptChars        int
	ClusterMaxK                int
	BatchConcurrency           int
}

// NotificationConfig は通知チャネル設定
type NotificationConfig struct {
	FilePath        string // 空なら通知はログのみ
	AssignmentTopic string
}

// ServerConfig は HTTP サーバー設定
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// StorageConfig はストレージの選択
type StorageConfig struct {
	Backend       string // "postgres" or "memory"
	DocumentsFile string // memory 時に読み込む文書 JSON
	RulesFile     string // 起動時に取り込むルール JSON
	AutoMigrate   bool
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または .env ファイルから設定を読み込む
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルがなければ環境変数のみで動作する
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docroute"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "docroute"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
		},
		OpenAI: OpenAIConfig{
			APIKey:               getEnv("OPENAI_API_KEY", ""),
			BaseURL:              getEnv("OPENAI_BASE_URL", ""),
			EmbeddingModel:       getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension:   getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			LLMModel:             getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
			Timeout:              getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			MaxRequestsPerMinute: getEnvAsInt("OPENAI_MAX_REQUESTS_PER_MINUTE", 60),
		},
		Analysis: AnalysisConfig{
			RoutingConfidenceThreshold: getEnvAsFloat("ROUTING_CONFIDENCE_THRESHOLD", 0.7),
			RecordTTL:                  getEnvAsDuration("RECORD_TTL", DefaultRecordTTL),
			ContentExcerptChars:        getEnvAsInt("CONTENT_EXCERPT_CHARS", 3000),
			ClusterMaxK:                getEnvAsInt("CLUSTER_MAX_K", 5),
			BatchConcurrency:           getEnvAsInt("BATCH_CONCURRENCY", 4),
		},
		Notification: NotificationConfig{
			FilePath:        getEnv("NOTIFY_FILE", ""),
			AssignmentTopic: getEnv("NOTIFY_TOPIC", "document-assignments"),
		},
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(getEnv("STORAGE_BACKEND", StoragePostgres)),
			DocumentsFile: getEnv("DOCUMENTS_FILE", ""),
			RulesFile:     getEnv("RULES_FILE", ""),
			AutoMigrate:   getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を確認する
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q: must be %s or %s", c.Storage.Backend, StoragePostgres, StorageMemory)
	}
	if t := c.Analysis.RoutingConfidenceThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("invalid ROUTING_CONFIDENCE_THRESHOLD %v: must be in (0, 1]", t)
	}
	if c.Analysis.RecordTTL <= 0 {
		return fmt.Errorf("invalid RECORD_TTL %v: must be positive", c.Analysis.RecordTTL)
	}
	return nil
}

// DSN は pgx の接続文字列を返す
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// SlogLevel はログレベル文字列を slog.Level に変換する（不明な値は Info）
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返す
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得する
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

// getEnvAsFloat は環境変数を浮動小数点数として取得する
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得する
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

// getEnvAsBool は環境変数を真偽値として取得する
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
