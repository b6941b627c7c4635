package llm

import (
	"context"
	"errors"
)

var (
	// ErrUnparseableResponse はレスポンスから構造化データを取り出せなかった場合のエラー
	ErrUnparseableResponse = errors.New("unparseable structured response")

	// ErrSchemaViolation はパース済みオブジェクトがスキーマ検証に失敗した場合のエラー
	ErrSchemaViolation = errors.New("structured response violates schema")
)

// CompletionRequest はLLMへのリクエスト
type CompletionRequest struct {
	Prompt         string
	Temperature    float64
	MaxTokens      int
	ResponseFormat string // "json" or ""
	Model          string // 空ならクライアントのデフォルト
}

// CompletionResponse はLLMからのレスポンス
type CompletionResponse struct {
	Content    string
	TokensUsed int
	Model      string
}

// Client はテキスト生成を行う推論サービスのインターフェース
// 呼び出しはいつでもタイムアウトやクォータ超過で失敗しうる
type Client interface {
	GenerateCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Embedder はテキストをベクトルに変換する推論サービスのインターフェース
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// TokenCounter はプロンプトのトークン数を数える
type TokenCounter interface {
	CountTokens(text string) int
}
