package llm

import (
	"context"
	"errors"

	"github.com/jinford/docroute/internal/core/errs"
)

// ErrServiceNotConfigured は推論サービスが設定されていない場合のエラー
var ErrServiceNotConfigured = errors.New("inference service is not configured")

// Unavailable は常に失敗する推論サービス
// APIキーなしで起動した場合に使い、分類・比較はフォールバック経路で動作する
type Unavailable struct {
	Model string
}

// GenerateCompletion は常に ErrUpstream を返す
func (u Unavailable) GenerateCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return CompletionResponse{}, errs.Upstream("llm.GenerateCompletion", ErrServiceNotConfigured)
}

// Embed は常に ErrUpstream を返す
func (u Unavailable) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errs.Upstream("llm.Embed", ErrServiceNotConfigured)
}

// ModelName はモデル名を返す
func (u Unavailable) ModelName() string {
	if u.Model == "" {
		return "unavailable"
	}
	return u.Model
}

var (
	_ Client   = Unavailable{}
	_ Embedder = Unavailable{}
)
