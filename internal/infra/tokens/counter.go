// Package tokens は tiktoken によるトークン数の計測を提供する
package tokens

import (
	"fmt"

	"github.com/jinford/docroute/internal/core/llm"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding は gpt-4o 系以前のチャットモデルと互換のエンコーディング
const DefaultEncoding = "cl100k_base"

// Counter はプロンプトのトークン数を数える
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter は cl100k_base エンコーディングの Counter を作成する
func NewCounter() (*Counter, error) {
	return NewCounterWithEncoding(DefaultEncoding)
}

// NewCounterWithEncoding はエンコーディング名を指定して Counter を作成する
func NewCounterWithEncoding(name string) (*Counter, error) {
	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &Counter{encoding: encoding}, nil
}

// CountTokens はテキストのトークン数を返す
func (c *Counter) CountTokens(text string) int {
	if c == nil || c.encoding == nil {
		return Estimate(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// Estimate はエンコーディングなしでトークン数を概算する（3文字で1トークン）
func Estimate(text string) int {
	return len([]rune(text)) / 3
}

// Estimator はエンコーディングを使わずに概算する TokenCounter
type Estimator struct{}

// CountTokens はテキストのトークン数を概算する
func (Estimator) CountTokens(text string) int {
	return Estimate(text)
}

var (
	_ llm.TokenCounter = (*Counter)(nil)
	_ llm.TokenCounter = Estimator{}
)
