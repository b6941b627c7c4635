package llm

import "fmt"

// MaxInputTokens はプロンプトとして許容する最大トークン数
const MaxInputTokens = 50000

// CheckPromptSize はプロンプトのトークン数を数え、上限を超える場合はエラーを返す
// counter が nil の場合は検査しない
func CheckPromptSize(counter TokenCounter, prompt string, limit int) (int, error) {
	if counter == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = MaxInputTokens
	}

	tokens := counter.CountTokens(prompt)
	if tokens > limit {
		return tokens, fmt.Errorf("prompt too long: %d tokens (max: %d)", tokens, limit)
	}
	return tokens, nil
}
