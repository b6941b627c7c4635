package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jinford/docroute/internal/core/validation"
)

// DecodeStructured はLLMの応答から最初のJSONオブジェクトをデコードし、スキーマ検証を行う
// 検証に通らない値は下流に渡さない
func DecodeStructured[T any](content string) (T, error) {
	var zero T

	start := strings.IndexByte(content, '{')
	if start < 0 {
		return zero, fmt.Errorf("%w: no JSON object found", ErrUnparseableResponse)
	}

	var out T
	dec := json.NewDecoder(strings.NewReader(content[start:]))
	if err := dec.Decode(&out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrUnparseableResponse, err)
	}

	if err := validation.Struct(out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	return out, nil
}
