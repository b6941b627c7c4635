package postgres

import (
	"encoding/json"
	"fmt"
)

// marshalJSON は JSONB カラムに書き込む値をエンコードする（nil は空オブジェクト）
func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json column: %w", err)
	}
	return b, nil
}

// unmarshalJSON は JSONB カラムをデコードする（空は何もしない）
func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal json column: %w", err)
	}
	return nil
}
