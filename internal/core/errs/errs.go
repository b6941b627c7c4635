package errs

import (
	"errors"
	"fmt"
)

// Kind はエラーの分類
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindInvalidInput Kind = "invalid_input"
	KindUpstream     Kind = "upstream_service_error"
	KindPersistence  Kind = "persistence_error"
	KindInternal     Kind = "internal"
)

var (
	// ErrNotFound は対象が存在しない場合のエラー
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput は入力が不正な場合のエラー（リトライ不可）
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstream は推論サービスなど外部サービスの失敗
	ErrUpstream = errors.New("upstream service error")

	// ErrPersistence はレコードストアの失敗
	ErrPersistence = errors.New("persistence error")
)

// Error は分類付きのエラー
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is は errors.Is で sentinel と比較できるようにする
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	case ErrUpstream:
		return e.Kind == KindUpstream
	case ErrPersistence:
		return e.Kind == KindPersistence
	}
	return false
}

// NotFound は NotFound エラーを作成する
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

// InvalidInput は InvalidInput エラーを作成する
func InvalidInput(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: fmt.Errorf(format, args...)}
}

// Upstream は外部サービスのエラーをラップする
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

// Persistence はストアのエラーをラップする
// 既に分類済みのエラー（NotFound など）はそのまま返す
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// KindOf はエラーの分類を返す
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
