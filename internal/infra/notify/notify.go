// Package notify はルーティング結果を通知チャネルへ流す Publisher 実装を提供する
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jinford/docroute/internal/core/routing"
)

// Envelope はチャネルに書き出す1件分の通知
type Envelope struct {
	Topic       string    `json:"topic"`
	Message     any       `json:"message"`
	PublishedAt time.Time `json:"publishedAt"`
}

// LogPublisher は構造化ログとして通知を出力する
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher は新しい LogPublisher を作成する
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish は通知をログに出力する
func (p *LogPublisher) Publish(ctx context.Context, topic string, message any) error {
	p.logger.InfoContext(ctx, "notification published", "topic", topic, "message", message)
	return nil
}

// WriterPublisher は通知を JSON Lines で io.Writer に書き出す
type WriterPublisher struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewWriterPublisher は新しい WriterPublisher を作成する
func NewWriterPublisher(w io.Writer) *WriterPublisher {
	return &WriterPublisher{w: w, now: time.Now}
}

// Publish は1行の JSON として書き出す
func (p *WriterPublisher) Publish(ctx context.Context, topic string, message any) error {
	line, err := json.Marshal(Envelope{Topic: topic, Message: message, PublishedAt: p.now()})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	line = append(line, '\n')

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(line); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return nil
}

// FilePublisher は通知をファイルに追記する
type FilePublisher struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFilePublisher は新しい FilePublisher を作成する
func NewFilePublisher(path string) *FilePublisher {
	return &FilePublisher{path: path, now: time.Now}
}

// Publish はファイル末尾に1行の JSON を追記する
func (p *FilePublisher) Publish(ctx context.Context, topic string, message any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open notification file: %w", err)
	}
	defer f.Close()

	w := &WriterPublisher{w: f, now: p.now}
	return w.Publish(ctx, topic, message)
}

// MultiPublisher は複数の Publisher に順に通知する
// 一部が失敗しても残りには通知し、失敗はまとめて返す
type MultiPublisher struct {
	publishers []routing.Publisher
}

// NewMultiPublisher は新しい MultiPublisher を作成する
func NewMultiPublisher(publishers ...routing.Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

// Publish はすべての Publisher に通知する
func (p *MultiPublisher) Publish(ctx context.Context, topic string, message any) error {
	var errs []error
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, topic, message); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("some notifications failed: %w", errors.Join(errs...))
	}
	return nil
}

var (
	_ routing.Publisher = (*LogPublisher)(nil)
	_ routing.Publisher = (*WriterPublisher)(nil)
	_ routing.Publisher = (*FilePublisher)(nil)
	_ routing.Publisher = (*MultiPublisher)(nil)
)
