package openai

import (
	"context"
	"time"

	"github.com/jinford/docroute/internal/core/llm"
	"golang.org/x/time/rate"
)

// DefaultMaxRequestsPerMinute は推論サービスへの既定の毎分リクエスト上限
const DefaultMaxRequestsPerMinute = 60

// Limiter はトークンバケットと同時実行数の上限を組み合わせたレート制御
type Limiter struct {
	bucket    *rate.Limiter
	semaphore chan struct{}
}

// NewLimiter は毎分 requestsPerMinute 件、同時 concurrency 件までに制限する Limiter を作成する
func NewLimiter(requestsPerMinute, concurrency int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultMaxRequestsPerMinute
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	every := time.Minute / time.Duration(requestsPerMinute)
	return &Limiter{
		bucket:    rate.NewLimiter(rate.Every(every), concurrency),
		semaphore: make(chan struct{}, concurrency),
	}
}

// Acquire は実行権限を取得する。成功したら必ず release を呼ぶこと
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case l.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := l.bucket.Wait(ctx); err != nil {
		<-l.semaphore
		return nil, err
	}
	return func() { <-l.semaphore }, nil
}

// ThrottledClient は llm.Client を Limiter で包む
type ThrottledClient struct {
	next    llm.Client
	limiter *Limiter
}

// ThrottleClient は client の呼び出しを limiter で制限する
func ThrottleClient(client llm.Client, limiter *Limiter) *ThrottledClient {
	return &ThrottledClient{next: client, limiter: limiter}
}

// GenerateCompletion は実行権限を得てから推論を呼び出す
func (t *ThrottledClient) GenerateCompletion(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	release, err := t.limiter.Acquire(ctx)
	if err != nil {
		return llm.CompletionResponse{}, err
	}
	defer release()
	return t.next.GenerateCompletion(ctx, req)
}

// ThrottledEmbedder は llm.Embedder を Limiter で包む
type ThrottledEmbedder struct {
	next    llm.Embedder
	limiter *Limiter
}

// ThrottleEmbedder は embedder の呼び出しを limiter で制限する
func ThrottleEmbedder(embedder llm.Embedder, limiter *Limiter) *ThrottledEmbedder {
	return &ThrottledEmbedder{next: embedder, limiter: limiter}
}

// Embed は実行権限を得てから Embedding を生成する
func (t *ThrottledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	release, err := t.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return t.next.Embed(ctx, text)
}

// ModelName は包んだ Embedder のモデル名を返す
func (t *ThrottledEmbedder) ModelName() string {
	return t.next.ModelName()
}

var (
	_ llm.Client   = (*ThrottledClient)(nil)
	_ llm.Embedder = (*ThrottledEmbedder)(nil)
)
