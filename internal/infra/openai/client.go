package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/llm"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	// DefaultModel はデフォルトで使用するチャットモデル
	DefaultModel = "gpt-4o-mini"

	// DefaultTimeout は1回の推論呼び出しのタイムアウト
	DefaultTimeout = 60 * time.Second

	// MaxRetries は 429 応答時の最大リトライ回数
	MaxRetries = 3

	// BaseBackoff は指数バックオフの基底時間
	BaseBackoff = 2 * time.Second

	// MaxBackoff は指数バックオフの上限
	MaxBackoff = 32 * time.Second

	// JSONParseMaxRetries は JSON 応答が壊れていた場合の再生成回数
	JSONParseMaxRetries = 1
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

	// ErrMaxRetriesExceeded は最大リトライ回数を超過した場合のエラー
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// Client は OpenAI のチャット API を使った llm.Client 実装
type Client struct {
	client         openai.Client
	requestOptions []option.RequestOption
	model          string
	timeout        time.Duration
	baseBackoff    time.Duration
	logger         *slog.Logger
}

// ClientOption は Client のオプション設定
type ClientOption func(*Client)

// WithModel はモデル名を設定する
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout は呼び出しタイムアウトを設定する
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithClientLogger はロガーを設定する
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestOptions は SDK のリクエストオプション（BaseURL など）を追加する
func WithRequestOptions(opts ...option.RequestOption) ClientOption {
	return func(c *Client) {
		c.requestOptions = append(c.requestOptions, opts...)
	}
}

// NewClient は新しい Client を作成する
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	c := &Client{
		model:       DefaultModel,
		timeout:     DefaultTimeout,
		baseBackoff: BaseBackoff,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.client = openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, c.requestOptions...)...)
	return c, nil
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.model
}

// GenerateCompletion はチャット API でテキストを生成する
// JSON 形式を要求した場合、壊れた JSON は JSONParseMaxRetries 回まで再生成する
func (c *Client) GenerateCompletion(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	var jsonParseRetries int
	for {
		resp, err := c.generateWithRetry(ctx, model, req)
		if err != nil {
			return llm.CompletionResponse{}, errs.Upstream("openai.GenerateCompletion", err)
		}

		if req.ResponseFormat == "json" && !json.Valid([]byte(resp.Content)) {
			jsonParseRetries++
			if jsonParseRetries > JSONParseMaxRetries {
				return llm.CompletionResponse{}, fmt.Errorf("%w: JSON parse failed after %d retries", llm.ErrUnparseableResponse, JSONParseMaxRetries)
			}
			c.logger.Warn("completion returned invalid JSON, regenerating", "model", model, "attempt", jsonParseRetries)
			continue
		}

		return resp, nil
	}
}

func (c *Client) generateWithRetry(ctx context.Context, model string, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			wait := Backoff(c.baseBackoff, attempt)
			c.logger.Debug("rate limited, backing off", "model", model, "attempt", attempt, "wait", wait)

			select {
			case <-ctx.Done():
				return llm.CompletionResponse{}, ctx.Err()
			case <-time.After(wait):
			}
		}

		params := openai.ChatCompletionNewParams{
			Model: shared.ChatModel(model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(req.Prompt),
			},
			Temperature: openai.Float(req.Temperature),
		}
		if req.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(req.MaxTokens))
		}
		if req.ResponseFormat == "json" {
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{
					Type: "json_object",
				},
			}
		}

		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if IsRateLimitError(err) {
				continue
			}
			return llm.CompletionResponse{}, fmt.Errorf("OpenAI API call failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return llm.CompletionResponse{}, fmt.Errorf("no completion choices returned")
		}

		return llm.CompletionResponse{
			Content:    completion.Choices[0].Message.Content,
			TokensUsed: int(completion.Usage.TotalTokens),
			Model:      string(completion.Model),
		}, nil
	}

	return llm.CompletionResponse{}, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

// Backoff は attempt 回目（1始まり）の待機時間を返す
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	wait := time.Duration(math.Pow(2, float64(attempt-1))) * base
	if wait > MaxBackoff {
		wait = MaxBackoff
	}
	return wait
}

// IsRateLimitError は 429 応答かどうかを判定する
func IsRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

var _ llm.Client = (*Client)(nil)
