// Package container は設定から依存関係を組み立てる
package container

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jinford/docroute/internal/core/analysis"
	"github.com/jinford/docroute/internal/core/classification"
	"github.com/jinford/docroute/internal/core/cluster"
	"github.com/jinford/docroute/internal/core/comparison"
	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/embedding"
	"github.com/jinford/docroute/internal/core/llm"
	"github.com/jinford/docroute/internal/core/record"
	"github.com/jinford/docroute/internal/core/routing"
	"github.com/jinford/docroute/internal/infra/memory"
	"github.com/jinford/docroute/internal/infra/notify"
	"github.com/jinford/docroute/internal/infra/openai"
	"github.com/jinford/docroute/internal/infra/postgres"
	"github.com/jinford/docroute/internal/infra/tokens"
	"github.com/jinford/docroute/internal/infra/workflow"
	"github.com/jinford/docroute/internal/platform/config"
	"github.com/jinford/docroute/internal/platform/database"
	"github.com/openai/openai-go/v3/option"
)

// Container はアプリケーションの依存関係を保持する
type Container struct {
	Config     *config.Config
	Analysis   *analysis.Service
	Embeddings *embedding.Service
	Workflows  *workflow.Engine

	stores   stores
	logger   *slog.Logger
	database *database.Database
}

// stores はストレージごとに差し替わるリポジトリ群
type stores struct {
	documents  document.Store
	embeddings embedding.Repository
	records    record.Store
	rules      routing.RuleRepository
	workflows  workflow.Store

	putDocuments func(ctx context.Context, docs []*document.Document) error
	purge        func(ctx context.Context) (int64, error)
}

type containerOptions struct {
	logger    *slog.Logger
	llmClient llm.Client
	embedder  llm.Embedder
	counter   llm.TokenCounter
	publisher routing.Publisher
}

// ContainerOption は Container 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerLLMClient は推論クライアントを差し替える
func WithContainerLLMClient(client llm.Client) ContainerOption {
	return func(opts *containerOptions) {
		opts.llmClient = client
	}
}

// WithContainerEmbedder は Embedder を差し替える
func WithContainerEmbedder(embedder llm.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerTokenCounter は TokenCounter を差し替える
func WithContainerTokenCounter(counter llm.TokenCounter) ContainerOption {
	return func(opts *containerOptions) {
		opts.counter = counter
	}
}

// WithContainerPublisher は通知チャネルを差し替える
func WithContainerPublisher(publisher routing.Publisher) ContainerOption {
	return func(opts *containerOptions) {
		opts.publisher = publisher
	}
}

// New は設定からコンテナを生成する
func New(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger

	c := &Container{Config: cfg, logger: logger}

	switch cfg.Storage.Backend {
	case config.StorageMemory:
		c.stores = newMemoryStores()
	default:
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if cfg.Storage.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}
		c.database = db
		c.stores = newPostgresStores(db)
	}

	llmClient, embedder := options.llmClient, options.embedder
	if llmClient == nil || embedder == nil {
		defaultClient, defaultEmbedder, err := newInferenceClients(cfg.OpenAI, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		if llmClient == nil {
			llmClient = defaultClient
		}
		if embedder == nil {
			embedder = defaultEmbedder
		}
	}

	counter := options.counter
	if counter == nil {
		tc, err := tokens.NewCounter()
		if err != nil {
			// エンコーディングを取得できない環境では概算で続行する
			logger.Warn("falling back to estimated token counts", "error", err)
		}
		counter = tc
	}

	publisher := options.publisher
	if publisher == nil {
		publisher = newPublisher(cfg.Notification, logger)
	}

	tracker := record.NewTracker(c.stores.records,
		record.WithTrackerLogger(logger),
		record.WithTTL(cfg.Analysis.RecordTTL),
	)

	c.Embeddings = embedding.NewService(c.stores.embeddings, embedder,
		embedding.WithLogger(logger),
		embedding.WithConcurrency(cfg.Analysis.BatchConcurrency),
	)

	comparator := comparison.NewComparator(llmClient,
		comparison.WithComparatorLogger(logger),
		comparison.WithTokenCounter(counter),
		comparison.WithExcerptChars(cfg.Analysis.ContentExcerptChars),
	)
	pipeline := comparison.NewPipeline(c.stores.documents, c.Embeddings, comparator, tracker,
		comparison.WithPipelineLogger(logger),
		comparison.WithMatrixConcurrency(cfg.Analysis.BatchConcurrency),
	)

	classifier := classification.NewEngine(llmClient,
		classification.WithEngineLogger(logger),
		classification.WithTokenCounter(counter),
		classification.WithExcerptChars(cfg.Analysis.ContentExcerptChars),
	)

	clusters := cluster.NewEngine(c.stores.documents, c.Embeddings, tracker,
		cluster.WithEngineLogger(logger),
		cluster.WithMaxK(cfg.Analysis.ClusterMaxK),
	)

	c.Workflows = workflow.NewEngine(c.stores.workflows, workflow.WithLogger(logger))
	executor := routing.NewExecutor(c.Workflows, publisher,
		routing.WithExecutorLogger(logger),
		routing.WithAssignmentTopic(cfg.Notification.AssignmentTopic),
	)
	router := routing.NewEngine(c.stores.rules, executor, tracker,
		routing.WithEngineLogger(logger),
		routing.WithConfidenceThreshold(cfg.Analysis.RoutingConfidenceThreshold),
	)

	c.Analysis = analysis.NewService(analysis.Deps{
		Documents:   c.stores.documents,
		Classifier:  classifier,
		Comparisons: pipeline,
		Clusters:    clusters,
		Router:      router,
		Tracker:     tracker,
	}, analysis.WithLogger(logger))

	if err := c.seed(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func newMemoryStores() stores {
	docs := memory.NewDocumentStore()
	records := memory.NewRecordStore()
	return stores{
		documents:  docs,
		embeddings: memory.NewEmbeddingRepository(),
		records:    records,
		rules:      memory.NewRuleRepository(),
		workflows:  memory.NewWorkflowExecutions(),
		putDocuments: func(ctx context.Context, in []*document.Document) error {
			for _, doc := range in {
				if err := docs.Put(ctx, doc); err != nil {
					return err
				}
			}
			return nil
		},
		purge: func(ctx context.Context) (int64, error) {
			n, err := records.Purge(ctx)
			return int64(n), err
		},
	}
}

func newPostgresStores(db *database.Database) stores {
	records := postgres.NewRecordRepository(db.Pool)
	return stores{
		documents:  postgres.NewDocumentRepository(db.Pool),
		embeddings: postgres.NewEmbeddingRepository(db.Pool),
		records:    records,
		rules:      postgres.NewRuleRepository(db.Pool),
		workflows:  postgres.NewWorkflowExecutionRepository(db.Pool),
		putDocuments: func(ctx context.Context, in []*document.Document) error {
			_, err := database.Transact(ctx, db, func(a *database.Adapter) (struct{}, error) {
				for _, doc := range in {
					if err := a.Documents.Put(ctx, doc); err != nil {
						return struct{}{}, err
					}
				}
				return struct{}{}, nil
			})
			return err
		},
		purge: records.PurgeExpired,
	}
}

// newInferenceClients は OpenAI のクライアントを作る
// APIキーがなければ常に失敗するクライアントを返し、解析はフォールバック経路で動く
func newInferenceClients(cfg config.OpenAIConfig, logger *slog.Logger) (llm.Client, llm.Embedder, error) {
	if cfg.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; classification and comparison will use fallback heuristics")
		unavailable := llm.Unavailable{Model: cfg.EmbeddingModel}
		return unavailable, unavailable, nil
	}

	var requestOptions []option.RequestOption
	if cfg.BaseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.NewClient(cfg.APIKey,
		openai.WithModel(cfg.LLMModel),
		openai.WithTimeout(cfg.Timeout),
		openai.WithClientLogger(logger),
		openai.WithRequestOptions(requestOptions...),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	embedder := openai.NewEmbedder(cfg.APIKey,
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
		openai.WithEmbeddingDimension(cfg.EmbeddingDimension),
		openai.WithEmbeddingRequestOptions(requestOptions...),
	)

	// チャットと Embedding で同じ毎分上限を共有する
	limiter := openai.NewLimiter(cfg.MaxRequestsPerMinute, 4)
	return openai.ThrottleClient(client, limiter), openai.ThrottleEmbedder(embedder, limiter), nil
}

func newPublisher(cfg config.NotificationConfig, logger *slog.Logger) routing.Publisher {
	publishers := []routing.Publisher{notify.NewLogPublisher(logger)}
	if cfg.FilePath != "" {
		publishers = append(publishers, notify.NewFilePublisher(cfg.FilePath))
	}
	return notify.NewMultiPublisher(publishers...)
}

// seed は設定されたファイルから文書とルールを取り込む
func (c *Container) seed(ctx context.Context) error {
	if path := c.Config.Storage.DocumentsFile; path != "" {
		docs, err := readJSONFile[[]*document.Document](path)
		if err != nil {
			return err
		}
		if err := c.ImportDocuments(ctx, docs); err != nil {
			return err
		}
	}
	if path := c.Config.Storage.RulesFile; path != "" {
		rules, err := readJSONFile[[]*routing.Rule](path)
		if err != nil {
			return err
		}
		if err := c.Analysis.ImportRules(ctx, rules); err != nil {
			return err
		}
	}
	return nil
}

// ImportDocuments は文書をストアに登録する
func (c *Container) ImportDocuments(ctx context.Context, docs []*document.Document) error {
	if err := c.stores.putDocuments(ctx, docs); err != nil {
		return fmt.Errorf("failed to import documents: %w", err)
	}
	c.logger.Info("documents imported", "count", len(docs))
	return nil
}

// PurgeExpiredRecords は期限切れの解析記録を削除する
func (c *Container) PurgeExpiredRecords(ctx context.Context) (int64, error) {
	n, err := c.stores.purge(ctx)
	if err != nil {
		return 0, err
	}
	c.logger.Info("expired records purged", "count", n)
	return n, nil
}

// Close はバックグラウンド処理の完了を待ち、内部リソースを解放する
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.Analysis != nil {
		c.Analysis.Wait()
	}
	if c.database != nil {
		c.database.Close()
	}
}

// Logger はロガーを返す
func (c *Container) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// DecodeDocuments は文書定義の JSON 配列を読み込む
func DecodeDocuments(r io.Reader) ([]*document.Document, error) {
	return decodeJSON[[]*document.Document](r)
}

// DecodeRules はルール定義の JSON 配列を読み込む
func DecodeRules(r io.Reader) ([]*routing.Rule, error) {
	return decodeJSON[[]*routing.Rule](r)
}

func readJSONFile[T any](path string) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	v, err := decodeJSON[T](f)
	if err != nil {
		return zero, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return v, nil
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var v T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("failed to decode json: %w", err)
	}
	return v, nil
}
