package record

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// DefaultTTL は比較・ルーティング記録の保持期間
const DefaultTTL = 30 * 24 * time.Hour

// Kind は解析ジョブの種類
type Kind string

const (
	KindClassification Kind = "classification"
	KindComparison     Kind = "comparison"
	KindRouting        Kind = "routing"
	KindClustering     Kind = "clustering"
)

// Status はジョブの状態
// processing から completed / failed のいずれか一方へのみ遷移する
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal は終端状態かどうかを返す
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record は解析ジョブの記録
// Results は各ステージの完了に応じて段階的に埋まる
type Record struct {
	ID               uuid.UUID      `json:"id"`
	Kind             Kind           `json:"kind"`
	DocumentID       string         `json:"documentId"`
	TargetDocumentID string         `json:"targetDocumentId,omitempty"`
	RequestID        string         `json:"requestId,omitempty"`
	Status           Status         `json:"status"`
	Step             string         `json:"step,omitempty"`
	Results          map[string]any `json:"results"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	CompletedAt      *time.Time     `json:"completedAt,omitempty"`
	ExpiresAt        time.Time      `json:"expiresAt"`
}

// Clone は Results マップを含めて複製する
func (r *Record) Clone() *Record {
	c := *r
	c.Results = make(map[string]any, len(r.Results))
	for k, v := range r.Results {
		c.Results[k] = v
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Filter は一覧取得の条件
type Filter struct {
	Kind       mo.Option[Kind]
	DocumentID mo.Option[string]
	Status     mo.Option[Status]
	Limit      int
}

// 一覧取得の件数
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// PageSize は Limit を [1, MaxListLimit] に収めた件数を返す（0 以下は DefaultListLimit）
func (f Filter) PageSize() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// Page は一覧取得の結果
// NextPageToken が空なら最後のページ
type Page struct {
	Records       []*Record `json:"records"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
}

// Store は解析記録の永続化インターフェース
// 期限切れ（ExpiresAt 経過）の記録は Get/List から見えない
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context, filter Filter, pageToken string) (Page, error)
}
