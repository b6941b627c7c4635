package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jinford/docroute/internal/core/analysis"
	"github.com/jinford/docroute/internal/core/cluster"
	"github.com/jinford/docroute/internal/core/comparison"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/record"
	"github.com/jinford/docroute/internal/core/routing"
	"github.com/samber/mo"
)

// Analyzer は HTTP API が利用する解析操作
type Analyzer interface {
	Classify(ctx context.Context, documentID string) (*analysis.Classification, error)
	Compare(ctx context.Context, sourceID, targetID string, opts comparison.Options) (*record.Record, error)
	Route(ctx context.Context, documentID string, opts routing.Options) (*routing.Outcome, error)
	RoutingHistory(ctx context.Context, documentID string, limit int, pageToken string) (record.Page, error)
	Cluster(ctx context.Context, documentIDs []string, opts cluster.Options) (*cluster.Result, error)
	GetRecord(ctx context.Context, id string) (*record.Record, error)
	ListRecords(ctx context.Context, filter record.Filter, pageToken string) (record.Page, error)
	Rules(ctx context.Context) ([]*routing.Rule, error)
	ImportRules(ctx context.Context, rules []*routing.Rule) error
}

// Handler は HTTP リクエストを Analyzer の操作に変換する
type Handler struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// HandlerOption は Handler のオプション設定
type HandlerOption func(*Handler)

// WithHandlerLogger はロガーを設定する
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler は新しい Handler を作成する
func NewHandler(analyzer Analyzer, opts ...HandlerOption) *Handler {
	h := &Handler{analyzer: analyzer, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

type compareRequest struct {
	SourceDocumentID    string `json:"sourceDocumentId" validate:"required"`
	TargetDocumentID    string `json:"targetDocumentId" validate:"required"`
	IncludeRequirements *bool  `json:"includeRequirements"`
	IncludeSemantic     *bool  `json:"includeSemantic"`
	Async               bool   `json:"async"`
}

type routeRequest struct {
	DryRun bool `json:"dryRun"`
}

type clusterRequest struct {
	DocumentIDs []string `json:"documentIds" validate:"required,min=2,dive,required"`
	K           *int     `json:"k" validate:"omitempty,gte=1"`
	Seed        *uint64  `json:"seed"`
}

// Classify は POST /v1/documents/{id}/classify
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	res, err := h.analyzer.Classify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, res)
}

// Compare は POST /v1/comparisons
// 非同期指定時は processing 状態の記録を 202 で返す
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[compareRequest](r, false)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	rec, err := h.analyzer.Compare(r.Context(), req.SourceDocumentID, req.TargetDocumentID, comparison.Options{
		IncludeRequirements: mo.PointerToOption(req.IncludeRequirements),
		IncludeSemantic:     mo.PointerToOption(req.IncludeSemantic),
		Async:               req.Async,
		RequestID:           chimw.GetReqID(r.Context()),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if req.Async {
		status = http.StatusAccepted
	}
	respond(w, r, status, rec)
}

// Route は POST /v1/documents/{id}/route
func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[routeRequest](r, true)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	outcome, err := h.analyzer.Route(r.Context(), chi.URLParam(r, "id"), routing.Options{
		DryRun:    req.DryRun,
		RequestID: chimw.GetReqID(r.Context()),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, outcome)
}

// RoutingHistory は GET /v1/documents/{id}/routing-history
func (h *Handler) RoutingHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	page, err := h.analyzer.RoutingHistory(r.Context(), chi.URLParam(r, "id"), limit, r.URL.Query().Get("pageToken"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondPage(w, r, page.Records, page.NextPageToken)
}

// Cluster は POST /v1/clusters
func (h *Handler) Cluster(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[clusterRequest](r, false)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	res, err := h.analyzer.Cluster(r.Context(), req.DocumentIDs, cluster.Options{
		K:         mo.PointerToOption(req.K),
		Seed:      mo.PointerToOption(req.Seed),
		RequestID: chimw.GetReqID(r.Context()),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, res)
}

// GetRecord は GET /v1/records/{id}
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.analyzer.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, rec)
}

// ListRecords は GET /v1/records?kind=&documentId=&status=&limit=&pageToken=
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	filter, err := record.ParseFilter(q.Get("kind"), q.Get("documentId"), q.Get("status"), limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	page, err := h.analyzer.ListRecords(r.Context(), filter, q.Get("pageToken"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondPage(w, r, page.Records, page.NextPageToken)
}

// ListRules は GET /v1/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.analyzer.Rules(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, rules)
}

// ImportRules は PUT /v1/rules
func (h *Handler) ImportRules(w http.ResponseWriter, r *http.Request) {
	rules, err := decodeBody[[]*routing.Rule](r, false)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if len(rules) == 0 {
		h.respondError(w, r, errs.InvalidInput("httpapi.ImportRules", "at least one rule is required"))
		return
	}
	for _, rule := range rules {
		if rule == nil {
			h.respondError(w, r, errs.InvalidInput("httpapi.ImportRules", "rule must not be null"))
			return
		}
		if err := rule.Validate(); err != nil {
			h.respondError(w, r, err)
			return
		}
	}

	if err := h.analyzer.ImportRules(r.Context(), rules); err != nil {
		h.respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]int{"imported": len(rules)})
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.InvalidInput("httpapi.query", "query parameter %s must be an integer", key)
	}
	return v, nil
}
