package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/classification"
	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/llm"
	"github.com/jinford/docroute/internal/core/record"
	"github.com/jinford/docroute/internal/core/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDocs map[string]*document.Document

func (s stubDocs) Get(ctx context.Context, id string) (*document.Document, error) {
	doc, ok := s[id]
	if !ok {
		return nil, errs.NotFound("docs.Get", "document %s not found", id)
	}
	return doc, nil
}

type unavailableClient struct{}

func (unavailableClient) GenerateCompletion(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	return llm.CompletionResponse{}, errors.New("service unavailable")
}

type recordStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*record.Record
}

func (s *recordStore) Put(ctx context.Context, rec *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *recordStore) Get(ctx context.Context, id uuid.UUID) (*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, errs.NotFound("records.Get", "record %s not found", id)
	}
	return rec.Clone(), nil
}

func (s *recordStore) List(ctx context.Context, filter record.Filter, pageToken string) (record.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := record.Page{}
	for _, rec := range s.records {
		if kind, ok := filter.Kind.Get(); ok && rec.Kind != kind {
			continue
		}
		if docID, ok := filter.DocumentID.Get(); ok && rec.DocumentID != docID {
			continue
		}
		page.Records = append(page.Records, rec.Clone())
	}
	return page, nil
}

type stubRules []*routing.Rule

func (r stubRules) ListActive(ctx context.Context) ([]*routing.Rule, error) { return r, nil }
func (r stubRules) List(ctx context.Context) ([]*routing.Rule, error)       { return r, nil }
func (r stubRules) Upsert(ctx context.Context, rule *routing.Rule) error    { return nil }

type capturePublisher struct {
	topics []string
}

func (p *capturePublisher) Publish(ctx context.Context, topic string, message any) error {
	p.topics = append(p.topics, topic)
	return nil
}

type fixture struct {
	service   *Service
	store     *recordStore
	publisher *capturePublisher
}

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &recordStore{records: map[uuid.UUID]*record.Record{}}
	tracker := record.NewTracker(store, record.WithTrackerLogger(logger))
	publisher := &capturePublisher{}

	rules := stubRules{{
		ID:     "security-alerts",
		Name:   "Security alerts",
		Status: routing.RuleActive,
		Conditions: routing.Conditions{
			Domain: classification.DomainSecurity,
		},
		Action: routing.Action{
			Type:        routing.ActionNotification,
			Target:      "security-alerts",
			AutoExecute: true,
		},
		Priority: routing.RulePriorityHigh,
	}}

	docs := stubDocs{
		"doc-1": {
			ID:      "doc-1",
			Title:   "Access control",
			Content: "The service shall log every security event.\nOperators review the log daily.",
		},
	}

	service := NewService(Deps{
		Documents:  docs,
		Classifier: classification.NewEngine(unavailableClient{}, classification.WithEngineLogger(logger)),
		Router: routing.NewEngine(rules,
			routing.NewExecutor(nil, publisher, routing.WithExecutorLogger(logger)),
			tracker,
			routing.WithEngineLogger(logger),
		),
		Tracker: tracker,
	}, WithLogger(logger))

	return &fixture{service: service, store: store, publisher: publisher}
}

func TestClassify_RecordsCompletedClassification(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.service.Classify(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, classification.SourceFallback, res.Source)
	assert.Equal(t, classification.DomainSecurity, res.Domain.Primary)

	rec, err := f.service.GetRecord(ctx, res.RecordID.String())
	require.NoError(t, err)
	assert.Equal(t, record.KindClassification, rec.Kind)
	assert.Equal(t, record.StatusCompleted, rec.Status)
	assert.Equal(t, string(record.StatusCompleted), rec.Step)
	assert.Contains(t, rec.Results, ResultClassification)
}

func TestClassify_MissingDocumentFailsRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.service.Classify(ctx, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	page, err := f.service.ListRecords(ctx, record.Filter{}, "")
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, record.StatusFailed, page.Records[0].Status)
	assert.Equal(t, StepLoadingDocument, page.Records[0].Step)
}

func TestClassify_RequiresDocumentID(t *testing.T) {
	f := newFixture()

	_, err := f.service.Classify(context.Background(), "")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	assert.Empty(t, f.store.records)
}

func TestRoute_ClassifiesThenRoutes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	outcome, err := f.service.Route(ctx, "doc-1", routing.Options{RequestID: "req-1"})
	require.NoError(t, err)

	assert.Equal(t, classification.DomainSecurity, outcome.Classification.Domain.Primary)
	require.Len(t, outcome.Decision.AutomaticRoutes, 1)
	require.Len(t, outcome.Executions, 1)
	assert.True(t, outcome.Executions[0].Success)
	assert.Equal(t, []string{"security-alerts"}, f.publisher.topics)

	history, err := f.service.RoutingHistory(ctx, "doc-1", 10, "")
	require.NoError(t, err)
	require.Len(t, history.Records, 1)
	assert.Equal(t, "req-1", history.Records[0].RequestID)
}

func TestRoute_MissingDocument(t *testing.T) {
	f := newFixture()

	_, err := f.service.Route(context.Background(), "missing", routing.Options{})
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Empty(t, f.store.records)
}

func TestGetRecord_InvalidID(t *testing.T) {
	f := newFixture()

	_, err := f.service.GetRecord(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestGetRecord_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.service.GetRecord(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
