package workflow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/infra/memory"
	"github.com/jinford/docroute/internal/infra/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Insert(ctx context.Context, exec *workflow.Execution) error {
	return errors.New("connection refused")
}

func (brokenStore) Get(ctx context.Context, id uuid.UUID) (*workflow.Execution, error) {
	return nil, errors.New("connection refused")
}

func quiet() workflow.EngineOption {
	return workflow.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStart_RecordsExecution(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	engine := workflow.NewEngine(memory.NewWorkflowExecutions(), quiet(), workflow.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	handle, err := engine.Start(ctx, "requirements_review", map[string]any{"documentId": "doc-1"})
	require.NoError(t, err)

	exec, err := engine.Get(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "requirements_review", exec.Workflow)
	assert.Equal(t, workflow.StatusStarted, exec.Status)
	assert.Equal(t, "doc-1", exec.Input["documentId"])
	assert.Equal(t, now, exec.StartedAt)
}

func TestStart_RejectsUnknownWorkflow(t *testing.T) {
	engine := workflow.NewEngine(memory.NewWorkflowExecutions(), quiet(), workflow.WithWorkflows("bug_triage"))

	_, err := engine.Start(context.Background(), "requirements_review", nil)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = engine.Start(context.Background(), "", nil)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestStart_StoreFailure(t *testing.T) {
	engine := workflow.NewEngine(brokenStore{}, quiet())

	_, err := engine.Start(context.Background(), "bug_triage", nil)
	assert.ErrorIs(t, err, errs.ErrPersistence)
}

func TestGet_InvalidHandle(t *testing.T) {
	engine := workflow.NewEngine(memory.NewWorkflowExecutions(), quiet())

	_, err := engine.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = engine.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
