package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jinford/docroute/internal/core/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocuments = `[
  {"id": "doc-1", "title": "Access control", "type": "spec",
   "content": "The service shall log every security event.\nOperators review the log daily."}
]`

const testRules = `[
  {"id": "security-alerts", "name": "Security alerts", "status": "active", "priority": "high",
   "conditions": {"domain": "security"},
   "action": {"type": "notification", "target": "security-alerts", "autoExecute": true}}
]`

// setupMemoryEnv はメモリストアと種データを使う環境変数を設定する
func setupMemoryEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	docs := filepath.Join(dir, "documents.json")
	rules := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(docs, []byte(testDocuments), 0o600))
	require.NoError(t, os.WriteFile(rules, []byte(testRules), 0o600))

	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("DOCUMENTS_FILE", docs)
	t.Setenv("RULES_FILE", rules)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("NOTIFY_FILE", "")
	return dir
}

func run(t *testing.T, dir string, args ...string) (map[string]any, error) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp()
	app.Writer = &out
	app.ErrWriter = io.Discard

	argv := append([]string{"docroute", "--env", filepath.Join(dir, "missing.env")}, args...)
	if err := app.Run(context.Background(), argv); err != nil {
		return nil, err
	}

	var v map[string]any
	if out.Len() > 0 && out.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	} else {
		v = map[string]any{"raw": out.String()}
	}
	return v, nil
}

func TestClassifyCommand(t *testing.T) {
	dir := setupMemoryEnv(t)

	out, err := run(t, dir, "classify", "--doc", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "fallback", out["source"])
	assert.NotEmpty(t, out["recordId"])
}

func TestClassifyCommand_UnknownDocument(t *testing.T) {
	dir := setupMemoryEnv(t)

	_, err := run(t, dir, "classify", "--doc", "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRouteCommand_DryRun(t *testing.T) {
	dir := setupMemoryEnv(t)

	out, err := run(t, dir, "route", "--doc", "doc-1", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, true, out["dryRun"])
	assert.Empty(t, out["executions"])

	decision := out["decision"].(map[string]any)
	assert.Len(t, decision["automaticRoutes"], 1)
}

func TestRulesListCommand(t *testing.T) {
	dir := setupMemoryEnv(t)

	out, err := run(t, dir, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out["raw"], `"id": "security-alerts"`)
}

func TestDocumentsImportCommand(t *testing.T) {
	dir := setupMemoryEnv(t)
	file := filepath.Join(dir, "more.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"id": "doc-2", "title": "Cart", "content": "The frontend must render the cart."}]`), 0o600))

	out, err := run(t, dir, "documents", "import", "--file", file)
	require.NoError(t, err)
	assert.EqualValues(t, 1, out["imported"])
}

func TestRecordListCommand_InvalidKind(t *testing.T) {
	dir := setupMemoryEnv(t)

	_, err := run(t, dir, "record", "list", "--kind", "summary")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestRecordPurgeCommand(t *testing.T) {
	dir := setupMemoryEnv(t)

	out, err := run(t, dir, "record", "purge")
	require.NoError(t, err)
	assert.EqualValues(t, 0, out["purged"])
}
