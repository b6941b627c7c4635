// Package memory はプロセス内で完結するストア実装（ローカル実行・テスト用）
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/errs"
)

// DocumentStore は文書を map に保持する
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*document.Document
}

// NewDocumentStore は新しい DocumentStore を作成する
func NewDocumentStore(docs ...*document.Document) *DocumentStore {
	s := &DocumentStore{docs: make(map[string]*document.Document, len(docs))}
	for _, doc := range docs {
		s.docs[doc.ID] = cloneDocument(doc)
	}
	return s
}

// Get は文書を取得する
func (s *DocumentStore) Get(ctx context.Context, id string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, errs.NotFound("memory.DocumentStore.Get", "document %s not found", id)
	}
	return cloneDocument(doc), nil
}

// Put は文書を追加または置き換える
func (s *DocumentStore) Put(ctx context.Context, doc *document.Document) error {
	if doc == nil || doc.ID == "" {
		return errs.InvalidInput("memory.DocumentStore.Put", "document id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = cloneDocument(doc)
	return nil
}

// IDs は保持している文書IDを昇順で返す
func (s *DocumentStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cloneDocument(doc *document.Document) *document.Document {
	c := *doc
	c.Requirements = append([]document.Requirement(nil), doc.Requirements...)
	return &c
}

var _ document.Store = (*DocumentStore)(nil)
