package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"ictrack/internal/domain"
)

// MemoryDocumentStore 内存文档存储：数据文件未配置时的联测兜底 + 测试用
// 通过 JSON 往返实现快照语义（Load/Save 之间互不共享指针）
type MemoryDocumentStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{}
}

var _ DocumentStore = (*MemoryDocumentStore)(nil)

func (s *MemoryDocumentStore) Load(_ context.Context) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return domain.NewDocument(), nil
	}
	doc := domain.NewDocument()
	if err := json.Unmarshal(s.data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode stored document: %w", err)
	}
	return doc, nil
}

func (s *MemoryDocumentStore) Save(_ context.Context, doc *domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}
