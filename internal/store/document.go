package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ictrack/internal/domain"
)

// DocumentStore 整文档持久化原语：load/save 皆为整体替换语义
// 引擎在内存里构建完整新文档后一次性写入，从不依赖部分写
type DocumentStore interface {
	Load(ctx context.Context) (*domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
}

// JSONFileStore 单文件 JSON 文档存储
// Save 先写同目录临时文件再 rename，保证失败时旧文档原样保留
type JSONFileStore struct {
	path string
}

func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

var _ DocumentStore = (*JSONFileStore)(nil)

// Load 读取文档；文件不存在视为空文档（首次运行）
func (s *JSONFileStore) Load(_ context.Context) (*domain.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewDocument(), nil
		}
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}

	doc := domain.NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode document file: %w", err)
	}
	return doc, nil
}

// Save 原子替换：tmp + rename
func (s *JSONFileStore) Save(_ context.Context, doc *domain.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ictrack-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace document file: %w", err)
	}
	return nil
}
