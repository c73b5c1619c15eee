package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Query is a flat field-equality match, the only query shape the façade uses.
type Query map[string]any

// DurableStore is the document side of the cache-aside pair. Values cross the
// boundary as JSON bytes; FindOne returns (nil, nil) when nothing matches.
type DurableStore interface {
	FindOne(ctx context.Context, collection string, query Query) ([]byte, error)
	Upsert(ctx context.Context, collection string, query Query, data []byte) error
	Insert(ctx context.Context, collection string, data []byte) error
	DeleteOne(ctx context.Context, collection string, query Query) error
}

// MemoryDocs is an in-process DurableStore for tests and single-node runs.
type MemoryDocs struct {
	mu          sync.RWMutex
	collections map[string][]memDoc
}

type memDoc struct {
	fields map[string]any
	data   []byte
}

func NewMemoryDocs() *MemoryDocs {
	return &MemoryDocs{collections: make(map[string][]memDoc)}
}

func decodeDoc(data []byte) (memDoc, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return memDoc{}, fmt.Errorf("decode document: %w", err)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	return memDoc{fields: fields, data: stored}, nil
}

func (d memDoc) matches(query Query) bool {
	for k, want := range query {
		if fmt.Sprint(d.fields[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func (s *MemoryDocs) FindOne(_ context.Context, collection string, query Query) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.collections[collection] {
		if doc.matches(query) {
			out := make([]byte, len(doc.data))
			copy(out, doc.data)
			return out, nil
		}
	}
	return nil, nil
}

func (s *MemoryDocs) Upsert(_ context.Context, collection string, query Query, data []byte) error {
	doc, err := decodeDoc(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collections[collection]
	for i := range docs {
		if docs[i].matches(query) {
			docs[i] = doc
			return nil
		}
	}
	s.collections[collection] = append(docs, doc)
	return nil
}

func (s *MemoryDocs) Insert(_ context.Context, collection string, data []byte) error {
	doc, err := decodeDoc(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], doc)
	return nil
}

func (s *MemoryDocs) DeleteOne(_ context.Context, collection string, query Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collections[collection]
	for i := range docs {
		if docs[i].matches(query) {
			s.collections[collection] = append(docs[:i], docs[i+1:]...)
			return nil
		}
	}
	return nil
}

var _ DurableStore = (*MemoryDocs)(nil)
