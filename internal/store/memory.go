package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process memory. It is the dev default and
// the test double for the sqlite store; both satisfy the same contract.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[string]Document{}}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Document, 0)
	for _, doc := range s.data[collection] {
		if matchesAll(doc, q.Filters) {
			out = append(out, cloneDoc(doc))
		}
	}
	sortAndLimit(&out, q)
	return out, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, collection, id string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.collection(collection)
	doc, ok := col[id]
	if !ok {
		doc = Document{}
		col[id] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (s *MemoryStore) AppendToSet(ctx context.Context, collection, id, field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.collection(collection)
	doc, ok := col[id]
	if !ok {
		doc = Document{}
		col[id] = doc
	}
	doc[field] = appendToSet(doc[field], value)
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.collection(collection)
	doc, ok := col[id]
	if !ok {
		doc = Document{}
		col[id] = doc
	}
	cur, _ := asFloat(doc[field])
	doc[field] = cur + float64(delta)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], id)
	return nil
}

func (s *MemoryStore) collection(name string) map[string]Document {
	col, ok := s.data[name]
	if !ok {
		col = map[string]Document{}
		s.data[name] = col
	}
	return col
}

func appendToSet(cur any, value any) []any {
	var set []any
	if existing, ok := cur.([]any); ok {
		set = existing
	}
	want := fmt.Sprint(value)
	for _, v := range set {
		if fmt.Sprint(v) == want {
			return set
		}
	}
	return append(set, value)
}

func sortAndLimit(docs *[]Document, q Query) {
	if q.OrderBy != "" {
		sort.SliceStable(*docs, func(i, j int) bool {
			less := lessByField((*docs)[i], (*docs)[j], q.OrderBy)
			if q.Descending {
				return lessByField((*docs)[j], (*docs)[i], q.OrderBy)
			}
			return less
		})
	}
	if q.Limit > 0 && len(*docs) > q.Limit {
		*docs = (*docs)[:q.Limit]
	}
}

func cloneDoc(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if arr, ok := v.([]any); ok {
			cp := make([]any, len(arr))
			copy(cp, arr)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}
