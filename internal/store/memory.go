package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultTxRetries = 5

// MemoryStore is an in-memory Store used for tests and local development
// (STORE_BACKEND=memory). It mimics Firestore's transaction behavior:
// snapshot reads, optimistic validation of the read set at commit, bounded
// internal retries, and rejection of reads issued after the first write.
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[string]map[string]map[string]interface{}
	versions map[string]int64
	retries  int

	// beforeCommit runs after the transaction function returns and before
	// read-set validation. Tests use it to inject conflicting writes.
	beforeCommit func()
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]map[string]map[string]interface{}),
		versions: make(map[string]int64),
		retries:  defaultTxRetries,
	}
}

func versionKey(collection, id string) string {
	return collection + "/" + id
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (map[string]interface{}, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[collection][id]
	if !ok {
		return nil, false, nil
	}
	return CopyDoc(data), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]interface{}, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applySet(collection, id, data, merge)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyDelete(collection, id)
	return nil
}

// applySet and applyDelete must be called with the lock held.
func (s *MemoryStore) applySet(collection, id string, data map[string]interface{}, merge bool) {
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]map[string]interface{})
	}
	if merge {
		if existing, ok := s.docs[collection][id]; ok {
			merged := CopyDoc(existing)
			for k, v := range data {
				merged[k] = v
			}
			s.docs[collection][id] = merged
			s.versions[versionKey(collection, id)]++
			return
		}
	}
	s.docs[collection][id] = CopyDoc(data)
	s.versions[versionKey(collection, id)]++
}

func (s *MemoryStore) applyDelete(collection, id string) {
	if _, ok := s.docs[collection][id]; !ok {
		return
	}
	delete(s.docs[collection], id)
	s.versions[versionKey(collection, id)]++
}

type writeOp struct {
	delete     bool
	merge      bool
	collection string
	id         string
	data       map[string]interface{}
}

type memTx struct {
	store  *MemoryStore
	reads  map[string]int64
	writes []writeOp
	bad    error
}

func (t *memTx) Get(collection, id string) (map[string]interface{}, bool, error) {
	if len(t.writes) > 0 {
		t.bad = ErrReadAfterWrite
		return nil, false, ErrReadAfterWrite
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.reads[versionKey(collection, id)] = t.store.versions[versionKey(collection, id)]
	data, ok := t.store.docs[collection][id]
	if !ok {
		return nil, false, nil
	}
	return CopyDoc(data), true, nil
}

func (t *memTx) Set(collection, id string, data map[string]interface{}, merge bool) {
	t.writes = append(t.writes, writeOp{merge: merge, collection: collection, id: id, data: CopyDoc(data)})
}

func (t *memTx) Delete(collection, id string) {
	t.writes = append(t.writes, writeOp{delete: true, collection: collection, id: id})
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 0; attempt < s.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &memTx{store: s, reads: make(map[string]int64)}
		if err := fn(tx); err != nil {
			return err
		}
		if tx.bad != nil {
			return tx.bad
		}

		if s.beforeCommit != nil {
			s.beforeCommit()
		}

		s.mu.Lock()
		conflicted := false
		for key, ver := range tx.reads {
			if s.versions[key] != ver {
				conflicted = true
				break
			}
		}
		if conflicted {
			s.mu.Unlock()
			continue
		}
		for _, w := range tx.writes {
			if w.delete {
				s.applyDelete(w.collection, w.id)
			} else {
				s.applySet(w.collection, w.id, w.data, w.merge)
			}
		}
		s.mu.Unlock()
		return nil
	}
	return ErrConflict
}

type memBatch struct {
	store *MemoryStore
	ops   []writeOp
}

func (s *MemoryStore) Batch() Batch {
	return &memBatch{store: s}
}

func (b *memBatch) Set(collection, id string, data map[string]interface{}, merge bool) {
	b.ops = append(b.ops, writeOp{merge: merge, collection: collection, id: id, data: CopyDoc(data)})
}

func (b *memBatch) Delete(collection, id string) {
	b.ops = append(b.ops, writeOp{delete: true, collection: collection, id: id})
}

func (b *memBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, w := range b.ops {
		if w.delete {
			b.store.applyDelete(w.collection, w.id)
		} else {
			b.store.applySet(w.collection, w.id, w.data, w.merge)
		}
	}
	b.ops = nil
	return nil
}

func (s *MemoryStore) Where(ctx context.Context, collection, field, op string, value interface{}) ([]Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Doc
	for id, data := range s.docs[collection] {
		fieldValue, ok := data[field]
		if !ok {
			continue
		}
		match, err := matches(fieldValue, op, value)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, Doc{ID: id, Data: CopyDoc(data)})
		}
	}
	return out, nil
}

func (s *MemoryStore) All(ctx context.Context, collection string) ([]Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Doc, 0, len(s.docs[collection]))
	for id, data := range s.docs[collection] {
		out = append(out, Doc{ID: id, Data: CopyDoc(data)})
	}
	return out, nil
}

func matches(fieldValue interface{}, op string, value interface{}) (bool, error) {
	if op == "==" {
		if cmp, ok := compare(fieldValue, value); ok {
			return cmp == 0, nil
		}
		return fieldValue == value, nil
	}

	cmp, ok := compare(fieldValue, value)
	if !ok {
		return false, nil
	}
	switch op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("store: unsupported operator %q", op)
	}
}

// compare orders two field values of the same kind. Numeric values are
// compared as float64 regardless of their original width.
func compare(a, b interface{}) (int, bool) {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		}
		return 0, true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
