// Package memstore is an in-process docstore.Store. Transactions are
// optimistic: every document a body reads is recorded with its version and
// re-checked under the write lock at commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lilylongbay/kiwispark/internal/docstore"
)

type (
	// Store keeps every collection in memory.
	Store struct {
		mutex       sync.RWMutex
		collections map[string]map[string]*entry
		clock       uint64
	}

	entry struct {
		doc     docstore.Doc
		version uint64
	}
)

var _ docstore.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{collections: make(map[string]map[string]*entry)}
}

func (s *Store) table(collection string) map[string]*entry {
	t, ok := s.collections[collection]
	if !ok {
		t = make(map[string]*entry)
		s.collections[collection] = t
	}
	return t
}

// lookup must be called with the lock held.
func (s *Store) lookup(collection, id string) (*entry, bool) {
	t, ok := s.collections[collection]
	if !ok {
		return nil, false
	}
	e, ok := t[id]
	return e, ok
}

// put must be called with the write lock held.
func (s *Store) put(collection, id string, doc docstore.Doc) {
	s.clock++
	s.table(collection)[id] = &entry{doc: doc.Clone(), version: s.clock}
}

// Get returns a copy of the stored document.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if e, ok := s.lookup(collection, id); ok {
		return e.doc.Clone(), nil
	}
	return nil, docstore.ErrNotFound
}

// Create stores doc under id unless the id is taken.
func (s *Store) Create(ctx context.Context, collection, id string, doc docstore.Doc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.lookup(collection, id); ok {
		return docstore.ErrAlreadyExists
	}
	s.put(collection, id, doc)
	return nil
}

// Set stores doc under id, replacing any previous document.
func (s *Store) Set(ctx context.Context, collection, id string, doc docstore.Doc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.put(collection, id, doc)
	return nil
}

// Query filters, sorts and pages one collection. Ties on every sort key
// fall back to document id so results are stable.
func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := docstore.CheckOps(q.Where); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	res := make([]docstore.Snapshot, 0)
	for id, e := range s.collections[collection] {
		if matches(e.doc, q.Where) {
			res = append(res, docstore.Snapshot{ID: id, Data: e.doc.Clone()})
		}
	}
	s.mutex.RUnlock()

	sort.SliceStable(res, func(i, j int) bool {
		for _, key := range q.OrderBy {
			c := compare(res[i].Data[key.Field], res[j].Data[key.Field])
			if c == 0 {
				continue
			}
			if key.Desc {
				return c > 0
			}
			return c < 0
		}
		return res[i].ID < res[j].ID
	})

	if q.Offset > 0 {
		if q.Offset >= len(res) {
			return res[:0], nil
		}
		res = res[q.Offset:]
	}
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}
	return res, nil
}

// RunTransaction runs fn against a buffered view and commits it if nothing
// fn read has changed since.
func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &transaction{store: s, reads: make(map[key]uint64)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

// HealthCheck always succeeds.
func (s *Store) HealthCheck(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

type key struct {
	collection string
	id         string
}

type opKind int

const (
	opCreate opKind = iota
	opSet
	opUpdate
)

type write struct {
	kind opKind
	key  key
	doc  docstore.Doc
}

type transaction struct {
	store  *Store
	reads  map[key]uint64
	writes []write
	// pending is what each written key will hold after commit.
	pending map[key]docstore.Doc
}

// observe records the committed version of k, 0 when absent, and returns
// the committed document.
func (t *transaction) observe(k key) (docstore.Doc, bool) {
	t.store.mutex.RLock()
	defer t.store.mutex.RUnlock()

	e, ok := t.store.lookup(k.collection, k.id)
	if _, seen := t.reads[k]; !seen {
		if ok {
			t.reads[k] = e.version
		} else {
			t.reads[k] = 0
		}
	}
	if !ok {
		return nil, false
	}
	return e.doc.Clone(), true
}

func (t *transaction) current(k key) (docstore.Doc, bool) {
	if doc, ok := t.pending[k]; ok {
		return doc.Clone(), true
	}
	return t.observe(k)
}

func (t *transaction) stage(w write, after docstore.Doc) {
	if t.pending == nil {
		t.pending = make(map[key]docstore.Doc)
	}
	t.writes = append(t.writes, w)
	t.pending[w.key] = after
}

func (t *transaction) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc, ok := t.current(key{collection, id}); ok {
		return doc, nil
	}
	return nil, docstore.ErrNotFound
}

func (t *transaction) Create(ctx context.Context, collection, id string, doc docstore.Doc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := key{collection, id}
	if _, ok := t.current(k); ok {
		return docstore.ErrAlreadyExists
	}
	t.stage(write{kind: opCreate, key: k, doc: doc.Clone()}, doc.Clone())
	return nil
}

func (t *transaction) Set(ctx context.Context, collection, id string, doc docstore.Doc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.stage(write{kind: opSet, key: key{collection, id}, doc: doc.Clone()}, doc.Clone())
	return nil
}

func (t *transaction) Update(ctx context.Context, collection, id string, fields docstore.Doc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := key{collection, id}
	doc, ok := t.current(k)
	if !ok {
		return docstore.ErrNotFound
	}
	t.stage(write{kind: opUpdate, key: k, doc: fields.Clone()}, doc.Merge(fields))
	return nil
}

func (t *transaction) commit() error {
	s := t.store
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for k, version := range t.reads {
		e, ok := s.lookup(k.collection, k.id)
		switch {
		case ok && e.version != version:
			return docstore.ErrConflict
		case !ok && version != 0:
			return docstore.ErrConflict
		}
	}

	for _, w := range t.writes {
		switch w.kind {
		case opCreate, opSet:
			s.put(w.key.collection, w.key.id, w.doc)
		case opUpdate:
			e, _ := s.lookup(w.key.collection, w.key.id)
			var base docstore.Doc
			if e != nil {
				base = e.doc
			}
			s.put(w.key.collection, w.key.id, base.Merge(w.doc))
		}
	}
	return nil
}

func matches(doc docstore.Doc, filters []docstore.Filter) bool {
	for _, f := range filters {
		v, ok := doc[f.Field]
		if !ok {
			return false
		}
		c := compare(v, f.Value)
		switch f.Operator() {
		case docstore.OpGte:
			if c < 0 {
				return false
			}
		case docstore.OpLte:
			if c > 0 {
				return false
			}
		default:
			if c != 0 {
				return false
			}
		}
	}
	return true
}

// compare orders strings, numbers, bools and times. Values of different
// kinds compare by their formatted text.
func compare(a, b any) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}
	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v any) (float64, bool) {
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
