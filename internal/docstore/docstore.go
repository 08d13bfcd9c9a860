// Package docstore describes the transactional document store the review
// service persists to. Backends live in subpackages.
package docstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: not found")
	// ErrAlreadyExists is returned by Create when the id is taken.
	ErrAlreadyExists = errors.New("docstore: already exists")
	// ErrConflict is returned by RunTransaction when a concurrent
	// transaction invalidated what the body read. The body may be re-run.
	ErrConflict = errors.New("docstore: transaction conflict")
)

// Collection names.
const (
	Users   = "users"
	Coaches = "coaches"
	Courses = "courses"
	Reviews = "reviews"
	Replies = "replies"
)

// Doc is a document's field map.
type Doc map[string]any

// Snapshot is a document read together with its id.
type Snapshot struct {
	ID   string
	Data Doc
}

// Op is a filter comparison.
type Op string

const (
	OpEq  Op = "=="
	OpGte Op = ">="
	OpLte Op = "<="
)

// Filter compares a top-level field with a value. A zero Op means OpEq.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Operator returns the effective comparison.
func (f Filter) Operator() Op {
	if f.Op == "" {
		return OpEq
	}
	return f.Op
}

// ErrUnsupportedOp is returned by Query for an unknown filter operator.
var ErrUnsupportedOp = errors.New("docstore: unsupported filter operator")

// CheckOps reports the first filter with an operator backends do not know.
func CheckOps(filters []Filter) error {
	for _, f := range filters {
		switch f.Operator() {
		case OpEq, OpGte, OpLte:
		default:
			return fmt.Errorf("%w %q on %s", ErrUnsupportedOp, f.Op, f.Field)
		}
	}
	return nil
}

// SortKey is one ORDER BY term.
type SortKey struct {
	Field string
	Desc  bool
}

// Query selects documents of one collection. Results are ordered by the
// sort keys in turn, then by document id.
type Query struct {
	Where   []Filter
	OrderBy []SortKey
	Offset  int
	Limit   int
}

// Where starts a query with a single equality filter.
func Where(field string, value any) Query {
	return Query{Where: []Filter{{Field: field, Op: OpEq, Value: value}}}
}

// And adds an equality filter.
func (q Query) And(field string, value any) Query {
	return q.Compare(field, OpEq, value)
}

// Compare adds a filter with an explicit operator.
func (q Query) Compare(field string, op Op, value any) Query {
	q.Where = append(append([]Filter(nil), q.Where...), Filter{Field: field, Op: op, Value: value})
	return q
}

// Order appends a sort key.
func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = append(append([]SortKey(nil), q.OrderBy...), SortKey{Field: field, Desc: desc})
	return q
}

// Skip drops the first n matches.
func (q Query) Skip(n int) Query {
	q.Offset = n
	return q
}

// Take caps the number of results.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Getter reads a single document. Both Store and Tx implement it.
type Getter interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
}

// Tx is the view of the store inside RunTransaction. Reads observe the
// transaction's snapshot; writes become visible only on commit.
type Tx interface {
	Getter
	Create(ctx context.Context, collection, id string, doc Doc) error
	Set(ctx context.Context, collection, id string, doc Doc) error
	Update(ctx context.Context, collection, id string, fields Doc) error
}

// TxFunc is a transaction body. Returning a non-nil error aborts the
// transaction and RunTransaction returns that error unchanged.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the document store collaborator.
type Store interface {
	Getter
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)
	Create(ctx context.Context, collection, id string, doc Doc) error
	Set(ctx context.Context, collection, id string, doc Doc) error
	// RunTransaction runs fn once. It returns ErrConflict when the commit
	// lost a race; retrying is the caller's decision.
	RunTransaction(ctx context.Context, fn TxFunc) error
	HealthCheck(ctx context.Context) error
	Close() error
}
