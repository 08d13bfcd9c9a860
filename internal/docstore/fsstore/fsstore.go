// Package fsstore is a docstore.Store on Cloud Firestore.
package fsstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lilylongbay/kiwispark/internal/docstore"
)

// Store wraps a Firestore client.
type Store struct {
	client *firestore.Client
	logger *zap.Logger
}

var _ docstore.Store = (*Store)(nil)

// New opens the Firestore client of a Firebase app.
func New(ctx context.Context, app *firebase.App, logger *zap.Logger) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return NewWithClient(client, logger), nil
}

// NewWithClient wraps an existing client. Close will close it.
func NewWithClient(client *firestore.Client, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, logger: logger}
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return docstore.Doc(snap.Data()), nil
}

func (s *Store) Create(ctx context.Context, collection, id string, doc docstore.Doc) error {
	_, err := s.client.Collection(collection).Doc(id).Create(ctx, map[string]any(doc))
	return mapErr(err)
}

func (s *Store) Set(ctx context.Context, collection, id string, doc docstore.Doc) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, map[string]any(doc))
	return mapErr(err)
}

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := docstore.CheckOps(q.Where); err != nil {
		return nil, err
	}
	query := s.client.Collection(collection).Query
	for _, f := range q.Where {
		query = query.Where(f.Field, string(f.Operator()), f.Value)
	}
	for _, key := range q.OrderBy {
		dir := firestore.Asc
		if key.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(key.Field, dir)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	it := query.Documents(ctx)
	defer it.Stop()

	res := make([]docstore.Snapshot, 0)
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, mapErr(err))
		}
		res = append(res, docstore.Snapshot{ID: snap.Ref.ID, Data: docstore.Doc(snap.Data())})
	}
	return res, nil
}

// RunTransaction makes a single attempt; contention is reported as
// ErrConflict so the caller decides whether to retry.
func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	var bodyErr error
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		bodyErr = fn(ctx, &transaction{client: s.client, tx: tx})
		return bodyErr
	}, firestore.MaxAttempts(1))
	if err == nil {
		return nil
	}
	if bodyErr != nil {
		return bodyErr
	}
	s.logger.Debug("fsstore: transaction failed", zap.Error(err))
	return mapErr(err)
}

func (s *Store) HealthCheck(ctx context.Context) error {
	// Any round trip will do; a missing document is a healthy answer.
	_, err := s.client.Collection("_health").Doc("ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

type transaction struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (t *transaction) ref(collection, id string) *firestore.DocumentRef {
	return t.client.Collection(collection).Doc(id)
}

func (t *transaction) Get(_ context.Context, collection, id string) (docstore.Doc, error) {
	snap, err := t.tx.Get(t.ref(collection, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return docstore.Doc(snap.Data()), nil
}

func (t *transaction) Create(_ context.Context, collection, id string, doc docstore.Doc) error {
	return mapErr(t.tx.Create(t.ref(collection, id), map[string]any(doc)))
}

func (t *transaction) Set(_ context.Context, collection, id string, doc docstore.Doc) error {
	return mapErr(t.tx.Set(t.ref(collection, id), map[string]any(doc)))
}

func (t *transaction) Update(_ context.Context, collection, id string, fields docstore.Doc) error {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return mapErr(t.tx.Update(t.ref(collection, id), updates))
}

// mapErr translates gRPC status codes into docstore sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", docstore.ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", docstore.ErrAlreadyExists, err)
	case codes.Aborted:
		return fmt.Errorf("%w: %v", docstore.ErrConflict, err)
	}
	return err
}
