// Package mongostore is a docstore.Store on MongoDB. Document ids map to
// _id; transactions need a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/lilylongbay/kiwispark/internal/docstore"
)

const (
	labelTransient     = "TransientTransactionError"
	labelUnknownCommit = "UnknownTransactionCommitResult"
	codeWriteConflict  = 112

	// maxCommitAttempts bounds commit retries on an unknown commit result.
	maxCommitAttempts = 3
)

// Store wraps one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

var _ docstore.Store = (*Store)(nil)

// New connects to uri and pings the primary.
func New(ctx context.Context, uri, database string, logger *zap.Logger) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewWithClient(client, database, logger), nil
}

// NewWithClient wraps a connected client.
func NewWithClient(client *mongo.Client, database string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("mongostore: using database", zap.String("database", database))
	return &Store{client: client, db: client.Database(database), logger: logger}
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	return get(ctx, s.db, collection, id)
}

func (s *Store) Create(ctx context.Context, collection, id string, doc docstore.Doc) error {
	return create(ctx, s.db, collection, id, doc)
}

func (s *Store) Set(ctx context.Context, collection, id string, doc docstore.Doc) error {
	return set(ctx, s.db, collection, id, doc)
}

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	filter, err := buildFilter(q.Where)
	if err != nil {
		return nil, err
	}

	sortKeys := make(bson.D, 0, len(q.OrderBy)+1)
	for _, key := range q.OrderBy {
		dir := 1
		if key.Desc {
			dir = -1
		}
		sortKeys = append(sortKeys, bson.E{Key: key.Field, Value: dir})
	}
	sortKeys = append(sortKeys, bson.E{Key: "_id", Value: 1})

	opts := options.Find().SetSort(sortKeys)
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, mapErr(err))
	}
	defer cur.Close(ctx)

	res := make([]docstore.Snapshot, 0)
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		id, doc := fromBSON(raw)
		res = append(res, docstore.Snapshot{ID: id, Data: doc})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, mapErr(err))
	}
	return res, nil
}

var mongoOps = map[docstore.Op]string{
	docstore.OpEq:  "$eq",
	docstore.OpGte: "$gte",
	docstore.OpLte: "$lte",
}

// buildFilter groups operators per field so a range on one field becomes
// {field: {$gte: lo, $lte: hi}}.
func buildFilter(filters []docstore.Filter) (bson.M, error) {
	if err := docstore.CheckOps(filters); err != nil {
		return nil, err
	}
	filter := bson.M{}
	for _, f := range filters {
		cond, ok := filter[f.Field].(bson.M)
		if !ok {
			cond = bson.M{}
			filter[f.Field] = cond
		}
		cond[mongoOps[f.Operator()]] = f.Value
	}
	return filter, nil
}

// RunTransaction runs fn inside a session transaction. Write conflicts and
// other transient transaction errors surface as ErrConflict.
func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := fn(sc, &transaction{db: s.db, sc: sc}); err != nil {
			_ = sc.AbortTransaction(context.WithoutCancel(sc))
			return err
		}
		if err := commitWithRetry(sc, sc.CommitTransaction, s.logger); err != nil {
			s.logger.Debug("mongostore: commit failed", zap.Error(err))
			return mapErr(err)
		}
		return nil
	})
}

// commitWithRetry retries only the commit while its outcome is unknown. The
// body is not rerun: the first commit may have applied, and commitTransaction
// is idempotent on the server.
func commitWithRetry(ctx context.Context, commit func(context.Context) error, logger *zap.Logger) error {
	var err error
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		err = commit(ctx)
		if err == nil || !hasLabel(err, labelUnknownCommit) {
			return err
		}
		logger.Warn("mongostore: unknown commit result, retrying commit", zap.Int("attempt", attempt), zap.Error(err))
	}
	return fmt.Errorf("commit outcome unknown after %d attempts: %w", maxCommitAttempts, err)
}

func hasLabel(err error, label string) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorLabel(label)
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

type transaction struct {
	db *mongo.Database
	sc mongo.SessionContext
}

// Operations run on the session context so they join the transaction.

func (t *transaction) Get(_ context.Context, collection, id string) (docstore.Doc, error) {
	return get(t.sc, t.db, collection, id)
}

func (t *transaction) Create(_ context.Context, collection, id string, doc docstore.Doc) error {
	return create(t.sc, t.db, collection, id, doc)
}

func (t *transaction) Set(_ context.Context, collection, id string, doc docstore.Doc) error {
	return set(t.sc, t.db, collection, id, doc)
}

func (t *transaction) Update(_ context.Context, collection, id string, fields docstore.Doc) error {
	res, err := t.db.Collection(collection).UpdateOne(t.sc, bson.M{"_id": id}, bson.M{"$set": bson.M(fields)})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func get(ctx context.Context, db *mongo.Database, collection, id string) (docstore.Doc, error) {
	var raw bson.M
	err := db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, docstore.ErrNotFound
		}
		return nil, mapErr(err)
	}
	_, doc := fromBSON(raw)
	return doc, nil
}

func create(ctx context.Context, db *mongo.Database, collection, id string, doc docstore.Doc) error {
	_, err := db.Collection(collection).InsertOne(ctx, toBSON(id, doc))
	return mapErr(err)
}

func set(ctx context.Context, db *mongo.Database, collection, id string, doc docstore.Doc) error {
	_, err := db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, toBSON(id, doc), options.Replace().SetUpsert(true))
	return mapErr(err)
}

func toBSON(id string, doc docstore.Doc) bson.M {
	out := make(bson.M, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["_id"] = id
	return out
}

// fromBSON strips _id and converts driver value types into the plain Go
// types docstore.Doc accessors understand.
func fromBSON(raw bson.M) (string, docstore.Doc) {
	id, _ := raw["_id"].(string)
	doc := make(docstore.Doc, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		doc[k] = normalize(v)
	}
	return id, doc
}

func normalize(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	}
	return v
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", docstore.ErrAlreadyExists, err)
	}
	// An unknown commit result is never a conflict: rerunning the body could
	// report a committed write as a duplicate.
	if hasLabel(err, labelUnknownCommit) {
		return err
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorLabel(labelTransient) || se.HasErrorCode(codeWriteConflict)) {
		return fmt.Errorf("%w: %v", docstore.ErrConflict, err)
	}
	return err
}
