// Package pgstore stores documents as JSONB rows in PostgreSQL.
package pgstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lilylongbay/kiwispark/internal/docstore"
)

// Options controls connection-pool behaviour.
type Options struct {
	MaxConns               int32
	MinConns               int32
	MaxConnIdleTime        time.Duration
	MaxConnLifetime        time.Duration
	ConnTimeout            time.Duration
	StatementCacheCapacity int
	Logger                 *zap.Logger
}

// Store implements docstore.Store on a single documents table.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	opts   Options
}

var _ docstore.Store = (*Store)(nil)

// New initializes a connection pool and validates connectivity with Ping.
func New(ctx context.Context, dbURL string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("pgstore: initializing connection pool",
		zap.Int32("max_conns", opts.MaxConns),
		zap.Int32("min_conns", opts.MinConns),
		zap.Duration("max_idle", opts.MaxConnIdleTime),
		zap.Duration("max_lifetime", opts.MaxConnLifetime),
		zap.Int("stmt_cache", opts.StatementCacheCapacity))

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.StatementCacheCapacity >= 0 {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
		cfg.ConnConfig.StatementCacheCapacity = opts.StatementCacheCapacity
	}

	connCtx := ctx
	if opts.ConnTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, opts.ConnTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(connCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("pgstore: database connection established")

	return &Store{pool: pool, logger: logger, opts: opts}, nil
}

// NewWithPool wraps an existing pool. Close will close it.
func NewWithPool(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.logger.Info("pgstore: closing connection pool")
	s.pool.Close()
	return nil
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store not initialized")
	}
	checkCtx := ctx
	if s.opts.ConnTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, s.opts.ConnTimeout)
		defer cancel()
	}
	return s.pool.Ping(checkCtx)
}

// Stats exposes pgxpool statistics for observability.
func (s *Store) Stats() *pgxpool.Stat {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Stat()
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	selectDoc = `
        SELECT data FROM documents
        WHERE collection = $1 AND id = $2
    `
	selectDocForUpdate = selectDoc + ` FOR UPDATE`
	insertDoc          = `
        INSERT INTO documents (collection, id, data)
        VALUES ($1, $2, $3::jsonb)
    `
	upsertDoc = `
        INSERT INTO documents (collection, id, data)
        VALUES ($1, $2, $3::jsonb)
        ON CONFLICT (collection, id)
        DO UPDATE SET data = EXCLUDED.data, updated_at = now()
    `
	mergeDoc = `
        UPDATE documents SET data = data || $3::jsonb, updated_at = now()
        WHERE collection = $1 AND id = $2
    `
)

func get(ctx context.Context, q querier, sql, collection, id string) (docstore.Doc, error) {
	var raw []byte
	if err := q.QueryRow(ctx, sql, collection, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, mapErr(err)
	}
	return decode(raw)
}

func create(ctx context.Context, q querier, collection, id string, doc docstore.Doc) error {
	payload, err := encode(doc)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, insertDoc, collection, id, payload); err != nil {
		return mapErr(err)
	}
	return nil
}

func set(ctx context.Context, q querier, collection, id string, doc docstore.Doc) error {
	payload, err := encode(doc)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, upsertDoc, collection, id, payload); err != nil {
		return mapErr(err)
	}
	return nil
}

// Get reads one document.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	return get(ctx, s.pool, selectDoc, collection, id)
}

// Create inserts doc; a taken id or a unique index hit yields ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, collection, id string, doc docstore.Doc) error {
	return create(ctx, s.pool, collection, id, doc)
}

// Set inserts or replaces doc.
func (s *Store) Set(ctx context.Context, collection, id string, doc docstore.Doc) error {
	return set(ctx, s.pool, collection, id, doc)
}

// Query runs a JSONB containment query over one collection.
func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	sql, args, err := buildQuery(collection, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, mapErr(err))
	}
	defer rows.Close()

	res := make([]docstore.Snapshot, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		res = append(res, docstore.Snapshot{ID: id, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, mapErr(err))
	}
	return res, nil
}

// buildQuery turns equality filters into one JSONB containment test and
// range filters into jsonb comparisons, which order numbers numerically.
func buildQuery(collection string, q docstore.Query) (string, []any, error) {
	if err := docstore.CheckOps(q.Where); err != nil {
		return "", nil, err
	}
	filter := make(map[string]any, len(q.Where))
	var ranges []docstore.Filter
	for _, f := range q.Where {
		if f.Operator() == docstore.OpEq {
			filter[f.Field] = encodeValue(f.Value)
			continue
		}
		ranges = append(ranges, f)
	}
	payload, err := json.Marshal(filter)
	if err != nil {
		return "", nil, fmt.Errorf("encode filter: %w", err)
	}

	sql := `
        SELECT id, data FROM documents
        WHERE collection = $1 AND data @> $2::jsonb`
	args := []any{collection, payload}

	for _, f := range ranges {
		bound, err := json.Marshal(encodeValue(f.Value))
		if err != nil {
			return "", nil, fmt.Errorf("encode bound for %s: %w", f.Field, err)
		}
		args = append(args, f.Field, bound)
		sql += fmt.Sprintf("\n          AND data -> $%d::text %s $%d::jsonb", len(args)-1, f.Operator(), len(args))
	}

	order := make([]string, 0, len(q.OrderBy)+1)
	for _, key := range q.OrderBy {
		dir := "ASC"
		if key.Desc {
			dir = "DESC"
		}
		args = append(args, key.Field)
		order = append(order, fmt.Sprintf("data -> $%d::text %s", len(args), dir))
	}
	order = append(order, "id ASC")
	sql += "\n        ORDER BY " + strings.Join(order, ", ")

	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf("\n        LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sql += fmt.Sprintf("\n        OFFSET $%d", len(args))
	}
	return sql, args, nil
}

// RunTransaction runs fn in a single SERIALIZABLE transaction. Reads lock
// their rows; serialization failures surface as ErrConflict.
func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", mapErr(err))
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(ctx, &transaction{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr(err)
	}
	return nil
}

type transaction struct {
	tx pgx.Tx
}

func (t *transaction) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	return get(ctx, t.tx, selectDocForUpdate, collection, id)
}

func (t *transaction) Create(ctx context.Context, collection, id string, doc docstore.Doc) error {
	return create(ctx, t.tx, collection, id, doc)
}

func (t *transaction) Set(ctx context.Context, collection, id string, doc docstore.Doc) error {
	return set(ctx, t.tx, collection, id, doc)
}

func (t *transaction) Update(ctx context.Context, collection, id string, fields docstore.Doc) error {
	payload, err := encode(fields)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, mergeDoc, collection, id, payload)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// mapErr translates SQLSTATE codes into docstore sentinels.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return fmt.Errorf("%w: %s", docstore.ErrConflict, pgErr.Message)
	case "23505":
		return fmt.Errorf("%w: %s", docstore.ErrAlreadyExists, pgErr.ConstraintName)
	}
	return err
}

func encode(doc docstore.Doc) ([]byte, error) {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = encodeValue(v)
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return payload, nil
}

// encodeValue writes times as fixed-width UTC strings so JSONB text order
// matches time order.
func encodeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(docstore.TimeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(docstore.TimeLayout)
	}
	return v
}

func decode(raw []byte) (docstore.Doc, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc docstore.Doc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = docstore.Doc{}
	}
	return doc, nil
}
