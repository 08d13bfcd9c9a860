package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/lilylongbay/kiwispark/internal/cache"
	"github.com/lilylongbay/kiwispark/internal/catalog"
	"github.com/lilylongbay/kiwispark/internal/config"
	"github.com/lilylongbay/kiwispark/internal/docstore"
	"github.com/lilylongbay/kiwispark/internal/docstore/fsstore"
	"github.com/lilylongbay/kiwispark/internal/docstore/memstore"
	"github.com/lilylongbay/kiwispark/internal/docstore/mongostore"
	"github.com/lilylongbay/kiwispark/internal/docstore/pgstore"
	"github.com/lilylongbay/kiwispark/internal/events"
	"github.com/lilylongbay/kiwispark/internal/firebaseapp"
	httpserver "github.com/lilylongbay/kiwispark/internal/http"
	"github.com/lilylongbay/kiwispark/internal/identity"
	"github.com/lilylongbay/kiwispark/internal/logging"
	"github.com/lilylongbay/kiwispark/internal/metrics"
	"github.com/lilylongbay/kiwispark/internal/reviews"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var app *firebase.App
	if cfg.StoreDriver == config.DriverFirestore || cfg.AuthMode == config.AuthFirebase {
		var err error
		app, err = firebaseapp.New(initCtx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			return err
		}
	}

	st, err := openStore(initCtx, cfg, app, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	verifier, err := buildVerifier(initCtx, cfg, app, st, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	opts := []reviews.Option{
		reviews.WithLogger(logger.Named("reviews")),
		reviews.WithMaxAttempts(cfg.TxMaxAttempts),
		reviews.WithRecorder(m),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() { _ = rdb.Close() }()
		ratingCache := cache.NewRedisCache(rdb, time.Duration(cfg.RatingCacheTTLSecs)*time.Second)
		if err := ratingCache.Ping(initCtx); err != nil {
			logger.Warn("redis unreachable, rating reads fall back to the store", zap.Error(err))
		}
		opts = append(opts, reviews.WithCache(ratingCache))
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger.Named("events"))
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("close kafka producer", zap.Error(err))
			}
		}()
		opts = append(opts, reviews.WithPublisher(producer))
	}

	coord := reviews.New(st, verifier, opts...)
	cat := catalog.New(st, verifier, logger.Named("catalog"))
	server := httpserver.New(cfg, coord, cat, m, logger.Named("http"))

	logger.Info("starting server",
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreDriver),
		zap.String("auth", cfg.AuthMode))

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	var serveErr error
	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("graceful shutdown error", zap.Error(err))
	}
	return serveErr
}

func openStore(ctx context.Context, cfg config.Config, app *firebase.App, logger *zap.Logger) (docstore.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		st, err := pgstore.New(ctx, cfg.DBURL, pgstore.Options{
			MaxConns:               int32(cfg.DBMaxConns),
			MinConns:               int32(cfg.DBMinConns),
			MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
			MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
			ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
			StatementCacheCapacity: cfg.DBStatementCache,
			Logger:                 logger.Named("pgstore"),
		})
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		return st, nil
	case config.DriverFirestore:
		st, err := fsstore.New(ctx, app, logger.Named("fsstore"))
		if err != nil {
			return nil, fmt.Errorf("connect firestore: %w", err)
		}
		return st, nil
	case config.DriverMongo:
		st, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase, logger.Named("mongostore"))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		return st, nil
	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func buildVerifier(ctx context.Context, cfg config.Config, app *firebase.App, st docstore.Store, logger *zap.Logger) (identity.Verifier, error) {
	switch cfg.AuthMode {
	case config.AuthJWT:
		return identity.NewJWTVerifier(cfg.JWTSecret), nil
	case config.AuthFirebase:
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("init firebase auth: %w", err)
		}
		return identity.NewFirebaseVerifier(client, st, logger.Named("identity")), nil
	case config.AuthHTTP:
		v, err := identity.NewHTTPVerifier(cfg.IdentityURL, time.Duration(cfg.IdentityTimeoutSecs)*time.Second, logger.Named("identity"))
		if err != nil {
			return nil, fmt.Errorf("init identity client: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}
