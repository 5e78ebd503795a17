package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"discovery/api/internal/app"
	"discovery/api/internal/blob"
	"discovery/api/internal/config"
	"discovery/api/internal/form"
	"discovery/api/internal/intake"
	"discovery/api/internal/logging"
	"discovery/api/internal/observability"
	"discovery/api/internal/search"
	"discovery/api/internal/snapshot"
	"discovery/api/internal/store"
	"discovery/api/internal/webhook"
	"discovery/api/internal/wizard"
)

func main() {
	cfg := config.Load()
	log, err := logging.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.Init(ctx, log, observability.Config{
		Enabled:     cfg.OtelEnabled,
		Exporter:    cfg.OtelExporter,
		Endpoint:    cfg.OtelEndpoint,
		ServiceName: cfg.OtelServiceName,
		Environment: cfg.Environment,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	def, err := form.LoadDefinition(cfg.FormDefinitionPath)
	if err != nil {
		log.Fatal("form definition failed", "error", err)
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatal("migrations failed", "error", err)
	}
	dataStore := store.NewPostgresStore(db)

	objects, closeObjects, err := openObjectStore(ctx, cfg)
	if err != nil {
		log.Fatal("object store failed", "backend", cfg.BlobBackend, "error", err)
	}
	defer closeObjects()
	uploader := blob.NewUploader(objects, cfg.BlobPrefix, log)

	snapshots, err := openSnapshotCache(ctx, cfg)
	if err != nil {
		log.Fatal("snapshot cache failed", "backend", cfg.SnapshotBackend, "error", err)
	}
	defer snapshots.Close()

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(db), log)
	go searchService.ReindexAllFromPG(ctx)

	notifier := webhook.New(webhook.Config{URL: cfg.WebhookURL, Timeout: cfg.WebhookTimeout}, log)
	defer notifier.Wait()
	if !notifier.IsConfigured() {
		log.Info("webhook disabled, WEBHOOK_URL is empty")
	}

	intakeService := intake.NewService(dataStore, uploader, def, log,
		intake.WithNotifier(notifier),
		intake.WithIndexer(searchService),
	)
	registry := wizard.NewRegistry(wizard.Deps{
		Definition: def,
		Intake:     intakeService,
		Log:        log,
	}, snapshots, cfg.SessionIdleTTL)
	autosaver := snapshot.NewAutosaver(snapshots, registry, cfg.SnapshotInterval, log)

	service := app.NewService(app.Deps{
		Definition:  def,
		Sessions:    registry,
		Submissions: dataStore,
		Search:      searchService,
		Checks: []app.Check{
			{Name: "database", Ping: dataStore.Ping},
			{Name: "snapshots", Ping: snapshots.Ping},
		},
		Log: log,
	})
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("discovery form API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return autosaver.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown error", "error", err)
		}
		// Final snapshot of every live session before exit.
		autosaver.Tick(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
	}
	log.Info("shutdown complete")
}

func openObjectStore(ctx context.Context, cfg config.Config) (blob.ObjectStore, func(), error) {
	switch cfg.BlobBackend {
	case "gcs":
		gcs, err := blob.NewGCSStore(ctx, cfg.BlobBucket, cfg.GCSCredentials, cfg.BlobPublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return gcs, func() { _ = gcs.Close() }, nil
	case "minio", "s3", "":
		minioStore, err := blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:   cfg.MinioEndpoint,
			AccessKey:  cfg.MinioAccessKey,
			SecretKey:  cfg.MinioSecretKey,
			UseSSL:     cfg.MinioUseSSL,
			Bucket:     cfg.BlobBucket,
			PublicBase: cfg.BlobPublicBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return minioStore, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

func openSnapshotCache(ctx context.Context, cfg config.Config) (snapshot.Cache, error) {
	switch cfg.SnapshotBackend {
	case "sqlite":
		cache, err := snapshot.NewSQLiteCache(ctx, cfg.SnapshotSQLitePath)
		if err != nil {
			return nil, err
		}
		return cache, nil
	case "redis", "":
		cache, err := snapshot.NewRedisCache(cfg.RedisURL, 0)
		if err != nil {
			return nil, err
		}
		return cache, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}
}
