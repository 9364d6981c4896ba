package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"docprep/api/internal/app"
	"docprep/api/internal/blob"
	"docprep/api/internal/config"
	"docprep/api/internal/email"
	"docprep/api/internal/export"
	"docprep/api/internal/history"
	"docprep/api/internal/idempotency"
	"docprep/api/internal/search"
	"docprep/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.Pool{MaxOpen: cfg.DBMaxOpenConns, MaxIdle: cfg.DBMaxIdleConns})
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		log.Fatalf("failed to create history dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	deps := app.Dependencies{
		History: history.New(cfg.HistoryDir),
		Export:  export.NewService(),
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	deps.Search = searchService

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() {
		deps.Mail = mailer
	} else {
		log.Printf("SMTP not configured, signing requests will not be emailed")
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobs, err := blob.NewStore(blob.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("minio client failed: %v", err)
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			log.Fatalf("minio bucket failed: %v", err)
		}
		deps.Blobs = blobs
	} else {
		log.Printf("MINIO_ENDPOINT not set, document uploads disabled")
	}

	service := app.New(cfg, dataStore, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for idempotent request replay")
		replay, err := idempotency.NewRedisStore(cfg.RedisURL, cfg.IdempotencyTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer replay.Close()
		httpServer.WithReplayStore(replay)
	}

	go searchService.ReindexAllFromPG(ctx)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Docprep API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
