package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cancelkit/cancelkit/internal/api"
	"github.com/cancelkit/cancelkit/internal/catalog"
	"github.com/cancelkit/cancelkit/internal/config"
	"github.com/cancelkit/cancelkit/internal/dispatch"
	"github.com/cancelkit/cancelkit/internal/filestore"
	"github.com/cancelkit/cancelkit/internal/mailer"
	"github.com/cancelkit/cancelkit/internal/pending"
	"github.com/cancelkit/cancelkit/internal/render"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to ping redis: %v", err)
	}
	log.Println("Connected to redis")

	// Template override storage
	var files filestore.Store
	if cfg.FileStore.Type == "s3" {
		files, err = filestore.NewS3Store(ctx, cfg.FileStore.S3Bucket, cfg.FileStore.AWSRegion)
		if err != nil {
			log.Fatalf("Failed to initialize S3 file store: %v", err)
		}
		log.Printf("Template overrides from s3://%s", cfg.FileStore.S3Bucket)
	} else {
		files, err = filestore.NewLocalStore(cfg.FileStore.LocalPath)
		if err != nil {
			log.Fatalf("Failed to initialize local file store: %v", err)
		}
		log.Printf("Template overrides from %s", cfg.FileStore.LocalPath)
	}

	// Outbound mail
	sesMailer, err := mailer.NewSESMailer(ctx, cfg.SES, cfg.Mail)
	if err != nil {
		log.Fatalf("Failed to initialize SES mailer: %v", err)
	}

	engine := render.NewEngine()
	store := catalog.NewStore(db)
	resolver := catalog.NewTemplateResolver(store, files, nil)
	pendingStore := pending.NewStore(redisClient, cfg.Pending.TTL())
	notices := mailer.NewNoticeMailer(sesMailer, engine, cfg.Mail.ServiceAddress)

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		Subscriptions: store,
		Templates:     resolver,
		Engine:        engine,
		Mailer:        sesMailer,
		Notices:       notices,
		Pending:       pendingStore,
		BaseURL:       cfg.Server.BaseURL,
		DirectSend:    cfg.Dispatch.DirectSend(),
	})

	queue := dispatch.NewQueue(redisClient)
	worker := dispatch.NewWorker(queue, dispatcher, pendingStore, cfg.Dispatch.NumWorkers, nil)
	if err := worker.Start(); err != nil {
		log.Fatalf("Failed to start dispatch workers: %v", err)
	}
	defer worker.Stop()

	// Scheduled sweep of expired pending requests. Dispatch also sweeps
	// opportunistically; this catches requests that were never confirmed.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("*/5 * * * *", func() {
		sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer sweepCancel()
		if n, err := pendingStore.SweepExpired(sweepCtx); err != nil {
			log.Printf("[Sweep] error: %v", err)
		} else if n > 0 {
			log.Printf("[Sweep] removed %d expired pending requests", n)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule pending sweep: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	handlers := api.NewHandlers(api.HandlersConfig{
		Catalog:    store,
		Templates:  resolver,
		Engine:     engine,
		Docx:       render.NewDocxConverter(cfg.Render.DocxConverter),
		Dispatcher: dispatcher,
		Queue:      queue,
		Pending:    pendingStore,
		Notices:    notices,
	})
	server := api.NewServer(handlers)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
