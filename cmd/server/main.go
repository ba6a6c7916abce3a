package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelvinpraises/vidrune/internal/api"
	"github.com/kelvinpraises/vidrune/internal/config"
	"github.com/kelvinpraises/vidrune/internal/database"
	"github.com/kelvinpraises/vidrune/internal/engine"
	"github.com/kelvinpraises/vidrune/internal/events"
	"github.com/kelvinpraises/vidrune/internal/hub"
	"github.com/kelvinpraises/vidrune/internal/logger"
	"github.com/kelvinpraises/vidrune/internal/search"
	"github.com/kelvinpraises/vidrune/internal/speech"
	"github.com/kelvinpraises/vidrune/internal/storage"
	"github.com/kelvinpraises/vidrune/internal/vision"
)

func main() {
	cfg := config.Load()

	l := logger.New(cfg.LogLevel, "vidrune")

	localStorage, err := storage.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		l.Error("failed to initialize storage", logger.Error(err))
		os.Exit(1)
	}

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		l.Error("failed to initialize database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	videoRepo := database.NewVideoRepository(db)
	runRepo := database.NewRunRepository(db)

	uploader, err := storage.NewArchiveUploader(cfg, l)
	if err != nil {
		l.Error("failed to initialize archive uploader", logger.Error(err))
		os.Exit(1)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.AmqpURL != "" {
		rmq, err := events.NewRabbitMQPublisher(cfg.AmqpURL, cfg.EventQueue, l)
		if err != nil {
			l.Error("failed to connect to event broker", logger.Error(err))
			os.Exit(1)
		}
		defer rmq.Close()
		publisher = rmq
	}

	fetcher := hub.NewFetcher(cfg.ModelHubURL, cfg.ModelCache)

	captionWorker := vision.NewWorker(
		vision.NewRuntimeCaptioner(vision.DefaultModelID, fetcher, vision.NewRuntimeClient(cfg.CaptionEndpoint), l),
		cfg.WorkerCallTimeout, l)
	speechWorker := speech.NewWorker(
		speech.NewRuntimeSynthesizer(speech.DefaultModelID, fetcher, speech.NewRuntimeClient(cfg.SpeechEndpoint), l),
		cfg.DefaultVoice, cfg.WorkerCallTimeout, l)

	svc := engine.NewService(engine.Options{
		Config:        cfg,
		Logger:        l,
		Storage:       localStorage,
		VideoRepo:     videoRepo,
		RunRepo:       runRepo,
		CaptionWorker: captionWorker,
		SpeechWorker:  speechWorker,
		Uploader:      uploader,
		Indexer:       search.NoopIndexer{},
		Publisher:     publisher,
	})
	defer svc.Close()

	app := &api.App{
		Storage:       localStorage,
		VideoRepo:     videoRepo,
		RunRepo:       runRepo,
		Engine:        svc,
		Log:           l,
		MaxUploadSize: cfg.MaxUploadSize,
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: api.NewRouter(app),
	}

	go func() {
		l.Info("server starting",
			logger.Int("port", cfg.Port),
			logger.String("upload_dir", cfg.UploadDir),
			logger.String("db_path", cfg.DBPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Error("server failed", logger.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		l.Error("forced shutdown", logger.Error(err))
	}
}
