package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Hyeon6492/LifeBit/internal/config"
	"github.com/Hyeon6492/LifeBit/internal/db"
	"github.com/Hyeon6492/LifeBit/internal/events"
	"github.com/Hyeon6492/LifeBit/internal/server"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("database ping failed: %v", err)
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("database migrate failed: %v", err)
		}
	}
	if err := server.ValidateRuntimeSchema(ctx, pool); err != nil {
		log.Fatalf("database schema mismatch: %v", err)
	}

	opts := []server.Option{}
	if cfg.STTProvider == config.STTProviderGoogle {
		stt, err := server.NewGoogleSpeechTranscriber(ctx, cfg)
		if err != nil {
			log.Printf("google speech disabled: %v", err)
		} else {
			opts = append(opts, server.WithTranscriber(stt))
		}
	}
	if strings.TrimSpace(cfg.AudioBucket) != "" {
		store, err := server.NewS3AudioStore(ctx, cfg)
		if err != nil {
			log.Fatalf("audio store init failed: %v", err)
		}
		opts = append(opts, server.WithAudioStore(store))
	}
	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.RecordEventsTopic)
		log.Printf("record events enabled brokers=%s topic=%s", strings.Join(cfg.KafkaBrokers, ","), cfg.RecordEventsTopic)
	}
	defer publisher.Close()
	opts = append(opts, server.WithPublisher(publisher))
	if !cfg.AIEnabled() {
		log.Printf("OPENAI_API_KEY is not set; chat, voice and nutrition estimates run in fallback mode")
	}

	app := server.New(cfg, pool, opts...)
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("lifebit ai api listening on http://localhost:%s%s", cfg.AppPort, cfg.APIPrefix)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
