package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/footfall/internal/api"
	"github.com/your-org/footfall/internal/api/handlers"
	"github.com/your-org/footfall/internal/api/ws"
	"github.com/your-org/footfall/internal/config"
	"github.com/your-org/footfall/internal/models"
	"github.com/your-org/footfall/internal/observability"
	"github.com/your-org/footfall/internal/queue"
	"github.com/your-org/footfall/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting footfall API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create crossing consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store crossings and push them to WebSocket clients
	err = consumer.ConsumeCrossings(ctx, "api-crossings", func(ctx context.Context, msg jetstream.Msg) error {
		var event models.CrossingEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			slog.Error("unmarshal crossing", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		if err := db.CreateCrossingEvent(ctx, &event); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			slog.Warn("crossing for unregistered session", "session_id", event.SessionID, "track_id", event.TrackID)
		}

		hub.BroadcastCrossing(handlers.EventToResponse(&event))
		return nil
	})
	if err != nil {
		slog.Warn("start crossing consumer", "error", err)
	}

	// Relay live track snapshots
	sub, err := consumer.SubscribeSnapshots(func(subject string, data []byte) {
		id, err := uuid.Parse(strings.TrimPrefix(subject, queue.SnapshotsSubjectBase+"."))
		if err != nil {
			slog.Debug("snapshot on unexpected subject", "subject", subject)
			return
		}
		hub.BroadcastTracks(id, json.RawMessage(data))
	})
	if err != nil {
		slog.Warn("subscribe snapshots", "error", err)
	} else {
		defer func() { _ = sub.Unsubscribe() }()
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:    cfg.Server.APIKey,
		DB:        db,
		Objects:   minioStore,
		Publisher: producer,
		Hub:       hub,
		Checks: map[string]handlers.Check{
			"postgres": db.Ping,
			"minio":    minioStore.Ping,
			"nats":     func(context.Context) error { return producer.Ping() },
		},
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
