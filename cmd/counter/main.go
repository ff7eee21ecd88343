package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/footfall/internal/config"
	"github.com/your-org/footfall/internal/counting"
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

	entry, exit := cfg.Counting.Lines()
	slog.Info("starting footfall counter",
		"max_distance", cfg.Counting.MaxDistance,
		"max_age", cfg.Counting.MaxAge,
		"entry_line_y", entry,
		"exit_line_y", exit,
	)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

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
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	manager := counting.NewManager(producer, db, minioStore, cfg.Counting)

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session start/stop commands from the API
	sub, err := consumer.SubscribeControl(func(data []byte) {
		cmd, err := counting.ParseCommand(data)
		if err != nil {
			slog.Error("invalid control message", "error", err)
			return
		}
		if err := manager.HandleCommand(ctx, cmd); err != nil {
			slog.Error("handle control command", "action", cmd.Action, "session_id", cmd.SessionID, "error", err)
		}
	})
	if err != nil {
		slog.Error("subscribe control", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sub.Unsubscribe() }()

	// Start consuming detections
	err = consumer.ConsumeDetections(ctx, "counters", func(ctx context.Context, msg jetstream.Msg) error {
		var frame models.DetectionFrame
		if err := json.Unmarshal(msg.Data(), &frame); err != nil {
			slog.Error("unmarshal detection frame", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		// Errors here come from session settings; redelivery cannot fix them.
		if err := manager.ProcessFrame(ctx, frame); err != nil {
			slog.Error("process frame", "session_id", frame.SessionID, "frame", frame.FrameIndex, "error", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("start detection consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	metricsAddr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("GET /sessions/{id}/snapshot", manager.SnapshotHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, manager.ActiveCount())
	})
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		slog.Info("counter metrics listening", "addr", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down counter...")
	cancel()

	// ctx is already cancelled; summaries need their own deadline.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	manager.StopAll(stopCtx)

	if err := metricsSrv.Shutdown(stopCtx); err != nil {
		slog.Error("metrics server shutdown error", "error", err)
	}
	slog.Info("counter stopped")
}
