package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/annotate/internal/config"
	"github.com/your-org/annotate/internal/observability"
	"github.com/your-org/annotate/internal/queue"
	"github.com/your-org/annotate/internal/storage"
	"github.com/your-org/annotate/internal/store"
	"github.com/your-org/annotate/internal/vision"
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

	slog.Info("starting interpolation worker", "workers", cfg.Vision.Workers)

	// Connect to Redis
	cache, err := storage.NewRedisCache(cfg.Cache)
	if err != nil {
		slog.Error("connect to redis", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	// Connect to MongoDB
	durable, err := storage.NewMongoStore(cfg.Mongo)
	if err != nil {
		slog.Error("connect to mongo", "error", err)
		os.Exit(1)
	}
	defer durable.Close(context.Background())

	st := store.New(cache, durable, cfg.Project)

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

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	flow := vision.NewDenseFlow(
		cfg.Vision.FlowWindow,
		cfg.Vision.FlowIterations,
		cfg.Vision.FlowLevels,
		cfg.Vision.FlowScale,
	)
	engine := vision.NewEngine(flow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(ctx context.Context, task queue.InterpolationTask) error {
		if err := interpolate(ctx, st, engine, task); err != nil {
			return err
		}

		err := producer.PublishEvent(ctx, queue.ProjectEvent{
			Type:      "interpolation_done",
			ProjectID: task.ProjectID,
			VideoID:   task.VideoID,
		})
		if err != nil {
			slog.Warn("publish interpolation event", "error", err)
		}
		return nil
	}

	go func() {
		if err := consumer.RunInterpolationWorkers(ctx, cfg.Vision.Workers, handler); err != nil {
			slog.Error("interpolation consumer stopped", "error", err)
			os.Exit(1)
		}
	}()

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
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

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

// interpolate loads the video and its frame images, propagates keyframe
// annotations forward and stores the result.
func interpolate(ctx context.Context, st *store.AnnotationStore, engine *vision.Engine, task queue.InterpolationTask) error {
	video, err := st.GetVideoAnnotation(ctx, task.ProjectID, task.VideoID)
	if err != nil {
		return fmt.Errorf("load video %s: %w", task.VideoID, err)
	}
	if video == nil {
		// Deleted between enqueue and pickup. Drop the task.
		slog.Warn("video gone, dropping task",
			"project_id", task.ProjectID, "video_id", task.VideoID)
		return nil
	}

	payloads, err := st.FramePayloads(ctx, video)
	if err != nil {
		return fmt.Errorf("load frame payloads: %w", err)
	}

	grays := make([]*image.Gray, 0, len(payloads))
	for i, payload := range payloads {
		gray, err := vision.DecodeGray(payload)
		if err != nil {
			return fmt.Errorf("decode frame %d: %w", i, err)
		}
		grays = append(grays, gray)
	}

	if err := engine.Propagate(video, grays); err != nil {
		return fmt.Errorf("propagate annotations: %w", err)
	}

	if err := st.StoreVideoAnnotation(ctx, task.ProjectID, video); err != nil {
		return fmt.Errorf("store video: %w", err)
	}

	slog.Info("interpolation complete",
		"project_id", task.ProjectID, "video_id", task.VideoID, "frames", len(grays))
	return nil
}
