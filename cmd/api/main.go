package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/annotate/internal/api"
	"github.com/your-org/annotate/internal/api/ws"
	"github.com/your-org/annotate/internal/config"
	"github.com/your-org/annotate/internal/mail"
	"github.com/your-org/annotate/internal/observability"
	"github.com/your-org/annotate/internal/queue"
	"github.com/your-org/annotate/internal/storage"
	"github.com/your-org/annotate/internal/store"
	"github.com/your-org/annotate/internal/vision"
	"github.com/your-org/annotate/pkg/dto"
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

	slog.Info("starting annotation API service", "port", cfg.Server.Port)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Relay project events to connected WebSocket clients
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	go func() {
		err := consumer.SubscribeEvents(ctx, func(event queue.ProjectEvent) {
			hub.BroadcastEvent(&dto.WSEvent{
				Type:      event.Type,
				ProjectID: event.ProjectID,
				VideoID:   event.VideoID,
			})
		})
		if err != nil {
			slog.Warn("event subscription stopped", "error", err)
		}
	}()

	// Mask predictor for the semi-auto endpoints. The API stays up
	// without it.
	var predictor vision.MaskPredictor

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("onnx runtime init failed, semi-auto annotation unavailable", "error", err)
	} else {
		p, err := vision.NewONNXPredictor(cfg.Vision.ModelsDir)
		if err != nil {
			slog.Warn("mask predictor init failed, semi-auto annotation unavailable", "error", err)
		} else {
			predictor = p
			defer p.Close()
			defer ort.DestroyEnvironment()
			slog.Info("mask predictor ready")
		}
	}

	// Mailer is optional; signup still works, codes are only logged.
	var mailer mail.Sender
	if cfg.Mail.Host != "" {
		mailer = mail.New(cfg.Mail)
	} else {
		slog.Warn("mail not configured, verification codes will not be delivered")
	}

	router := api.NewRouter(api.RouterConfig{
		Store:       st,
		Producer:    producer,
		Hub:         hub,
		Mailer:      mailer,
		Predictor:   predictor,
		CachePing:   cache,
		DurablePing: durable,
	})

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

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
