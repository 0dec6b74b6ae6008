package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"groupwarden.app/warden/common/id"
	"groupwarden.app/warden/common/logger"
	"groupwarden.app/warden/common/otel"
	"groupwarden.app/warden/core/config"
	"groupwarden.app/warden/core/db"
	"groupwarden.app/warden/internal/cache"
	"groupwarden.app/warden/internal/llm"
	"groupwarden.app/warden/internal/queue"
	"groupwarden.app/warden/internal/service"
	"groupwarden.app/warden/internal/store"
	"groupwarden.app/warden/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)
	logger.Setup(cfg)

	slog.InfoContext(ctx, "warden worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Enrichment.Group,
		"consumer_name", cfg.Enrichment.Consumer)

	// Different node id than the server so ids never collide.
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Enrichment.Stream)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Enrichment.Stream,
		Group:        cfg.Enrichment.Group,
		Consumer:     cfg.Enrichment.Consumer,
		DLQStream:    cfg.Enrichment.Stream + ":dlq",
		BatchSize:    10,
		Block:        5 * time.Second,
		MaxAttempts:  3,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	stores := store.NewStores(database.Pool())
	layers := cache.NewLayers(cache.NewRedisStore(redisClient), cfg.Cache, cfg.RateLimit)
	rehydrator := cache.NewRehydrator(layers, stores.Groups(), stores.GroupConfigs(), stores.Messages())

	services := service.NewServices(stores, layers, rehydrator, logNotifier{}, logDeleter{}, cfg)
	classifier := llm.NewClassifier(cfg.Classifier)

	w := worker.New(consumer, layers, services.ContextBuilder(), classifier, services.Moderator())

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(ctx)
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

// Side-effect delivery belongs to the chat-platform layer; the worker logs
// what it would have sent.
type logNotifier struct{}

func (logNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	slog.InfoContext(ctx, "treatment notice (not delivered)", "chat_id", chatID, "text", text)
	return nil
}

type logDeleter struct{}

func (logDeleter) DeleteMessage(ctx context.Context, chatID, platformMessageID int64) error {
	slog.InfoContext(ctx, "message deletion requested (not delivered)", "chat_id", chatID, "platform_message_id", platformMessageID)
	return nil
}

const banner = `
██╗    ██╗ █████╗ ██████╗ ██████╗ ███████╗███╗   ██╗
██║    ██║██╔══██╗██╔══██╗██╔══██╗██╔════╝████╗  ██║
██║ █╗ ██║███████║██████╔╝██║  ██║█████╗  ██╔██╗ ██║
██║███╗██║██╔══██║██╔══██╗██║  ██║██╔══╝  ██║╚██╗██║
╚███╔███╔╝██║  ██║██║  ██║██████╔╝███████╗██║ ╚████║
 ╚══╝╚══╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝ ╚══════╝╚═╝  ╚═══╝
`
