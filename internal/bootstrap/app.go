package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"campusrag/internal/ai"
	appsvc "campusrag/internal/app"
	"campusrag/internal/cache"
	"campusrag/internal/config"
	"campusrag/internal/ingest"
	"campusrag/internal/platform/blobstore"
	"campusrag/internal/platform/database"
	rabbitmqClient "campusrag/internal/platform/rabbitmq"
	redisClient "campusrag/internal/platform/redis"
	"campusrag/internal/pkg/pdfextract"
	"campusrag/internal/repository"
	"campusrag/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *gorm.DB
	Redis  *redis.Client    // nil unless redis.enabled
	MQConn *amqp.Connection // nil unless rag.queue = "rabbitmq"

	ChatService     *appsvc.ChatService
	DocumentService *appsvc.DocumentService
	StatsService    *appsvc.StatsService

	pool    *ingest.Pool
	worker  *worker.IngestWorker
	watcher *worker.InboxWatcher
	cancel  context.CancelFunc

	StartedAt time.Time
}

// New connects every configured dependency, builds the services and starts
// the background ingestion machinery. Background goroutines live until Close.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := NewLogger(cfg.App.LogLevel)
	slog.SetDefault(logger)

	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error("release resources after failed start", "error", closeErr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	db, err := database.New(ctx, cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		return err
	}
	a.DB = db
	if err := database.Migrate(db); err != nil {
		return err
	}

	var history appsvc.HistoryCache
	if cfg.Redis.Enabled {
		redisCli, err := redisClient.New(ctx, redisClient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		a.Redis = redisCli
		history = cache.NewHistoryCache(redisCli, cfg.HistoryTTL())
	}

	blobs, err := blobstore.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		return err
	}

	provider := newProvider(cfg, logger)

	documentRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db, cfg.LLM.Dimension)
	messageRepo := repository.NewMessageRepository(db)

	orchestrator := ingest.NewOrchestrator(provider, chunkRepo, ingest.Options{
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
		Dimension:    cfg.LLM.Dimension,
		Delay:        cfg.IngestDelay(),
	}, logger)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	queue, err := a.startQueue(ctx, runCtx, orchestrator)
	if err != nil {
		return err
	}

	retriever := appsvc.NewRetriever(provider, chunkRepo, documentRepo, logger)
	a.ChatService = appsvc.NewChatService(messageRepo, history, retriever, provider, appsvc.RetrievalSettings{
		TopK:      cfg.RAG.TopK,
		Threshold: cfg.RAG.Threshold,
	}, logger)
	a.DocumentService = appsvc.NewDocumentService(documentRepo, chunkRepo, blobs, queue, pdfextract.ExtractPages, cfg.MaxUploadBytes(), logger)
	a.StatsService = appsvc.NewStatsService(repository.NewStatsRepository(db))

	if cfg.Storage.WatchDir != "" {
		a.watcher = worker.NewInboxWatcher(cfg.Storage.WatchDir, a.DocumentService, cfg.Storage.WatchUploaderID, 0, logger)
		if err := a.watcher.Start(runCtx); err != nil {
			return fmt.Errorf("start inbox watcher failed: %w", err)
		}
	}
	return nil
}

// startQueue picks the ingestion queue: the in-process pool, or RabbitMQ
// with a consumer in this process.
func (a *App) startQueue(ctx, runCtx context.Context, processor ingest.Processor) (ingest.Queue, error) {
	cfg := a.Config
	switch cfg.RAG.Queue {
	case config.QueueRabbitMQ:
		conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.IngestQueue)
		if err != nil {
			return nil, err
		}
		a.MQConn = conn
		a.worker = worker.NewIngestWorker(conn, processor, cfg.RabbitMQ.IngestQueue, cfg.RAG.Workers, a.Logger)
		if err := a.worker.Start(runCtx); err != nil {
			return nil, fmt.Errorf("start ingest worker failed: %w", err)
		}
		return rabbitmqClient.NewJobPublisher(conn, cfg.RabbitMQ.IngestQueue), nil
	default:
		a.pool = ingest.NewPool(processor, cfg.RAG.Workers, cfg.RAG.QueueSize, a.Logger)
		a.pool.Start(runCtx)
		return a.pool, nil
	}
}

func newProvider(cfg *config.Config, logger *slog.Logger) ai.Provider {
	var next ai.Provider = ai.Offline{}
	if cfg.LLM.APIKey != "" {
		next = ai.NewOpenAIClient(ai.Config{
			BaseURL:        cfg.LLM.BaseURL,
			APIKey:         cfg.LLM.APIKey,
			ChatModel:      cfg.LLM.ChatModel,
			EmbeddingModel: cfg.LLM.EmbeddingModel,
			Dimension:      cfg.LLM.Dimension,
			Temperature:    float32(cfg.LLM.Temperature),
			MaxTokens:      cfg.LLM.MaxTokens,
			Timeout:        cfg.LLMTimeout(),
		})
	} else {
		logger.Warn("no llm api key configured, answers come from the offline fallback")
	}
	return ai.NewResilient(next, cfg.LLM.Dimension, cfg.FallbackPacing(), logger)
}

// NewLogger returns a JSON slog logger writing to stdout.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// HealthChecks lists a ping per enabled dependency.
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	if a.MQConn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if a.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	return checks
}

// Close stops background work first, then releases connections.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.worker != nil {
		a.worker.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}

	var closeErr error
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			closeErr = errors.Join(closeErr, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = errors.Join(closeErr, err)
			}
		}
	}
	return closeErr
}
