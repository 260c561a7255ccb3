package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/xaenox/support-triage/internal/api"
	"github.com/xaenox/support-triage/internal/bot"
	"github.com/xaenox/support-triage/internal/classifier"
	"github.com/xaenox/support-triage/internal/janitor"
	"github.com/xaenox/support-triage/internal/llm"
	"github.com/xaenox/support-triage/internal/models"
	"github.com/xaenox/support-triage/internal/notify"
	"github.com/xaenox/support-triage/internal/storage"
	"github.com/xaenox/support-triage/internal/ticket"
	"github.com/xaenox/support-triage/internal/triage"
	"github.com/xaenox/support-triage/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the optional config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// Initialize logger
	logger := newLogger(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	generator, err := newGenerator(cfg.OpenAI)
	if err != nil {
		logger.Fatal("Failed to initialize text generator", zap.Error(err))
	}
	clf := classifier.NewGPTClassifier(classifier.GPTConfig{
		Enabled:   generator != nil,
		Generator: generator,
	}, logger)
	if !clf.Enabled() {
		logger.Info("No OpenAI API key configured, using heuristic classification only")
	}

	locker, err := newLocker(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to initialize locker", zap.Error(err))
	}

	engine := triage.NewEngine(store, clf, locker, logger)
	tickets := ticket.NewService(store, ticket.NewComposer(assignees(cfg.Assign)), newNotifier(cfg.SMTP, logger), locker, logger)

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.RouterConfig{
		Handler:     api.NewHandler(engine, tickets, logger),
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})
	server := api.NewServer(cfg.Server.Addr, router, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		return janitor.New(store, cfg.Triage.AbandonAfter, cfg.Triage.SweepInterval, logger).Run(gctx)
	})

	if cfg.Telegram.Token != "" {
		b, err := bot.New(cfg.Telegram.Token, engine, tickets, logger)
		if err != nil {
			logger.Fatal("Failed to create bot", zap.Error(err))
		}
		g.Go(func() error {
			return b.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatal("Service error", zap.Error(err))
	}
	logger.Info("Shut down cleanly")
}

func newLogger(cfg config.LogConfig) *zap.Logger {
	if cfg.Development {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

func openStorage(cfg config.DatabaseConfig, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	case config.DriverPostgres:
		logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Host), zap.String("dbname", cfg.DBName))
		return storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.DBName,
			SSLMode:  cfg.SSLMode,
		}, logger)
	default:
		logger.Info("Using SQLite storage", zap.String("path", cfg.SQLitePath))
		return storage.NewSQLiteStorage(cfg.SQLitePath, logger)
	}
}

// newGenerator returns nil when no API key is configured.
func newGenerator(cfg config.OpenAIConfig) (llm.Generator, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	llmCfg := llm.OpenAIConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	}
	if cfg.Provider == config.ProviderLangChain {
		gen, err := llm.NewLangChainGenerator(llmCfg)
		if err != nil {
			return nil, err
		}
		return gen, nil
	}
	return llm.NewOpenAIGenerator(llmCfg), nil
}

func newLocker(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (triage.Locker, error) {
	if cfg.Addr == "" {
		return triage.NewLocalLocker(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Using Redis conversation locks", zap.String("addr", cfg.Addr))
	return triage.NewRedisLocker(rdb, cfg.LockTTL, logger), nil
}

func newNotifier(cfg config.SMTPConfig, logger *zap.Logger) notify.Notifier {
	if cfg.Host == "" {
		logger.Info("No SMTP host configured, ticket emails will be logged only")
		return notify.NewLogNotifier(logger)
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		From:     cfg.From,
	})
}

func assignees(cfg config.AssignConfig) ticket.Assignees {
	return ticket.Assignees{
		models.CategoryWebsite: cfg.Website,
		models.CategoryEmail:   cfg.Email,
		models.CategorySocial:  cfg.Social,
		models.CategoryAdmin:   cfg.Admin,
	}
}
