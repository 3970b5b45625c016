package main

import (
	"go.uber.org/zap"

	"github.com/xaenox/storebot/internal/bot"
	"github.com/xaenox/storebot/internal/clock"
	"github.com/xaenox/storebot/internal/draft"
	"github.com/xaenox/storebot/internal/engine"
	"github.com/xaenox/storebot/internal/gateway"
	"github.com/xaenox/storebot/internal/intent"
	"github.com/xaenox/storebot/internal/kvstore"
	"github.com/xaenox/storebot/internal/llm"
	"github.com/xaenox/storebot/internal/memory"
	"github.com/xaenox/storebot/internal/ratelimit"
	"github.com/xaenox/storebot/internal/tools"
	"github.com/xaenox/storebot/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	clk := clock.New()

	// Initialize the TTL store backing drafts and rate limiting
	var kv kvstore.Store
	if cfg.Redis.UseInMemory {
		logger.Info("Using in-memory TTL store")
		kv = kvstore.NewMemoryStore(clk)
	} else {
		logger.Info("Using Redis TTL store", zap.String("addr", cfg.Redis.Addr))
		kv, err = kvstore.NewRedisStore(kvstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize redis", zap.Error(err))
		}
	}
	defer kv.Close()

	// Initialize the domain gateway
	var orders gateway.OrderGateway
	var stock gateway.StockGateway
	var customers gateway.CustomerGateway
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory gateway")
		mem := gateway.NewMemoryGateway()
		orders, stock, customers = mem, mem, mem
	} else {
		logger.Info("Using PostgreSQL gateway")
		pg, err := gateway.NewPostgresGateway(gateway.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize gateway", zap.Error(err))
		}
		defer pg.Close()
		orders, stock, customers = pg, pg, pg
	}

	// Draft lifecycle and rate limiting share the TTL store
	drafts := draft.NewManager(draft.NewStore(kv), clk, cfg.Drafts.TTL(), logger)
	limiter := ratelimit.New(kv, cfg.RateLimit.Limit, cfg.RateLimit.Window(), logger)

	// Tools
	registry := tools.NewRegistry()
	dispatcher := tools.NewDispatcher(registry, logger)
	commerce := tools.NewCommerce(drafts, orders, stock, customers, clk, logger)
	if err := commerce.Register(registry, dispatcher); err != nil {
		logger.Fatal("Failed to register tools", zap.Error(err))
	}

	// Classifier and handlers
	classifier := intent.NewClassifier(cfg.Classifier.MinScore, logger)
	intent.RegisterDefaults(classifier)

	handlers := engine.NewHandlerRegistry(engine.FallbackHandler)
	engine.RegisterDefaults(handlers)

	// AI backend behind the retry executor
	client := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens, cfg.OpenAI.Temperature, logger)
	executor := llm.NewExecutor(client, llm.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay(),
		MaxDelay:   cfg.Retry.MaxDelay(),
	}, clk, logger)

	mem := memory.NewLog(cfg.Memory.MaxEntries, cfg.Memory.MaxAge(), clk)

	eng := engine.New(classifier, handlers, registry, dispatcher, executor, mem, logger)

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, eng, dispatcher, drafts, limiter, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
