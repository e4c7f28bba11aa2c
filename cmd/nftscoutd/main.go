package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"NFTScout/internal/agent"
	"NFTScout/internal/api"
	"NFTScout/internal/auth"
	"NFTScout/internal/chain"
	"NFTScout/internal/collection"
	"NFTScout/internal/config"
	"NFTScout/internal/history"
	"NFTScout/internal/llm"
	"NFTScout/internal/llm/openai"
	"NFTScout/internal/mcp"
	"NFTScout/internal/observability/alerting"
	"NFTScout/internal/session"
	"NFTScout/internal/storage/mysql"
	"NFTScout/internal/storage/redis"
	"NFTScout/internal/stream"
	"NFTScout/pkg/logger"
)

// main 是 NFTScout 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("nftscoutd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("NFTSCOUT_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "nftscout.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return err
	}

	chains, err := chain.NewRegistry(cfg.Chains)
	if err != nil {
		return err
	}

	repo, db, closeRepo, err := createCollectionRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	historySink, closeHistory, err := createHistorySink(cfg, db)
	if err != nil {
		return err
	}
	defer closeHistory()

	holder := mcp.NewHolder(createConnectorFactory(cfg))
	normalizer := collection.NewNormalizer(chains)
	extractor := collection.NewExtractor(cfg.MCP.DataTools)
	alerts := alerting.NewFanout(&alerting.LogNotifier{})

	ag := agent.New(
		llmClient,
		holder,
		session.NewMemoryStore(),
		repo,
		extractor,
		normalizer,
		agent.WithMaxSteps(cfg.Agent.MaxSteps),
		agent.WithSessionTimeout(cfg.Agent.SessionTimeout()),
		agent.WithAlerts(alerts),
	)

	authService, err := auth.NewService(cfg.Auth)
	if err != nil {
		return err
	}

	server := api.NewServer(cfg.Server.Address, ag, repo, normalizer, historySink, authService)

	logger.L().Info("nftscoutd 启动", "address", cfg.Server.Address)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "openai":
		apiKey := strings.TrimSpace(cfg.LLM.OpenAI.APIKey)
		if apiKey == "" && cfg.LLM.OpenAI.APIKeyEnv != "" {
			apiKey = strings.TrimSpace(os.Getenv(cfg.LLM.OpenAI.APIKeyEnv))
		}
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: cfg.LLM.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}

func createCollectionRepository(ctx context.Context, cfg *config.Config) (mysql.CollectionRepository, *sql.DB, func(), error) {
	var repo mysql.CollectionRepository
	var db *sql.DB
	closers := make([]func(), 0, 2)

	switch cfg.Storage.Collections.Driver {
	case "", "memory":
		repo = mysql.NewMemoryCollectionRepository()
	case "mysql":
		sqlRepo, err := mysql.NewSQLCollectionRepository(ctx, mysql.Config{
			DSN:             cfg.Storage.Collections.DSN,
			MaxOpenConns:    cfg.Storage.Collections.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Collections.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Storage.Collections.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Storage.Collections.ConnMaxIdleTimeSeconds) * time.Second,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, func() { _ = sqlRepo.Close() })
		repo = sqlRepo
		db = sqlRepo.DB()
	default:
		return nil, nil, nil, fmt.Errorf("未知的存储驱动: %s", cfg.Storage.Collections.Driver)
	}

	if cfg.Storage.Cache.Enabled {
		cached, err := redis.NewCachedCollectionRepository(redis.Config{
			Address:  cfg.Storage.Cache.Address,
			Password: cfg.Storage.Cache.Password,
			DB:       cfg.Storage.Cache.DB,
			TTL:      time.Duration(cfg.Storage.Cache.TTLSeconds) * time.Second,
		}, repo)
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, func() { _ = cached.Close() })
		repo = cached
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return repo, db, closeAll, nil
}

func createHistorySink(cfg *config.Config, db *sql.DB) (stream.HistorySink, func(), error) {
	noop := func() {}
	switch cfg.History.Driver {
	case "", "memory":
		return history.NewMemorySink(), noop, nil
	case "rabbitmq":
		sink, err := history.NewRabbitMQSink(cfg.History.RabbitMQ)
		if err != nil {
			return nil, nil, err
		}
		return sink, func() { _ = sink.Close() }, nil
	case "mysql":
		if db == nil {
			return nil, nil, errors.New("mysql 事件历史需要 mysql 存储驱动")
		}
		sink, err := history.NewSQLSink(db)
		if err != nil {
			return nil, nil, err
		}
		return sink, noop, nil
	default:
		return nil, nil, fmt.Errorf("未知的事件历史驱动: %s", cfg.History.Driver)
	}
}

func createConnectorFactory(cfg *config.Config) mcp.Factory {
	return func(ctx context.Context) (mcp.Connector, []mcp.Tool, error) {
		token := strings.TrimSpace(cfg.MCP.AuthToken)
		if token == "" && cfg.MCP.AuthTokenEnv != "" {
			token = strings.TrimSpace(os.Getenv(cfg.MCP.AuthTokenEnv))
		}
		client, err := mcp.NewClient(mcp.Config{
			BaseURL:   cfg.MCP.BaseURL,
			AuthToken: token,
			Timeout:   time.Duration(cfg.MCP.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		tools, err := client.Tools(ctx)
		if err != nil {
			return nil, nil, err
		}
		return client, tools, nil
	}
}
