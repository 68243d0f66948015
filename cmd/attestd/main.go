package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"OpenAttest-Chain/internal/api"
	"OpenAttest-Chain/internal/auth"
	"OpenAttest-Chain/internal/claim"
	"OpenAttest-Chain/internal/config"
	"OpenAttest-Chain/internal/epoch"
	"OpenAttest-Chain/internal/job"
	"OpenAttest-Chain/internal/observability/metrics"
	"OpenAttest-Chain/pkg/logger"
)

// main 是 OpenAttest 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("attestd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("OPENATTEST_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "openattest.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
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

	authService, err := buildAuthService(cfg.Auth)
	if err != nil {
		return err
	}

	epochStore, err := buildEpochStore(cfg.Registry.Store)
	if err != nil {
		return err
	}
	defer func() {
		_ = epochStore.Close()
	}()

	registry := epoch.NewService(epochStore)
	if cfg.Registry.WitnessFile != "" {
		defs, err := epoch.LoadDefinitions(cfg.Registry.WitnessFile)
		if err != nil {
			return err
		}
		if err := registry.Bootstrap(ctx, defs); err != nil {
			return err
		}
	}

	jobStore, err := buildJobStore(cfg.JobStore)
	if err != nil {
		return err
	}

	jobQueue, err := buildJobQueue(cfg.JobQueue)
	if err != nil {
		return err
	}

	verifier := claim.NewVerifier(registry)
	jobService := job.NewService(jobStore, jobQueue, cfg.JobStore.Retries)
	defer func() {
		_ = jobService.Close()
	}()

	fields := fieldMarkers(cfg.Verification)
	processor := job.NewProcessor(verifier, jobStore, jobQueue, jobQueue,
		job.WithWorkerCount(cfg.JobQueue.Worker),
		job.WithFieldMarkers(fields...),
	)

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()

	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("任务处理器异常退出", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("指标服务异常退出", "error", err)
			}
		}()
	}

	server := api.NewServer(cfg.Server.Address, verifier, jobService, registry, authService, fields)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildAuthService(cfg config.AuthConfig) (*auth.Service, error) {
	tokens := make([]auth.StaticToken, len(cfg.Tokens))
	for i, token := range cfg.Tokens {
		tokens[i] = auth.StaticToken{
			Token:       token.Token,
			Name:        token.Name,
			Permissions: token.Permissions,
			Disabled:    token.Disabled,
		}
	}
	return auth.NewService(auth.Config{Mode: auth.Mode(cfg.Mode), Tokens: tokens})
}

func buildEpochStore(cfg config.StoreConfig) (epoch.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return epoch.NewMemoryStore(), nil
	case "mysql":
		return epoch.NewMySQLStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("未知的纪元存储驱动: %s", cfg.Driver)
	}
}

func buildJobStore(cfg config.JobStoreConfig) (job.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return job.NewMemoryStore(), nil
	case "mysql":
		return job.NewMySQLStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("未知的任务存储驱动: %s", cfg.Driver)
	}
}

func buildJobQueue(cfg config.JobQueueConfig) (job.Queue, error) {
	switch cfg.Driver {
	case "", "memory":
		return job.NewMemoryQueue(1024), nil
	case "redis":
		return job.NewRedisQueue(job.RedisQueueConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Queue:     cfg.Redis.Queue,
			BlockWait: time.Duration(cfg.Redis.BlockWait) * time.Second,
		})
	case "rabbitmq":
		return job.NewRabbitMQQueue(job.RabbitMQConfig{
			URL:        cfg.RabbitMQ.URL,
			Queue:      cfg.RabbitMQ.Queue,
			Prefetch:   cfg.RabbitMQ.Prefetch,
			Durable:    cfg.RabbitMQ.Durable,
			AutoDelete: cfg.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", cfg.Driver)
	}
}

func fieldMarkers(cfg config.VerificationConfig) []job.FieldMarker {
	markers := make([]job.FieldMarker, 0, len(cfg.Fields))
	for _, field := range cfg.Fields {
		if field.Name == "" || field.Marker == "" {
			continue
		}
		markers = append(markers, job.FieldMarker{Name: field.Name, Marker: field.Marker})
	}
	return markers
}
