package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendlog/internal/amqp"
	"spendlog/internal/chat"
	"spendlog/internal/cli"
	applog "spendlog/internal/log"
	"spendlog/internal/ratelimit"
	"spendlog/internal/services"
	"spendlog/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting spendlog",
		applog.FieldOperation, applog.OpStartup,
		"db_path", cfg.SQLiteDBPath,
		"digest_enabled", cfg.DigestEnabled)

	loc := cfg.Location()
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath, loc)

	amqpClient, err := amqp.NewClient(amqp.Config{
		URL:           cfg.AMQPURL,
		Exchange:      cfg.AMQPExchange,
		InboundQueue:  cfg.AMQPInboundQueue,
		OutboundQueue: cfg.AMQPOutboundQueue,
	})
	if err != nil {
		logger.WithComponent(applog.ComponentAMQP).Error("Failed to initialize AMQP client", "error", err)
		repo.Close()
		os.Exit(1)
	}

	clock := services.SystemClock(loc)
	ledger := services.NewLedgerService(repo, clock)
	limiter := ratelimit.NewLimiter(ratelimit.Config{PerMinute: cfg.ChatRateLimit})
	defer limiter.Stop()
	chatWorker := worker.NewChatWorker(chat.NewHandler(ledger), amqpClient, limiter)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()
	ctx = applog.WithContext(ctx, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeChatMessages(gctx, chatWorker.HandleChatMessage)
	})

	if cfg.DigestEnabled {
		trigger, err := cfg.DigestTrigger()
		if err != nil {
			// already checked by Validate
			logger.Error("Invalid digest time", "error", err)
			os.Exit(1)
		}
		digestCfg := services.DefaultDigestConfig()
		digestCfg.At = trigger
		digestCfg.Location = loc
		digestCfg.PollInterval = cfg.DigestPollInterval

		scheduler := services.NewDigestScheduler(ledger, repo, amqpClient, clock, digestCfg)
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	} else {
		logger.Info("Daily digest disabled")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Service stopped with error", applog.FieldOperation, applog.OpShutdown, "error", err)
	}
	logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)

	cli.RunCleanup(logger, 10*time.Second, func() {
		if err := amqpClient.Close(); err != nil {
			logger.Error("Failed to close AMQP client", "error", err)
		}
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	})
}
