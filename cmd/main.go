package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"papertrade/config"
	"papertrade/data"
	"papertrade/data/repository/postgres"
	"papertrade/data/session"
	"papertrade/internal/externalApi/quoteApi"
	"papertrade/internal/reportGenerator/xlsxGenerator"
	"papertrade/internal/scheduler"
	"papertrade/internal/service/tradingService"
	"papertrade/internal/transport/httpapi"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisSession := session.NewRedisSession(redisClient, cfg)

	quoteApiClient := quoteApi.New(cfg)

	reportGenerator := xlsxGenerator.New()

	tradingSrv := tradingService.New(cfg, pgRepo, quoteApiClient, reportGenerator)

	sched := scheduler.New()
	sched.NewIntervalJob("prune empty holdings", tradingSrv.PruneEmptyHoldings, cfg.Jobs.PruneHoldingsInterval, false)
	sched.Start()
	defer sched.Stop()

	ctrl := httpapi.NewController(cfg, tradingSrv, redisSession)

	server := httpapi.NewServer(cfg, ctrl, redisSession)
	server.Start()
	defer server.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
