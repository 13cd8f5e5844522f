package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kasboi/payecards-bot/internal/application"
	"github.com/kasboi/payecards-bot/internal/config"
	"github.com/kasboi/payecards-bot/internal/domain/ports/adapter"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
	"github.com/kasboi/payecards-bot/internal/infra/adapters/coingecko"
	tele "github.com/kasboi/payecards-bot/internal/infra/adapters/telegram"
	pg "github.com/kasboi/payecards-bot/internal/infra/db/postgres"
	"github.com/kasboi/payecards-bot/internal/infra/i18n"
	"github.com/kasboi/payecards-bot/internal/infra/logging"
	"github.com/kasboi/payecards-bot/internal/infra/memory"
	"github.com/kasboi/payecards-bot/internal/infra/metrics"
	red "github.com/kasboi/payecards-bot/internal/infra/redis"
	"github.com/kasboi/payecards-bot/internal/infra/sched"
	"github.com/kasboi/payecards-bot/internal/infra/web"
	"github.com/kasboi/payecards-bot/internal/infra/worker"
	"github.com/kasboi/payecards-bot/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: console logs, dry-run telegram without a token")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("bot stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	// ---- Repositories and stores ----
	userRepo := pg.NewUserRepoCacheDecorator(pg.NewPostgresUserRepo(pool), redisClient, cfg.Redis.TTL, logger)
	txManager := pg.NewTxManager(pool)
	regStates := red.NewRegistrationStateRepo(redisClient, cfg.Redis.TTL)

	var history repository.BroadcastHistoryRepository
	switch cfg.Broadcast.HistoryStore {
	case "memory":
		history = memory.NewHistoryStore()
	default:
		history = pg.NewPostgresBroadcastRepo(pool)
	}

	var sessions repository.BroadcastSessionStore
	switch cfg.Broadcast.SessionStore {
	case "redis":
		sessions = red.NewBroadcastSessionStore(redisClient, cfg.Broadcast.SessionTTL)
	default:
		memSessions := memory.NewSessionStore(cfg.Broadcast.SessionTTL)
		sessions = memSessions
		go func() { _ = sched.NewSessionSweeper(time.Minute, memSessions, logger).Run(ctx) }()
	}

	// ---- Telegram transport ----
	rateLimiter := red.NewRateLimiter(redisClient)
	var (
		bot     adapter.TelegramBotAdapter
		realBot *tele.RealTelegramBotAdapter
	)
	if cfg.Bot.Token == "" {
		logger.Warn().Msg("no bot token; using dry-run telegram transport")
		bot = tele.NewNoopBotAdapter(logger)
	} else {
		realBot, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, rateLimiter, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		bot = realBot
	}

	// ---- Use cases ----
	prices := coingecko.NewCachedProvider(coingecko.NewClient(cfg.Price, logger), redisClient, cfg.Price.CacheTTL, logger)
	userUC := usecase.NewUserUseCase(userRepo, regStates, txManager, cfg.Bot.AdminIDs, cfg.Runtime.Dev, logger)
	cryptoUC := usecase.NewCryptoUseCase(prices, logger)
	dispatcher := worker.NewDispatcher(cfg.Broadcast.SendInterval, cfg.Broadcast.Workers)
	broadcastUC := usecase.NewBroadcastUseCase(userUC, bot, history, dispatcher, usecase.BroadcastOptions{
		Banner:         cfg.Broadcast.Banner,
		MaxRetries:     cfg.Broadcast.MaxRetries,
		RetryBackoff:   cfg.Broadcast.RetryBackoff,
		HistoryTimeout: cfg.Broadcast.HistoryTimeout,
	}, logger)
	sessionUC := usecase.NewBroadcastSessionUseCase(sessions, userUC, broadcastUC, logger)
	statsUC := usecase.NewStatsUseCase(userRepo, history, logger)

	// ---- Facade ----
	translator, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	facade := application.NewBotFacade(userUC, cryptoUC, statsUC, broadcastUC, sessionUC, translator, logger)

	// ---- Admin HTTP API ----
	checks := map[string]web.HealthCheck{
		"postgres": pool.Ping,
		"redis":    redisClient.Ping,
	}
	server := web.NewServer(statsUC, broadcastUC, web.NewAuthManager(cfg.Web.JWTSecret, cfg.Web.TokenTTL), cfg.Web.APIKey, checks, logger)
	go func() {
		if err := server.Start(cfg.Admin.Port); err != nil {
			logger.Error().Err(err).Msg("admin http server failed")
			stop()
		}
	}()

	// ---- Polling ----
	pollDone := make(chan struct{})
	if realBot != nil {
		realBot.SetFacade(facade)
		go func() {
			defer close(pollDone)
			if err := realBot.StartPolling(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
				stop()
			}
		}()
	} else {
		close(pollDone)
	}

	logger.Info().
		Str("version", version).
		Str("history_store", cfg.Broadcast.HistoryStore).
		Str("session_store", cfg.Broadcast.SessionStore).
		Dur("send_interval", cfg.Broadcast.SendInterval).
		Msg("bot started")

	<-ctx.Done()
	logger.Info().Msg("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("admin http shutdown")
	}

	// Polling workers return only after their handlers, including a
	// confirmed broadcast, have finished.
	if !waitDone(pollDone, cfg.Broadcast.DrainTimeout) {
		logger.Warn().Dur("timeout", cfg.Broadcast.DrainTimeout).Msg("gave up waiting for running broadcasts")
	}
	return nil
}

// waitDone reports whether done was closed before timeout elapsed.
func waitDone(done <-chan struct{}, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}
