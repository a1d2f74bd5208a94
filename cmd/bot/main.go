package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"line_subscription_bot/internal/config"
	"line_subscription_bot/internal/domain"
	"line_subscription_bot/internal/feature/owner"
	"line_subscription_bot/internal/feature/subscription"
	"line_subscription_bot/internal/feature/user"
	"line_subscription_bot/internal/health"
	"line_subscription_bot/internal/line"
	"line_subscription_bot/internal/logging"
	"line_subscription_bot/internal/server"
	"line_subscription_bot/internal/store"
	"line_subscription_bot/internal/webhook"
)

const (
	mongoConnectTimeout    = 10 * time.Second
	mongoIndexTimeout      = 5 * time.Second
	mongoDisconnectTimeout = 5 * time.Second
	ownerBootstrapTimeout  = 5 * time.Second
	httpShutdownTimeout    = 20 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":          "startup",
		"mongo_db":       cfg.MongoDB,
		"signature_mode": cfg.SignatureMode,
		"http_port":      cfg.HTTPPort,
	}).Info("configuration loaded")

	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Error("mongo connection error")
		fmt.Fprintf(os.Stderr, "mongo connection error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	if err := mongoManager.EnsureBaseIndexes(indexCtx); err != nil {
		cancelIndexes()
		logger.WithError(err).Error("mongo index setup error")
		fmt.Fprintf(os.Stderr, "mongo index setup error: %v\n", err)
		os.Exit(1)
	}
	cancelIndexes()

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	if cfg.BotOwnerID != "" {
		ownerRegistrar := owner.NewRegistrar(mongoManager.Users(), logger)
		ownerCtx, cancelOwner := context.WithTimeout(context.Background(), ownerBootstrapTimeout)
		if err := ownerRegistrar.EnsureOwner(ownerCtx, cfg.BotOwnerID); err != nil {
			cancelOwner()
			logger.WithError(err).Error("owner bootstrap error")
			fmt.Fprintf(os.Stderr, "owner bootstrap error: %v\n", err)
			os.Exit(1)
		}
		cancelOwner()
	}

	lineClient, err := line.NewClient(cfg.LineAPIBaseURL, cfg.ChannelToken, nil)
	if err != nil {
		logger.WithError(err).Error("line client setup error")
		fmt.Fprintf(os.Stderr, "line client setup error: %v\n", err)
		os.Exit(1)
	}
	profiles := line.NewProfileCache(lineClient, cfg.ProfileCacheTTL)

	userRepository := domain.NewUserRepository(mongoManager.Users())
	userRegistrar := user.NewRegistrar(userRepository, profiles, logger)
	resolver := subscription.NewResolver(nil)

	processor, err := webhook.NewProcessor(userRegistrar, userRepository, resolver, lineClient, logger,
		webhook.WithProfileForgetter(profiles),
	)
	if err != nil {
		logger.WithError(err).Error("webhook processor setup error")
		fmt.Fprintf(os.Stderr, "webhook processor setup error: %v\n", err)
		os.Exit(1)
	}

	verifier, err := webhook.NewVerifier(cfg.ChannelSecret, cfg.StrictSignatures())
	if err != nil {
		logger.WithError(err).Error("signature verifier setup error")
		fmt.Fprintf(os.Stderr, "signature verifier setup error: %v\n", err)
		os.Exit(1)
	}

	webhookHandler, err := webhook.NewHandler(verifier, processor, logger)
	if err != nil {
		logger.WithError(err).Error("webhook handler setup error")
		fmt.Fprintf(os.Stderr, "webhook handler setup error: %v\n", err)
		os.Exit(1)
	}

	healthHandler := health.NewHandler(mongoManager, store.NewStatsProvider(mongoManager.Users()), logger)

	httpServer := server.New(cfg.HTTPPort, server.Routes{
		Webhook: webhookHandler,
		Health:  healthHandler.Health,
		Stats:   healthHandler.Stats,
	}, logger)

	logger.WithField("event", "webhook_ready").Info("webhook server initialized")

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)

	group.Go(httpServer.ListenAndServe)

	group.Go(func() error {
		<-groupCtx.Done()
		logger.WithField("event", "shutdown_signal").Info("stopping http server")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancelShutdown()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	exitCode := 0
	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("server error")
		exitCode = 1
	}

	disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := mongoManager.Close(disconnectCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelDisconnect()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")

	if exitCode != 0 {
		stop()
		os.Exit(exitCode)
	}
}
