package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/safar/autoparts-store/internal/cache"
	"github.com/safar/autoparts-store/internal/config"
	"github.com/safar/autoparts-store/internal/database"
	"github.com/safar/autoparts-store/internal/events"
	"github.com/safar/autoparts-store/internal/httpapi"
	"github.com/safar/autoparts-store/internal/logging"
	"github.com/safar/autoparts-store/internal/payment"
	"go.uber.org/zap"
)

func main() {
	logger, err := logging.NewLogger()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, cfg.Kafka.ServiceName, 256, logger)
	producer.Start(ctx)

	statusCache := cache.NewStatusCache(cache.New(cfg.Redis.Addr))

	paymentSvc := payment.NewService(db, payment.NewClient(cfg.Payment))

	router := httpapi.NewRouter(httpapi.Deps{
		DB:      db,
		Events:  producer,
		Cache:   statusCache,
		Payment: paymentSvc,
		Logger:  logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("server starting",
		zap.String("port", cfg.Server.Port),
		zap.String("payment_provider", cfg.Payment.Provider))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
