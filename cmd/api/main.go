package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"family-news-service/internal/cache"
	"family-news-service/internal/client"
	"family-news-service/internal/config"
	"family-news-service/internal/repository"
	"family-news-service/internal/server"
	"family-news-service/internal/service"
	"family-news-service/internal/worker"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Log)

	db, err := client.InitMysqlClient(cfg.DatabaseURL)
	if err != nil {
		logger.Error("database init failed", "error", err)
		os.Exit(1)
	}

	kakaoClient := client.NewKakaoPayClient(&cfg.KakaoPay)
	pending := cache.NewPendingStore(time.Duration(cfg.Billing.PendingTTLMinutes) * time.Minute)

	subRepo := repository.NewSubscriptionRepository(db)
	payRepo := repository.NewPaymentRepository(db)
	histRepo := repository.NewHistoryRepository(db)
	groupRepo := repository.NewGroupRepository(db)

	paymentService := service.NewPaymentService(
		db, kakaoClient, pending,
		subRepo, payRepo, histRepo, groupRepo,
		decimal.NewFromInt(cfg.Billing.Amount),
		logger,
	)
	subscriptionService := service.NewSubscriptionService(subRepo, payRepo, groupRepo)

	billingWorker := worker.NewBillingWorker(cfg.Billing.Schedule, paymentService, subRepo, logger)
	if err := billingWorker.Start(); err != nil {
		logger.Error("billing worker start failed", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(paymentService, subscriptionService, cfg.FrontendURL, cfg.Auth.JWTSecret, logger)
	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	logger.Info("starting HTTP server", "addr", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	logger.Info("signal received, starting graceful shutdown")

	billingWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		os.Exit(1)
	}
}
