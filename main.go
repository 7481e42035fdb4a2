package main

import (
	"context"
	"log"
	"strings"
	"time"

	"checkout-service/config"
	"checkout-service/controllers"
	"checkout-service/database"
	"checkout-service/kafka"
	"checkout-service/repository"
	"checkout-service/routes"
	"checkout-service/sender"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[CheckoutService] Failed to load config:", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("[CheckoutService] Failed to initialize logger:", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to DB", zap.Error(err))
	}

	orderRepo := repository.NewGormOrderRepository(db)
	webhookRepo := repository.NewGormWebhookEventRepository(db)
	emailRepo := repository.NewGormEmailQueueRepository(db)

	smtpSender, err := sender.NewSMTPSender()
	if err != nil {
		logger.Fatal("Failed to configure SMTP sender", zap.Error(err))
	}
	emailQueue := services.NewEmailQueueService(emailRepo, smtpSender, logger)

	gateway := services.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookKey)
	checkout := services.NewCheckoutService(orderRepo, gateway, emailQueue, cfg.OrderNumberPrefix, logger)

	producer := kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaPaymentTopic, logger)
	defer producer.Close()

	// Drain the email queue on a schedule, independent of requests.
	go runEmailProcessor(context.Background(), emailQueue, cfg.EmailBatchSize, cfg.EmailPollInterval, logger)

	r := gin.New()
	r.Use(gin.Recovery())

	cc := &controllers.CheckoutController{Checkout: checkout, Logger: logger}
	wc := &controllers.WebhookController{
		Gateway:   gateway,
		Orders:    orderRepo,
		Events:    webhookRepo,
		Emails:    emailQueue,
		Publisher: producer,
		Logger:    logger,
	}
	ec := &controllers.EmailController{Queue: emailQueue, BatchSize: cfg.EmailBatchSize, Logger: logger}
	routes.Register(r, cc, wc, ec)

	logger.Info("CheckoutService running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func runEmailProcessor(ctx context.Context, queue *services.EmailQueueService, batchSize int, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Email queue processor started",
		zap.Int("batch_size", batchSize),
		zap.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := queue.ProcessPending(ctx, batchSize); err != nil {
				logger.Error("Email batch run failed", zap.Error(err))
			}
		}
	}
}
