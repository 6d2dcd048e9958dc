package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/voyagehq/bookingcore/api"
	"github.com/voyagehq/bookingcore/config"
	"github.com/voyagehq/bookingcore/internal/bootstrap"
	"github.com/voyagehq/bookingcore/internal/cache"
	"github.com/voyagehq/bookingcore/internal/domain"
	"github.com/voyagehq/bookingcore/internal/kafka"
	"github.com/voyagehq/bookingcore/internal/payments"
	"github.com/voyagehq/bookingcore/internal/repository"
	"github.com/voyagehq/bookingcore/internal/service/booking"
	"github.com/voyagehq/bookingcore/internal/service/dispute"
	"github.com/voyagehq/bookingcore/internal/service/refund"
	"github.com/voyagehq/bookingcore/internal/service/stats"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.WithError(err).Fatal("connect postgres")
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Idempotency.ReserveTTL(), cfg.Idempotency.TTL(), time.Duration(cfg.Worker.StatsCacheSeconds)*time.Second)

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer producer.Close()

	clock := domain.RealClock()

	bookingRepo := repository.NewBookingRepository(pool)
	disputeRepo := repository.NewDisputeRepository(pool)
	refundRepo := repository.NewRefundRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	bookingService := booking.NewBookingService(
		bookingRepo, producer, redisCache, clock, cfg.Booking.PaymentTTL(), cfg.Kafka.BookingEventsTopic, log)

	provider := payments.NewHTTPProvider(cfg.Provider, log)
	refundService := refund.NewRefundService(
		refundRepo, bookingService, provider, producer, clock, cfg.Refund, cfg.Kafka.RefundEventsTopic, log)

	classifier := dispute.NewKeywordClassifier(cfg.Dispute.SubjectivePhrases)
	disputeService := dispute.NewDisputeService(
		disputeRepo, bookingService, refundService, producer, classifier,
		clock, cfg.Dispute, cfg.Kafka.DisputeEventsTopic, log)

	statsService := stats.NewStatsService(statsRepo, redisCache)

	handlers := bootstrap.Handlers{
		Bookings: api.NewBookingHandler(bookingService),
		Disputes: api.NewDisputeHandler(disputeService),
		Refunds:  api.NewRefundHandler(refundService),
		Stats:    api.NewStatsHandler(statsService),
		Audit:    api.NewAuditHandler(auditRepo),
	}

	if err := bootstrap.Run(ctx, cfg, handlers, log); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
