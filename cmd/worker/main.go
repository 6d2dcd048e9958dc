package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/voyagehq/bookingcore/config"
	"github.com/voyagehq/bookingcore/internal/cache"
	"github.com/voyagehq/bookingcore/internal/domain"
	"github.com/voyagehq/bookingcore/internal/kafka"
	"github.com/voyagehq/bookingcore/internal/payments"
	"github.com/voyagehq/bookingcore/internal/repository"
	"github.com/voyagehq/bookingcore/internal/service/booking"
	"github.com/voyagehq/bookingcore/internal/service/dispute"
	"github.com/voyagehq/bookingcore/internal/service/refund"
)

// The worker runs three loops: the stale-payment booking sweep, the dispute
// response-deadline sweep and the refund processor, which executes approved
// refunds off the refund event stream. All are safe to run in multiple
// instances.
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

	bookingService := booking.NewBookingService(
		bookingRepo, producer, redisCache, clock, cfg.Booking.PaymentTTL(), cfg.Kafka.BookingEventsTopic, log)

	provider := payments.NewHTTPProvider(cfg.Provider, log)
	refundService := refund.NewRefundService(
		refundRepo, bookingService, provider, producer, clock, cfg.Refund, cfg.Kafka.RefundEventsTopic, log)

	classifier := dispute.NewKeywordClassifier(cfg.Dispute.SubjectivePhrases)
	disputeService := dispute.NewDisputeService(
		disputeRepo, bookingService, refundService, producer, classifier,
		clock, cfg.Dispute, cfg.Kafka.DisputeEventsTopic, log)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.RefundEventsTopic, log)
	defer consumer.Close()

	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var env domain.EventEnvelope
			if err := json.Unmarshal(msg.Value, &env); err != nil {
				log.WithError(err).Warn("skipping undecodable refund event")
				return nil
			}
			if env.EventType != "refund.approved" {
				return nil
			}

			// ProcessRefund is idempotent: a redelivered approval or a crash
			// mid-processing replays into the same provider idempotency key.
			_, err := refundService.ProcessRefund(ctx, refund.ProcessInput{
				RefundID:      env.EntityID,
				Actor:         domain.SystemActor,
				CorrelationID: env.Metadata.CorrelationID,
			})
			return err
		}); err != nil {
			log.WithError(err).Error("refund consumer stopped")
		}
	}()

	bookingTicker := time.NewTicker(time.Duration(cfg.Worker.BookingSweepMinutes) * time.Minute)
	defer bookingTicker.Stop()
	disputeTicker := time.NewTicker(time.Duration(cfg.Worker.DisputeSweepMinutes) * time.Minute)
	defer disputeTicker.Stop()

	for {
		select {
		case <-bookingTicker.C:
			expired, err := bookingService.ExpireStale(ctx)
			if err != nil {
				log.WithError(err).Error("booking sweep failed")
				continue
			}
			if len(expired) > 0 {
				log.WithField("count", len(expired)).Info("expired stale bookings")
			}
		case <-disputeTicker.C:
			expired, err := disputeService.ExpireOverdue(ctx)
			if err != nil {
				log.WithError(err).Error("dispute sweep failed")
				continue
			}
			if len(expired) > 0 {
				log.WithField("count", len(expired)).Info("expired overdue disputes")
			}
		case <-ctx.Done():
			log.Info("shutting down")
			return
		}
	}
}
