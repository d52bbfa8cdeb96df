package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"academy-svc/email"
	"academy-svc/middleware"
	"academy-svc/models"
)

func InitConsumer(logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Retry.Backoff = 1 * time.Second

	brokers := []string{getEnv("KAFKA_BROKER", "localhost:9092")}

	consumer, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized")
	return consumer, nil
}

// StartConsumer dispatches confirmation emails off the purchase event stream.
// Email delivery is a convenience side effect: a permanent failure is logged
// and counted, never retried into the purchase state.
func StartConsumer(consumer sarama.Consumer, sender email.Sender, logger *zap.Logger) error {
	topic := getEnv("KAFKA_TOPIC", "purchase_events")
	partitionConsumer, err := consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer partitionConsumer.Close()

	logger.Info("Kafka consumer started", zap.String("topic", topic))

	for {
		select {
		case message := <-partitionConsumer.Messages():
			if err := handleMessageWithRetry(message, sender, logger, 3); err != nil {
				logger.Error("Failed to handle message after retries", zap.Error(err))
			}
		case err := <-partitionConsumer.Errors():
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}
}

func handleMessageWithRetry(message *sarama.ConsumerMessage, sender email.Sender, logger *zap.Logger, maxRetries int) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := handleMessage(message, sender, logger)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < maxRetries {
			backoff := time.Duration(attempt) * time.Second
			logger.Warn("Retrying message handling",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			time.Sleep(backoff)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

func handleMessage(message *sarama.ConsumerMessage, sender email.Sender, logger *zap.Logger) error {
	// Extract trace context from Kafka message headers
	var propagator propagation.TextMapPropagator = otel.GetTextMapPropagator()
	carrier := saramaHeaderCarrierConsumer(message.Headers)
	ctx := propagator.Extract(context.Background(), carrier)

	var tracer trace.Tracer = otel.Tracer("academy-svc")
	ctx, span := tracer.Start(ctx, "DispatchConfirmationEmail")
	defer span.End()

	var event models.PurchaseEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.EventType != "purchase_completed" {
		return nil
	}

	span.SetAttributes(
		attribute.String("event.type", event.EventType),
		attribute.String("bundle.type", event.BundleType),
	)

	if event.Email == "" {
		logger.Warn("Purchase event without email, skipping confirmation",
			zap.String("purchase_id", event.PurchaseID))
		return nil
	}

	bundleName := event.BundleType
	if b, ok := models.BundleByType(event.BundleType); ok {
		bundleName = b.Name
	}

	traceID := middleware.GetTraceID(ctx)
	if err := sender.SendPurchaseConfirmation(ctx, event.Email, bundleName, event.Amount, event.Currency); err != nil {
		span.RecordError(err)
		middleware.RecordEmailSent("failed")
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}

	middleware.RecordEmailSent("sent")
	logger.Info("Confirmation email sent",
		zap.String("trace_id", traceID),
		zap.String("bundle_type", event.BundleType),
	)

	return nil
}

// saramaHeaderCarrierConsumer implements the TextMapCarrier interface for Kafka headers (for consumer)
type saramaHeaderCarrierConsumer []*sarama.RecordHeader

func (c saramaHeaderCarrierConsumer) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c saramaHeaderCarrierConsumer) Set(key, value string) {
	// Not needed for extraction
}

func (c saramaHeaderCarrierConsumer) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
