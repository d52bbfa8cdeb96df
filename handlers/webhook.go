package handlers

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"academy-svc/kafka"
	"academy-svc/middleware"
	"academy-svc/models"
	"academy-svc/payments"
)

const webhookBodyLimit = 1 << 20 // 1MiB

type WebhookHandler struct {
	db       *sql.DB
	producer sarama.SyncProducer
	secret   string
	logger   *zap.Logger
}

func NewWebhookHandler(db *sql.DB, producer sarama.SyncProducer, webhookSecret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		db:       db,
		producer: producer,
		secret:   webhookSecret,
		logger:   logger,
	}
}

// HandleStripeWebhook receives payment-completion notifications. Signature
// verification is the only authentication this endpoint has, so a missing or
// invalid signature is rejected before the payload is even parsed. Event ids
// are recorded first, which makes redelivery of the same event a no-op.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	ctx, span := otel.Tracer("academy-svc").Start(c.Request.Context(), "HandleStripeWebhook")
	defer span.End()

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, webhookBodyLimit))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		middleware.RecordWebhookEvent("missing_signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing signature"})
		return
	}

	event, err := payments.VerifyEvent(payload, sigHeader, h.secret)
	if err != nil {
		middleware.RecordWebhookEvent("invalid_signature")
		h.logger.Warn("Rejected webhook with invalid signature",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Error(err),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	span.SetAttributes(
		attribute.String("event.id", event.ID),
		attribute.String("event.type", string(event.Type)),
	)

	if event.Type != "checkout.session.completed" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event payload"})
		return
	}

	traceID := middleware.GetTraceID(ctx)

	// Idempotency: the event-id claim and the purchase update commit
	// together. A failed update rolls the claim back, so the processor's
	// retry of the same event gets a fresh attempt instead of the
	// duplicate branch.
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin webhook transaction", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO webhook_events (id, event_type) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING",
		event.ID, string(event.Type),
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to record webhook event", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		middleware.RecordWebhookEvent("duplicate")
		h.logger.Info("Duplicate webhook event, skipping",
			zap.String("trace_id", traceID),
			zap.String("event_id", event.ID),
		)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	// The payment page may have collected the email when checkout started
	// without one; backfill it on completion.
	email := ""
	if sess.CustomerDetails != nil {
		email = models.NormalizeEmail(sess.CustomerDetails.Email)
	}

	var purchase models.Purchase
	err = tx.QueryRowContext(ctx,
		"UPDATE purchases SET status = $1, email = CASE WHEN email = '' THEN $2 ELSE email END, updated_at = CURRENT_TIMESTAMP WHERE stripe_session_id = $3 AND status = $4 RETURNING id, email, bundle_type, amount, currency, includes_addon",
		models.PurchaseStatusCompleted, email, sess.ID, models.PurchaseStatusPending,
	).Scan(&purchase.ID, &purchase.Email, &purchase.BundleType, &purchase.Amount, &purchase.Currency, &purchase.IncludesAddon)
	if err == sql.ErrNoRows {
		middleware.RecordWebhookEvent("no_pending_purchase")
		h.logger.Warn("No pending purchase for completed session",
			zap.String("trace_id", traceID),
			zap.String("stripe_session_id", sess.ID),
		)
		c.JSON(http.StatusNotFound, gin.H{"error": "No pending purchase found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to complete purchase", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit purchase completion", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(
		attribute.String("purchase.id", purchase.ID),
		attribute.String("bundle.type", purchase.BundleType),
	)
	middleware.RecordWebhookEvent("completed")
	middleware.RecordPurchaseCompleted(purchase.BundleType)

	// Confirmation email rides on the purchase event stream; a publish
	// failure never rolls back the completed purchase.
	purchaseEvent := models.PurchaseEvent{
		PurchaseID:    purchase.ID,
		Email:         purchase.Email,
		BundleType:    purchase.BundleType,
		Amount:        purchase.Amount,
		Currency:      purchase.Currency,
		IncludesAddon: purchase.IncludesAddon,
		EventType:     "purchase_completed",
	}
	if err := kafka.PublishPurchaseEvent(ctx, h.producer, "purchase_events", purchaseEvent, h.logger); err != nil {
		h.logger.Error("Failed to publish purchase event",
			zap.String("trace_id", traceID),
			zap.String("purchase_id", purchase.ID),
			zap.Error(err),
		)
	}

	h.logger.Info("Purchase completed",
		zap.String("trace_id", traceID),
		zap.String("purchase_id", purchase.ID),
		zap.String("bundle_type", purchase.BundleType),
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}
