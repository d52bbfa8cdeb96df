package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"academy-svc/config"
	"academy-svc/middleware"
	"academy-svc/models"
	"academy-svc/payments"
)

type CheckoutHandler struct {
	db       *sql.DB
	payments payments.CheckoutCreator
	cfg      *config.Config
	logger   *zap.Logger
}

func NewCheckoutHandler(db *sql.DB, paymentsClient payments.CheckoutCreator, cfg *config.Config, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		db:       db,
		payments: paymentsClient,
		cfg:      cfg,
		logger:   logger,
	}
}

// CreateCheckoutSession starts a purchase: it creates a hosted payment page
// session and records a pending purchase stamped with the session id. The
// webhook later keys its lookup on that session id, never on email.
func (h *CheckoutHandler) CreateCheckoutSession(c *gin.Context) {
	ctx, span := otel.Tracer("academy-svc").Start(c.Request.Context(), "CreateCheckoutSession")
	defer span.End()

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bundle, ok := models.BundleByType(req.BundleType)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown bundle type"})
		return
	}

	email := models.NormalizeEmail(req.Email)
	amount := models.CheckoutAmount(bundle, req.IncludesAddon)

	span.SetAttributes(
		attribute.String("bundle.type", bundle.Type),
		attribute.Int64("amount", amount),
		attribute.Bool("includes_addon", req.IncludesAddon),
	)

	sess, err := h.payments.CreateCheckoutSession(ctx, payments.CheckoutParams{
		Email:         email,
		BundleType:    bundle.Type,
		ProductName:   bundle.Name,
		Amount:        amount,
		Currency:      bundle.Currency,
		IncludesAddon: req.IncludesAddon,
		SuccessURL:    fmt.Sprintf("%s/success?bundle=%s", h.cfg.CheckoutBaseURL, bundle.Type),
		CancelURL:     fmt.Sprintf("%s/checkout?bundle=%s&cancelled=true", h.cfg.CheckoutBaseURL, bundle.Type),
	})
	if err != nil {
		span.RecordError(err)
		traceID := middleware.GetTraceID(ctx)
		h.logger.Error("Failed to create checkout session",
			zap.String("trace_id", traceID),
			zap.String("bundle_type", bundle.Type),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
		return
	}

	var accountID sql.NullInt64
	if req.UserID != "" {
		if id, err := strconv.Atoi(req.UserID); err == nil {
			accountID = sql.NullInt64{Int64: int64(id), Valid: true}
		} else {
			// Keep the purchase, but make the mis-wired client visible.
			h.logger.Warn("Ignoring malformed userId on checkout",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.String("user_id", req.UserID),
			)
		}
	}

	purchaseID := uuid.New().String()
	_, err = h.db.ExecContext(ctx,
		"INSERT INTO purchases (id, email, account_id, bundle_type, amount, currency, status, stripe_session_id, includes_addon) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		purchaseID, email, accountID, bundle.Type, amount, bundle.Currency, models.PurchaseStatusPending, sess.ID, req.IncludesAddon,
	)
	if err != nil {
		span.RecordError(err)
		traceID := middleware.GetTraceID(ctx)
		h.logger.Error("Failed to record pending purchase",
			zap.String("trace_id", traceID),
			zap.String("stripe_session_id", sess.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.String("purchase.id", purchaseID))
	middleware.RecordCheckoutStarted(bundle.Type)

	h.logger.Info("Checkout session created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("purchase_id", purchaseID),
		zap.String("bundle_type", bundle.Type),
		zap.Int64("amount", amount),
	)
	c.JSON(http.StatusOK, models.CheckoutResponse{URL: sess.URL})
}
