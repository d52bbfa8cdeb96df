package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"academy-svc/entitlement"
	"academy-svc/middleware"
	"academy-svc/models"
)

type VerifyHandler struct {
	verifier *entitlement.Verifier
	logger   *zap.Logger

	// Poll parameters for WaitForCompletion, shortened in tests.
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewVerifyHandler(verifier *entitlement.Verifier, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{
		verifier:     verifier,
		logger:       logger,
		pollInterval: 2 * time.Second,
		pollTimeout:  20 * time.Second,
	}
}

// VerifyPurchase reports whether an email owns a completed purchase of a
// bundle. The email acts as a bearer-like key here; the checkout flow is the
// source of truth for who holds it.
func (h *VerifyHandler) VerifyPurchase(c *gin.Context) {
	ctx, span := otel.Tracer("academy-svc").Start(c.Request.Context(), "VerifyPurchase")
	defer span.End()

	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(attribute.String("bundle.type", req.BundleType))

	purchase, err := h.verifier.HasCompletedPurchase(ctx, req.Email, req.BundleType)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to verify purchase",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("bundle_type", req.BundleType),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Bool("purchase.valid", purchase != nil))
	c.JSON(http.StatusOK, models.VerifyResponse{
		HasValidPurchase: purchase != nil,
		Purchase:         purchase,
	})
}

// WaitForCompletion is the success-page poll. The payment processor's webhook
// can land after the buyer does, so this re-checks on an interval for a
// bounded window instead of failing on the first miss.
func (h *VerifyHandler) WaitForCompletion(c *gin.Context) {
	ctx, span := otel.Tracer("academy-svc").Start(c.Request.Context(), "WaitForCompletion")
	defer span.End()

	email := c.Query("email")
	bundleType := c.Query("bundleType")
	if email == "" || bundleType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and bundleType are required"})
		return
	}

	span.SetAttributes(attribute.String("bundle.type", bundleType))

	deadline := time.Now().Add(h.pollTimeout)
	for {
		purchase, err := h.verifier.HasCompletedPurchase(ctx, email, bundleType)
		if err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to verify purchase",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if purchase != nil {
			c.JSON(http.StatusOK, models.VerifyResponse{HasValidPurchase: true, Purchase: purchase})
			return
		}
		if time.Now().After(deadline) {
			c.JSON(http.StatusOK, models.VerifyResponse{HasValidPurchase: false, Purchase: nil})
			return
		}

		select {
		case <-ctx.Done():
			c.JSON(http.StatusOK, models.VerifyResponse{HasValidPurchase: false, Purchase: nil})
			return
		case <-time.After(h.pollInterval):
		}
	}
}
