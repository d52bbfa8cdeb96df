package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"academy-svc/models"
)

// ContextPurchaseKey holds the verified purchase for gated handlers.
const ContextPurchaseKey = "entitlement_purchase"

// PurchaseVerifier is the entitlement read path the gate depends on.
type PurchaseVerifier interface {
	HasCompletedPurchase(ctx context.Context, email, bundleType string) (*models.Purchase, error)
	BindAccount(ctx context.Context, purchaseID string, accountID int) error
}

// BundleFromParam resolves the gated bundle from a route parameter.
func BundleFromParam(param string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		return c.Param(param)
	}
}

// BundleFixed gates a route behind one specific bundle.
func BundleFixed(bundleType string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		return bundleType
	}
}

// EntitlementRequired composes the two checks that guard protected content:
// the request must carry a signed-in identity (AuthRequired ran before it)
// and that identity's email must own a completed purchase of the bundle.
// Unauthenticated requests get 401; signed-in but unentitled ones get 403
// with a purchase_required code, never a sign-in redirect.
func EntitlementRequired(verifier PurchaseVerifier, bundle func(*gin.Context) string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		emailVal, ok := c.Get(ContextEmailKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		email := emailVal.(string)

		bundleType := bundle(c)
		if _, known := models.BundleByType(bundleType); !known {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Unknown bundle type"})
			return
		}

		ctx := c.Request.Context()
		purchase, err := verifier.HasCompletedPurchase(ctx, email, bundleType)
		if err != nil {
			logger.Error("Failed to verify purchase",
				zap.String("trace_id", GetTraceID(ctx)),
				zap.String("bundle_type", bundleType),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if purchase == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Purchase required",
				"code":  "purchase_required",
			})
			return
		}

		// First signed-in owner of the email claims the purchase.
		if accountID, ok := c.Get(ContextAccountIDKey); ok && purchase.AccountID == nil {
			if err := verifier.BindAccount(ctx, purchase.ID, accountID.(int)); err != nil {
				logger.Warn("Failed to bind purchase to account", zap.Error(err))
			}
		}

		c.Set(ContextPurchaseKey, purchase)
		c.Next()
	}
}
