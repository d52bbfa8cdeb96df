package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"academy-svc/models"
)

// Fake verifier for testing the gate.
type fakeVerifier struct {
	purchase   *models.Purchase
	err        error
	boundID    string
	boundAccID int
}

func (f *fakeVerifier) HasCompletedPurchase(ctx context.Context, email, bundleType string) (*models.Purchase, error) {
	return f.purchase, f.err
}

func (f *fakeVerifier) BindAccount(ctx context.Context, purchaseID string, accountID int) error {
	f.boundID = purchaseID
	f.boundAccID = accountID
	return nil
}

func setupGateTest(t *testing.T, verifier *fakeVerifier, signedIn bool) *gin.Engine {
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	identity := func(c *gin.Context) {
		if signedIn {
			c.Set(ContextEmailKey, "a@example.com")
			c.Set(ContextAccountIDKey, 7)
		}
	}
	router.GET("/content/:bundleType",
		identity,
		EntitlementRequired(verifier, BundleFromParam("bundleType"), logger),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"protected": true})
		})
	return router
}

func TestEntitlementRequired_Unauthenticated(t *testing.T) {
	router := setupGateTest(t, &fakeVerifier{}, false)

	req := httptest.NewRequest(http.MethodGet, "/content/bma-bundle", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

// Signed in without a completed purchase: the gate must answer with the
// purchase-required state, never the protected content and never another
// sign-in challenge.
func TestEntitlementRequired_Unentitled(t *testing.T) {
	router := setupGateTest(t, &fakeVerifier{purchase: nil}, true)

	req := httptest.NewRequest(http.MethodGet, "/content/bma-bundle", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status %d, got %d", http.StatusForbidden, w.Code)
	}
	if !strings.Contains(w.Body.String(), "purchase_required") {
		t.Errorf("Expected purchase_required code in body, got %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "protected") {
		t.Error("Protected content leaked to an unentitled caller")
	}
}

func TestEntitlementRequired_Entitled(t *testing.T) {
	verifier := &fakeVerifier{purchase: &models.Purchase{ID: "p-1", BundleType: "bma-bundle"}}
	router := setupGateTest(t, verifier, true)

	req := httptest.NewRequest(http.MethodGet, "/content/bma-bundle", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	// First signed-in owner of the email claims the purchase.
	if verifier.boundID != "p-1" || verifier.boundAccID != 7 {
		t.Errorf("Expected purchase bound to account 7, got %q/%d", verifier.boundID, verifier.boundAccID)
	}
}

func TestEntitlementRequired_UnknownBundle(t *testing.T) {
	router := setupGateTest(t, &fakeVerifier{}, true)

	req := httptest.NewRequest(http.MethodGet, "/content/not-a-bundle", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}
