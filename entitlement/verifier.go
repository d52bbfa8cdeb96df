package entitlement

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"academy-svc/cache"
	"academy-svc/models"
)

const cacheTTL = 5 * time.Minute

// Verifier is the single read path for "does this email own this bundle".
// Both the public verify endpoint and the route gate go through it.
type Verifier struct {
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewVerifier(db *sql.DB, redisClient *redis.Client, logger *zap.Logger) *Verifier {
	return &Verifier{
		db:          db,
		redisClient: redisClient,
		logger:      logger,
	}
}

// HasCompletedPurchase returns the most recent completed purchase for the
// exact (normalized email, bundle type) pair, or nil when none exists. A
// pending purchase never satisfies it.
func (v *Verifier) HasCompletedPurchase(ctx context.Context, email, bundleType string) (*models.Purchase, error) {
	email = models.NormalizeEmail(email)

	if v.redisClient != nil {
		if p, err := cache.GetEntitlement(ctx, v.redisClient, email, bundleType); err == nil {
			return p, nil
		}
	}

	var p models.Purchase
	var accountID sql.NullInt64
	err := v.db.QueryRowContext(ctx,
		"SELECT id, email, account_id, bundle_type, amount, currency, status, stripe_session_id, includes_addon, created_at, updated_at FROM purchases WHERE email = $1 AND bundle_type = $2 AND status = $3 ORDER BY created_at DESC LIMIT 1",
		email, bundleType, models.PurchaseStatusCompleted,
	).Scan(&p.ID, &p.Email, &accountID, &p.BundleType, &p.Amount, &p.Currency, &p.Status, &p.StripeSessionID, &p.IncludesAddon, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if accountID.Valid {
		id := int(accountID.Int64)
		p.AccountID = &id
	}

	if v.redisClient != nil {
		if err := cache.SetEntitlement(ctx, v.redisClient, &p, cacheTTL); err != nil {
			v.logger.Warn("Failed to cache entitlement", zap.Error(err))
		}
	}

	return &p, nil
}

// BindAccount claims a purchase for the first signed-in account whose email
// matched it. The guard keeps the binding first-wins.
func (v *Verifier) BindAccount(ctx context.Context, purchaseID string, accountID int) error {
	_, err := v.db.ExecContext(ctx,
		"UPDATE purchases SET account_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND account_id IS NULL",
		accountID, purchaseID,
	)
	return err
}
