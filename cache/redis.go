package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"academy-svc/models"
)

func InitRedis(logger *zap.Logger) (*redis.Client, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port := getEnv("REDIS_PORT", "6379")
	password := getEnv("REDIS_PASSWORD", "")

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

func entitlementKey(email, bundleType string) string {
	return fmt.Sprintf("entitlement:%s:%s", email, bundleType)
}

// GetEntitlement returns a previously verified completed purchase, if cached.
func GetEntitlement(ctx context.Context, rdb *redis.Client, email, bundleType string) (*models.Purchase, error) {
	data, err := rdb.Get(ctx, entitlementKey(email, bundleType)).Bytes()
	if err != nil {
		return nil, err
	}
	var p models.Purchase
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetEntitlement caches a completed purchase. Only positive results are ever
// cached; a pending purchase flipping to completed must be visible promptly.
func SetEntitlement(ctx context.Context, rdb *redis.Client, p *models.Purchase, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, entitlementKey(p.Email, p.BundleType), data, ttl).Err()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
