package config

import (
	"fmt"
	"os"
)

// Config carries the environment the service needs at startup. Secrets have
// no defaults: a missing one fails Load rather than silently degrading.
type Config struct {
	Port string

	StripeSecretKey     string
	StripeWebhookSecret string
	ResendAPIKey        string

	JWTSecret string

	ContentBucket   string
	CheckoutBaseURL string

	AIGatewayURL string
	AIGatewayKey string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8084"),
		JWTSecret:       getEnv("JWT_SECRET", "change-me-in-production"),
		ContentBucket:   getEnv("CONTENT_BUCKET", "bma-bundle-content"),
		CheckoutBaseURL: getEnv("CHECKOUT_BASE_URL", "http://localhost:3000"),
		AIGatewayURL:    getEnv("AI_GATEWAY_URL", "https://api.openai.com/v1/chat/completions"),
		AIGatewayKey:    os.Getenv("AI_GATEWAY_KEY"),
	}

	var err error
	if cfg.StripeSecretKey, err = requireEnv("STRIPE_SECRET_KEY"); err != nil {
		return nil, err
	}
	if cfg.StripeWebhookSecret, err = requireEnv("STRIPE_WEBHOOK_SECRET"); err != nil {
		return nil, err
	}
	if cfg.ResendAPIKey, err = requireEnv("RESEND_API_KEY"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
