package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.resend.com/emails"
	defaultFrom    = "Bright Minds Academy <hello@brightmindsacademy.example>"
)

// Sender dispatches a purchase confirmation. The Kafka consumer depends on
// this rather than the concrete client.
type Sender interface {
	SendPurchaseConfirmation(ctx context.Context, to, bundleName string, amount int64, currency string) error
}

// Client talks to the transactional email API.
type Client struct {
	apiKey  string
	baseURL string
	from    string
	client  *http.Client
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		from:    defaultFrom,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) SendPurchaseConfirmation(ctx context.Context, to, bundleName string, amount int64, currency string) error {
	body := sendRequest{
		From:    c.from,
		To:      []string{to},
		Subject: fmt.Sprintf("Your %s purchase is confirmed", bundleName),
		HTML:    confirmationHTML(bundleName, amount, currency),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email provider returned %d: %s", resp.StatusCode, snippet)
	}

	return nil
}

func confirmationHTML(bundleName string, amount int64, currency string) string {
	return fmt.Sprintf(`
		<h1>Thank you for your purchase!</h1>
		<p>Your payment of %.2f %s for the <strong>%s</strong> was successful.</p>
		<p>Sign in to Bright Minds Academy with this email address to access your downloads.</p>
		<p>Happy learning!</p>`,
		float64(amount)/100, currency, bundleName)
}
