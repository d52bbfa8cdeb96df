package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultModel = "gpt-4o-mini"

// Quota errors are surfaced distinctly so the UI can tell "slow down" from
// "out of credits".
var (
	ErrRateLimited   = errors.New("ai gateway rate limit exceeded")
	ErrQuotaExceeded = errors.New("ai gateway credits exhausted")
)

// StoryGenerator is the slice of the gateway the activities handler needs.
type StoryGenerator interface {
	GenerateStory(ctx context.Context, topic, ageRange string) (string, error)
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) GenerateStory(ctx context.Context, topic, ageRange string) (string, error) {
	if ageRange == "" {
		ageRange = "5-8"
	}

	reqBody := chatRequest{
		Model: defaultModel,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: "You are a warm children's storyteller. Write short, age-appropriate stories with a gentle lesson. Never include scary or violent content.",
			},
			{
				Role:    "user",
				Content: fmt.Sprintf("Write a story about %s for children aged %s.", topic, ageRange),
			},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		return "", ErrQuotaExceeded
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gateway returned %d: %s", resp.StatusCode, snippet)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("gateway returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}
