package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_SendPurchaseConfirmation(t *testing.T) {
	var received sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Unexpected authorization header: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key")
	client.baseURL = srv.URL

	err := client.SendPurchaseConfirmation(context.Background(), "a@example.com", "Bright Minds Academy Bundle", 1900, "usd")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(received.To) != 1 || received.To[0] != "a@example.com" {
		t.Errorf("Unexpected recipients: %v", received.To)
	}
	if !strings.Contains(received.Subject, "Bright Minds Academy Bundle") {
		t.Errorf("Subject should name the bundle, got %q", received.Subject)
	}
	if !strings.Contains(received.HTML, "19.00 usd") {
		t.Errorf("Body should show the formatted amount, got %q", received.HTML)
	}
}

func TestClient_SendPurchaseConfirmation_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key")
	client.baseURL = srv.URL

	err := client.SendPurchaseConfirmation(context.Background(), "a@example.com", "Video Bundle", 1200, "usd")
	if err == nil {
		t.Error("Expected error from provider failure")
	}
}
