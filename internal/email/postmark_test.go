package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/reservations/internal/model"
)

func testReservation() model.Reservation {
	return model.NewReservation("abc", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), map[string]any{
		"name": "Ali <script>",
		"date": "2024-05-02",
	})
}

func TestNotifyReservation(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", "owner@example.com", WithAPIURL(server.URL))
	if err := client.NotifyReservation(context.Background(), testReservation()); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "owner@example.com" {
		t.Errorf("To = %q, want %q", received.To, "owner@example.com")
	}
	if received.From != "noreply@example.com" {
		t.Errorf("From = %q, want %q", received.From, "noreply@example.com")
	}
	if received.Subject != "New reservation abc" {
		t.Errorf("Subject = %q, want %q", received.Subject, "New reservation abc")
	}
	if !strings.Contains(received.TextBody, "date: 2024-05-02\nname: Ali <script>\n") {
		t.Errorf("TextBody = %q, want sorted fields", received.TextBody)
	}
	if strings.Contains(received.HtmlBody, "<script>") {
		t.Error("HtmlBody must escape client fields")
	}
}

func TestNotifyNotConfigured(t *testing.T) {
	tests := []struct {
		name  string
		token string
		to    string
	}{
		{"no token", "", "owner@example.com"},
		{"no recipient", "token", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.token, "noreply@example.com", tt.to)
			if client.Configured() {
				t.Error("expected Configured() = false")
			}
			err := client.NotifyReservation(context.Background(), testReservation())
			if !errors.Is(err, ErrNotConfigured) {
				t.Errorf("err = %v, want ErrNotConfigured", err)
			}
		})
	}
}

func TestNotifyAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", "owner@example.com", WithAPIURL(server.URL))
	if err := client.NotifyReservation(context.Background(), testReservation()); err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestWithHTTPClient(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	client := NewClient("t", "f", "to", WithHTTPClient(hc))
	if client.httpClient != hc {
		t.Error("expected custom http client")
	}
	if client.apiURL != defaultAPIURL {
		t.Errorf("apiURL = %q, want default", client.apiURL)
	}
}
