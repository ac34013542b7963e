package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
)

func testGuest() model.Guest {
	return model.Guest{ID: 1, Email: "alice@example.com", Name: "Alice"}
}

func testHost() model.Host {
	return model.Host{ID: 1, Name: "Acme Corp", Email: "reception@acme.example"}
}

func TestSendInvitation(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "lobby@example.com")
	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}

	visitDate := time.Date(2026, time.September, 3, 0, 0, 0, 0, time.UTC)
	err := client.SendInvitation(testGuest(), testHost(), visitDate, "signed-credential")
	if err != nil {
		t.Fatalf("send invitation: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", received.To, "alice@example.com")
	}
	if received.From != "lobby@example.com" {
		t.Errorf("From = %q, want %q", received.From, "lobby@example.com")
	}
	if received.Subject != "Your visit to Acme Corp on Sep 3" {
		t.Errorf("Subject = %q", received.Subject)
	}
	if !strings.Contains(received.TextBody, "signed-credential") {
		t.Error("credential missing from text body")
	}
}

func TestSendReward(t *testing.T) {
	var received postmarkEmail

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "lobby@example.com")
	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}

	if err := client.SendReward(testGuest(), 3); err != nil {
		t.Fatalf("send reward: %v", err)
	}
	if !strings.Contains(received.TextBody, "visit number 3") {
		t.Errorf("TextBody = %q, want milestone mention", received.TextBody)
	}
}

func TestSendNotConfigured(t *testing.T) {
	client := NewClient("", "lobby@example.com")

	if err := client.SendTermsRenewal(testGuest()); err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}

func TestSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient("test-token", "lobby@example.com")
	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}

	if err := client.SendTermsRenewal(testGuest()); err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestConfigured(t *testing.T) {
	if c := NewClient("token", "from@test.com"); !c.Configured() {
		t.Error("expected Configured() = true")
	}
	if c := NewClient("", "from@test.com"); c.Configured() {
		t.Error("expected Configured() = false")
	}
}

// rewriteTransport redirects all requests to a test server URL.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}
