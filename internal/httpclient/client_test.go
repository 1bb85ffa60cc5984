package httpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/httpclient"
)

func TestRequest_DecodesResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "ETHUSDT" {
			t.Errorf("symbol = %q, want ETHUSDT", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"ETHUSDT","price":"3400.50"}`))
	}))
	defer server.Close()

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithBaseURL(server.URL),
		httpclient.WithProviderName("test"),
	)
	if err != nil {
		t.Fatalf("NewInstrumentedClient() error = %v", err)
	}

	var result struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	_, err = client.NewRequest().
		SetQueryParam("symbol", "ETHUSDT").
		SetResult(&result).
		Get(context.Background(), "/api/v3/ticker/price")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if result.Price != "3400.50" {
		t.Errorf("Price = %q, want 3400.50", result.Price)
	}
}

func TestRequest_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  apperror.Code
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, apperror.CodeRateLimitExceeded, true},
		{"server error", http.StatusBadGateway, apperror.CodeServiceUnavailable, true},
		{"client error", http.StatusBadRequest, apperror.CodeExternalServiceError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client, err := httpclient.NewInstrumentedClient(httpclient.WithBaseURL(server.URL))
			if err != nil {
				t.Fatalf("NewInstrumentedClient() error = %v", err)
			}
			_, err = client.NewRequest().Get(context.Background(), "/")
			if got := apperror.GetCode(err); got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
			if apperror.IsRetryable(err) != tt.retryable {
				t.Errorf("retryable = %v, want %v", apperror.IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestRequest_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, err := httpclient.NewInstrumentedClient(httpclient.WithCircuitBreaker())
	if err != nil {
		t.Fatalf("NewInstrumentedClient() error = %v", err)
	}
	resp, err := client.NewRequest().SetBody(map[string]string{"text": "breaker tripped"}).Post(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
