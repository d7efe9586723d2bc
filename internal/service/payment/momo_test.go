package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skooli/storefront/internal/domain"
)

func TestNormalizeUgandanPhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+256700123456", "256700123456", false},
		{"256700123456", "256700123456", false},
		{"0700123456", "256700123456", false},
		{"0700 123 456", "256700123456", false},
		{"0700-123-456", "256700123456", false},
		{"700123456", "256700123456", false},
		{"+256 700 123456", "256700123456", false},
		{"12345", "", true},
		{"+256800123456", "", true}, // не мобильный префикс
		{"0700123abc", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		got, err := NormalizeUgandanPhone(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeUgandanPhone(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeUgandanPhone(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeUgandanPhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMomoStatusMapping(t *testing.T) {
	cases := map[string]domain.PaymentStatus{
		"SUCCESSFUL": domain.PaymentStatusSuccess,
		"successful": domain.PaymentStatusSuccess,
		"FAILED":     domain.PaymentStatusFailed,
		"PENDING":    domain.PaymentStatusPending,
		"TIMEOUT":    domain.PaymentStatusPending,
		"":           domain.PaymentStatusPending,
	}
	for native, want := range cases {
		if got := normalizeMomoStatus(native); got != want {
			t.Errorf("normalizeMomoStatus(%q) = %s, want %s", native, got, want)
		}
	}
}

func testOrder() domain.Order {
	return domain.Order{
		ID:         "order-1",
		Number:     "ORD-TEST-1",
		UserID:     "user-1",
		Currency:   "UGX",
		TotalMinor: 25620,
	}
}

func TestMoMoProviderInitiate(t *testing.T) {
	var gotBody momoChargeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/requesttopay" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if key := r.Header.Get("Ocp-Apim-Subscription-Key"); key != "sub-key" {
			t.Errorf("subscription key = %q", key)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(momoChargeResponse{TransactionID: "momo-tx-1", Status: "PENDING"})
	}))
	defer srv.Close()

	provider := NewMoMoProvider(MoMoConfig{BaseURL: srv.URL, SubscriptionKey: "sub-key", Timeout: 2 * time.Second})
	handle, err := provider.Initiate(context.Background(), testOrder(), domain.ChargeDetails{PhoneNumber: "0700123456"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if handle.ProviderTxID != "momo-tx-1" || handle.Status != domain.PaymentStatusPending {
		t.Fatalf("unexpected handle: %+v", handle)
	}
	if gotBody.PhoneNumber != "256700123456" || gotBody.Amount != 25620 || gotBody.Currency != "UGX" {
		t.Fatalf("unexpected charge request: %+v", gotBody)
	}
}

func TestMoMoProviderInitiateRejectsBadPhone(t *testing.T) {
	provider := NewMoMoProvider(MoMoConfig{BaseURL: "http://127.0.0.1:0"})
	if _, err := provider.Initiate(context.Background(), testOrder(), domain.ChargeDetails{PhoneNumber: "not-a-phone"}); err == nil {
		t.Fatal("expected phone validation error")
	}
}

func TestMoMoProviderCheckStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/requesttopay/momo-tx-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(momoChargeResponse{TransactionID: "momo-tx-1", Status: "SUCCESSFUL"})
	}))
	defer srv.Close()

	provider := NewMoMoProvider(MoMoConfig{BaseURL: srv.URL})
	handle, err := provider.CheckStatus(context.Background(), "momo-tx-1")
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if handle.Status != domain.PaymentStatusSuccess {
		t.Fatalf("status = %s, want success", handle.Status)
	}
}

func TestMoMoProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	provider := NewMoMoProvider(MoMoConfig{BaseURL: srv.URL})
	_, err := provider.Initiate(context.Background(), testOrder(), domain.ChargeDetails{PhoneNumber: "0700123456"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("got %v, want ErrProviderUnavailable", err)
	}
}
